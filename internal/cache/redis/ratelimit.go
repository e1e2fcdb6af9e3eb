package redis

import (
	"context"
	"fmt"
	"time"
)

const rateLimitPrefix = "veil:ratelimit:"

// RateLimiter is a fixed-window counter limiter backed by Redis.
type RateLimiter struct {
	c *Client
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow increments the window counter for key and reports whether the caller
// is still under the limit. The window expiry is set when the counter is
// first created.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rateLimitPrefix + key

	count, err := l.c.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.c.rdb.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("redis: rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}
