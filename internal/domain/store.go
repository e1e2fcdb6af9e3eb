package domain

import (
	"context"
	"time"
)

// MarketStore persists market records. The store is the sole arbiter of
// lifecycle transitions: every status change is a conditional update keyed
// on the expected current status, so an API call and a reconciler pass can
// never both win a transition from a stale read. Implementations return
// ErrConflict when the row exists but is no longer in the expected status.
type MarketStore interface {
	Create(ctx context.Context, m Market) (Market, error)
	GetByUID(ctx context.Context, uid string) (Market, error)
	ListByAuthor(ctx context.Context, author string) ([]Market, error)
	ListByStatus(ctx context.Context, status MarketStatus) ([]Market, error)

	// UpdateDraft overwrites the content fields of a draft. It fails with
	// ErrConflict if the market has left draft since it was loaded.
	UpdateDraft(ctx context.Context, m Market) (Market, error)

	// BeginActivation moves draft -> activating, recording the creation
	// transaction hash and the activation timestamp used for timeouts.
	BeginActivation(ctx context.Context, uid, txHash string, at time.Time) (Market, error)

	// CompleteActivation moves activating -> active and stores the
	// deployed market contract address.
	CompleteActivation(ctx context.Context, uid, address string) (Market, error)

	// RevertActivation moves activating -> draft, clearing the
	// transaction hash and activation timestamp.
	RevertActivation(ctx context.Context, uid string) (Market, error)
}

// SignalBus is a publish/subscribe fabric for market lifecycle events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed locks. The reconciler takes a pass-level
// lock so overlapping worker deployments do not duplicate chain RPC traffic;
// correctness does not depend on it (see MarketStore).
type LockManager interface {
	// Acquire returns an unlock func on success, or ErrLockHeld.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter answers whether a keyed caller may perform another request
// within the window. Implementations fail open on backend errors.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
