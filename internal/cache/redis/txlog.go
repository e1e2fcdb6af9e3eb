package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veilco/market-creation/internal/domain"
)

// TransactionLog implements domain.TransactionLog on Redis: the full
// transaction list is serialized as one JSON array under a single
// namespaced key and overwritten wholesale on every change.
type TransactionLog struct {
	rdb *redis.Client
	key string
}

// NewTransactionLog creates a TransactionLog storing the list under
// "veil:transactions:<owner>". owner is typically the author address, so
// each wallet keeps its own history.
func NewTransactionLog(c *Client, owner string) *TransactionLog {
	return &TransactionLog{
		rdb: c.Underlying(),
		key: "veil:transactions:" + owner,
	}
}

// Save overwrites the stored list with txs.
func (l *TransactionLog) Save(txs []domain.Transaction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	blob, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("redis: marshal transaction log: %w", err)
	}
	if err := l.rdb.Set(ctx, l.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("redis: save transaction log: %w", err)
	}
	return nil
}

// Load restores the stored list. A missing key yields an empty list.
func (l *TransactionLog) Load() ([]domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	blob, err := l.rdb.Get(ctx, l.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: load transaction log: %w", err)
	}

	var txs []domain.Transaction
	if err := json.Unmarshal(blob, &txs); err != nil {
		return nil, fmt.Errorf("redis: unmarshal transaction log: %w", err)
	}
	return txs, nil
}

// Compile-time interface check.
var _ domain.TransactionLog = (*TransactionLog)(nil)
