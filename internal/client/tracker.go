package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilco/market-creation/internal/domain"
)

// DefaultPollInterval is the pause between receipt polls while any
// transaction is pending.
const DefaultPollInterval = 2 * time.Second

// Tracker mirrors the user's submitted chain operations. The list is held
// newest first, persisted wholesale to a TransactionLog on every change,
// and polled against the chain while anything is pending. The poll loop
// starts itself on Add and stops itself when the last pending transaction
// settles.
type Tracker struct {
	mu       sync.Mutex
	txs      []domain.Transaction
	polling  bool
	onStart  []func(domain.Transaction)
	log      domain.TransactionLog
	chain    domain.ReceiptFetcher
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewTracker restores the transaction list from log and returns a tracker
// polling receipts through chain. When the restored list still holds
// pending entries the poll loop resumes immediately.
func NewTracker(ctx context.Context, log domain.TransactionLog, chain domain.ReceiptFetcher, logger *slog.Logger) (*Tracker, error) {
	txs, err := log.Load()
	if err != nil {
		return nil, fmt.Errorf("client: restore transactions: %w", err)
	}
	t := &Tracker{
		txs:      txs,
		log:      log,
		chain:    chain,
		interval: DefaultPollInterval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "tracker")),
	}

	t.mu.Lock()
	for i := range t.txs {
		if t.txs[i].Status == domain.TransactionPending {
			t.startPollingLocked(ctx)
			break
		}
	}
	t.mu.Unlock()

	return t, nil
}

// OnStart registers a callback invoked whenever a new transaction is added.
// Callbacks run synchronously inside Add.
func (t *Tracker) OnStart(fn func(domain.Transaction)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = append(t.onStart, fn)
}

// Add records a new pending transaction at the head of the list and starts
// the poll loop. txHash may be empty when the operation has not been signed
// yet; the entry then stays pending until AttachHash or Complete.
func (t *Tracker) Add(ctx context.Context, txType, txHash string, metadata map[string]any) domain.Transaction {
	tx := domain.Transaction{
		UID:       uuid.New().String(),
		Type:      txType,
		Status:    domain.TransactionPending,
		Metadata:  metadata,
		CreatedAt: t.now().UTC(),
	}
	if txHash != "" {
		tx.TransactionHash = &txHash
	}

	t.mu.Lock()
	t.txs = append([]domain.Transaction{tx}, t.txs...)
	t.persistLocked()
	callbacks := slices.Clone(t.onStart)
	t.startPollingLocked(ctx)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn(tx)
	}
	return tx
}

// AttachHash sets the transaction hash on a pending entry once the
// operation has been signed and broadcast.
func (t *Tracker) AttachHash(ctx context.Context, uid, txHash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.txs {
		if t.txs[i].UID == uid {
			t.txs[i].TransactionHash = &txHash
			t.persistLocked()
			t.startPollingLocked(ctx)
			return nil
		}
	}
	return fmt.Errorf("client: transaction %s: %w", uid, domain.ErrNotFound)
}

// Complete marks a transaction completed without a receipt. Used for
// operations that settle off-chain.
func (t *Tracker) Complete(uid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.txs {
		if t.txs[i].UID == uid {
			t.txs[i].Finish(t.now().UTC())
			t.persistLocked()
			return nil
		}
	}
	return fmt.Errorf("client: transaction %s: %w", uid, domain.ErrNotFound)
}

// PendingCount returns how many transactions are still pending.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.txs {
		if t.txs[i].Status == domain.TransactionPending {
			n++
		}
	}
	return n
}

// Completed returns up to limit completed transactions, newest first.
// limit <= 0 means no limit.
func (t *Tracker) Completed(limit int) []domain.Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.Transaction
	for i := range t.txs {
		if t.txs[i].Status != domain.TransactionCompleted {
			continue
		}
		out = append(out, t.txs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Count returns the total number of tracked transactions.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.txs)
}

// All returns a copy of the full list, newest first.
func (t *Tracker) All() []domain.Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Transaction(nil), t.txs...)
}

// persistLocked overwrites the durable log with the current list. Persist
// failures are logged; the in-memory list remains authoritative for the
// session.
func (t *Tracker) persistLocked() {
	if err := t.log.Save(append([]domain.Transaction(nil), t.txs...)); err != nil {
		t.logger.Warn("persist failed", slog.String("error", err.Error()))
	}
}

// startPollingLocked launches the poll loop unless one is already running.
// Caller holds t.mu.
func (t *Tracker) startPollingLocked(ctx context.Context) {
	if t.polling {
		return
	}
	t.polling = true
	go t.pollLoop(ctx)
}

// pollLoop resolves pending transactions against the chain every interval
// and exits when none remain pending.
func (t *Tracker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.polling = false
			t.mu.Unlock()
			return
		case <-ticker.C:
			if done := t.pollOnce(ctx); done {
				return
			}
		}
	}
}

// pollOnce fetches receipts for every pending transaction that has a hash
// and settles those that are mined. It reports true when the loop should
// stop because nothing is pending anymore.
func (t *Tracker) pollOnce(ctx context.Context) bool {
	t.mu.Lock()
	type lookup struct {
		uid  string
		hash string
	}
	var pending []lookup
	anyPending := false
	for i := range t.txs {
		if t.txs[i].Status != domain.TransactionPending {
			continue
		}
		anyPending = true
		if t.txs[i].TransactionHash != nil {
			pending = append(pending, lookup{uid: t.txs[i].UID, hash: *t.txs[i].TransactionHash})
		}
	}
	if !anyPending {
		t.polling = false
		t.mu.Unlock()
		return true
	}
	t.mu.Unlock()

	for _, p := range pending {
		receipt, err := t.chain.TransactionReceipt(ctx, p.hash)
		if errors.Is(err, domain.ErrReceiptNotFound) {
			continue
		}
		if err != nil {
			t.logger.Warn("receipt poll failed",
				slog.String("tx_hash", p.hash),
				slog.String("error", err.Error()),
			)
			continue
		}
		t.settle(p.uid, receipt.Succeeded())
	}
	return false
}

func (t *Tracker) settle(uid string, succeeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.txs {
		if t.txs[i].UID != uid || t.txs[i].Status != domain.TransactionPending {
			continue
		}
		if succeeded {
			t.txs[i].Finish(t.now().UTC())
		} else {
			t.txs[i].Fail()
		}
		t.persistLocked()
		return
	}
}
