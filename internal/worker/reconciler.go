// Package worker runs the background reconciliation loop that settles
// activating markets against the chain.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veilco/market-creation/internal/augur"
	"github.com/veilco/market-creation/internal/domain"
)

// DefaultInterval is the pause between reconciliation passes.
const DefaultInterval = 5 * time.Second

// passLockKey is the distributed lock taken around each pass when a lock
// manager is configured.
const passLockKey = "reconciler:pass"

// Archiver persists a copy of a confirmed receipt for audit. Archival is
// best-effort and never blocks a transition.
type Archiver interface {
	ArchiveReceipt(ctx context.Context, uid string, receipt *domain.TransactionReceipt) error
}

// Reconciler polls activating markets and settles each one: confirmed
// creations become active, unauthorized or timed-out ones revert to draft.
// All transitions go through the store's conditional updates, so a pass
// racing an API call (or another pass) loses cleanly with ErrConflict.
type Reconciler struct {
	markets  domain.MarketStore
	chain    domain.ReceiptFetcher
	bus      domain.SignalBus
	locks    domain.LockManager
	archiver Archiver
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithInterval overrides the pass interval.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.interval = d }
}

// WithSignalBus publishes lifecycle events after each settled transition.
func WithSignalBus(bus domain.SignalBus) Option {
	return func(r *Reconciler) { r.bus = bus }
}

// WithLockManager serializes passes across worker replicas.
func WithLockManager(locks domain.LockManager) Option {
	return func(r *Reconciler) { r.locks = locks }
}

// WithArchiver stores confirmed receipts after activation.
func WithArchiver(a Archiver) Option {
	return func(r *Reconciler) { r.archiver = a }
}

func NewReconciler(markets domain.MarketStore, chain domain.ReceiptFetcher, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		markets:  markets,
		chain:    chain,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "reconciler")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes passes until the context is cancelled. A pass failure is
// logged and the loop keeps going; only cancellation stops it.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "reconciler started", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.runLocked(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "reconciliation pass failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runLocked wraps a pass in the distributed lock when one is configured.
// A held lock means another replica is already on it; skip the pass.
func (r *Reconciler) runLocked(ctx context.Context) error {
	if r.locks == nil {
		return r.Pass(ctx)
	}
	unlock, err := r.locks.Acquire(ctx, passLockKey, r.interval*2)
	if errors.Is(err, domain.ErrLockHeld) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("worker: acquire pass lock: %w", err)
	}
	defer unlock()
	return r.Pass(ctx)
}

// Pass settles every activating market once. Failures are isolated per
// market: one bad record never blocks the rest of the batch.
func (r *Reconciler) Pass(ctx context.Context) error {
	pending, err := r.markets.ListByStatus(ctx, domain.MarketStatusActivating)
	if err != nil {
		return fmt.Errorf("worker: list activating markets: %w", err)
	}

	for i := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.settle(ctx, &pending[i]); err != nil {
			r.logger.ErrorContext(ctx, "settle failed",
				slog.String("uid", pending[i].UID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// settle decides the fate of one activating market. The timeout check runs
// before the receipt fetch so a market whose transaction never lands is
// released even when the chain endpoint is down.
func (r *Reconciler) settle(ctx context.Context, m *domain.Market) error {
	if m.ActivationExpired(r.now()) {
		return r.revert(ctx, m, "activation timed out")
	}
	if m.TransactionHash == nil {
		return r.revert(ctx, m, "activating without transaction hash")
	}

	receipt, err := r.chain.TransactionReceipt(ctx, *m.TransactionHash)
	if errors.Is(err, domain.ErrReceiptNotFound) {
		// Not mined yet. Leave it for the next pass.
		return nil
	}
	if err != nil {
		return fmt.Errorf("worker: fetch receipt %s: %w", *m.TransactionHash, err)
	}

	if !strings.EqualFold(receipt.From, m.Author) {
		r.logger.WarnContext(ctx, "activation sender mismatch",
			slog.String("uid", m.UID),
			slog.String("author", m.Author),
			slog.String("sender", receipt.From),
		)
		return r.revert(ctx, m, "transaction sender does not match author")
	}
	if !receipt.Succeeded() {
		// A reverted creation transaction is not an authorization failure.
		// Leave the market in activating; the timeout releases it.
		r.logger.WarnContext(ctx, "creation transaction reverted on chain",
			slog.String("uid", m.UID),
			slog.String("tx_hash", *m.TransactionHash),
		)
		return nil
	}

	address, ok := augur.FindMarketCreated(augur.DecodeLogs(receipt.Logs))
	if !ok {
		// Succeeded but no MarketCreated log: not a creation transaction.
		// Leave it in activating; the timeout will release it.
		r.logger.WarnContext(ctx, "receipt has no market creation log",
			slog.String("uid", m.UID),
			slog.String("tx_hash", *m.TransactionHash),
		)
		return nil
	}

	active, err := r.markets.CompleteActivation(ctx, m.UID, address)
	if errors.Is(err, domain.ErrConflict) {
		// Lost the transition race, nothing to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("worker: complete activation %s: %w", m.UID, err)
	}

	r.logger.InfoContext(ctx, "market activated",
		slog.String("uid", m.UID),
		slog.String("address", address),
	)
	r.publish(ctx, domain.EventMarketActivated, active, "")
	r.archive(ctx, m.UID, receipt)
	return nil
}

func (r *Reconciler) revert(ctx context.Context, m *domain.Market, reason string) error {
	reverted, err := r.markets.RevertActivation(ctx, m.UID)
	if errors.Is(err, domain.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("worker: revert activation %s: %w", m.UID, err)
	}

	r.logger.InfoContext(ctx, "market reverted to draft",
		slog.String("uid", m.UID),
		slog.String("reason", reason),
	)
	r.publish(ctx, domain.EventMarketReverted, reverted, reason)
	return nil
}

func (r *Reconciler) publish(ctx context.Context, event string, m domain.Market, reason string) {
	if r.bus == nil {
		return
	}
	ev := domain.LifecycleEvent{
		Event:        event,
		UID:          m.UID,
		Author:       m.Author,
		Status:       m.Status,
		RevertReason: reason,
		At:           r.now().UTC(),
	}
	if m.TransactionHash != nil {
		ev.TransactionHash = *m.TransactionHash
	}
	if m.Address != nil {
		ev.Address = *m.Address
	}
	payload, _ := json.Marshal(ev)
	if err := r.bus.Publish(ctx, event, payload); err != nil {
		r.logger.WarnContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Reconciler) archive(ctx context.Context, uid string, receipt *domain.TransactionReceipt) {
	if r.archiver == nil {
		return
	}
	if err := r.archiver.ArchiveReceipt(ctx, uid, receipt); err != nil {
		r.logger.WarnContext(ctx, "receipt archive failed",
			slog.String("uid", uid),
			slog.String("error", err.Error()),
		)
	}
}
