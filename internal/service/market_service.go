// Package service implements the guarded market lifecycle operations behind
// the mutation/query API.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veilco/market-creation/internal/crypto"
	"github.com/veilco/market-creation/internal/domain"
)

// MarketService enforces the draft -> activating -> active lifecycle. Every
// mutation is authenticated by a market-authoring signature and every
// status change goes through the store's conditional transitions.
type MarketService struct {
	markets  domain.MarketStore
	bus      domain.SignalBus
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// NewMarketService creates a MarketService. bus may be nil when no event
// fan-out is configured.
func NewMarketService(markets domain.MarketStore, bus domain.SignalBus, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets:  markets,
		bus:      bus,
		validate: newValidator(),
		now:      time.Now,
		logger:   logger.With(slog.String("component", "market_service")),
	}
}

// Create validates the draft input and its authoring signature, assigns a
// fresh uid, and persists the market as a draft.
func (s *MarketService) Create(ctx context.Context, in MarketInput, sig domain.Signature) (domain.Market, error) {
	m, err := s.checkInput(in)
	if err != nil {
		return domain.Market{}, err
	}

	// The input acts as the provisional market: the signature must cover
	// the content being created.
	if err := crypto.ValidateSignature(&m, sig, s.now()); err != nil {
		return domain.Market{}, err
	}

	m.UID = uuid.New().String()
	m.Status = domain.MarketStatusDraft

	created, err := s.markets.Create(ctx, m)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.logger.InfoContext(ctx, "draft created",
		slog.String("uid", created.UID),
		slog.String("author", created.Author),
		slog.String("type", string(created.Type)),
	)
	s.publish(ctx, domain.EventMarketCreated, created, "")
	return created, nil
}

// Update rewrites the content of a draft. The signature must match the
// record as currently stored, so a draft cannot be rewritten under a stale
// signature for different content.
func (s *MarketService) Update(ctx context.Context, uid string, in MarketInput, sig domain.Signature) (domain.Market, error) {
	existing, err := s.markets.GetByUID(ctx, uid)
	if err != nil {
		return domain.Market{}, err
	}

	if err := crypto.ValidateSignature(&existing, sig, s.now()); err != nil {
		return domain.Market{}, err
	}
	if existing.Status != domain.MarketStatusDraft {
		return domain.Market{}, fmt.Errorf("market %s is %s: %w", uid, existing.Status, domain.ErrInvalidStateTransition)
	}

	m, err := s.checkInput(in)
	if err != nil {
		return domain.Market{}, err
	}
	m.UID = existing.UID

	updated, err := s.markets.UpdateDraft(ctx, m)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: update %s: %w", uid, err)
	}

	s.logger.InfoContext(ctx, "draft updated", slog.String("uid", uid))
	s.publish(ctx, domain.EventMarketUpdated, updated, "")
	return updated, nil
}

// Activate records the submitted creation transaction and moves the draft
// to activating. It does not verify that the transaction succeeded; the
// reconciler settles that against the chain.
func (s *MarketService) Activate(ctx context.Context, uid, txHash string, sig domain.Signature) (domain.Market, error) {
	existing, err := s.markets.GetByUID(ctx, uid)
	if err != nil {
		return domain.Market{}, err
	}
	if existing.Status != domain.MarketStatusDraft {
		return domain.Market{}, fmt.Errorf("market %s is %s: %w", uid, existing.Status, domain.ErrInvalidStateTransition)
	}
	if !txHashPattern.MatchString(txHash) {
		return domain.Market{}, validationError("transactionHash %q is not a 32-byte hex hash", txHash)
	}
	if err := crypto.ValidateSignature(&existing, sig, s.now()); err != nil {
		return domain.Market{}, err
	}

	activated, err := s.markets.BeginActivation(ctx, uid, txHash, s.now().UTC())
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: activate %s: %w", uid, err)
	}

	s.logger.InfoContext(ctx, "activation submitted",
		slog.String("uid", uid),
		slog.String("tx_hash", txHash),
	)
	s.publish(ctx, domain.EventMarketActivating, activated, "")
	return activated, nil
}

// Get returns a single market by uid.
func (s *MarketService) Get(ctx context.Context, uid string) (domain.Market, error) {
	return s.markets.GetByUID(ctx, uid)
}

// ListByAuthor returns the author's markets, newest first.
func (s *MarketService) ListByAuthor(ctx context.Context, author string) ([]domain.Market, error) {
	if !addressPattern.MatchString(author) {
		return nil, validationError("author %q is not an address", author)
	}
	return s.markets.ListByAuthor(ctx, author)
}

// Categories returns the static category catalogue.
func (s *MarketService) Categories() []domain.Category {
	return domain.Categories()
}

// publish emits a lifecycle event on the signal bus. Publishing is
// best-effort: a bus failure never fails the mutation that triggered it.
func (s *MarketService) publish(ctx context.Context, event string, m domain.Market, reason string) {
	if s.bus == nil {
		return
	}
	ev := domain.LifecycleEvent{
		Event:        event,
		UID:          m.UID,
		Author:       m.Author,
		Status:       m.Status,
		RevertReason: reason,
		At:           s.now().UTC(),
	}
	if m.TransactionHash != nil {
		ev.TransactionHash = *m.TransactionHash
	}
	if m.Address != nil {
		ev.Address = *m.Address
	}
	payload, _ := json.Marshal(ev)
	if err := s.bus.Publish(ctx, event, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("uid", m.UID),
			slog.String("error", err.Error()),
		)
	}
}
