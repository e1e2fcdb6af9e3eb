package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/veilco/market-creation/internal/domain"
	"github.com/veilco/market-creation/internal/service"
)

// MarketService defines what the market handler needs from the service
// layer. It is declared locally so the handler package does not depend on
// the concrete service implementation.
type MarketService interface {
	Create(ctx context.Context, in service.MarketInput, sig domain.Signature) (domain.Market, error)
	Update(ctx context.Context, uid string, in service.MarketInput, sig domain.Signature) (domain.Market, error)
	Activate(ctx context.Context, uid, txHash string, sig domain.Signature) (domain.Market, error)
	Get(ctx context.Context, uid string) (domain.Market, error)
	ListByAuthor(ctx context.Context, author string) ([]domain.Market, error)
}

// MarketHandler serves the market lifecycle endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// mutationRequest is the body shared by create and update: the draft
// content plus the author's authorizing signature.
type mutationRequest struct {
	Market    service.MarketInput `json:"market"`
	Signature domain.Signature    `json:"signature"`
}

// activateRequest carries the submitted creation transaction hash and the
// author's authorizing signature.
type activateRequest struct {
	TransactionHash string           `json:"transactionHash"`
	Signature       domain.Signature `json:"signature"`
}

// CreateMarket creates a new draft.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req mutationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Create(r.Context(), req.Market, req.Signature)
	if err != nil {
		h.fail(w, r, "create market", err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

// UpdateMarket rewrites a draft's content.
// PUT /api/markets/{uid}
func (h *MarketHandler) UpdateMarket(w http.ResponseWriter, r *http.Request) {
	uid := pathParam(r, "uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing market uid")
		return
	}

	var req mutationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Update(r.Context(), uid, req.Market, req.Signature)
	if err != nil {
		h.fail(w, r, "update market", err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// ActivateMarket records a submitted creation transaction and moves the
// draft to activating.
// POST /api/markets/{uid}/activate
func (h *MarketHandler) ActivateMarket(w http.ResponseWriter, r *http.Request) {
	uid := pathParam(r, "uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing market uid")
		return
	}

	var req activateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Activate(r.Context(), uid, req.TransactionHash, req.Signature)
	if err != nil {
		h.fail(w, r, "activate market", err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// GetMarket returns a single market by uid.
// GET /api/markets/{uid}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	uid := pathParam(r, "uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "missing market uid")
		return
	}

	market, err := h.markets.Get(r.Context(), uid)
	if err != nil {
		h.fail(w, r, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// ListMarkets returns the markets authored by ?author=0x..., newest first.
// GET /api/markets?author=0x...
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	author := r.URL.Query().Get("author")
	if author == "" {
		writeError(w, http.StatusBadRequest, "missing author query parameter")
		return
	}

	markets, err := h.markets.ListByAuthor(r.Context(), author)
	if err != nil {
		h.fail(w, r, "list markets", err)
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

// fail writes the mapped domain error, or logs and 500s anything unmapped.
func (h *MarketHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if writeDomainError(w, err) {
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
