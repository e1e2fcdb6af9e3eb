package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilco/market-creation/internal/domain"
	"github.com/veilco/market-creation/internal/service"
)

// stubService returns canned results and records the arguments it saw.
type stubService struct {
	market  domain.Market
	markets []domain.Market
	err     error

	gotUID    string
	gotAuthor string
	gotHash   string
}

func (s *stubService) Create(_ context.Context, _ service.MarketInput, _ domain.Signature) (domain.Market, error) {
	return s.market, s.err
}

func (s *stubService) Update(_ context.Context, uid string, _ service.MarketInput, _ domain.Signature) (domain.Market, error) {
	s.gotUID = uid
	return s.market, s.err
}

func (s *stubService) Activate(_ context.Context, uid, txHash string, _ domain.Signature) (domain.Market, error) {
	s.gotUID, s.gotHash = uid, txHash
	return s.market, s.err
}

func (s *stubService) Get(_ context.Context, uid string) (domain.Market, error) {
	s.gotUID = uid
	return s.market, s.err
}

func (s *stubService) ListByAuthor(_ context.Context, author string) ([]domain.Market, error) {
	s.gotAuthor = author
	return s.markets, s.err
}

func newTestMux(svc MarketService) *http.ServeMux {
	h := NewMarketHandler(svc, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("POST /api/markets", h.CreateMarket)
	mux.HandleFunc("GET /api/markets/{uid}", h.GetMarket)
	mux.HandleFunc("PUT /api/markets/{uid}", h.UpdateMarket)
	mux.HandleFunc("POST /api/markets/{uid}/activate", h.ActivateMarket)
	return mux
}

const mutationBody = `{"market":{"description":"test"},"signature":{"message":"m","signature":"0x00","timestamp":"2026-06-01T10:00:00Z"}}`

func TestCreateMarketCreated(t *testing.T) {
	svc := &stubService{market: domain.Market{UID: "m1", Status: domain.MarketStatusDraft}}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(mutationBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "m1", got.UID)
}

func TestCreateMarketRejectsBadBody(t *testing.T) {
	mux := newTestMux(&stubService{})

	for _, body := range []string{"", "{", `{"unknown":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("field x: %w", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrInvalidSignature, http.StatusUnauthorized},
		{domain.ErrSignatureExpired, http.StatusUnauthorized},
		{domain.ErrSignerMismatch, http.StatusForbidden},
		{fmt.Errorf("market m1 is active: %w", domain.ErrInvalidStateTransition), http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{fmt.Errorf("the backend caught fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		mux := newTestMux(&stubService{err: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(mutationBody))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equalf(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestGetMarketPathParam(t *testing.T) {
	svc := &stubService{market: domain.Market{UID: "m1"}}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/markets/m1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m1", svc.gotUID)
}

func TestActivateMarketPassesHash(t *testing.T) {
	svc := &stubService{market: domain.Market{UID: "m1", Status: domain.MarketStatusActivating}}
	mux := newTestMux(svc)

	body := `{"transactionHash":"0xabc","signature":{"message":"m","signature":"0x00","timestamp":"2026-06-01T10:00:00Z"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/markets/m1/activate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m1", svc.gotUID)
	assert.Equal(t, "0xabc", svc.gotHash)
}

func TestListMarkets(t *testing.T) {
	svc := &stubService{markets: []domain.Market{{UID: "m1"}, {UID: "m2"}}}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/markets?author=0xabc", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabc", svc.gotAuthor)

	var got struct {
		Markets []domain.Market `json:"markets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Markets, 2)
}

func TestListMarketsRequiresAuthor(t *testing.T) {
	mux := newTestMux(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMarketsEmptyIsArray(t *testing.T) {
	mux := newTestMux(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/markets?author=0xabc", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"markets":[]}`, rec.Body.String())
}
