// Package client is the programmatic counterpart of the HTTP API: a REST
// client, a transaction tracker mirroring submitted chain operations, and
// the activation emitter that drives a draft onto the chain.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/veilco/market-creation/internal/domain"
	"github.com/veilco/market-creation/internal/service"
)

// API is the REST client for the market creation service.
type API struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAPI creates a client for the service at baseURL, e.g.
// "http://localhost:8080". apiKey may be empty for open deployments.
func NewAPI(baseURL, apiKey string) *API {
	return &API{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// mutationRequest mirrors the server's create/update body.
type mutationRequest struct {
	Market    service.MarketInput `json:"market"`
	Signature domain.Signature    `json:"signature"`
}

type activateRequest struct {
	TransactionHash string           `json:"transactionHash"`
	Signature       domain.Signature `json:"signature"`
}

// CreateMarket submits a new signed draft.
func (c *API) CreateMarket(ctx context.Context, in service.MarketInput, sig domain.Signature) (domain.Market, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/markets", mutationRequest{Market: in, Signature: sig})
	if err != nil {
		return domain.Market{}, fmt.Errorf("client: create market: %w", err)
	}
	return decodeMarket(body)
}

// UpdateMarket rewrites a draft's content.
func (c *API) UpdateMarket(ctx context.Context, uid string, in service.MarketInput, sig domain.Signature) (domain.Market, error) {
	path := "/api/markets/" + url.PathEscape(uid)
	body, err := c.do(ctx, http.MethodPut, path, mutationRequest{Market: in, Signature: sig})
	if err != nil {
		return domain.Market{}, fmt.Errorf("client: update market %s: %w", uid, err)
	}
	return decodeMarket(body)
}

// ActivateMarket records a submitted creation transaction for a draft.
func (c *API) ActivateMarket(ctx context.Context, uid, txHash string, sig domain.Signature) (domain.Market, error) {
	path := "/api/markets/" + url.PathEscape(uid) + "/activate"
	body, err := c.do(ctx, http.MethodPost, path, activateRequest{TransactionHash: txHash, Signature: sig})
	if err != nil {
		return domain.Market{}, fmt.Errorf("client: activate market %s: %w", uid, err)
	}
	return decodeMarket(body)
}

// GetMarket fetches a single market by uid.
func (c *API) GetMarket(ctx context.Context, uid string) (domain.Market, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/markets/"+url.PathEscape(uid), nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("client: get market %s: %w", uid, err)
	}
	return decodeMarket(body)
}

// ListMarkets fetches the author's markets, newest first.
func (c *API) ListMarkets(ctx context.Context, author string) ([]domain.Market, error) {
	path := "/api/markets?" + url.Values{"author": {author}}.Encode()
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("client: list markets: %w", err)
	}

	var resp struct {
		Markets []domain.Market `json:"markets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("client: decode markets: %w", err)
	}
	return resp.Markets, nil
}

// Categories fetches the category catalogue.
func (c *API) Categories(ctx context.Context) ([]domain.Category, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/categories", nil)
	if err != nil {
		return nil, fmt.Errorf("client: list categories: %w", err)
	}

	var resp struct {
		Categories []domain.Category `json:"categories"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("client: decode categories: %w", err)
	}
	return resp.Categories, nil
}

func decodeMarket(body []byte) (domain.Market, error) {
	var m domain.Market
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.Market{}, fmt.Errorf("client: decode market: %w", err)
	}
	return m, nil
}

// do builds, sends, and reads one request, mapping error statuses back to
// domain sentinels so callers can use errors.Is across the wire.
func (c *API) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", msg, domain.ErrValidation)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, domain.ErrInvalidSignature)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, domain.ErrSignerMismatch)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, domain.ErrConflict)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}
