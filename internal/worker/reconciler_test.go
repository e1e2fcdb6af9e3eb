package worker

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilco/market-creation/internal/domain"
)

const marketCreatedABI = `[{"anonymous":false,"inputs":[
{"indexed":true,"name":"topic","type":"bytes32"},
{"indexed":false,"name":"description","type":"string"},
{"indexed":false,"name":"extraInfo","type":"string"},
{"indexed":true,"name":"universe","type":"address"},
{"indexed":false,"name":"market","type":"address"},
{"indexed":true,"name":"marketCreator","type":"address"},
{"indexed":false,"name":"outcomes","type":"bytes32[]"},
{"indexed":false,"name":"marketCreationFee","type":"int256"},
{"indexed":false,"name":"minPrice","type":"int256"},
{"indexed":false,"name":"maxPrice","type":"int256"},
{"indexed":false,"name":"marketType","type":"uint8"}],
"name":"MarketCreated","type":"event"}]`

// creationLog packs a MarketCreated log announcing the deployed address.
func creationLog(t *testing.T, market common.Address) domain.Log {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(marketCreatedABI))
	require.NoError(t, err)
	event := parsed.Events["MarketCreated"]

	data, err := abi.Arguments(event.Inputs.NonIndexed()).Pack(
		"desc", "{}", market, [][32]byte{},
		big.NewInt(0), big.NewInt(0), big.NewInt(1), uint8(0),
	)
	require.NoError(t, err)

	indexed, err := abi.MakeTopics([]any{
		common.HexToHash("0x01"),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	})
	require.NoError(t, err)

	topics := []string{event.ID.Hex()}
	for _, h := range indexed[0] {
		topics = append(topics, h.Hex())
	}
	return domain.Log{Topics: topics, Data: data}
}

// memStore is an in-memory MarketStore with conditional transitions.
type memStore struct {
	markets map[string]domain.Market
}

func newMemStore(ms ...domain.Market) *memStore {
	s := &memStore{markets: make(map[string]domain.Market)}
	for _, m := range ms {
		s.markets[m.UID] = m
	}
	return s
}

func (s *memStore) Create(_ context.Context, m domain.Market) (domain.Market, error) {
	s.markets[m.UID] = m
	return m, nil
}

func (s *memStore) GetByUID(_ context.Context, uid string) (domain.Market, error) {
	m, ok := s.markets[uid]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memStore) ListByAuthor(_ context.Context, author string) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if m.Author == author {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ListByStatus(_ context.Context, status domain.MarketStatus) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) UpdateDraft(_ context.Context, m domain.Market) (domain.Market, error) {
	s.markets[m.UID] = m
	return m, nil
}

func (s *memStore) BeginActivation(_ context.Context, uid, txHash string, at time.Time) (domain.Market, error) {
	m := s.markets[uid]
	if m.Status != domain.MarketStatusDraft {
		return domain.Market{}, domain.ErrConflict
	}
	m.Status = domain.MarketStatusActivating
	m.TransactionHash, m.ActivatedAt = &txHash, &at
	s.markets[uid] = m
	return m, nil
}

func (s *memStore) CompleteActivation(_ context.Context, uid, address string) (domain.Market, error) {
	m, ok := s.markets[uid]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusActivating {
		return domain.Market{}, domain.ErrConflict
	}
	m.Status = domain.MarketStatusActive
	m.Address = &address
	s.markets[uid] = m
	return m, nil
}

func (s *memStore) RevertActivation(_ context.Context, uid string) (domain.Market, error) {
	m, ok := s.markets[uid]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if m.Status != domain.MarketStatusActivating {
		return domain.Market{}, domain.ErrConflict
	}
	m.Status = domain.MarketStatusDraft
	m.TransactionHash, m.ActivatedAt = nil, nil
	s.markets[uid] = m
	return m, nil
}

// stubChain serves canned receipts per transaction hash.
type stubChain struct {
	receipts map[string]*domain.TransactionReceipt
	errs     map[string]error
	calls    int
}

func (c *stubChain) TransactionReceipt(_ context.Context, txHash string) (*domain.TransactionReceipt, error) {
	c.calls++
	if err, ok := c.errs[txHash]; ok {
		return nil, err
	}
	if r, ok := c.receipts[txHash]; ok {
		return r, nil
	}
	return nil, domain.ErrReceiptNotFound
}

type captureBus struct {
	events []string
}

func (b *captureBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.events = append(b.events, channel)
	return nil
}

func (b *captureBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

type captureArchiver struct {
	uids []string
}

func (a *captureArchiver) ArchiveReceipt(_ context.Context, uid string, _ *domain.TransactionReceipt) error {
	a.uids = append(a.uids, uid)
	return nil
}

const (
	author = "0xAb5801a7D398351b8bE11C439e05C5b3259aeC9B"
	txHash = "0x4ec14e0483c96ac17e3aea26fbd9c1a53caba1235d0b7a54ed022a11a0f2f0a1"
)

func activatingMarket(uid string, submittedAgo time.Duration, now time.Time) domain.Market {
	hash := txHash
	at := now.Add(-submittedAgo)
	return domain.Market{
		UID:             uid,
		Author:          author,
		Status:          domain.MarketStatusActivating,
		TransactionHash: &hash,
		ActivatedAt:     &at,
	}
}

func newTestReconciler(store domain.MarketStore, chain domain.ReceiptFetcher, now time.Time, opts ...Option) *Reconciler {
	r := NewReconciler(store, chain, slog.New(slog.DiscardHandler), opts...)
	r.now = func() time.Time { return now }
	return r
}

func TestPassCompletesConfirmedActivation(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	deployed := common.HexToAddress("0x3333333333333333333333333333333333333333")

	store := newMemStore(activatingMarket("m1", time.Minute, now))
	chain := &stubChain{receipts: map[string]*domain.TransactionReceipt{
		txHash: {
			TransactionHash: txHash,
			Status:          domain.ReceiptStatusSucceeded,
			From:            strings.ToLower(author), // sender casing differs from stored author
			Logs:            []domain.Log{creationLog(t, deployed)},
		},
	}}
	bus := &captureBus{}
	archiver := &captureArchiver{}

	r := newTestReconciler(store, chain, now, WithSignalBus(bus), WithArchiver(archiver))
	require.NoError(t, r.Pass(context.Background()))

	m, err := store.GetByUID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	require.NotNil(t, m.Address)
	assert.Equal(t, deployed.Hex(), *m.Address)
	assert.Equal(t, []string{domain.EventMarketActivated}, bus.events)
	assert.Equal(t, []string{"m1"}, archiver.uids)
}

func TestPassLeavesUnminedTransaction(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(activatingMarket("m1", time.Minute, now))

	r := newTestReconciler(store, &stubChain{}, now)
	require.NoError(t, r.Pass(context.Background()))

	m, _ := store.GetByUID(context.Background(), "m1")
	assert.Equal(t, domain.MarketStatusActivating, m.Status)
}

func TestPassRevertsOnTimeoutWithoutChainAccess(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(activatingMarket("m1", domain.ActivationTimeout+time.Minute, now))
	// Chain endpoint down: every fetch fails.
	chain := &stubChain{errs: map[string]error{txHash: domain.ErrChainUnavailable}}
	bus := &captureBus{}

	r := newTestReconciler(store, chain, now, WithSignalBus(bus))
	require.NoError(t, r.Pass(context.Background()))

	// The timeout check runs before any receipt fetch.
	assert.Zero(t, chain.calls)
	m, _ := store.GetByUID(context.Background(), "m1")
	assert.Equal(t, domain.MarketStatusDraft, m.Status)
	assert.Nil(t, m.TransactionHash)
	assert.Equal(t, []string{domain.EventMarketReverted}, bus.events)
}

func TestPassRevertsSenderMismatch(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(activatingMarket("m1", time.Minute, now))
	chain := &stubChain{receipts: map[string]*domain.TransactionReceipt{
		txHash: {
			Status: domain.ReceiptStatusSucceeded,
			From:   "0x000000000000000000000000000000000000dEaD",
		},
	}}

	r := newTestReconciler(store, chain, now)
	require.NoError(t, r.Pass(context.Background()))

	m, _ := store.GetByUID(context.Background(), "m1")
	assert.Equal(t, domain.MarketStatusDraft, m.Status)
}

func TestPassKeepsFailedTransactionUntilTimeout(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(activatingMarket("m1", time.Minute, now))
	chain := &stubChain{receipts: map[string]*domain.TransactionReceipt{
		txHash: {Status: domain.ReceiptStatusFailed, From: author},
	}}

	// A reverted creation transaction from the right sender is not reverted
	// outright; only the activation timeout releases the market.
	r := newTestReconciler(store, chain, now)
	require.NoError(t, r.Pass(context.Background()))

	m, _ := store.GetByUID(context.Background(), "m1")
	assert.Equal(t, domain.MarketStatusActivating, m.Status)

	r.now = func() time.Time { return now.Add(domain.ActivationTimeout + time.Minute) }
	require.NoError(t, r.Pass(context.Background()))

	m, _ = store.GetByUID(context.Background(), "m1")
	assert.Equal(t, domain.MarketStatusDraft, m.Status)
}

func TestPassKeepsSuccessWithoutCreationLog(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore(activatingMarket("m1", time.Minute, now))
	chain := &stubChain{receipts: map[string]*domain.TransactionReceipt{
		txHash: {Status: domain.ReceiptStatusSucceeded, From: author},
	}}

	r := newTestReconciler(store, chain, now)
	require.NoError(t, r.Pass(context.Background()))

	// A successful transaction that created no market is left alone;
	// the timeout eventually releases it.
	m, _ := store.GetByUID(context.Background(), "m1")
	assert.Equal(t, domain.MarketStatusActivating, m.Status)
}

func TestPassRevertsMissingTransactionHash(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-time.Minute)
	store := newMemStore(domain.Market{
		UID:         "m1",
		Author:      author,
		Status:      domain.MarketStatusActivating,
		ActivatedAt: &at,
	})

	r := newTestReconciler(store, &stubChain{}, now)
	require.NoError(t, r.Pass(context.Background()))

	m, _ := store.GetByUID(context.Background(), "m1")
	assert.Equal(t, domain.MarketStatusDraft, m.Status)
}

func TestPassIsolatesPerMarketFailures(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	badHash := "0x" + strings.Repeat("ab", 32)

	bad := activatingMarket("bad", time.Minute, now)
	bad.TransactionHash = &badHash
	good := activatingMarket("good", time.Minute, now)

	store := newMemStore(bad, good)
	chain := &stubChain{
		errs: map[string]error{badHash: domain.ErrChainUnavailable},
		receipts: map[string]*domain.TransactionReceipt{
			txHash: {Status: domain.ReceiptStatusFailed, From: author},
		},
	}

	r := newTestReconciler(store, chain, now)
	require.NoError(t, r.Pass(context.Background()))

	// The broken fetch on "bad" does not stop "good" from settling.
	m, _ := store.GetByUID(context.Background(), "good")
	assert.Equal(t, domain.MarketStatusDraft, m.Status)
	m, _ = store.GetByUID(context.Background(), "bad")
	assert.Equal(t, domain.MarketStatusActivating, m.Status)
}
