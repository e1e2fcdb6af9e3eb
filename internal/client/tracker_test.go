package client

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilco/market-creation/internal/domain"
)

type stubChain struct {
	receipts map[string]*domain.TransactionReceipt
}

func (c *stubChain) TransactionReceipt(_ context.Context, txHash string) (*domain.TransactionReceipt, error) {
	if r, ok := c.receipts[txHash]; ok {
		return r, nil
	}
	return nil, domain.ErrReceiptNotFound
}

func newTestTracker(t *testing.T, chain domain.ReceiptFetcher) (*Tracker, *FileTransactionLog) {
	t.Helper()
	log := NewFileTransactionLog(filepath.Join(t.TempDir(), "transactions.json"))
	tr, err := NewTracker(context.Background(), log, chain, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return tr, log
}

const (
	hashA = "0xaaec14e0483c96ac17e3aea26fbd9c1a53caba1235d0b7a54ed022a11a0f2f01"
	hashB = "0xbbec14e0483c96ac17e3aea26fbd9c1a53caba1235d0b7a54ed022a11a0f2f02"
)

func TestAddKeepsNewestFirstAndPersists(t *testing.T) {
	tr, log := newTestTracker(t, &stubChain{})
	ctx := context.Background()

	first := tr.Add(ctx, domain.TxTypeActivateMarket, hashA, map[string]any{"marketUid": "m1"})
	second := tr.Add(ctx, domain.TxTypeActivateMarket, hashB, nil)

	all := tr.All()
	require.Len(t, all, 2)
	assert.Equal(t, second.UID, all[0].UID)
	assert.Equal(t, first.UID, all[1].UID)
	assert.Equal(t, 2, tr.PendingCount())

	// The durable log mirrors the in-memory list.
	saved, err := log.Load()
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, second.UID, saved[0].UID)
}

func TestTrackerRestoresFromLog(t *testing.T) {
	chain := &stubChain{}
	log := NewFileTransactionLog(filepath.Join(t.TempDir(), "transactions.json"))
	ctx := context.Background()

	tr, err := NewTracker(ctx, log, chain, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	tr.Add(ctx, domain.TxTypeActivateMarket, hashA, nil)

	restored, err := NewTracker(ctx, log, chain, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Count())
	assert.Equal(t, 1, restored.PendingCount())
}

func TestTrackerResumesPollingForRestoredPending(t *testing.T) {
	chain := &stubChain{}
	log := NewFileTransactionLog(filepath.Join(t.TempDir(), "transactions.json"))
	ctx := context.Background()

	tr, err := NewTracker(ctx, log, chain, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	tx := tr.Add(ctx, domain.TxTypeActivateMarket, hashA, nil)

	// Pending entries in the restored log put the loop straight back to work.
	restored, err := NewTracker(ctx, log, chain, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	restored.mu.Lock()
	assert.True(t, restored.polling)
	restored.mu.Unlock()

	// A fully settled log leaves the loop off.
	require.NoError(t, tr.Complete(tx.UID))
	idle, err := NewTracker(ctx, log, chain, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	idle.mu.Lock()
	assert.False(t, idle.polling)
	idle.mu.Unlock()
}

func TestPollOnceSettlesMinedTransactions(t *testing.T) {
	chain := &stubChain{receipts: map[string]*domain.TransactionReceipt{
		hashA: {Status: domain.ReceiptStatusSucceeded},
		hashB: {Status: domain.ReceiptStatusFailed},
	}}
	tr, _ := newTestTracker(t, chain)
	ctx := context.Background()

	ok := tr.Add(ctx, domain.TxTypeActivateMarket, hashA, nil)
	bad := tr.Add(ctx, domain.TxTypeActivateMarket, hashB, nil)

	done := tr.pollOnce(ctx)
	assert.False(t, done) // settles this pass, termination is observed next pass

	all := tr.All()
	byUID := map[string]domain.Transaction{}
	for _, tx := range all {
		byUID[tx.UID] = tx
	}
	assert.Equal(t, domain.TransactionCompleted, byUID[ok.UID].Status)
	assert.NotNil(t, byUID[ok.UID].CompletedAt)
	assert.Equal(t, domain.TransactionFailed, byUID[bad.UID].Status)
	assert.Nil(t, byUID[bad.UID].CompletedAt)

	// Nothing pending anymore: the next poll reports done.
	assert.True(t, tr.pollOnce(ctx))
	assert.Zero(t, tr.PendingCount())
}

func TestPollOnceSkipsHashlessEntries(t *testing.T) {
	tr, _ := newTestTracker(t, &stubChain{})
	ctx := context.Background()

	tx := tr.Add(ctx, domain.TxTypeActivateMarket, "", nil)

	// Unsigned operations stay pending and keep the loop alive.
	assert.False(t, tr.pollOnce(ctx))
	assert.Equal(t, 1, tr.PendingCount())

	require.NoError(t, tr.Complete(tx.UID))
	assert.True(t, tr.pollOnce(ctx))
	assert.Equal(t, []domain.Transaction{tr.All()[0]}, tr.Completed(0))
}

func TestAttachHashEnablesPolling(t *testing.T) {
	chain := &stubChain{receipts: map[string]*domain.TransactionReceipt{
		hashA: {Status: domain.ReceiptStatusSucceeded},
	}}
	tr, _ := newTestTracker(t, chain)
	ctx := context.Background()

	tx := tr.Add(ctx, domain.TxTypeActivateMarket, "", nil)
	tr.pollOnce(ctx)
	assert.Equal(t, 1, tr.PendingCount())

	require.NoError(t, tr.AttachHash(ctx, tx.UID, hashA))
	tr.pollOnce(ctx)
	assert.Zero(t, tr.PendingCount())

	assert.ErrorIs(t, tr.AttachHash(ctx, "missing", hashA), domain.ErrNotFound)
}

func TestOnStartCallback(t *testing.T) {
	tr, _ := newTestTracker(t, &stubChain{})

	var seen []string
	tr.OnStart(func(tx domain.Transaction) { seen = append(seen, tx.UID) })

	tx := tr.Add(context.Background(), domain.TxTypeActivateMarket, hashA, nil)
	assert.Equal(t, []string{tx.UID}, seen)
}

func TestCompletedLimit(t *testing.T) {
	tr, _ := newTestTracker(t, &stubChain{})
	ctx := context.Background()

	for range 3 {
		tx := tr.Add(ctx, domain.TxTypeActivateMarket, "", nil)
		require.NoError(t, tr.Complete(tx.UID))
	}

	assert.Len(t, tr.Completed(2), 2)
	assert.Len(t, tr.Completed(0), 3)
}

func TestPollLoopTerminatesItself(t *testing.T) {
	chain := &stubChain{receipts: map[string]*domain.TransactionReceipt{
		hashA: {Status: domain.ReceiptStatusSucceeded},
	}}
	tr, _ := newTestTracker(t, chain)
	tr.interval = 5 * time.Millisecond

	tr.Add(context.Background(), domain.TxTypeActivateMarket, hashA, nil)

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return !tr.polling
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, tr.PendingCount())
}
