package domain

import "time"

// TransactionStatus is the client-side view of a submitted chain operation.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// TxTypeActivateMarket is the transaction type recorded when an author
// submits a market-creation transaction.
const TxTypeActivateMarket = "activateDraftMarket"

// Transaction tracks one asynchronous blockchain operation initiated by the
// user. Records are owned exclusively by the client tracker: only its
// polling loop and the orchestration that created a record may mutate it.
type Transaction struct {
	UID             string            `json:"uid"`
	Type            string            `json:"type"`
	Status          TransactionStatus `json:"status"`
	TransactionHash *string           `json:"transactionHash,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
}

// Finish marks the transaction completed and stamps the completion time.
func (t *Transaction) Finish(now time.Time) {
	t.Status = TransactionCompleted
	t.CompletedAt = &now
}

// Fail marks the transaction failed. Failed transactions are kept in the
// list for display but are no longer polled.
func (t *Transaction) Fail() {
	t.Status = TransactionFailed
}

// TransactionLog is the durable mirror of the tracker's transaction list.
// The whole list is overwritten on every change and restored on startup.
type TransactionLog interface {
	Save(txs []Transaction) error
	Load() ([]Transaction, error)
}
