package domain

import "context"

// Receipt status codes as reported by eth_getTransactionReceipt.
const (
	ReceiptStatusFailed    uint64 = 0
	ReceiptStatusSucceeded uint64 = 1
)

// Log is one raw event log from a transaction receipt. Topics and the
// emitting address are 0x-prefixed hex strings; Data is the raw ABI-encoded
// payload.
type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    []byte   `json:"data"`
	Index   uint     `json:"logIndex"`
}

// TransactionReceipt is the chain's confirmation record for a submitted
// transaction: execution status, sending address, and emitted logs.
type TransactionReceipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          uint64 `json:"status"`
	From            string `json:"from"`
	Logs            []Log  `json:"logs"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *TransactionReceipt) Succeeded() bool {
	return r.Status == ReceiptStatusSucceeded
}

// ReceiptFetcher retrieves transaction receipts. Implementations return
// ErrReceiptNotFound while the transaction is pending/unmined and wrap
// transport failures in ErrChainUnavailable.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)
}

// ContractCaller executes read-only contract calls (eth_call) against a
// deployed contract. Input and output are raw ABI-encoded bytes.
type ContractCaller interface {
	CallContract(ctx context.Context, contract string, input []byte) ([]byte, error)
}

// TransactionSender signs and broadcasts a state-changing contract call,
// returning the transaction hash. The value is attached wei as a decimal
// string.
type TransactionSender interface {
	SendTransaction(ctx context.Context, contract string, input []byte, value string) (string, error)
}
