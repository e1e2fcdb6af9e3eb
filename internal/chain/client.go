// Package chain implements the domain chain interfaces against an Ethereum
// JSON-RPC endpoint using go-ethereum's rpc and ethclient packages.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/veilco/market-creation/internal/domain"
)

// Client talks to an Ethereum node. It implements domain.ReceiptFetcher and
// domain.ContractCaller; after EnableSending it also implements
// domain.TransactionSender.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
}

// Dial connects to the JSON-RPC endpoint and resolves the chain id.
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rawURL, err)
	}
	eth := ethclient.NewClient(rc)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("chain: resolve chain id: %w", err)
	}

	return &Client{rpc: rc, eth: eth, chainID: chainID}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// ChainID returns the connected chain's id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// EnableSending attaches the signing key used by SendTransaction.
func (c *Client) EnableSending(key *ecdsa.PrivateKey) {
	c.key = key
}

// rpcReceipt mirrors the eth_getTransactionReceipt JSON shape. go-ethereum's
// types.Receipt drops the "from" field, which the reconciler needs for its
// sender authorization check, so the receipt is decoded directly.
type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	From            common.Address `json:"from"`
	Logs            []*types.Log   `json:"logs"`
}

// TransactionReceipt fetches the receipt for txHash. It returns
// domain.ErrReceiptNotFound while the transaction is unmined and wraps
// transport failures in domain.ErrChainUnavailable.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*domain.TransactionReceipt, error) {
	var r *rpcReceipt
	err := c.rpc.CallContext(ctx, &r, "eth_getTransactionReceipt", common.HexToHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("chain: fetch receipt %s: %v: %w", txHash, err, domain.ErrChainUnavailable)
	}
	if r == nil {
		return nil, domain.ErrReceiptNotFound
	}

	out := &domain.TransactionReceipt{
		TransactionHash: r.TransactionHash.Hex(),
		Status:          uint64(r.Status),
		From:            r.From.Hex(),
		Logs:            make([]domain.Log, 0, len(r.Logs)),
	}
	for _, lg := range r.Logs {
		topics := make([]string, 0, len(lg.Topics))
		for _, t := range lg.Topics {
			topics = append(topics, t.Hex())
		}
		out.Logs = append(out.Logs, domain.Log{
			Address: lg.Address.Hex(),
			Topics:  topics,
			Data:    lg.Data,
			Index:   lg.Index,
		})
	}
	return out, nil
}

// CallContract executes a read-only call against the given contract.
func (c *Client) CallContract(ctx context.Context, contract string, input []byte) ([]byte, error) {
	to := common.HexToAddress(contract)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %v: %w", contract, err, domain.ErrChainUnavailable)
	}
	return out, nil
}

// SendTransaction signs and broadcasts a contract call carrying value wei
// (decimal string) and returns the transaction hash.
func (c *Client) SendTransaction(ctx context.Context, contract string, input []byte, value string) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("chain: no signing key attached")
	}

	wei := new(big.Int)
	if value != "" {
		if _, ok := wei.SetString(value, 10); !ok {
			return "", fmt.Errorf("chain: invalid wei value %q", value)
		}
	}

	from := ethcrypto.PubkeyToAddress(c.key.PublicKey)
	to := common.HexToAddress(contract)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("chain: pending nonce: %v: %w", err, domain.ErrChainUnavailable)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("chain: suggest gas price: %v: %w", err, domain.ErrChainUnavailable)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: wei,
		Data:  input,
	})
	if err != nil {
		return "", fmt.Errorf("chain: estimate gas: %v: %w", err, domain.ErrChainUnavailable)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    wei,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("chain: sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: broadcast: %v: %w", err, domain.ErrChainUnavailable)
	}
	return signed.Hash().Hex(), nil
}

// Compile-time interface checks.
var (
	_ domain.ReceiptFetcher    = (*Client)(nil)
	_ domain.ContractCaller    = (*Client)(nil)
	_ domain.TransactionSender = (*Client)(nil)
)
