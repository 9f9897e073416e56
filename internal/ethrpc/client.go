// Package ethrpc is the go-ethereum backed implementation of the engine's
// RPC collaborator. A consecutive-failure circuit breaker guards the
// endpoint so a dead node fails fast instead of eating a timeout per call.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/KyberNetwork/logger"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/keep-network/relays"
	"github.com/keep-network/relays/internal/circuitbreaker"
)

// ErrEndpointUnavailable is returned without touching the network while the
// breaker is tripped.
var ErrEndpointUnavailable = errors.New("rpc endpoint unavailable (circuit breaker tripped)")

// Client talks to an Ethereum JSON-RPC endpoint. It implements
// relays.RPCClient.
type Client struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	breaker *circuitbreaker.Breaker
}

// Dial connects to the endpoint at url.
func Dial(ctx context.Context, url string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewClient(rc), nil
}

// NewClient wraps an existing rpc.Client. The caller keeps ownership of rc's
// lifetime until Close.
func NewClient(rc *rpc.Client) *Client {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.WithFields(logger.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("rpc endpoint breaker changed state")
		},
	})
	return &Client{
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
		breaker: breaker,
	}
}

// Breaker exposes the endpoint breaker, mainly for health reporting.
func (c *Client) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

func (c *Client) Close() {
	c.rpc.Close()
}

// record feeds the breaker. A classified rejection still means the node
// answered, so only unclassified errors count as endpoint failures.
func (c *Client) record(err error) {
	if err == nil {
		c.breaker.RecordSuccess()
		return
	}
	var se *relays.SubmitError
	if errors.As(err, &se) && se.Kind != relays.SubmitUnknown {
		c.breaker.RecordSuccess()
		return
	}
	c.breaker.RecordFailure()
}

// MinedCount returns the account's transaction count at the latest block.
func (c *Client) MinedCount(ctx context.Context, addr common.Address) (uint64, error) {
	return c.transactionCount(ctx, addr, "latest")
}

// PendingCount returns the account's transaction count at the pending block.
func (c *Client) PendingCount(ctx context.Context, addr common.Address) (uint64, error) {
	return c.transactionCount(ctx, addr, "pending")
}

func (c *Client) transactionCount(ctx context.Context, addr common.Address, block string) (uint64, error) {
	if !c.breaker.Allow() {
		return 0, ErrEndpointUnavailable
	}
	var count hexutil.Uint64
	err := c.rpc.CallContext(ctx, &count, "eth_getTransactionCount", addr, block)
	if err != nil {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("querying transaction count for %s at %s: %w", addr.Hex(), block, err)
	}
	c.breaker.RecordSuccess()
	return uint64(count), nil
}

// TransactionReceipt returns the receipt for handle, or nil, nil while the
// transaction is unmined.
func (c *Client) TransactionReceipt(ctx context.Context, handle string) (*relays.Receipt, error) {
	if !c.breaker.Allow() {
		return nil, ErrEndpointUnavailable
	}
	r, err := c.eth.TransactionReceipt(ctx, common.HexToHash(handle))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			// Not mined yet. The node answered, so this is a breaker success.
			c.breaker.RecordSuccess()
			return nil, nil
		}
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("querying receipt for %s: %w", handle, err)
	}
	c.breaker.RecordSuccess()

	receipt := &relays.Receipt{
		Status:  r.Status,
		TxHash:  r.TxHash.Hex(),
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = new(big.Int).Set(r.BlockNumber)
	}
	return receipt, nil
}

// SendTransaction submits by sender address, signing node-side.
func (c *Client) SendTransaction(ctx context.Context, from common.Address, tx *relays.UnsignedTx) (string, error) {
	if !c.breaker.Allow() {
		return "", ErrEndpointUnavailable
	}

	arg := map[string]interface{}{
		"from":     from,
		"to":       tx.To,
		"gas":      hexutil.Uint64(tx.Gas),
		"gasPrice": (*hexutil.Big)(tx.GasPrice),
		"nonce":    hexutil.Uint64(tx.Nonce),
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		arg["value"] = (*hexutil.Big)(tx.Value)
	}
	if len(tx.Data) > 0 {
		arg["data"] = hexutil.Bytes(tx.Data)
	}

	var hash common.Hash
	err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", arg)
	if err != nil {
		return "", c.translateSendError(err)
	}
	c.breaker.RecordSuccess()
	return hash.Hex(), nil
}

// SendRawTransaction broadcasts a locally signed, serialized transaction.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	if !c.breaker.Allow() {
		return "", ErrEndpointUnavailable
	}

	var hash common.Hash
	err := c.rpc.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw))
	if err != nil {
		return "", c.translateSendError(err)
	}
	c.breaker.RecordSuccess()
	return hash.Hex(), nil
}

// translateSendError classifies a send rejection so the engine can switch on
// Kind instead of error text.
func (c *Client) translateSendError(err error) error {
	se := relays.ClassifySubmitError(err)
	c.record(se)
	return se
}

// UnlockAccount asks the node to unlock addr with the given code. The unlock
// is scoped to a single signing window.
func (c *Client) UnlockAccount(ctx context.Context, addr common.Address, code string) error {
	if !c.breaker.Allow() {
		return ErrEndpointUnavailable
	}

	var ok bool
	// Duration 0 keeps the node's default unlock window.
	err := c.rpc.CallContext(ctx, &ok, "personal_unlockAccount", addr, code, uint64(0))
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("unlocking account %s: %w", addr.Hex(), err)
	}
	c.breaker.RecordSuccess()
	if !ok {
		return fmt.Errorf("node declined to unlock account %s", addr.Hex())
	}
	return nil
}

var _ relays.RPCClient = (*Client)(nil)
