package relays

import (
	"fmt"
	"math/big"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"

	"github.com/keep-network/relays/internal/nonce"
)

// TxBuilder composes unsigned contract-call transactions from caller intent
// plus the pricer's and allocator's output.
type TxBuilder struct {
	pricer  *GasPricer
	alloc   *nonce.Allocator
	chainID uint64
}

// NewTxBuilder creates a builder bound to one chain.
func NewTxBuilder(pricer *GasPricer, alloc *nonce.Allocator, chainID uint64) *TxBuilder {
	return &TxBuilder{
		pricer:  pricer,
		alloc:   alloc,
		chainID: chainID,
	}
}

// CallParams describes one contract call to build a transaction for.
type CallParams struct {
	Contract common.Address
	Encoder  CalldataEncoder
	Method   string
	Args     []interface{}
	Nonce    uint64

	// Value in wei, nil means 0
	Value *big.Int

	// Gas limit, 0 means DefaultGas. Gas estimation is the caller's problem;
	// the builder never simulates.
	Gas uint64

	// GasPrice in wei or gwei (see GasPricer.Normalize), nil means the
	// escalation baseline for this nonce
	GasPrice *big.Int
}

// BuildCall builds an unsigned transaction for the given call. An
// over-ceiling gas price aborts the whole operation here, before anything
// touches the network.
func (b *TxBuilder) BuildCall(p CallParams) (*UnsignedTx, error) {
	gasPrice := p.GasPrice
	if gasPrice == nil {
		gasPrice = b.pricer.Escalate(p.Nonce, 0, b.alloc.Highest())
	}
	gasPrice, err := b.pricer.Normalize(gasPrice)
	if err != nil {
		return nil, err
	}

	data, err := p.Encoder.Pack(p.Method, p.Args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode calldata for %s: %w", p.Method, err)
	}

	value := p.Value
	if value == nil {
		value = big.NewInt(0)
	}
	gas := p.Gas
	if gas == 0 {
		gas = DefaultGas
	}

	// Externally supplied nonces still count toward the queue-depth signal.
	b.alloc.Observe(p.Nonce)

	logger.WithFields(logger.Fields{
		"contract":  p.Contract.Hex(),
		"method":    p.Method,
		"args":      len(p.Args),
		"nonce":     p.Nonce,
		"value":     value.String(),
		"gas":       gas,
		"gas_price": gasPrice.String(),
	}).Debug("built contract call tx")

	return &UnsignedTx{
		To:       p.Contract,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Nonce:    p.Nonce,
		Data:     data,
		ChainID:  b.chainID,
	}, nil
}
