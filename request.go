package relays

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CallRequest composes, prices and dispatches one logical contract call with
// a builder pattern. The request inherits the engine's contract and gas
// defaults.
type CallRequest struct {
	e *Engine

	contract common.Address
	encoder  CalldataEncoder
	method   string
	args     []interface{}
	value    *big.Int
	gas      uint64
	gasPrice *big.Int
	nonce    *uint64

	// Idempotency key for preventing duplicate submissions
	idempotencyKey string

	trackResult bool
}

// R creates a new call request bound to the engine's configured contract.
func (e *Engine) R() *CallRequest {
	return &CallRequest{
		e:           e,
		contract:    e.cfg.Contract,
		value:       big.NewInt(0),
		gas:         e.cfg.DefaultGas,
		trackResult: true,
	}
}

// SetContract overrides the target contract
func (r *CallRequest) SetContract(contract common.Address) *CallRequest {
	r.contract = contract
	return r
}

// SetEncoder sets the call-data encoder (e.g. a parsed abi.ABI)
func (r *CallRequest) SetEncoder(encoder CalldataEncoder) *CallRequest {
	r.encoder = encoder
	return r
}

// SetMethod sets the contract method to call
func (r *CallRequest) SetMethod(method string) *CallRequest {
	r.method = method
	return r
}

// SetArgs sets the method arguments
func (r *CallRequest) SetArgs(args ...interface{}) *CallRequest {
	r.args = args
	return r
}

// SetValue sets the transaction value in wei
func (r *CallRequest) SetValue(value *big.Int) *CallRequest {
	if value != nil {
		r.value = value
	}
	return r
}

// SetGasLimit sets the gas limit
func (r *CallRequest) SetGasLimit(gas uint64) *CallRequest {
	r.gas = gas
	return r
}

// SetGasPrice sets an explicit gas price in wei or gwei; unset means the
// escalation baseline for the allocated nonce
func (r *CallRequest) SetGasPrice(gasPrice *big.Int) *CallRequest {
	r.gasPrice = gasPrice
	return r
}

// SetNonce pins an externally supplied nonce instead of allocating one
func (r *CallRequest) SetNonce(nonce uint64) *CallRequest {
	r.nonce = &nonce
	return r
}

// SetIdempotencyKey sets a unique key to prevent duplicate submissions of the
// same logical call. Requires an IdempotencyStore on the engine.
func (r *CallRequest) SetIdempotencyKey(key string) *CallRequest {
	r.idempotencyKey = key
	return r
}

// SetTrackResult controls whether a confirmation tracker is spawned
func (r *CallRequest) SetTrackResult(track bool) *CallRequest {
	r.trackResult = track
	return r
}

// Send allocates a nonce (unless one was pinned), builds the transaction and
// broadcasts it. It returns as soon as the transaction is dispatched; the
// confirmation tracker owns it from there.
func (r *CallRequest) Send(ctx context.Context) (*UnsignedTx, error) {
	if r.idempotencyKey != "" && r.e.idempotencyStore != nil {
		return r.sendIdempotent(ctx)
	}
	return r.send(ctx)
}

func (r *CallRequest) send(ctx context.Context) (*UnsignedTx, error) {
	var n uint64
	if r.nonce != nil {
		n = *r.nonce
	} else {
		var err error
		n, err = r.e.alloc.Allocate()
		if err != nil {
			return nil, err
		}
	}

	tx, err := r.e.builder.BuildCall(CallParams{
		Contract: r.contract,
		Encoder:  r.encoder,
		Method:   r.method,
		Args:     r.args,
		Nonce:    n,
		Value:    r.value,
		Gas:      r.gas,
		GasPrice: r.gasPrice,
	})
	if err != nil {
		return nil, err
	}

	if err := r.e.Broadcast(ctx, tx, r.trackResult, 0); err != nil {
		return nil, err
	}
	return tx, nil
}

// sendIdempotent dedupes by key: a completed submission returns its recorded
// result, an in-flight one returns ErrDuplicateIdempotencyKey.
func (r *CallRequest) sendIdempotent(ctx context.Context) (*UnsignedTx, error) {
	store := r.e.idempotencyStore

	existing, err := store.Get(r.idempotencyKey)
	if err == nil {
		switch existing.Status {
		case IdempotencyStatusSubmitted, IdempotencyStatusConfirmed:
			return existing.Tx, nil
		case IdempotencyStatusFailed:
			return existing.Tx, existing.Error
		case IdempotencyStatusPending:
			return existing.Tx, ErrDuplicateIdempotencyKey
		}
	}

	record, err := store.Create(r.idempotencyKey)
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		return record.Tx, ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return nil, err
	}

	tx, txErr := r.send(ctx)

	record.Tx = tx
	record.Error = txErr
	if txErr != nil {
		record.Status = IdempotencyStatusFailed
	} else {
		record.Status = IdempotencyStatusSubmitted
	}

	// Best effort update - don't fail the submission if the update fails
	_ = store.Update(record)

	return tx, txErr
}
