package relays

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Constants for transaction submission and confirmation tracking
const (
	// Gwei is the gas price scale unit in wei
	Gwei = 1_000_000_000

	// DefaultGas is the gas limit used when the caller doesn't supply one
	DefaultGas uint64 = 500_000

	// GasPriceCeilingGwei is the hard ceiling any price must stay under,
	// protecting against fat-finger gas prices
	GasPriceCeilingGwei = 1000

	// EscalationStep is the per-factor price increase applied when a
	// transaction appears stuck
	EscalationStep = 0.2

	// DefaultPollInterval is how long a tracker waits between receipt queries
	DefaultPollInterval = 30 * time.Second

	// DefaultMaxPolls bounds how many receipt queries a tracker performs
	// before giving up on a transaction
	DefaultMaxPolls = 20
)

// Default gas price bounds in wei
var (
	DefaultGasPrice    = big.NewInt(10 * Gwei)
	DefaultMaxGasPrice = big.NewInt(80 * Gwei)
)

// ReceiptStatusSuccessful is the chain's success sentinel in a receipt status.
const ReceiptStatusSuccessful uint64 = 1

// UnsignedTx is an unsigned transaction record. It is immutable once built; a
// resubmission is a new value with the same identity fields and a higher gas
// price (see WithGasPrice).
type UnsignedTx struct {
	To       common.Address
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
	Nonce    uint64
	Data     []byte
	ChainID  uint64
}

// WithGasPrice returns a copy of tx carrying the given gas price. To, Value,
// Gas, Nonce, Data and ChainID are preserved, so the result replaces tx at the
// same nonce.
func (tx *UnsignedTx) WithGasPrice(price *big.Int) *UnsignedTx {
	next := *tx
	next.GasPrice = new(big.Int).Set(price)
	return &next
}

// Receipt is the ledger's confirmation record for a mined transaction.
type Receipt struct {
	Status      uint64
	TxHash      string
	BlockNumber *big.Int
	GasUsed     uint64
}

// Succeeded reports whether the transaction executed successfully on chain.
func (r *Receipt) Succeeded() bool {
	return r.Status == ReceiptStatusSuccessful
}

// TrackState is the terminal state of a confirmation tracker.
type TrackState int

const (
	// TrackConfirmed: a receipt with the success status was observed
	TrackConfirmed TrackState = iota
	// TrackFailed: the transaction reverted on chain, or a resubmission
	// attempt failed fatally
	TrackFailed
	// TrackSuperseded: the tracker handed the transaction off to a
	// higher-priced resubmission with its own tracker
	TrackSuperseded
	// TrackTimedOut: the polling budget ran out with no receipt
	TrackTimedOut
	// TrackAbandoned: the engine shut down while the tracker was polling
	TrackAbandoned
)

func (s TrackState) String() string {
	switch s {
	case TrackConfirmed:
		return "confirmed"
	case TrackFailed:
		return "failed"
	case TrackSuperseded:
		return "superseded"
	case TrackTimedOut:
		return "timed-out"
	case TrackAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// TrackOutcome is the terminal result of tracking one transaction, delivered
// to the engine's supervisor and to the optional OutcomeHook.
type TrackOutcome struct {
	State  TrackState
	Tx     *UnsignedTx
	Handle string
	Err    error
}

// Stats are the engine's tracker counters.
type Stats struct {
	Active     int
	Confirmed  int
	Failed     int
	Superseded int
	TimedOut   int
	Abandoned  int
}
