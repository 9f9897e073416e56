package relays

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"

	"github.com/keep-network/relays/internal/nonce"
)

// EngineConfig holds the engine's per-process settings. One engine serves one
// operating account on one chain.
type EngineConfig struct {
	ChainID  uint64
	Contract common.Address

	// From is the operating account the relay submits from
	From common.Address

	// UnlockCode enables node-side signing via account unlock when no local
	// signer is configured
	UnlockCode string

	// DefaultGas is the gas limit used when a request doesn't supply one
	DefaultGas uint64

	// Gas price bounds in wei; nil means package defaults
	DefaultGasPrice *big.Int
	MaxGasPrice     *big.Int

	// Confirmation tracking cadence; zero values mean package defaults
	PollInterval time.Duration
	MaxPolls     int
}

// Engine signs, submits and tracks transactions, guaranteeing each logical
// transaction eventually lands on chain or surfaces a terminal error. It owns
// the nonce allocator and spawns one supervised confirmation tracker per
// in-flight transaction.
type Engine struct {
	cfg EngineConfig

	client RPCClient
	signer Signer

	pricer  *GasPricer
	alloc   *nonce.Allocator
	builder *TxBuilder

	idempotencyStore IdempotencyStore

	broadcastHook Hook
	outcomeHook   OutcomeHook

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// EngineOption is a function that configures an Engine
type EngineOption func(*Engine)

// WithSigner sets a local signing capability. Without one the engine falls
// back to node-side signing via the configured unlock code.
func WithSigner(s Signer) EngineOption {
	return func(e *Engine) {
		e.signer = s
	}
}

// WithIdempotencyStore sets a custom idempotency store
func WithIdempotencyStore(store IdempotencyStore) EngineOption {
	return func(e *Engine) {
		e.idempotencyStore = store
	}
}

// WithDefaultIdempotencyStore sets up an in-memory idempotency store with the given TTL
func WithDefaultIdempotencyStore(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.idempotencyStore = NewInMemoryIdempotencyStore(ttl)
	}
}

// WithBroadcastHook sets the hook called before every sign-and-broadcast
func WithBroadcastHook(h Hook) EngineOption {
	return func(e *Engine) {
		e.broadcastHook = h
	}
}

// WithOutcomeHook sets the hook observing every tracker's terminal outcome
func WithOutcomeHook(h OutcomeHook) EngineOption {
	return func(e *Engine) {
		e.outcomeHook = h
	}
}

// NewEngine creates an engine over the given RPC capability.
func NewEngine(cfg EngineConfig, client RPCClient, opts ...EngineOption) *Engine {
	if cfg.DefaultGas == 0 {
		cfg.DefaultGas = DefaultGas
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:    cfg,
		client: client,
		pricer: NewGasPricer(cfg.DefaultGasPrice, cfg.MaxGasPrice),
		alloc:  nonce.NewAllocator(),
		ctx:    ctx,
		cancel: cancel,
	}
	e.builder = NewTxBuilder(e.pricer, e.alloc, cfg.ChainID)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Init seeds the nonce allocator from the chain's mined and pending
// transaction counts for the operating account. Call it once at process
// start; a restart re-derives everything from the chain this way.
func (e *Engine) Init(ctx context.Context) error {
	mined, err := e.client.MinedCount(ctx, e.cfg.From)
	if err != nil {
		return fmt.Errorf("couldn't get mined transaction count for %s: %w", e.cfg.From.Hex(), err)
	}
	pending, err := e.client.PendingCount(ctx, e.cfg.From)
	if err != nil {
		return fmt.Errorf("couldn't get pending transaction count for %s: %w", e.cfg.From.Hex(), err)
	}
	e.alloc.Initialize(mined, pending)
	return nil
}

// Allocator returns the engine's nonce sequencing authority.
func (e *Engine) Allocator() *nonce.Allocator {
	return e.alloc
}

// Builder returns the engine's transaction builder.
func (e *Engine) Builder() *TxBuilder {
	return e.builder
}

// Pricer returns the engine's gas pricer.
func (e *Engine) Pricer() *GasPricer {
	return e.pricer
}

// IdempotencyStore returns the configured idempotency store, or nil if not configured
func (e *Engine) IdempotencyStore() IdempotencyStore {
	return e.idempotencyStore
}

// Broadcast signs and submits tx, classifies any rejection, and on success
// hands the transaction to a confirmation tracker. Exactly one network
// submission attempt happens per call; retry lives in the tracker. ticks
// carries the poll count of the logical transaction across resubmissions and
// is 0 for a fresh transaction.
//
// Benign races are absorbed here: a duplicate or underpriced rejection starts
// a tracker with an unknown handle and relies on escalation, and a
// nonce-too-low rejection on a resubmission means an earlier, cheaper copy of
// this logical transaction already confirmed. Anything else is
// ErrBroadcastFailed and the transaction is abandoned.
func (e *Engine) Broadcast(ctx context.Context, tx *UnsignedTx, trackResult bool, ticks int) error {
	if e.signer == nil && e.cfg.UnlockCode == "" {
		return ErrNoSigningCredential
	}

	if e.broadcastHook != nil {
		if hookErr := e.broadcastHook(tx); hookErr != nil {
			return fmt.Errorf("before broadcast hook error: %w", hookErr)
		}
	}

	handle, err := e.submit(ctx, tx)
	if err != nil {
		se := ClassifySubmitError(err)
		switch se.Kind {
		case SubmitKnownTx:
			if se.TxHash == "" {
				// Payload carried no hash to adopt; track blind and let
				// escalation win.
				logger.WithFields(logger.Fields{
					"nonce": tx.Nonce,
					"error": err,
				}).Info("node knows this tx but returned no hash, tracking without a handle")
				if trackResult {
					e.spawnTracker(tx, "", ticks)
				}
				return nil
			}
			handle = se.TxHash
			logger.WithFields(logger.Fields{
				"nonce":  tx.Nonce,
				"handle": handle,
			}).Debug("node already knows this transaction, adopting its hash")

		case SubmitDuplicate, SubmitUnderpriced:
			logger.WithFields(logger.Fields{
				"nonce":     tx.Nonce,
				"gas_price": tx.GasPrice.String(),
				"kind":      se.Kind.String(),
				"error":     err,
			}).Info("benign submission rejection, relying on escalation")
			if trackResult {
				e.spawnTracker(tx, "", ticks)
			}
			return nil

		case SubmitNonceTooLow:
			if ticks > 0 {
				// An earlier, cheaper resubmission of this logical
				// transaction confirmed first.
				logger.WithFields(logger.Fields{
					"nonce": tx.Nonce,
					"ticks": ticks,
				}).Info("nonce already consumed, earlier resubmission won")
				return nil
			}
			return errors.Join(ErrBroadcastFailed, err)

		default:
			return errors.Join(ErrBroadcastFailed, err)
		}
	}

	logger.WithFields(logger.Fields{
		"handle":    handle,
		"nonce":     tx.Nonce,
		"gas_price": tx.GasPrice.String(),
		"ticks":     ticks,
	}).Info("dispatched transaction")

	if trackResult {
		e.spawnTracker(tx, handle, ticks)
	}
	return nil
}

// submit performs the single network submission attempt, via node-side
// signing when no local signer is configured.
func (e *Engine) submit(ctx context.Context, tx *UnsignedTx) (string, error) {
	if e.signer == nil {
		logger.WithFields(logger.Fields{"nonce": tx.Nonce}).Debug("signing with node account")
		if err := e.client.UnlockAccount(ctx, e.cfg.From, e.cfg.UnlockCode); err != nil {
			return "", fmt.Errorf("couldn't unlock account %s: %w", e.cfg.From.Hex(), err)
		}
		return e.client.SendTransaction(ctx, e.cfg.From, tx)
	}

	logger.WithFields(logger.Fields{"nonce": tx.Nonce}).Debug("signing with local key")
	raw, err := e.signer.SignTx(tx)
	if err != nil {
		return "", err
	}
	return e.client.SendRawTransaction(ctx, raw)
}
