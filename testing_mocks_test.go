package relays

// Mock implementations of the engine's collaborators. These live here rather
// than in testutil to avoid an import cycle with the relays package.

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// fakeRPC is a configurable in-memory RPCClient.
type fakeRPC struct {
	mu sync.Mutex

	minedCount   uint64
	pendingCount uint64
	countErr     error

	// sendFn decides the result of each submission; nil means success with a
	// generated handle
	sendFn func(tx *UnsignedTx) (string, error)

	// receiptFn decides each receipt poll; nil means never mined
	receiptFn func(handle string) (*Receipt, error)

	sentTxs        []*UnsignedTx
	sentRaw        [][]byte
	unlocks        int
	lastUnlockCode string
	receiptQueries []string
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{}
}

func (f *fakeRPC) MinedCount(ctx context.Context, addr common.Address) (uint64, error) {
	return f.minedCount, f.countErr
}

func (f *fakeRPC) PendingCount(ctx context.Context, addr common.Address) (uint64, error) {
	return f.pendingCount, f.countErr
}

func (f *fakeRPC) TransactionReceipt(ctx context.Context, handle string) (*Receipt, error) {
	f.mu.Lock()
	f.receiptQueries = append(f.receiptQueries, handle)
	fn := f.receiptFn
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(handle)
}

func (f *fakeRPC) SendTransaction(ctx context.Context, from common.Address, tx *UnsignedTx) (string, error) {
	f.mu.Lock()
	f.sentTxs = append(f.sentTxs, tx)
	n := len(f.sentTxs)
	fn := f.sendFn
	f.mu.Unlock()

	if fn != nil {
		return fn(tx)
	}
	return fmt.Sprintf("0xhandle%d", n), nil
}

func (f *fakeRPC) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	f.sentRaw = append(f.sentRaw, raw)
	n := len(f.sentRaw)
	f.mu.Unlock()
	return fmt.Sprintf("0xrawhandle%d", n), nil
}

func (f *fakeRPC) UnlockAccount(ctx context.Context, addr common.Address, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocks++
	f.lastUnlockCode = code
	return nil
}

func (f *fakeRPC) Close() {}

func (f *fakeRPC) sent() []*UnsignedTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*UnsignedTx, len(f.sentTxs))
	copy(out, f.sentTxs)
	return out
}

func (f *fakeRPC) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.receiptQueries)
}

// fakeSigner returns fixed bytes instead of a real signature.
type fakeSigner struct {
	raw []byte
	err error
}

func (s *fakeSigner) SignTx(tx *UnsignedTx) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.raw, nil
}

// fakeEncoder records Pack calls and returns canned calldata.
type fakeEncoder struct {
	mu      sync.Mutex
	calls   int
	method  string
	argsLen int
	data    []byte
	err     error
}

func (e *fakeEncoder) Pack(method string, args ...interface{}) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.method = method
	e.argsLen = len(args)
	if e.err != nil {
		return nil, e.err
	}
	if e.data != nil {
		return e.data, nil
	}
	return []byte{0xde, 0xad, 0xbe, 0xef}, nil
}

// outcomeRecorder collects tracker outcomes for assertions.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []TrackOutcome
}

func (r *outcomeRecorder) hook() OutcomeHook {
	return func(out TrackOutcome) {
		r.mu.Lock()
		r.outcomes = append(r.outcomes, out)
		r.mu.Unlock()
	}
}

func (r *outcomeRecorder) all() []TrackOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TrackOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

func (r *outcomeRecorder) states() []TrackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]TrackState, len(r.outcomes))
	for i, out := range r.outcomes {
		states[i] = out.State
	}
	return states
}
