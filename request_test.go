package relays

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keep-network/relays/testutil"
)

func newRequestEngine(t *testing.T, rpc *fakeRPC, opts ...EngineOption) *Engine {
	t.Helper()
	e := newTestEngine(t, rpc, EngineConfig{
		UnlockCode:      "code",
		PollInterval:    time.Hour,
		DefaultGasPrice: big.NewInt(20 * Gwei),
		MaxGasPrice:     big.NewInt(80 * Gwei),
	}, opts...)
	require.NoError(t, e.Init(context.Background()))
	return e
}

func TestCallRequestSend(t *testing.T) {
	t.Run("allocates sequential nonces", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc)

		for want := uint64(1); want <= 3; want++ {
			tx, err := e.R().
				SetEncoder(&fakeEncoder{}).
				SetMethod("submitHeader").
				SetTrackResult(false).
				Send(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, tx.Nonce)
		}
		assert.Len(t, rpc.sent(), 3)
	})

	t.Run("inherits the engine's contract and gas defaults", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc)

		tx, err := e.R().
			SetEncoder(&fakeEncoder{}).
			SetMethod("submitHeader").
			SetTrackResult(false).
			Send(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testutil.TestAddr2, tx.To)
		assert.Equal(t, DefaultGas, tx.Gas)
		assert.Equal(t, big.NewInt(0), tx.Value)
	})

	t.Run("a pinned nonce bypasses allocation", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc)

		tx, err := e.R().
			SetEncoder(&fakeEncoder{}).
			SetMethod("submitHeader").
			SetNonce(7).
			SetTrackResult(false).
			Send(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(7), tx.Nonce)

		// The pinned nonce counted toward the queue-depth signal but the
		// cursor didn't move.
		assert.Equal(t, uint64(7), e.Allocator().Highest())
		assert.Equal(t, uint64(1), e.Allocator().Next())
	})

	t.Run("overrides flow through to the transaction", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc)

		tx, err := e.R().
			SetContract(testutil.TestAddr3).
			SetEncoder(&fakeEncoder{}).
			SetMethod("submitHeader").
			SetArgs(uint64(42)).
			SetValue(big.NewInt(10)).
			SetGasLimit(100_000).
			SetGasPrice(big.NewInt(30)).
			SetTrackResult(false).
			Send(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testutil.TestAddr3, tx.To)
		assert.Equal(t, big.NewInt(10), tx.Value)
		assert.Equal(t, uint64(100_000), tx.Gas)
		assert.Equal(t, big.NewInt(30*Gwei), tx.GasPrice)
	})

	t.Run("build failure does not reach the network", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc)

		_, err := e.R().
			SetEncoder(&fakeEncoder{}).
			SetMethod("submitHeader").
			SetGasPrice(big.NewInt(2000 * Gwei)).
			SetTrackResult(false).
			Send(context.Background())
		assert.ErrorIs(t, err, ErrInvalidGasPrice)
		assert.Empty(t, rpc.sent())
	})
}

func TestCallRequestIdempotency(t *testing.T) {
	t.Run("second send with the same key returns the recorded tx", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc, WithDefaultIdempotencyStore(time.Minute))
		t.Cleanup(e.IdempotencyStore().(*InMemoryIdempotencyStore).Stop)

		send := func() (*UnsignedTx, error) {
			return e.R().
				SetEncoder(&fakeEncoder{}).
				SetMethod("submitHeader").
				SetIdempotencyKey("header-1000").
				SetTrackResult(false).
				Send(context.Background())
		}

		first, err := send()
		require.NoError(t, err)

		second, err := send()
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Len(t, rpc.sent(), 1, "duplicate key must not resubmit")
	})

	t.Run("different keys submit independently", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc, WithDefaultIdempotencyStore(time.Minute))
		t.Cleanup(e.IdempotencyStore().(*InMemoryIdempotencyStore).Stop)

		for _, key := range []string{"header-1000", "header-1001"} {
			_, err := e.R().
				SetEncoder(&fakeEncoder{}).
				SetMethod("submitHeader").
				SetIdempotencyKey(key).
				SetTrackResult(false).
				Send(context.Background())
			require.NoError(t, err)
		}
		assert.Len(t, rpc.sent(), 2)
	})

	t.Run("a failed submission is replayed as a failure", func(t *testing.T) {
		rpc := newFakeRPC()
		rpc.sendFn = func(tx *UnsignedTx) (string, error) {
			return "", errors.New("insufficient funds for gas * price + value")
		}
		e := newRequestEngine(t, rpc, WithDefaultIdempotencyStore(time.Minute))
		t.Cleanup(e.IdempotencyStore().(*InMemoryIdempotencyStore).Stop)

		send := func() (*UnsignedTx, error) {
			return e.R().
				SetEncoder(&fakeEncoder{}).
				SetMethod("submitHeader").
				SetIdempotencyKey("header-1000").
				SetTrackResult(false).
				Send(context.Background())
		}

		_, err := send()
		require.ErrorIs(t, err, ErrBroadcastFailed)

		_, err = send()
		assert.ErrorIs(t, err, ErrBroadcastFailed)
		assert.Len(t, rpc.sent(), 1, "a recorded failure must not resubmit")
	})

	t.Run("an in-flight key is rejected as a duplicate", func(t *testing.T) {
		rpc := newFakeRPC()
		store := NewInMemoryIdempotencyStore(time.Minute)
		t.Cleanup(store.Stop)
		e := newRequestEngine(t, rpc, WithIdempotencyStore(store))

		// Simulate a concurrent submission holding the key.
		_, err := store.Create("header-1000")
		require.NoError(t, err)

		_, err = e.R().
			SetEncoder(&fakeEncoder{}).
			SetMethod("submitHeader").
			SetIdempotencyKey("header-1000").
			SetTrackResult(false).
			Send(context.Background())
		assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)
		assert.Empty(t, rpc.sent())
	})

	t.Run("no store means the key is ignored", func(t *testing.T) {
		rpc := newFakeRPC()
		e := newRequestEngine(t, rpc)

		_, err := e.R().
			SetEncoder(&fakeEncoder{}).
			SetMethod("submitHeader").
			SetIdempotencyKey("header-1000").
			SetTrackResult(false).
			Send(context.Background())
		require.NoError(t, err)
		assert.Len(t, rpc.sent(), 1)
	})
}
