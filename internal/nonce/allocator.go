// Package nonce provides the process-wide nonce sequencing authority for the
// relay's operating account. This is an internal package and should not be
// imported directly by external code.
package nonce

import (
	"sync"

	"github.com/KyberNetwork/logger"
)

// Allocator hands out sequential account nonces to concurrent callers. It is
// the single source of truth for the next nonce: no two Allocate calls ever
// return the same value, and an allocated nonce is never returned to the
// pool. Errors on an allocated transaction are handled by resubmitting at the
// same nonce with a higher price, not by rollback.
type Allocator struct {
	mu sync.Mutex

	initialized bool

	// next is the nonce the next Allocate call returns
	next uint64

	// highest is the high-water mark of nonces ever handed out or observed,
	// read by the gas pricer as a queue-depth signal
	highest uint64
}

// NewAllocator creates an allocator. It must be initialized from the chain's
// counters before the first Allocate call.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Initialize seeds the cursor from the chain's mined transaction count and
// pending nonce. The cursor starts one past the mined count: submitted but
// unconfirmed transactions from a previous run are deliberately discarded and
// left to be superseded or expire. Re-initialization never moves the cursor
// backward past a nonce that was already handed out; it can only raise the
// pending high-water mark.
func (a *Allocator) Initialize(minedCount, pendingNonce uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := minedCount + 1
	if a.initialized && next < a.next {
		next = a.next
	}
	a.next = next

	if !a.initialized || pendingNonce > a.highest {
		a.highest = pendingNonce
	}
	a.initialized = true

	logger.WithFields(logger.Fields{
		"mined_count":   minedCount,
		"pending_nonce": pendingNonce,
		"next_nonce":    a.next,
		"highest":       a.highest,
	}).Info("nonce allocator initialized")
}

// Allocate returns the next nonce and advances the cursor. Safe under
// concurrent callers: allocation is a single fetch-and-increment under the
// allocator's lock.
func (a *Allocator) Allocate() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return 0, ErrNotInitialized
	}

	n := a.next
	a.next++
	if n > a.highest {
		a.highest = n
	}

	logger.WithFields(logger.Fields{
		"nonce":   n,
		"highest": a.highest,
	}).Debug("nonce allocated")

	return n, nil
}

// Observe records an externally supplied nonce so it still counts toward the
// queue-depth signal. It never moves the cursor.
func (a *Allocator) Observe(nonce uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if nonce > a.highest {
		a.highest = nonce
	}
}

// Highest returns the high-water mark of nonces handed out or observed.
func (a *Allocator) Highest() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highest
}

// Next returns the nonce the next Allocate call would hand out.
func (a *Allocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
