package nonce

import "fmt"

var (
	// ErrNotInitialized is returned when a nonce is requested before the
	// allocator has been seeded from the chain's counters
	ErrNotInitialized = fmt.Errorf("nonce allocator not initialized from chain counters")
)
