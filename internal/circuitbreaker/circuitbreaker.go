// Package circuitbreaker guards the shared RPC endpoint: after a run of
// consecutive failures the breaker trips and calls fail fast until a
// cooldown probe succeeds, instead of hammering a node that is down.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the breaker's position.
type State int

const (
	StateHealthy State = iota // Calls pass through
	StateTripped              // Calls fail fast
	StateProbing              // Cooldown elapsed, letting probes through
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateTripped:
		return "tripped"
	case StateProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// Config tunes a breaker.
type Config struct {
	// TripThreshold is the number of consecutive failures before tripping
	TripThreshold int

	// ProbeSuccesses is the number of consecutive probe successes needed to
	// return to healthy
	ProbeSuccesses int

	// Cooldown is how long the breaker stays tripped before probing
	Cooldown time.Duration

	// OnStateChange is called when the breaker changes state
	OnStateChange func(from, to State)
}

// DefaultConfig returns the default breaker tuning.
func DefaultConfig() Config {
	return Config{
		TripThreshold:  5,
		ProbeSuccesses: 2,
		Cooldown:       30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern for a single endpoint.
type Breaker struct {
	mu sync.Mutex

	cfg   Config
	state State

	failures  int
	successes int
	trippedAt time.Time
}

// New creates a breaker, filling zero config fields with defaults.
func New(cfg Config) *Breaker {
	if cfg.TripThreshold <= 0 {
		cfg.TripThreshold = 5
	}
	if cfg.ProbeSuccesses <= 0 {
		cfg.ProbeSuccesses = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: StateHealthy}
}

// position returns the effective state, accounting for an elapsed cooldown.
// Must be called with the lock held.
func (b *Breaker) position() State {
	if b.state == StateTripped && time.Since(b.trippedAt) >= b.cfg.Cooldown {
		return StateProbing
	}
	return b.state
}

// State returns the breaker's current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position()
}

// Allow reports whether a call should be attempted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position() != StateTripped
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.successes++

	if b.position() == StateProbing && b.successes >= b.cfg.ProbeSuccesses {
		b.transition(StateHealthy)
		b.successes = 0
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	b.failures++

	switch b.position() {
	case StateHealthy:
		if b.failures >= b.cfg.TripThreshold {
			b.trippedAt = time.Now()
			b.transition(StateTripped)
		}
	case StateProbing:
		// A failed probe re-trips immediately.
		b.trippedAt = time.Now()
		b.transition(StateTripped)
	}
}

// Reset returns the breaker to healthy and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.transition(StateHealthy)
}

// transition changes state and fires the callback. Must be called with the
// lock held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		// Fired in a goroutine so the callback can't block callers.
		go b.cfg.OnStateChange(from, to)
	}
}

// Stats is a snapshot of the breaker's counters.
type Stats struct {
	State     State
	Failures  int
	Successes int
	TrippedAt time.Time
}

// Stats returns the current snapshot.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:     b.position(),
		Failures:  b.failures,
		Successes: b.successes,
		TrippedAt: b.trippedAt,
	}
}
