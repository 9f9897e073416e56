package relays

import (
	"fmt"
	"sync"
	"time"
)

var (
	// ErrDuplicateIdempotencyKey is returned when a submission with the same key is already in flight
	ErrDuplicateIdempotencyKey = fmt.Errorf("duplicate idempotency key: transaction already submitted")

	// ErrIdempotencyKeyNotFound is returned when looking up a non-existent key
	ErrIdempotencyKeyNotFound = fmt.Errorf("idempotency key not found")
)

// IdempotencyStatus represents the status of an idempotent submission
type IdempotencyStatus int

const (
	IdempotencyStatusPending   IdempotencyStatus = iota // Submission is being processed
	IdempotencyStatusSubmitted                          // Transaction has been broadcast to the network
	IdempotencyStatusConfirmed                          // Transaction has been confirmed on chain
	IdempotencyStatusFailed                             // Submission failed permanently
)

func (s IdempotencyStatus) String() string {
	switch s {
	case IdempotencyStatusPending:
		return "pending"
	case IdempotencyStatusSubmitted:
		return "submitted"
	case IdempotencyStatusConfirmed:
		return "confirmed"
	case IdempotencyStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IdempotencyRecord stores the result of an idempotent submission
type IdempotencyRecord struct {
	Key       string
	Status    IdempotencyStatus
	Tx        *UnsignedTx
	Handle    string
	Error     error
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdempotencyStore provides storage for idempotency keys
type IdempotencyStore interface {
	// Get retrieves an existing record by key
	Get(key string) (*IdempotencyRecord, error)

	// Create creates a new record, returning error if key already exists
	Create(key string) (*IdempotencyRecord, error)

	// Update updates an existing record
	Update(record *IdempotencyRecord) error

	// Delete removes a record by key
	Delete(key string) error
}

// InMemoryIdempotencyStore is a simple in-memory implementation of IdempotencyStore
type InMemoryIdempotencyStore struct {
	mu      sync.RWMutex
	records map[string]*IdempotencyRecord

	// TTL for records (0 means no expiration)
	ttl time.Duration

	stopChan chan struct{}
	stopped  bool
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store
func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		records:  make(map[string]*IdempotencyRecord),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	if ttl > 0 {
		go store.cleanupLoop()
	}

	return store
}

// Stop stops the cleanup goroutine. Should be called when the store is no
// longer needed to prevent goroutine leaks.
func (s *InMemoryIdempotencyStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}
}

// Get retrieves an existing record by key
func (s *InMemoryIdempotencyStore) Get(key string) (*IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[key]
	if !exists {
		return nil, ErrIdempotencyKeyNotFound
	}
	if s.expired(record) {
		return nil, ErrIdempotencyKeyNotFound
	}
	return record, nil
}

// Create creates a new record, returning the existing one plus
// ErrDuplicateIdempotencyKey if the key is already present.
func (s *InMemoryIdempotencyStore) Create(key string) (*IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.records[key]; exists && !s.expired(existing) {
		return existing, ErrDuplicateIdempotencyKey
	}

	now := time.Now()
	record := &IdempotencyRecord{
		Key:       key,
		Status:    IdempotencyStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[key] = record
	return record, nil
}

// Update updates an existing record
func (s *InMemoryIdempotencyStore) Update(record *IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Key]; !exists {
		return ErrIdempotencyKeyNotFound
	}
	record.UpdatedAt = time.Now()
	s.records[record.Key] = record
	return nil
}

// Delete removes a record by key
func (s *InMemoryIdempotencyStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *InMemoryIdempotencyStore) expired(record *IdempotencyRecord) bool {
	return s.ttl > 0 && time.Since(record.CreatedAt) > s.ttl
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.records {
		if s.expired(record) {
			delete(s.records, key)
		}
	}
}
