package nonce

import (
	"errors"
	"sort"
	"sync"
	"testing"
)

func TestAllocateBeforeInitialize(t *testing.T) {
	a := NewAllocator()
	if _, err := a.Allocate(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitialize(t *testing.T) {
	t.Run("cursor starts one past the mined count", func(t *testing.T) {
		a := NewAllocator()
		a.Initialize(41, 45)

		if got := a.Next(); got != 42 {
			t.Errorf("expected next nonce 42, got %d", got)
		}
		if got := a.Highest(); got != 45 {
			t.Errorf("expected highest 45, got %d", got)
		}
	})

	t.Run("re-initialization never moves the cursor backward", func(t *testing.T) {
		a := NewAllocator()
		a.Initialize(10, 10)

		for i := 0; i < 5; i++ {
			if _, err := a.Allocate(); err != nil {
				t.Fatalf("Allocate: %v", err)
			}
		}
		// Cursor is now at 16; a stale chain view must not rewind it.
		a.Initialize(10, 10)

		n, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if n != 16 {
			t.Errorf("expected nonce 16 after stale re-init, got %d", n)
		}
	})

	t.Run("re-initialization can raise the high-water mark", func(t *testing.T) {
		a := NewAllocator()
		a.Initialize(4, 5)
		a.Initialize(4, 9)

		if got := a.Highest(); got != 9 {
			t.Errorf("expected highest 9, got %d", got)
		}
	})
}

func TestAllocateSequential(t *testing.T) {
	a := NewAllocator()
	a.Initialize(0, 0)

	for want := uint64(1); want <= 5; want++ {
		n, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if n != want {
			t.Errorf("expected nonce %d, got %d", want, n)
		}
	}

	if got := a.Highest(); got != 5 {
		t.Errorf("expected highest 5 after allocations, got %d", got)
	}
}

func TestAllocateConcurrent(t *testing.T) {
	a := NewAllocator()
	a.Initialize(99, 100)

	const workers = 64

	var (
		mu     sync.Mutex
		nonces []uint64
		wg     sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := a.Allocate()
			if err != nil {
				t.Errorf("Allocate: %v", err)
				return
			}
			mu.Lock()
			nonces = append(nonces, n)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(nonces) != workers {
		t.Fatalf("expected %d nonces, got %d", workers, len(nonces))
	}

	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, n := range nonces {
		want := uint64(100 + i)
		if n != want {
			t.Fatalf("expected contiguous nonces starting at 100, position %d is %d", i, n)
		}
	}
}

func TestObserve(t *testing.T) {
	a := NewAllocator()
	a.Initialize(0, 0)

	a.Observe(7)
	if got := a.Highest(); got != 7 {
		t.Errorf("expected highest 7 after observe, got %d", got)
	}

	// A lower observed nonce must not lower the mark.
	a.Observe(3)
	if got := a.Highest(); got != 7 {
		t.Errorf("expected highest to stay 7, got %d", got)
	}

	// Observing never moves the allocation cursor.
	n, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if n != 1 {
		t.Errorf("expected nonce 1, got %d", n)
	}
}
