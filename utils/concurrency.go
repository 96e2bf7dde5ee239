package utils

import (
	"sync"
	"time"
)

// Throttle enforces a minimum interval between successive upstream
// requests so paged feature-layer queries stay polite.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastRequest time.Time
}

// NewThrottle creates a Throttle with the given minimum interval.
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{minInterval: minInterval}
}

// Wait blocks until at least the minimum interval has passed since the
// previous call.
func (t *Throttle) Wait() {
	if t.minInterval <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastRequest.IsZero() {
		if elapsed := time.Since(t.lastRequest); elapsed < t.minInterval {
			time.Sleep(t.minInterval - elapsed)
		}
	}
	t.lastRequest = time.Now()
}

// KeySet is a thread-safe set for tracking feature keys already ingested.
type KeySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len reports how many distinct keys have been added.
func (s *KeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
