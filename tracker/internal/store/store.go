package store

import (
	"sync"
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
)

// Store is the thread-safe, append-only record of every photo found during
// a run. Results are never modified or removed once appended.
type Store struct {
	mu      sync.RWMutex
	results []types.PhotoResult
	now     func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

// Append stores c as the next result and returns it stamped with its
// insertion order (zero-based, oldest first).
func (s *Store) Append(c types.PhotoCandidate) types.PhotoResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := types.PhotoResult{
		URL:           c.URL,
		InsertedOrder: len(s.results),
		FoundAt:       s.now(),
	}
	s.results = append(s.results, r)
	return r
}

// Snapshot returns a copy of all results, newest first.
func (s *Store) Snapshot() []types.PhotoResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.PhotoResult, len(s.results))
	for i, r := range s.results {
		out[len(s.results)-1-i] = r
	}
	return out
}

// Get returns the result with the given insertion order.
func (s *Store) Get(order int) (types.PhotoResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if order < 0 || order >= len(s.results) {
		return types.PhotoResult{}, false
	}
	return s.results[order], true
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
