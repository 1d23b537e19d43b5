// Package selector picks the one photo surfaced out of a search result batch.
//
// The production choice is uniform random. The random source is injected so
// tests can pin it; it need not be cryptographically strong.
package selector

import (
	"math/rand"
	"sync"

	"github.com/hiketracker/hiketracker/pkg/types"
)

// Selector picks at most one candidate from a batch.
type Selector interface {
	Select(candidates []types.PhotoCandidate) (types.PhotoCandidate, bool)
}

// Random picks a candidate uniformly at random. Safe for concurrent use.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Random selector drawing from src.
func New(src rand.Source) *Random {
	return &Random{rng: rand.New(src)}
}

// Select returns a uniformly chosen candidate, or false for an empty batch.
func (r *Random) Select(candidates []types.PhotoCandidate) (types.PhotoCandidate, bool) {
	if len(candidates) == 0 {
		return types.PhotoCandidate{}, false
	}
	r.mu.Lock()
	i := r.rng.Intn(len(candidates))
	r.mu.Unlock()
	return candidates[i], true
}

// First always picks the first candidate.
type First struct{}

// Select returns the first candidate, or false for an empty batch.
func (First) Select(candidates []types.PhotoCandidate) (types.PhotoCandidate, bool) {
	if len(candidates) == 0 {
		return types.PhotoCandidate{}, false
	}
	return candidates[0], true
}
