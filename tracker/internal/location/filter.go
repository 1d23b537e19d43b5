package location

import (
	"sync"
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/geo"
)

// Filter applies the sample-rate policy. The first sample is always
// accepted; later samples are accepted only once both the minimum interval
// and the minimum displacement have been reached since the last accepted
// sample. Elapsed time is measured on sample timestamps.
type Filter struct {
	mu              sync.Mutex
	minInterval     time.Duration
	minDisplacement float64
	last            *types.LocationSample
}

// NewFilter returns a Filter with the given thresholds. Zero disables a threshold.
func NewFilter(minInterval time.Duration, minDisplacementM float64) *Filter {
	return &Filter{minInterval: minInterval, minDisplacement: minDisplacementM}
}

// SetPolicy replaces the thresholds. The last accepted sample is kept.
func (f *Filter) SetPolicy(minInterval time.Duration, minDisplacementM float64) {
	f.mu.Lock()
	f.minInterval = minInterval
	f.minDisplacement = minDisplacementM
	f.mu.Unlock()
}

// Accept reports whether s passes the policy and, if so, records it as the
// last accepted sample.
func (f *Filter) Accept(s types.LocationSample) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last != nil {
		if s.Timestamp.Sub(f.last.Timestamp) < f.minInterval {
			return false
		}
		if geo.DistanceM(*f.last, s) < f.minDisplacement {
			return false
		}
	}
	last := s
	f.last = &last
	return true
}
