package photosearch

import "time"

// backoff implements truncated exponential backoff with +-25% jitter.
type backoff struct {
	current    time.Duration
	multiplier float64
	limit      time.Duration
	jitter     func() float64 // in [-1, 1)
}

func newBackoff(initial time.Duration, multiplier float64, limit time.Duration, jitter func() float64) *backoff {
	return &backoff{current: initial, multiplier: multiplier, limit: limit, jitter: jitter}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	if b.jitter != nil {
		d += time.Duration(float64(b.current) * 0.25 * b.jitter())
	}
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * b.multiplier)
	if b.limit > 0 && b.current > b.limit {
		b.current = b.limit
	}
	return d
}
