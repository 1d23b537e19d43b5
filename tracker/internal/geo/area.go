package geo

import (
	"math"
	"sync/atomic"

	"github.com/hiketracker/hiketracker/pkg/types"
)

// DefaultMargin is the half-width of the search box in degrees.
// Smaller boxes rarely return any photos.
const DefaultMargin = 0.001

// Builder turns location samples into area queries. The margin can be
// changed while the tracker runs; Build is safe for concurrent use.
type Builder struct {
	margin atomic.Uint64 // math.Float64bits of the margin in degrees
}

// NewBuilder returns a Builder with the given margin. A non-positive margin
// selects DefaultMargin.
func NewBuilder(margin float64) *Builder {
	b := &Builder{}
	b.SetMargin(margin)
	return b
}

// SetMargin replaces the margin used by subsequent Build calls.
// A non-positive margin selects DefaultMargin.
func (b *Builder) SetMargin(margin float64) {
	if margin <= 0 {
		margin = DefaultMargin
	}
	b.margin.Store(math.Float64bits(margin))
}

// Margin returns the current margin in degrees.
func (b *Builder) Margin() float64 {
	return math.Float64frombits(b.margin.Load())
}

// Build expands the sample by the margin in each direction.
func (b *Builder) Build(s types.LocationSample) types.AreaQuery {
	m := b.Margin()
	return types.AreaQuery{
		MinLon: s.Longitude - m,
		MinLat: s.Latitude - m,
		MaxLon: s.Longitude + m,
		MaxLat: s.Latitude + m,
	}
}
