package location

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hiketracker/hiketracker/pkg/types"
)

// Source produces location samples. Run calls emit for every sample, in
// order, from a single goroutine, and blocks until ctx is canceled or the
// source is exhausted.
type Source interface {
	Run(ctx context.Context, emit func(types.LocationSample)) error
}

// ErrInvalidSample is returned for coordinates outside the WGS84 range.
var ErrInvalidSample = errors.New("location: invalid sample")

// Validate checks that s carries finite, in-range coordinates.
func Validate(s types.LocationSample) error {
	if math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) ||
		s.Latitude < -90 || s.Latitude > 90 ||
		s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidSample, s.Latitude, s.Longitude)
	}
	return nil
}
