package location

import (
	"context"
	"log/slog"

	"github.com/hiketracker/hiketracker/pkg/types"
)

// Ingest is a Source fed by Push, used by the HTTP ingest endpoint.
// When the buffer is full the oldest pending sample is dropped.
type Ingest struct {
	buf chan types.LocationSample
}

// NewIngest returns an Ingest holding up to size pending samples.
func NewIngest(size int) *Ingest {
	if size <= 0 {
		size = 1
	}
	return &Ingest{buf: make(chan types.LocationSample, size)}
}

// Push validates s and enqueues it without blocking.
func (in *Ingest) Push(s types.LocationSample) error {
	if err := Validate(s); err != nil {
		return err
	}
	for {
		select {
		case in.buf <- s:
			return nil
		default:
		}
		select {
		case old := <-in.buf:
			slog.Warn("location: ingest buffer full, dropped oldest sample",
				"lat", old.Latitude, "lon", old.Longitude, "buffer_cap", cap(in.buf))
		default:
		}
	}
}

// Run delivers pushed samples until ctx is canceled.
func (in *Ingest) Run(ctx context.Context, emit func(types.LocationSample)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-in.buf:
			emit(s)
		}
	}
}
