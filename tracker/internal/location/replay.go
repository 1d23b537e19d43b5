package location

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
)

// ReplaySource emits the samples of a recorded NDJSON track, one
// {"lon":..,"lat":..,"timestamp":..} object per line. The recorded gaps
// between timestamps are reproduced, divided by Speed.
type ReplaySource struct {
	path  string
	speed float64

	open  func(path string) (io.ReadCloser, error)
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReplaySource returns a source replaying the file at path. A speed of
// 10 replays ten times faster than recorded; speed <= 0 means 1.
func NewReplaySource(path string, speed float64) *ReplaySource {
	if speed <= 0 {
		speed = 1
	}
	return &ReplaySource{
		path:  path,
		speed: speed,
		open:  func(p string) (io.ReadCloser, error) { return os.Open(p) },
		sleep: sleepCtx,
	}
}

// Run replays the track. It returns nil at end of file.
func (r *ReplaySource) Run(ctx context.Context, emit func(types.LocationSample)) error {
	f, err := r.open(r.path)
	if err != nil {
		return fmt.Errorf("location: open replay: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var (
		prev    time.Time
		line    int
		emitted int
	)
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var s types.LocationSample
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("location: replay line %d: %w", line, err)
		}
		if err := Validate(s); err != nil {
			return fmt.Errorf("location: replay line %d: %w", line, err)
		}
		recorded := !s.Timestamp.IsZero()
		if recorded && !prev.IsZero() {
			gap := time.Duration(float64(s.Timestamp.Sub(prev)) / r.speed)
			if err := r.sleep(ctx, gap); err != nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if recorded {
			prev = s.Timestamp
		} else {
			s.Timestamp = time.Now()
		}
		emit(s)
		emitted++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("location: read replay: %w", err)
	}
	slog.Info("location: replay finished", "path", r.path, "samples", emitted)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
