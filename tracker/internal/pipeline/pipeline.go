package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/geo"
	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
	"github.com/hiketracker/hiketracker/tracker/internal/photosearch"
	"github.com/hiketracker/hiketracker/tracker/internal/selector"
)

// Fetcher retrieves the photo candidates of an area.
type Fetcher interface {
	Fetch(ctx context.Context, q types.AreaQuery) ([]types.PhotoCandidate, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, q types.AreaQuery) ([]types.PhotoCandidate, error)

// Fetch calls f(ctx, q).
func (f FetcherFunc) Fetch(ctx context.Context, q types.AreaQuery) ([]types.PhotoCandidate, error) {
	return f(ctx, q)
}

// Publisher stores a selected candidate and hands it to the attached observer.
type Publisher interface {
	Publish(c types.PhotoCandidate) types.PhotoResult
}

// State is the fetch state of the pipeline.
type State int

const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// Fetch outcomes, as reported in Completion and metrics.
const (
	OutcomePhoto      = "photo"
	OutcomeEmpty      = "empty"
	OutcomeMalformed  = "malformed"
	OutcomeFailed     = "failed"
	OutcomeCanceled   = "canceled"
	OutcomeSuperseded = "superseded"
)

// Completion describes one fetch that reached the end of the pipeline.
// Superseded fetches never produce a Completion.
type Completion struct {
	Generation uint64
	Sample     types.LocationSample
	Query      types.AreaQuery
	Outcome    string
	Result     *types.PhotoResult // set when Outcome is OutcomePhoto
	Err        error
	Duration   time.Duration

	// ConsecutiveFailures counts failed or malformed fetches in a row,
	// including this one.
	ConsecutiveFailures int
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	State               State     `json:"-"`
	StateName           string    `json:"state"`
	Generation          uint64    `json:"generation"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Completed           int       `json:"completed"`
	Superseded          int       `json:"superseded"`
	LastOutcome         string    `json:"last_outcome,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	LastCompletedAt     time.Time `json:"last_completed_at"`
}

// Pipeline turns accepted samples into at most one outstanding fetch.
// A new sample cancels the fetch in flight; a canceled fetch's completion is
// discarded even if it already has a response ("cancel wins").
type Pipeline struct {
	builder   *geo.Builder
	fetcher   Fetcher
	selector  selector.Selector
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	state    State
	stopped  bool
	status   Status
	onDone   []func(Completion)
	inflight sync.WaitGroup
}

// New assembles a Pipeline. m may be nil.
func New(b *geo.Builder, f Fetcher, sel selector.Selector, pub Publisher, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		builder:   b,
		fetcher:   f,
		selector:  sel,
		publisher: pub,
		metrics:   m,
		now:       time.Now,
	}
}

// OnComplete registers fn to run after every non-superseded fetch. Callbacks
// run on the fetch goroutine after the pipeline lock is released.
func (p *Pipeline) OnComplete(fn func(Completion)) {
	p.mu.Lock()
	p.onDone = append(p.onDone, fn)
	p.mu.Unlock()
}

// Submit builds the area query for s and starts a fetch under parent,
// canceling any fetch still in flight. It returns the generation of the new
// fetch, or 0 if the pipeline is stopped.
func (p *Pipeline) Submit(parent context.Context, s types.LocationSample) uint64 {
	q := p.builder.Build(s)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0
	}
	if p.cancel != nil {
		p.cancel()
		p.status.Superseded++
		p.metrics.Fetch(OutcomeSuperseded, 0)
		slog.Debug("pipeline: superseded fetch", "generation", p.gen)
	}

	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.state = Fetching
	p.metrics.SetFetching(true)

	p.inflight.Add(1)
	go p.run(ctx, gen, s, q)
	return gen
}

func (p *Pipeline) run(ctx context.Context, gen uint64, s types.LocationSample, q types.AreaQuery) {
	defer p.inflight.Done()
	start := p.now()
	cands, err := p.fetcher.Fetch(ctx, q)
	p.complete(gen, s, q, cands, err, p.now().Sub(start))
}

// complete applies a fetch outcome if gen is still current.
func (p *Pipeline) complete(gen uint64, s types.LocationSample, q types.AreaQuery, cands []types.PhotoCandidate, err error, d time.Duration) {
	p.mu.Lock()
	if gen != p.gen || p.stopped {
		p.mu.Unlock()
		slog.Debug("pipeline: discarded stale completion", "generation", gen)
		return
	}
	p.cancel()
	p.cancel = nil
	p.state = Idle
	p.metrics.SetFetching(false)

	c := Completion{Generation: gen, Sample: s, Query: q, Err: err, Duration: d}
	switch {
	case err == nil:
		if cand, ok := p.selector.Select(cands); ok {
			res := p.publisher.Publish(cand)
			c.Result = &res
			c.Outcome = OutcomePhoto
			p.metrics.Stored()
			slog.Info("pipeline: photo stored", "url", res.URL, "order", res.InsertedOrder, "candidates", len(cands))
		} else {
			c.Outcome = OutcomeEmpty
			slog.Debug("pipeline: no photos in area", "area", q.Key())
		}
		p.status.ConsecutiveFailures = 0
	case photosearch.IsKind(err, photosearch.KindMalformed):
		c.Outcome = OutcomeMalformed
		p.status.ConsecutiveFailures++
		slog.Warn("pipeline: malformed response, treating as no photos", "area", q.Key(), "err", err)
	case photosearch.IsKind(err, photosearch.KindCanceled), errors.Is(err, context.Canceled):
		c.Outcome = OutcomeCanceled
		slog.Debug("pipeline: fetch canceled", "generation", gen)
	default:
		c.Outcome = OutcomeFailed
		p.status.ConsecutiveFailures++
		slog.Warn("pipeline: fetch failed",
			"area", q.Key(),
			"consecutive_failures", p.status.ConsecutiveFailures,
			"err", err)
	}
	c.ConsecutiveFailures = p.status.ConsecutiveFailures

	p.status.Completed++
	p.status.LastOutcome = c.Outcome
	p.status.LastError = ""
	if err != nil {
		p.status.LastError = err.Error()
	}
	p.status.LastCompletedAt = p.now()
	p.metrics.Fetch(c.Outcome, d)
	hooks := append([]func(Completion){}, p.onDone...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(c)
	}
}

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.status
	st.State = p.state
	st.StateName = p.state.String()
	st.Generation = p.gen
	return st
}

// Stop cancels the fetch in flight, rejects further samples and waits for
// fetch goroutines to return. Safe to call more than once.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		p.gen++
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		p.state = Idle
		p.metrics.SetFetching(false)
	}
	p.mu.Unlock()
	p.inflight.Wait()
}
