package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/geo"
	"github.com/hiketracker/hiketracker/tracker/internal/location"
	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
	"github.com/hiketracker/hiketracker/tracker/internal/registry"
	"github.com/hiketracker/hiketracker/tracker/internal/selector"
	"github.com/hiketracker/hiketracker/tracker/internal/store"
)

var (
	// ErrAlreadyStarted is returned by Start on a running engine.
	ErrAlreadyStarted = errors.New("pipeline: engine already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("pipeline: engine stopped")
)

// Options wires an Engine. Source, Builder and Fetcher are required.
type Options struct {
	Source   location.Source
	Filter   *location.Filter // nil accepts every sample
	Builder  *geo.Builder
	Fetcher  Fetcher
	Selector selector.Selector // nil means selector.First
	Metrics  *metrics.Metrics
}

// Engine owns one tracking run: the location source, the fetch pipeline,
// the result store and the observer registry.
type Engine struct {
	runID    string
	source   location.Source
	filter   *location.Filter
	pipeline *Pipeline
	store    *store.Store
	registry *registry.Registry
	metrics  *metrics.Metrics

	mu        sync.Mutex
	started   bool
	stopped   bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	accepted  int
	filtered  int
}

// NewEngine builds an Engine from opts. Nothing runs until Start.
func NewEngine(opts Options) *Engine {
	sel := opts.Selector
	if sel == nil {
		sel = selector.First{}
	}
	st := store.New()
	reg := registry.New(st)
	reg.OnChange(opts.Metrics.SetAttached)

	return &Engine{
		runID:    uuid.NewString(),
		source:   opts.Source,
		filter:   opts.Filter,
		pipeline: New(opts.Builder, opts.Fetcher, sel, reg, opts.Metrics),
		store:    st,
		registry: reg,
		metrics:  opts.Metrics,
		done:     make(chan struct{}),
	}
}

// Start begins reading the location source. It returns immediately; the
// engine runs until Stop is called or ctx is canceled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.stopped:
		return ErrStopped
	case e.started:
		return ErrAlreadyStarted
	}
	e.started = true
	e.startedAt = time.Now()
	e.ctx, e.cancel = context.WithCancel(ctx)

	go func() {
		defer close(e.done)
		if err := e.source.Run(e.ctx, e.HandleSample); err != nil {
			slog.Error("pipeline: location source failed", "run_id", e.runID, "err", err)
			return
		}
		slog.Info("pipeline: location source finished", "run_id", e.runID)
	}()

	slog.Info("pipeline: engine started", "run_id", e.runID)
	return nil
}

// HandleSample feeds one sample through the rate filter and, if accepted,
// into the fetch pipeline. Samples before Start or after Stop are ignored.
func (e *Engine) HandleSample(s types.LocationSample) {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	accepted := e.filter == nil || e.filter.Accept(s)
	if accepted {
		e.accepted++
	} else {
		e.filtered++
	}
	e.mu.Unlock()

	e.metrics.Sample(accepted)
	if !accepted {
		return
	}
	gen := e.pipeline.Submit(ctx, s)
	slog.Debug("pipeline: sample accepted", "lat", s.Latitude, "lon", s.Longitude, "generation", gen)
}

// Stop cancels the outstanding fetch, stops the location source and waits
// for every engine goroutine to return. Only the first call has an effect.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	started := e.started
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	e.pipeline.Stop()
	if started {
		<-e.done
	}
	slog.Info("pipeline: engine stopped", "run_id", e.runID, "photos", e.store.Len())
}

// OnComplete registers fn with the pipeline. See Pipeline.OnComplete.
func (e *Engine) OnComplete(fn func(Completion)) { e.pipeline.OnComplete(fn) }

// RunID identifies this engine instance.
func (e *Engine) RunID() string { return e.runID }

// Registry returns the observer registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Store returns the result store.
func (e *Engine) Store() *store.Store { return e.store }

// Snapshot returns the stored results, newest first.
func (e *Engine) Snapshot() []types.PhotoResult { return e.store.Snapshot() }

// Pipeline returns the fetch pipeline.
func (e *Engine) Pipeline() *Pipeline { return e.pipeline }

// EngineStatus summarizes a running engine.
type EngineStatus struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	Running          bool      `json:"running"`
	SamplesAccepted  int       `json:"samples_accepted"`
	SamplesFiltered  int       `json:"samples_filtered"`
	PhotosStored     int       `json:"photos_stored"`
	ObserverAttached bool      `json:"observer_attached"`
	Fetch            Status    `json:"fetch"`
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	st := EngineStatus{
		RunID:           e.runID,
		StartedAt:       e.startedAt,
		Running:         e.started && !e.stopped,
		SamplesAccepted: e.accepted,
		SamplesFiltered: e.filtered,
	}
	e.mu.Unlock()

	st.PhotosStored = e.store.Len()
	st.ObserverAttached = e.registry.Attached()
	st.Fetch = e.pipeline.Status()
	return st
}

// String implements fmt.Stringer for log output.
func (s EngineStatus) String() string {
	return fmt.Sprintf("run=%s state=%s photos=%d", s.RunID, s.Fetch.StateName, s.PhotosStored)
}
