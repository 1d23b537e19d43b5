package pipeline

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/geo"
	"github.com/hiketracker/hiketracker/tracker/internal/location"
	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
)

func seededSource() rand.Source { return rand.NewSource(1) }

func newTestEngine(t *testing.T, f Fetcher, filter *location.Filter) (*Engine, *location.Ingest) {
	t.Helper()
	in := location.NewIngest(8)
	m, err := metrics.New()
	require.NoError(t, err)
	e := NewEngine(Options{
		Source:  in,
		Filter:  filter,
		Builder: geo.NewBuilder(geo.DefaultMargin),
		Fetcher: f,
		Metrics: m,
	})
	t.Cleanup(e.Stop)
	return e, in
}

func TestEngine_StartTwice(t *testing.T) {
	e, _ := newTestEngine(t, newScriptedFetcher(), nil)
	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyStarted)
}

func TestEngine_StartAfterStop(t *testing.T) {
	e, _ := newTestEngine(t, newScriptedFetcher(), nil)
	require.NoError(t, e.Start(context.Background()))
	e.Stop()
	e.Stop()
	assert.ErrorIs(t, e.Start(context.Background()), ErrStopped)
	assert.False(t, e.Status().Running)
}

func TestEngine_StopWithoutStart(t *testing.T) {
	e, _ := newTestEngine(t, newScriptedFetcher(), nil)
	e.Stop()
	assert.ErrorIs(t, e.Start(context.Background()), ErrStopped)
}

func TestEngine_IgnoresSamplesBeforeStart(t *testing.T) {
	f := newScriptedFetcher()
	e, _ := newTestEngine(t, f, nil)
	e.HandleSample(sample(1, 1))
	assert.Equal(t, uint64(0), e.Pipeline().Status().Generation)
}

func TestEngine_StopCancelsOutstandingFetch(t *testing.T) {
	f := newScriptedFetcher()
	e, in := newTestEngine(t, f, nil)
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, in.Push(sample(10, 20)))
	call := f.next(t)
	e.Stop()

	assert.Error(t, call.ctx.Err())
	assert.Equal(t, 0, e.Store().Len())
}

func TestEngine_FilterApplied(t *testing.T) {
	f := newScriptedFetcher()
	e, _ := newTestEngine(t, f, location.NewFilter(10*time.Second, 100))
	comps := watch(e.Pipeline())
	require.NoError(t, e.Start(context.Background()))

	now := time.Now()
	e.HandleSample(types.LocationSample{Longitude: 10, Latitude: 20, Timestamp: now})
	e.HandleSample(types.LocationSample{Longitude: 10, Latitude: 20, Timestamp: now.Add(time.Second)})
	f.next(t).respond(nil, "p")
	comps.next(t)

	st := e.Status()
	assert.Equal(t, 1, st.SamplesAccepted)
	assert.Equal(t, 1, st.SamplesFiltered)
	assert.Equal(t, 1, st.PhotosStored)
}

// Observer A sees P1 live; P2 completes while nothing is attached; B attaches
// and is replayed [P2, P1].
func TestEngine_ObserverHandover(t *testing.T) {
	f := newScriptedFetcher()
	e, _ := newTestEngine(t, f, nil)
	comps := watch(e.Pipeline())
	require.NoError(t, e.Start(context.Background()))

	a := &observer{}
	e.Registry().Attach(a)
	e.HandleSample(sample(10, 20))
	f.next(t).respond(nil, "P1")
	comps.next(t)
	assert.Equal(t, []string{"P1"}, a.receivedURLs())

	e.Registry().Detach()
	e.HandleSample(sample(11, 21))
	f.next(t).respond(nil, "P2")
	comps.next(t)
	assert.Equal(t, []string{"P1"}, a.receivedURLs())

	b := &observer{}
	snap := e.Registry().Attach(b)
	require.Len(t, snap, 2)
	assert.Equal(t, "P2", snap[0].URL)
	assert.Equal(t, 1, snap[0].InsertedOrder)
	assert.Equal(t, "P1", snap[1].URL)
	assert.Equal(t, 0, snap[1].InsertedOrder)
	assert.Len(t, b.replays, 1)
	assert.Empty(t, b.receivedURLs())
}

func TestEngine_SourceFinishingKeepsEngineUsable(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	f := newScriptedFetcher()
	done := make(chan struct{})
	src := sourceFunc(func(ctx context.Context, emit func(types.LocationSample)) error {
		emit(sample(10, 20))
		close(done)
		return nil
	})
	e := NewEngine(Options{Source: src, Builder: geo.NewBuilder(geo.DefaultMargin), Fetcher: f, Metrics: m})
	defer e.Stop()
	comps := watch(e.Pipeline())

	require.NoError(t, e.Start(context.Background()))
	<-done
	f.next(t).respond(nil, "p")
	comps.next(t)

	assert.True(t, e.Status().Running)
	assert.Equal(t, 1, e.Status().PhotosStored)
	assert.NotEmpty(t, e.RunID())
}

type sourceFunc func(ctx context.Context, emit func(types.LocationSample)) error

func (f sourceFunc) Run(ctx context.Context, emit func(types.LocationSample)) error {
	return f(ctx, emit)
}
