package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/geo"
	"github.com/hiketracker/hiketracker/tracker/internal/photosearch"
	"github.com/hiketracker/hiketracker/tracker/internal/registry"
	"github.com/hiketracker/hiketracker/tracker/internal/selector"
	"github.com/hiketracker/hiketracker/tracker/internal/store"
)

type fixture struct {
	p     *Pipeline
	f     *scriptedFetcher
	st    *store.Store
	reg   *registry.Registry
	obs   *observer
	comps *completions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New()
	reg := registry.New(st)
	f := newScriptedFetcher()
	p := New(geo.NewBuilder(geo.DefaultMargin), f, selector.First{}, reg, nil)
	obs := &observer{}
	reg.Attach(obs)
	fx := &fixture{p: p, f: f, st: st, reg: reg, obs: obs, comps: watch(p)}
	t.Cleanup(p.Stop)
	return fx
}

func TestPipeline_SuccessStoresAndPushes(t *testing.T) {
	fx := newFixture(t)

	fx.p.Submit(context.Background(), sample(10, 20))
	assert.Equal(t, Fetching, fx.p.Status().State)

	call := fx.f.next(t)
	assert.InDelta(t, 9.999, call.query.MinLon, 1e-9)
	assert.InDelta(t, 20.001, call.query.MaxLat, 1e-9)
	call.respond(nil, "https://img/p1.jpg", "https://img/p2.jpg")

	cp := fx.comps.next(t)
	assert.Equal(t, OutcomePhoto, cp.Outcome)
	require.NotNil(t, cp.Result)
	assert.Equal(t, "https://img/p1.jpg", cp.Result.URL)
	assert.Equal(t, 1, fx.st.Len())
	assert.Equal(t, []string{"https://img/p1.jpg"}, fx.obs.receivedURLs())
	assert.Equal(t, Idle, fx.p.Status().State)
}

// A response with an empty photos array stores nothing, pushes nothing and
// returns the pipeline to Idle without an error.
func TestPipeline_EmptyPhotos(t *testing.T) {
	fx := newFixture(t)

	fx.p.Submit(context.Background(), sample(10, 20))
	fx.f.next(t).respond(nil)

	cp := fx.comps.next(t)
	assert.Equal(t, OutcomeEmpty, cp.Outcome)
	assert.NoError(t, cp.Err)
	assert.Nil(t, cp.Result)
	assert.Equal(t, 0, fx.st.Len())
	assert.Empty(t, fx.obs.receivedURLs())
	st := fx.p.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, 0, st.ConsecutiveFailures)
}

// A fetch that exhausts its four attempts on timeouts is recorded as a
// failure and leaves store and observer untouched.
func TestPipeline_FourTimeouts(t *testing.T) {
	fx := newFixture(t)

	fx.p.Submit(context.Background(), sample(10, 20))
	fx.f.next(t).respond(&photosearch.Error{Kind: photosearch.KindTimeout, Attempts: 4, Err: context.DeadlineExceeded})

	cp := fx.comps.next(t)
	assert.Equal(t, OutcomeFailed, cp.Outcome)
	assert.True(t, photosearch.IsKind(cp.Err, photosearch.KindTimeout))
	assert.Equal(t, 1, cp.ConsecutiveFailures)
	assert.Equal(t, 0, fx.st.Len())
	assert.Empty(t, fx.obs.receivedURLs())
	assert.Equal(t, Idle, fx.p.Status().State)
}

func TestPipeline_MalformedTreatedAsNoPhotos(t *testing.T) {
	fx := newFixture(t)

	fx.p.Submit(context.Background(), sample(10, 20))
	fx.f.next(t).respond(&photosearch.Error{Kind: photosearch.KindMalformed, Attempts: 1, Err: errors.New("bad json")})

	cp := fx.comps.next(t)
	assert.Equal(t, OutcomeMalformed, cp.Outcome)
	assert.Nil(t, cp.Result)
	assert.Equal(t, 0, fx.st.Len())
	assert.Equal(t, Idle, fx.p.Status().State)
}

func TestPipeline_ConsecutiveFailuresResetOnSuccess(t *testing.T) {
	fx := newFixture(t)
	fail := &photosearch.Error{Kind: photosearch.KindTransport, Attempts: 4, Status: 503, Err: errors.New("503")}

	for i := 1; i <= 3; i++ {
		fx.p.Submit(context.Background(), sample(10, 20))
		fx.f.next(t).respond(fail)
		assert.Equal(t, i, fx.comps.next(t).ConsecutiveFailures)
	}
	fx.p.Submit(context.Background(), sample(10, 20))
	fx.f.next(t).respond(nil)

	assert.Equal(t, 0, fx.comps.next(t).ConsecutiveFailures)
	assert.Equal(t, 0, fx.p.Status().ConsecutiveFailures)
	assert.Equal(t, 4, fx.p.Status().Completed)
}

// A second sample cancels the first fetch; only one fetch is live at a time.
func TestPipeline_SingleFlight(t *testing.T) {
	fx := newFixture(t)

	g1 := fx.p.Submit(context.Background(), sample(10, 20))
	first := fx.f.next(t)
	g2 := fx.p.Submit(context.Background(), sample(11, 21))
	second := fx.f.next(t)

	assert.Greater(t, g2, g1)
	select {
	case <-first.ctx.Done():
	default:
		t.Fatal("first fetch not canceled by the second sample")
	}
	assert.NoError(t, second.ctx.Err())

	second.respond(nil, "https://img/new.jpg")
	cp := fx.comps.next(t)
	assert.Equal(t, g2, cp.Generation)
	assert.Equal(t, []string{"https://img/new.jpg"}, fx.obs.receivedURLs())
	assert.Equal(t, 1, fx.p.Status().Superseded)

	fx.p.Stop()
	fx.comps.none(t)
	assert.Equal(t, 1, fx.st.Len())
}

// A fetch that completes successfully after being canceled is discarded.
func TestPipeline_CancelWins(t *testing.T) {
	fx := newFixture(t)
	fx.f.ignoreCancel = true

	fx.p.Submit(context.Background(), sample(10, 20))
	stale := fx.f.next(t)
	fx.p.Submit(context.Background(), sample(11, 21))
	current := fx.f.next(t)

	stale.respond(nil, "https://img/stale.jpg")
	current.respond(nil, "https://img/current.jpg")
	cp := fx.comps.next(t)
	fx.p.Stop()

	assert.Equal(t, "https://img/current.jpg", cp.Result.URL)
	fx.comps.none(t)
	snap := fx.st.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "https://img/current.jpg", snap[0].URL)
	assert.Equal(t, []string{"https://img/current.jpg"}, fx.obs.receivedURLs())
}

// Store order follows completion order, a subsequence of sample order.
func TestPipeline_StoreOrderFollowsCompletions(t *testing.T) {
	fx := newFixture(t)
	for i, u := range []string{"a", "b", "c"} {
		fx.p.Submit(context.Background(), sample(float64(i), 0))
		fx.f.next(t).respond(nil, u)
		fx.comps.next(t)
	}
	snap := fx.st.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{snap[0].URL, snap[1].URL, snap[2].URL})
}

func TestPipeline_StopCancelsInFlight(t *testing.T) {
	fx := newFixture(t)

	fx.p.Submit(context.Background(), sample(10, 20))
	call := fx.f.next(t)
	fx.p.Stop()

	assert.Error(t, call.ctx.Err())
	fx.comps.none(t)
	assert.Equal(t, uint64(0), fx.p.Submit(context.Background(), sample(1, 1)))
	assert.Equal(t, Idle, fx.p.Status().State)
}

func TestPipeline_StopIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.p.Stop()
	fx.p.Stop()
}

func TestPipeline_RandomSelectorPicksFromBatch(t *testing.T) {
	st := store.New()
	f := FetcherFunc(func(context.Context, types.AreaQuery) ([]types.PhotoCandidate, error) {
		return []types.PhotoCandidate{{URL: "x"}, {URL: "y"}, {URL: "z"}}, nil
	})
	p := New(geo.NewBuilder(geo.DefaultMargin), f, selector.New(seededSource()), registry.New(st), nil)
	comps := watch(p)
	defer p.Stop()

	p.Submit(context.Background(), sample(0, 0))
	cp := comps.next(t)

	require.NotNil(t, cp.Result)
	assert.Contains(t, []string{"x", "y", "z"}, cp.Result.URL)
}
