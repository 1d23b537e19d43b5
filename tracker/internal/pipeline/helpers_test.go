package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/photosearch"
)

// fetchCall is one outstanding Fetch on a scriptedFetcher.
type fetchCall struct {
	ctx   context.Context
	query types.AreaQuery
	reply chan fetchReply
}

type fetchReply struct {
	cands []types.PhotoCandidate
	err   error
}

func (c *fetchCall) respond(err error, urls ...string) {
	cands := make([]types.PhotoCandidate, len(urls))
	for i, u := range urls {
		cands[i] = types.PhotoCandidate{URL: u}
	}
	c.reply <- fetchReply{cands: cands, err: err}
}

// scriptedFetcher hands every Fetch to the test, which answers it through
// the call's reply channel. Unless ignoreCancel is set, a canceled context
// ends the fetch with a canceled error.
type scriptedFetcher struct {
	calls        chan *fetchCall
	ignoreCancel bool
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan *fetchCall, 16)}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, q types.AreaQuery) ([]types.PhotoCandidate, error) {
	c := &fetchCall{ctx: ctx, query: q, reply: make(chan fetchReply, 1)}
	f.calls <- c
	if f.ignoreCancel {
		r := <-c.reply
		return r.cands, r.err
	}
	select {
	case r := <-c.reply:
		return r.cands, r.err
	case <-ctx.Done():
		return nil, &photosearch.Error{Kind: photosearch.KindCanceled, Attempts: 1, Err: ctx.Err()}
	}
}

func (f *scriptedFetcher) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

// completions collects pipeline completions.
type completions struct {
	ch chan Completion
}

func watch(p *Pipeline) *completions {
	c := &completions{ch: make(chan Completion, 16)}
	p.OnComplete(func(cp Completion) { c.ch <- cp })
	return c
}

func (c *completions) next(t *testing.T) Completion {
	t.Helper()
	select {
	case cp := <-c.ch:
		return cp
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a completion")
		return Completion{}
	}
}

func (c *completions) none(t *testing.T) {
	t.Helper()
	select {
	case cp := <-c.ch:
		t.Fatalf("unexpected completion %+v", cp)
	default:
	}
}

// observer records what the registry delivers.
type observer struct {
	mu       sync.Mutex
	replays  [][]types.PhotoResult
	received []types.PhotoResult
}

func (o *observer) Replay(results []types.PhotoResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replays = append(o.replays, results)
}

func (o *observer) Receive(res types.PhotoResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received = append(o.received, res)
}

func (o *observer) receivedURLs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.received))
	for i, r := range o.received {
		out[i] = r.URL
	}
	return out
}

func sample(lon, lat float64) types.LocationSample {
	return types.LocationSample{Longitude: lon, Latitude: lat, Timestamp: time.Now()}
}
