package registry

import (
	"sync"

	"github.com/hiketracker/hiketracker/pkg/types"
)

// Observer receives photo results. Implementations must not block: both
// methods are called with the registry lock held.
type Observer interface {
	// Replay delivers every result stored so far, newest first, once on attach.
	Replay(results []types.PhotoResult)

	// Receive delivers one newly stored result.
	Receive(result types.PhotoResult)
}

// Appender is the store surface the registry writes through.
type Appender interface {
	Append(c types.PhotoCandidate) types.PhotoResult
	Snapshot() []types.PhotoResult
}

// Registry holds at most one attached observer.
type Registry struct {
	store Appender

	mu       sync.Mutex
	observer Observer
	onChange func(attached bool)
}

// New creates a Registry backed by st.
func New(st Appender) *Registry {
	return &Registry{store: st}
}

// OnChange installs fn to be called after every attach or detach with the
// new attachment state. fn runs under the registry lock and must not call
// back into the Registry.
func (r *Registry) OnChange(fn func(attached bool)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Attach registers obs, replacing any previous observer. The current store
// snapshot is delivered to obs via Replay before it can receive any push,
// and is also returned.
func (r *Registry) Attach(obs Observer) []types.PhotoResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.store.Snapshot()
	obs.Replay(snap)
	r.observer = obs
	r.notify()
	return snap
}

// Detach clears the registration. It is a no-op when nothing is attached.
func (r *Registry) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.observer == nil {
		return
	}
	r.observer = nil
	r.notify()
}

// DetachObserver clears the registration only if obs is still the attached
// observer. It reports whether it did.
func (r *Registry) DetachObserver(obs Observer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.observer == nil || r.observer != obs {
		return false
	}
	r.observer = nil
	r.notify()
	return true
}

// Attached reports whether an observer is registered.
func (r *Registry) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observer != nil
}

// Push delivers res to the attached observer, or drops it silently.
func (r *Registry) Push(res types.PhotoResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.observer != nil {
		r.observer.Receive(res)
	}
}

// Publish appends c to the store and pushes the stored result to the
// attached observer. Both steps happen under the registry lock, so a
// concurrent Attach sees the result either in its snapshot or as a push,
// never both.
func (r *Registry) Publish(c types.PhotoCandidate) types.PhotoResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.store.Append(c)
	if r.observer != nil {
		r.observer.Receive(res)
	}
	return res
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange(r.observer != nil)
	}
}
