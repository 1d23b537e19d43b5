package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
)

func cand(url string) types.PhotoCandidate { return types.PhotoCandidate{URL: url} }

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestAppend_AssignsOrder(t *testing.T) {
	st := New()
	r0 := st.Append(cand("a"))
	r1 := st.Append(cand("b"))

	if r0.InsertedOrder != 0 || r1.InsertedOrder != 1 {
		t.Errorf("orders: got %d, %d, want 0, 1", r0.InsertedOrder, r1.InsertedOrder)
	}
	if st.Len() != 2 {
		t.Errorf("Len: got %d, want 2", st.Len())
	}
}

func TestAppend_StampsFoundAt(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	st := New()
	st.now = fixedClock(base)

	if r := st.Append(cand("a")); !r.FoundAt.Equal(base) {
		t.Errorf("FoundAt: got %v, want %v", r.FoundAt, base)
	}
}

func TestSnapshot_NewestFirst(t *testing.T) {
	st := New()
	for _, u := range []string{"a", "b", "c"} {
		st.Append(cand(u))
	}

	snap := st.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot: got %d results, want 3", len(snap))
	}
	for i, want := range []string{"c", "b", "a"} {
		if snap[i].URL != want {
			t.Errorf("Snapshot[%d]: got %q, want %q", i, snap[i].URL, want)
		}
	}
	if snap[0].InsertedOrder != 2 {
		t.Errorf("Snapshot[0].InsertedOrder: got %d, want 2", snap[0].InsertedOrder)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	snap := New().Snapshot()
	if snap == nil || len(snap) != 0 {
		t.Errorf("Snapshot of empty store: got %#v, want empty non-nil slice", snap)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	st := New()
	st.Append(cand("a"))

	snap := st.Snapshot()
	snap[0].URL = "mutated"

	if r, _ := st.Get(0); r.URL != "a" {
		t.Errorf("store entry changed through snapshot: %q", r.URL)
	}
}

func TestAppendOnly_PreviouslyObservedEntriesNeverChange(t *testing.T) {
	st := New()
	st.Append(cand("a"))
	first := st.Snapshot()

	prevLen := st.Len()
	for i := 0; i < 10; i++ {
		st.Append(cand(fmt.Sprintf("p%d", i)))
		if st.Len() < prevLen {
			t.Fatalf("Len decreased: %d -> %d", prevLen, st.Len())
		}
		prevLen = st.Len()
	}

	r, ok := st.Get(first[0].InsertedOrder)
	if !ok || r != first[0] {
		t.Errorf("Get(%d) = %+v, want %+v", first[0].InsertedOrder, r, first[0])
	}
}

func TestGet_OutOfRange(t *testing.T) {
	st := New()
	st.Append(cand("a"))
	if _, ok := st.Get(-1); ok {
		t.Error("Get(-1) returned ok")
	}
	if _, ok := st.Get(1); ok {
		t.Error("Get(1) returned ok")
	}
}

func TestAppend_ConcurrentOrdersAreUnique(t *testing.T) {
	st := New()
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			st.Append(cand(fmt.Sprintf("u%d", i)))
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for _, r := range st.Snapshot() {
		if seen[r.InsertedOrder] {
			t.Fatalf("duplicate order %d", r.InsertedOrder)
		}
		seen[r.InsertedOrder] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct orders, want %d", len(seen), n)
	}
}
