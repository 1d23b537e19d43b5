package selector

import (
	"math/rand"
	"testing"

	"github.com/hiketracker/hiketracker/pkg/types"
)

func batch(urls ...string) []types.PhotoCandidate {
	out := make([]types.PhotoCandidate, len(urls))
	for i, u := range urls {
		out[i] = types.PhotoCandidate{URL: u}
	}
	return out
}

func TestRandom_Empty(t *testing.T) {
	s := New(rand.NewSource(1))
	if _, ok := s.Select(nil); ok {
		t.Fatal("Select(nil) returned a candidate")
	}
	if _, ok := s.Select([]types.PhotoCandidate{}); ok {
		t.Fatal("Select([]) returned a candidate")
	}
}

func TestRandom_SingleCandidate(t *testing.T) {
	s := New(rand.NewSource(1))
	got, ok := s.Select(batch("a"))
	if !ok || got.URL != "a" {
		t.Errorf("Select([a]) = %v, %v", got, ok)
	}
}

func TestRandom_SameSeedSameChoice(t *testing.T) {
	b := batch("a", "b", "c", "d", "e", "f", "g")
	s1 := New(rand.NewSource(42))
	s2 := New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		c1, _ := s1.Select(b)
		c2, _ := s2.Select(b)
		if c1 != c2 {
			t.Fatalf("draw %d: %q != %q with identical seeds", i, c1.URL, c2.URL)
		}
	}
}

func TestRandom_CoversWholeBatch(t *testing.T) {
	b := batch("a", "b", "c", "d")
	s := New(rand.NewSource(7))
	seen := map[string]int{}
	for i := 0; i < 400; i++ {
		c, ok := s.Select(b)
		if !ok {
			t.Fatal("Select returned false for non-empty batch")
		}
		seen[c.URL]++
	}
	if len(seen) != len(b) {
		t.Errorf("picked %d distinct candidates out of %d: %v", len(seen), len(b), seen)
	}
}

func TestFirst(t *testing.T) {
	if _, ok := (First{}).Select(nil); ok {
		t.Error("First.Select(nil) returned a candidate")
	}
	got, ok := (First{}).Select(batch("x", "y"))
	if !ok || got.URL != "x" {
		t.Errorf("First.Select = %v, %v, want x", got, ok)
	}
}
