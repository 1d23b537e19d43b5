package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_FlushesOnCancel(t *testing.T) {
	j := openTest(t)
	require.NoError(t, j.StartRun(context.Background(), "run-1", t0))
	w := NewWriter(j, 8, nil)

	for i := 0; i < 3; i++ {
		w.Enqueue(entry("run-1", i, "u"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	got, err := j.Photos(context.Background(), "run-1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestWriter_EvictsOldestWhenFull(t *testing.T) {
	j := openTest(t)
	w := NewWriter(j, 2, nil)

	w.Enqueue(entry("run-1", 0, "a"))
	w.Enqueue(entry("run-1", 1, "b"))
	w.Enqueue(entry("run-1", 2, "c"))

	first := <-w.buf
	second := <-w.buf
	assert.Equal(t, "b", first.URL)
	assert.Equal(t, "c", second.URL)
}
