package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/hiketracker/hiketracker/tracker/internal/metrics"
)

const writeTimeout = 5 * time.Second

// Writer records entries off the caller's goroutine. Enqueue never blocks;
// when the buffer is full the oldest pending entry is evicted.
// Run must be called in a goroutine to drain the buffer.
type Writer struct {
	j       *Journal
	buf     chan Entry
	metrics *metrics.Metrics
}

// NewWriter returns a Writer holding up to size pending entries. m may be nil.
func NewWriter(j *Journal, size int, m *metrics.Metrics) *Writer {
	if size <= 0 {
		size = 1
	}
	return &Writer{j: j, buf: make(chan Entry, size), metrics: m}
}

// Enqueue queues e for writing.
func (w *Writer) Enqueue(e Entry) {
	for {
		select {
		case w.buf <- e:
			return
		default:
		}
		select {
		case old := <-w.buf:
			w.metrics.JournalDrop()
			slog.Warn("journal: buffer full, evicted oldest entry",
				"run_id", old.RunID, "order", old.InsertedOrder, "buffer_cap", cap(w.buf))
		default:
		}
	}
}

// Run writes queued entries until ctx is canceled, then flushes what is
// still buffered and returns.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case e := <-w.buf:
			w.write(context.Background(), e)
		}
	}
}

func (w *Writer) flush() {
	for {
		select {
		case e := <-w.buf:
			w.write(context.Background(), e)
		default:
			return
		}
	}
}

func (w *Writer) write(parent context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	if err := w.j.Record(ctx, e); err != nil {
		slog.Error("journal: write failed", "run_id", e.RunID, "order", e.InsertedOrder, "err", err)
	}
}
