package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrClosed is returned by operations on a closed Journal.
var ErrClosed = errors.New("journal: closed")

// Entry is one stored photo result together with the sample that led to it.
type Entry struct {
	RunID         string    `json:"run_id"`
	InsertedOrder int       `json:"inserted_order"`
	URL           string    `json:"url"`
	Latitude      float64   `json:"lat"`
	Longitude     float64   `json:"lon"`
	SampledAt     time.Time `json:"sampled_at"`
	FoundAt       time.Time `json:"found_at"`
}

// Run summarizes one engine run.
type Run struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Photos    int        `json:"photos"`
}

// Journal is the SQLite history of photos found across runs.
type Journal struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open opens (creating if needed) the journal database at path and applies
// pending migrations. path may be ":memory:".
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database. Further calls return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.closed = true
	return j.db.Close()
}

// conn returns the database or ErrClosed. The read lock is held until the
// returned release func is called.
func (j *Journal) conn() (*sql.DB, func(), error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	return j.db, j.mu.RUnlock, nil
}

// StartRun records the start of a run.
func (j *Journal) StartRun(ctx context.Context, id string, startedAt time.Time) error {
	db, release, err := j.conn()
	if err != nil {
		return err
	}
	defer release()
	if _, err := db.ExecContext(ctx, `INSERT INTO runs (id, started_at) VALUES (?, ?)`, id, startedAt.UTC()); err != nil {
		return fmt.Errorf("journal: start run: %w", err)
	}
	return nil
}

// StopRun records the end of a run.
func (j *Journal) StopRun(ctx context.Context, id string, stoppedAt time.Time) error {
	db, release, err := j.conn()
	if err != nil {
		return err
	}
	defer release()
	if _, err := db.ExecContext(ctx, `UPDATE runs SET stopped_at = ? WHERE id = ?`, stoppedAt.UTC(), id); err != nil {
		return fmt.Errorf("journal: stop run: %w", err)
	}
	return nil
}

// Record inserts e.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	db, release, err := j.conn()
	if err != nil {
		return err
	}
	defer release()
	_, err = db.ExecContext(ctx, `
		INSERT INTO photos (run_id, inserted_order, url, latitude, longitude, sampled_at, found_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.InsertedOrder, e.URL, e.Latitude, e.Longitude, e.SampledAt.UTC(), e.FoundAt.UTC())
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Runs lists runs, most recent first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	db, release, err := j.conn()
	if err != nil {
		return nil, err
	}
	defer release()
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.stopped_at, COUNT(p.id)
		FROM runs r LEFT JOIN photos p ON p.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			stopped sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &stopped, &r.Photos); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		if stopped.Valid {
			t := stopped.Time
			r.StoppedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Photos lists the entries of run newest first. An empty runID lists all
// runs. limit <= 0 means no limit.
func (j *Journal) Photos(ctx context.Context, runID string, limit int) ([]Entry, error) {
	db, release, err := j.conn()
	if err != nil {
		return nil, err
	}
	defer release()
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, inserted_order, url, latitude, longitude, sampled_at, found_at
		FROM photos
		WHERE (? = '' OR run_id = ?)
		ORDER BY found_at DESC, id DESC
		LIMIT ?`, runID, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list photos: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.InsertedOrder, &e.URL, &e.Latitude, &e.Longitude, &e.SampledAt, &e.FoundAt); err != nil {
			return nil, fmt.Errorf("journal: scan photo: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
