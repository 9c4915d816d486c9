package trace

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	recordBuffer = 4096
	flushBatch   = 256
)

// SQLiteRecorder persists events to a SQLite database, one row per event,
// written in batched transactions by a dedicated goroutine so recording
// stays off the scheduling path. When the buffer is full events are
// dropped, never blocked on; Dropped reports how many.
type SQLiteRecorder struct {
	db     *sql.DB
	runID  string
	logger *slog.Logger

	ch        chan Event
	done      chan struct{}
	dropped   atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteRecorder opens (or creates) the trace database at path and
// starts the writer. Every recorder gets a fresh run id, so one database
// can hold many runs.
func NewSQLiteRecorder(path string, logger *slog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db %s: %w", path, err)
	}
	// A single writer goroutine owns all inserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sched_events (
		run_id  TEXT    NOT NULL,
		seq     INTEGER NOT NULL,
		time_ns INTEGER NOT NULL,
		cpu     INTEGER NOT NULL,
		pid     INTEGER NOT NULL,
		kind    TEXT    NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sched_events: %w", err)
	}

	r := &SQLiteRecorder{
		db:     db,
		runID:  uuid.New().String(),
		logger: logger.With("component", "trace"),
		ch:     make(chan Event, recordBuffer),
		done:   make(chan struct{}),
	}
	go r.writer()
	return r, nil
}

// RunID returns the identifier rows of this run are tagged with.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// Dropped returns the number of events lost to a full buffer.
func (r *SQLiteRecorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Record queues an event for persistence without blocking.
func (r *SQLiteRecorder) Record(ev Event) {
	select {
	case r.ch <- ev:
	default:
		r.dropped.Add(1)
	}
}

// Close flushes buffered events and closes the database.
func (r *SQLiteRecorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.ch)
		<-r.done
		r.closeErr = r.db.Close()
		if n := r.dropped.Load(); n > 0 {
			r.logger.Warn("trace events dropped", "count", n)
		}
	})
	return r.closeErr
}

func (r *SQLiteRecorder) writer() {
	defer close(r.done)

	buf := make([]Event, 0, flushBatch)
	for ev := range r.ch {
		buf = append(buf, ev)
		if len(buf) >= flushBatch {
			r.flush(buf)
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		r.flush(buf)
	}
}

func (r *SQLiteRecorder) flush(events []Event) {
	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error("begin trace tx", "error", err)
		return
	}
	stmt, err := tx.Prepare(
		"INSERT INTO sched_events (run_id, seq, time_ns, cpu, pid, kind) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		r.logger.Error("prepare trace insert", "error", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(r.runID, ev.Seq, ev.TimeNs, ev.CPU, ev.Pid, string(ev.Kind)); err != nil {
			r.logger.Error("insert trace event", "seq", ev.Seq, "error", err)
		}
	}
	if err := tx.Commit(); err != nil {
		r.logger.Error("commit trace tx", "error", err)
	}
}

// CountEvents returns the number of stored events for a run in the trace
// database at path. The recorder that produced the run must be closed
// first so its final batch is flushed.
func CountEvents(path, runID string) (int, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, fmt.Errorf("open trace db %s: %w", path, err)
	}
	defer db.Close()

	var n int
	err = db.QueryRow("SELECT COUNT(*) FROM sched_events WHERE run_id = ?", runID).Scan(&n)
	return n, err
}
