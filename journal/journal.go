// Package journal records interpreter runs in a SQLite database: which image
// ran, how it ended, and the sequence of pcs it executed.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	image      TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	status     INTEGER NOT NULL,
	fault      TEXT NOT NULL DEFAULT '',
	steps      INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS trace (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq    INTEGER NOT NULL,
	pc     INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
)`,
}

// Run is one recorded execution.
type Run struct {
	ID      uuid.UUID
	Image   string
	Started time.Time
	Status  bool
	Fault   string // empty unless the run faulted
	Steps   uint64
	Trace   []int // nil in List results
}

// Faulted reports whether the run stopped on a fault.
func (r *Run) Faulted() bool { return r.Fault != "" }

// Journal is a SQLite-backed run store. It is safe for concurrent use.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  commonlog.Logger
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	j := &Journal{
		db:   db,
		path: path,
		log:  commonlog.GetLogger("slotvm.journal"),
	}
	j.log.Debugf("opened journal %s", path)
	return j, nil
}

// Path returns the database path the journal was opened with.
func (j *Journal) Path() string { return j.path }

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record stores run and its trace. A nil ID is replaced with a fresh one and
// a zero Started time with the current time; both are written back to run.
func (j *Journal) Record(run *Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Started.IsZero() {
		run.Started = time.Now().UTC()
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, image, started_at, status, fault, steps) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID.String(), run.Image, run.Started.UnixNano(), run.Status, run.Fault, int64(run.Steps),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	if len(run.Trace) > 0 {
		stmt, err := tx.Prepare("INSERT INTO trace (run_id, seq, pc) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing trace insert: %w", err)
		}
		defer stmt.Close()
		for seq, pc := range run.Trace {
			if _, err := stmt.Exec(run.ID.String(), seq, pc); err != nil {
				return fmt.Errorf("saving trace step %d: %w", seq, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	j.log.Debugf("recorded run %s of %s (%d steps, %d traced)", run.ID, run.Image, run.Steps, len(run.Trace))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		id      string
		started int64
		steps   int64
		r       Run
	)
	if err := row.Scan(&id, &r.Image, &started, &r.Status, &r.Fault, &steps); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing run id %q: %w", id, err)
	}
	r.ID = parsed
	r.Started = time.Unix(0, started).UTC()
	r.Steps = uint64(steps)
	return &r, nil
}

// Get loads a run and its trace.
func (j *Journal) Get(id uuid.UUID) (*Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	r, err := scanRun(j.db.QueryRow(
		"SELECT id, image, started_at, status, fault, steps FROM runs WHERE id = ?", id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	rows, err := j.db.Query("SELECT pc FROM trace WHERE run_id = ? ORDER BY seq", id.String())
	if err != nil {
		return nil, fmt.Errorf("querying trace: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pc int
		if err := rows.Scan(&pc); err != nil {
			return nil, fmt.Errorf("scanning trace: %w", err)
		}
		r.Trace = append(r.Trace, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return r, nil
}

// List returns up to limit runs, newest first, without their traces. A
// limit of zero or less returns every run.
func (j *Journal) List(limit int) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		"SELECT id, image, started_at, status, fault, steps FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run and its trace.
func (j *Journal) Delete(id uuid.UUID) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM trace WHERE run_id = ?", id.String()); err != nil {
		return fmt.Errorf("deleting trace: %w", err)
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}
