package bibcache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/bibtex/bib"
	"github.com/chazu/bibtex/engine"
	"github.com/chazu/bibtex/history"
)

var log = commonlog.GetLogger("bibtex.cache")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	key     TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	data    BLOB NOT NULL,
	created INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	aux        TEXT NOT NULL,
	style      TEXT NOT NULL,
	level      INTEGER NOT NULL,
	warnings   INTEGER NOT NULL,
	errors     INTEGER NOT NULL,
	entries    INTEGER NOT NULL,
	cache_hits INTEGER NOT NULL,
	started    INTEGER NOT NULL,
	elapsed_us INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started ON runs (started);
`

// Store is a sqlite database of snapshots and run records. It implements
// engine.Cache.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the store at path. The path ":memory:" gives a
// private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection, so that an in-memory database is shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	log.Debugf("opened cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns where the store lives.
func (s *Store) Path() string {
	return s.path
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// Get returns the snapshot stored for this parse, or nil.
func (s *Store) Get(name string, data []byte, env []bib.MacroDef) (*bib.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob []byte
	err := s.db.QueryRow("SELECT data FROM snapshots WHERE key = ?", Key(name, data, env)).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return UnmarshalSnapshot(blob)
}

// Put stores the snapshot of a parse, replacing any earlier one.
func (s *Store) Put(name string, data []byte, env []bib.MacroDef, snap *bib.Snapshot) error {
	blob, err := MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO snapshots (key, name, data, created) VALUES (?, ?, ?, ?)",
		Key(name, data, env), name, blob, time.Now().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// Prune deletes snapshots created before cutoff and returns how many were
// removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM snapshots WHERE created < ?", cutoff.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Snapshots returns how many snapshots are stored.
func (s *Store) Snapshots() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

// Run is one recorded invocation.
type Run struct {
	ID        string
	Aux       string
	Style     string
	Level     history.Level
	Warnings  int
	Errors    int
	Entries   int
	CacheHits int
	Started   time.Time
	Elapsed   time.Duration
}

func (r Run) String() string {
	return fmt.Sprintf("%s  %s  %-16s %s (%d warnings, %d errors, %d entries, %s)",
		r.Started.Format(time.DateTime), r.ID[:8], r.Aux, r.Level, r.Warnings, r.Errors, r.Entries, r.Elapsed.Round(time.Millisecond))
}

// RecordRun stores the report of a finished run and returns its id.
func (s *Store) RecordRun(r engine.Report) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, aux, style, level, warnings, errors, entries, cache_hits, started, elapsed_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Aux, r.Style, int(r.Level), r.Warnings, r.Errors, r.Entries, r.CacheHits,
		r.Started.UnixMicro(), r.Elapsed.Microseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	return id, nil
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, aux, style, level, warnings, errors, entries, cache_hits, started, elapsed_us
		FROM runs ORDER BY started DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var level int
		var started, elapsed int64
		if err := rows.Scan(&r.ID, &r.Aux, &r.Style, &level, &r.Warnings, &r.Errors,
			&r.Entries, &r.CacheHits, &started, &elapsed); err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		r.Level = history.Level(level)
		r.Started = time.UnixMicro(started)
		r.Elapsed = time.Duration(elapsed) * time.Microsecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
