// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of pipeline runs: what was
// ingested, what title it resolved to, where the digest went, and how
// each run ended.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultFile is the database file name used when no path is configured.
const DefaultFile = "paper-digest.db"

// defaultListLimit bounds List when the caller passes no limit.
const defaultListLimit = 50

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Status is the terminal state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one ledger row.
type Run struct {
	ID             string    `json:"id" yaml:"id"`
	InputURL       string    `json:"input_url" yaml:"input_url"`
	Kind           string    `json:"kind" yaml:"kind"`
	Title          string    `json:"title" yaml:"title"`
	SanitizedTitle string    `json:"sanitized_title" yaml:"sanitized_title"`
	RecordID       string    `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	RecordURL      string    `json:"record_url,omitempty" yaml:"record_url,omitempty"`
	DigestPath     string    `json:"digest_path,omitempty" yaml:"digest_path,omitempty"`
	Status         Status    `json:"status" yaml:"status"`
	Error          string    `json:"error,omitempty" yaml:"error,omitempty"`
	FigureCount    int       `json:"figure_count" yaml:"figure_count"`
	BlockCount     int       `json:"block_count" yaml:"block_count"`
	Truncated      bool      `json:"truncated" yaml:"truncated"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Elapsed returns the run duration, or zero while it is still running.
func (r Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store wraps the SQLite run history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the ledger database described by cfg. root is
// used to place the default file when cfg.Path is empty.
func Open(cfg types.LedgerConfig, root string) (*Store, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = filepath.Join(root, DefaultFile)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; concurrent runs queue on the pool.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			input_url       TEXT NOT NULL,
			kind            TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL DEFAULT '',
			sanitized_title TEXT NOT NULL DEFAULT '',
			record_id       TEXT NOT NULL DEFAULT '',
			record_url      TEXT NOT NULL DEFAULT '',
			digest_path     TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			error           TEXT NOT NULL DEFAULT '',
			figure_count    INTEGER NOT NULL DEFAULT 0,
			block_count     INTEGER NOT NULL DEFAULT 0,
			truncated       INTEGER NOT NULL DEFAULT 0,
			started_at      TEXT NOT NULL,
			finished_at     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_title ON runs(sanitized_title)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Start inserts a running row for inputURL and returns its ID.
func (s *Store) Start(ctx context.Context, inputURL string, kind types.SourceKind) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_url, kind, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, inputURL, string(kind), string(StatusRunning), formatTime(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// Finish records the outcome of run. The run's ID must come from Start;
// Status is derived from Error when left empty.
func (s *Store) Finish(ctx context.Context, run Run) error {
	if run.Status == "" || run.Status == StatusRunning {
		run.Status = StatusSucceeded
		if run.Error != "" {
			run.Status = StatusFailed
		}
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
			title=?, sanitized_title=?, record_id=?, record_url=?, digest_path=?,
			status=?, error=?, figure_count=?, block_count=?, truncated=?, finished_at=?
		 WHERE id = ?`,
		run.Title, run.SanitizedTitle, run.RecordID, run.RecordURL, run.DigestPath,
		string(run.Status), run.Error, run.FigureCount, run.BlockCount, boolInt(run.Truncated),
		formatTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

const selectRun = `SELECT id, input_url, kind, title, sanitized_title, record_id, record_url,
	digest_path, status, error, figure_count, block_count, truncated, started_at, finished_at
	FROM runs`

// Get returns one run by ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestForTitle returns the most recent successful run for a sanitized
// title, if any.
func (s *Store) LatestForTitle(ctx context.Context, sanitized string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx,
		selectRun+` WHERE sanitized_title = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		sanitized, string(StatusSucceeded))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run               Run
		status            string
		truncated         int
		started, finished string
	)
	err := sc.Scan(&run.ID, &run.InputURL, &run.Kind, &run.Title, &run.SanitizedTitle,
		&run.RecordID, &run.RecordURL, &run.DigestPath, &status, &run.Error,
		&run.FigureCount, &run.BlockCount, &truncated, &started, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	run.Status = Status(status)
	run.Truncated = truncated != 0
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
