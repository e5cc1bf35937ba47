// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records finished batch reports in a SQLite database so
// they can be listed and reprinted later. It is an audit log; nothing is
// resumed from it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrNotFound is returned by Get for an unknown batch ID.
var ErrNotFound = errors.New("batch not found")

const (
	defaultListLimit = 20

	// timeLayout is fixed-width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Run summarises one recorded batch.
type Run struct {
	BatchID      string    `json:"batch_id" yaml:"batch_id"`
	OutputDir    string    `json:"output_dir" yaml:"output_dir"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
	Total        int       `json:"total" yaml:"total"`
	SuccessCount int       `json:"success_count" yaml:"success_count"`
	FailureCount int       `json:"failure_count" yaml:"failure_count"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			batch_id TEXT PRIMARY KEY,
			output_dir TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			total INTEGER NOT NULL,
			success_count INTEGER NOT NULL,
			failure_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			batch_id TEXT NOT NULL REFERENCES runs(batch_id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			seq INTEGER NOT NULL,
			original TEXT NOT NULL,
			output TEXT,
			error TEXT,
			PRIMARY KEY (batch_id, status, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save records r in a single transaction. Saving the same batch ID twice
// is an error.
func (s *Store) Save(ctx context.Context, r types.Report) error {
	if r.BatchID == "" {
		return fmt.Errorf("saving report: batch ID is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (batch_id, output_dir, started_at, finished_at, total, success_count, failure_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.BatchID, r.OutputDir, formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.Total, r.SuccessCount, r.FailureCount,
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", r.BatchID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (batch_id, status, seq, original, output, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range r.Successes {
		if _, err := stmt.ExecContext(ctx, r.BatchID, string(types.OutcomeSucceeded), i, e.Original, e.Output, nil); err != nil {
			return fmt.Errorf("inserting outcome %s: %w", e.Original, err)
		}
	}
	for i, e := range r.Failures {
		if _, err := stmt.ExecContext(ctx, r.BatchID, string(types.OutcomeFailed), i, e.Original, nil, e.Error); err != nil {
			return fmt.Errorf("inserting outcome %s: %w", e.Original, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", r.BatchID, err)
	}
	return nil
}

// List returns up to limit runs, newest first. A non-positive limit uses
// the default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, output_dir, started_at, finished_at, total, success_count, failure_count
		 FROM runs ORDER BY started_at DESC, batch_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Get rebuilds the Report recorded for batchID, with successes and
// failures in the order they were saved.
func (s *Store) Get(ctx context.Context, batchID string) (types.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT batch_id, output_dir, started_at, finished_at, total, success_count, failure_count
		 FROM runs WHERE batch_id = ?`, batchID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Report{}, fmt.Errorf("%w: %s", ErrNotFound, batchID)
	}
	if err != nil {
		return types.Report{}, err
	}

	r := types.Report{
		BatchID:      run.BatchID,
		OutputDir:    run.OutputDir,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Total:        run.Total,
		SuccessCount: run.SuccessCount,
		FailureCount: run.FailureCount,
		Successes:    []types.SuccessEntry{},
		Failures:     []types.FailureEntry{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, original, COALESCE(output, ''), COALESCE(error, '')
		 FROM outcomes WHERE batch_id = ? ORDER BY status, seq`, batchID)
	if err != nil {
		return types.Report{}, fmt.Errorf("reading outcomes for %s: %w", batchID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, original, output, errMsg string
		if err := rows.Scan(&status, &original, &output, &errMsg); err != nil {
			return types.Report{}, fmt.Errorf("scanning outcome: %w", err)
		}
		if types.OutcomeStatus(status) == types.OutcomeSucceeded {
			r.Successes = append(r.Successes, types.SuccessEntry{Original: original, Output: output})
		} else {
			r.Failures = append(r.Failures, types.FailureEntry{Original: original, Error: errMsg})
		}
	}
	if err := rows.Err(); err != nil {
		return types.Report{}, fmt.Errorf("reading outcomes for %s: %w", batchID, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := sc.Scan(&run.BatchID, &run.OutputDir, &started, &finished,
		&run.Total, &run.SuccessCount, &run.FailureCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
