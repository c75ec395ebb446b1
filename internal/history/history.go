// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite ledger of index builds: one row per run
// plus one row per processed source.
package history

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

	"github.com/pdiddy/kbindex/pkg/types"
)

// DBFile is the ledger file name inside the data directory.
const DBFile = "history.db"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded build.
type Run struct {
	ID          string    `json:"id" yaml:"id"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`
	IndexPath   string    `json:"index_path" yaml:"index_path"`
	RootMissing bool      `json:"root_missing,omitempty" yaml:"root_missing,omitempty"`
	Indexed     int       `json:"indexed" yaml:"indexed"`
	Skipped     int       `json:"skipped" yaml:"skipped"`
	Failed      int       `json:"failed" yaml:"failed"`

	// Results is populated by Get only.
	Results []types.SourceResult `json:"results,omitempty" yaml:"results,omitempty"`
}

// Total returns the number of sources the run processed.
func (r Run) Total() int {
	return r.Indexed + r.Skipped + r.Failed
}

// Ledger is an open history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			index_path TEXT NOT NULL,
			root_missing INTEGER NOT NULL DEFAULT 0,
			indexed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS run_sources (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			kind TEXT NOT NULL,
			source_id TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			PRIMARY KEY (run_id, position)
		)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// newID is replaceable in tests.
var newID = uuid.NewString

// Record stores report under a fresh run ID and returns the stored run.
func (l *Ledger) Record(ctx context.Context, report *types.BuildReport) (Run, error) {
	run := Run{
		ID:          newID(),
		StartedAt:   report.StartedAt.UTC(),
		FinishedAt:  report.FinishedAt.UTC(),
		IndexPath:   report.IndexPath,
		RootMissing: report.RootMissing,
		Indexed:     report.Indexed,
		Skipped:     report.Skipped,
		Failed:      report.Failed,
		Results:     report.Results,
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, index_path, root_missing, indexed, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(timeLayout), run.FinishedAt.Format(timeLayout),
		run.IndexPath, run.RootMissing, run.Indexed, run.Skipped, run.Failed,
	)
	if err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_sources (run_id, position, kind, source_id, status, reason)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range report.Results {
		_, err := stmt.ExecContext(ctx, run.ID, i, string(r.Source.Kind), r.Source.ID, string(r.Status), r.Reason)
		if err != nil {
			return Run{}, fmt.Errorf("inserting result for %s: %w", r.Source.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("committing run: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first, without per-source results.
// A limit of zero or less returns every run.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, index_path, root_missing, indexed, skipped, failed
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
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

// Get returns one run with its per-source results. An unknown ID yields
// types.ErrNotFound.
func (l *Ledger) Get(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, index_path, root_missing, indexed, skipped, failed
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT kind, source_id, status, reason FROM run_sources WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      types.SourceResult
			reason sql.NullString
		)
		if err := rows.Scan(&r.Source.Kind, &r.Source.ID, &r.Status, &reason); err != nil {
			return Run{}, fmt.Errorf("scanning result: %w", err)
		}
		r.Reason = reason.String
		run.Results = append(run.Results, r)
	}
	return run, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run             Run
		started, finish string
	)
	err := s.Scan(&run.ID, &started, &finish, &run.IndexPath, &run.RootMissing, &run.Indexed, &run.Skipped, &run.Failed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finish); err != nil {
		return Run{}, fmt.Errorf("parsing finished_at: %w", err)
	}
	return run, nil
}
