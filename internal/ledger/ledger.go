// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records completed assembly runs in a local SQLite
// database so prior packages can be listed and compared.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

const defaultListLimit = 20

// Run is one recorded package assembly.
type Run struct {
	ID              int64           `json:"id" yaml:"id"`
	Ticker          string          `json:"ticker" yaml:"ticker"`
	CIK             string          `json:"cik" yaml:"cik"`
	CompanyName     string          `json:"company_name" yaml:"company_name"`
	OutputDir       string          `json:"output_dir" yaml:"output_dir"`
	Downloaded      int             `json:"downloaded" yaml:"downloaded"`
	Skipped         int             `json:"skipped" yaml:"skipped"`
	TotalCandidates int             `json:"total_candidates" yaml:"total_candidates"`
	Merged          bool            `json:"merged" yaml:"merged"`
	StartedAt       time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time       `json:"finished_at" yaml:"finished_at"`
	Categories      []CategoryCount `json:"categories" yaml:"categories"`
}

// CategoryCount is a per-category download tally within a run.
type CategoryCount struct {
	Category   types.FilingCategory `json:"category" yaml:"category"`
	Downloaded int                  `json:"downloaded" yaml:"downloaded"`
	Candidates int                  `json:"candidates" yaml:"candidates"`
}

// Store manages the run-history SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database, creating the schema when it
// does not exist.
func Open(cfg types.LedgerConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = "diligence.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL,
			cik TEXT NOT NULL,
			company_name TEXT,
			output_dir TEXT NOT NULL,
			downloaded INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			total_candidates INTEGER NOT NULL,
			merged INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker)`,
		`CREATE TABLE IF NOT EXISTS run_categories (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			category TEXT NOT NULL,
			downloaded INTEGER NOT NULL,
			candidates INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_categories_run_id ON run_categories(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun inserts a completed run with its per-category tallies and
// returns the new run's id.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (ticker, cik, company_name, output_dir, downloaded,
			skipped, total_candidates, merged, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(run.Ticker), run.CIK, run.CompanyName, run.OutputDir,
		run.Downloaded, run.Skipped, run.TotalCandidates, boolInt(run.Merged),
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, c := range run.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_categories (run_id, category, downloaded, candidates)
			VALUES (?, ?, ?, ?)`,
			runID, string(c.Category), c.Downloaded, c.Candidates); err != nil {
			return 0, fmt.Errorf("inserting category tally: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit uses the default.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.queryRuns(ctx, "", limit)
}

// RunsForTicker returns the most recent runs for one ticker, newest first.
func (s *Store) RunsForTicker(ctx context.Context, ticker string, limit int) ([]Run, error) {
	return s.queryRuns(ctx, strings.ToUpper(strings.TrimSpace(ticker)), limit)
}

// Run fetches one recorded run by id.
func (s *Store) Run(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ticker, cik, company_name, output_dir, downloaded,
			skipped, total_candidates, merged, started_at, finished_at
		FROM runs WHERE id = ?`, id)

	var (
		r                     Run
		merged                int
		startedAt, finishedAt string
	)
	err := row.Scan(&r.ID, &r.Ticker, &r.CIK, &r.CompanyName, &r.OutputDir,
		&r.Downloaded, &r.Skipped, &r.TotalCandidates, &merged, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %d: %w", id, err)
	}
	r.Merged = merged != 0
	r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	r.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)

	cats, err := s.loadCategories(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Categories = cats
	return &r, nil
}

func (s *Store) queryRuns(ctx context.Context, ticker string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT id, ticker, cik, company_name, output_dir, downloaded,
			skipped, total_candidates, merged, started_at, finished_at
		FROM runs`)
	if ticker != "" {
		qb.WriteString(` WHERE ticker = ?`)
		args = append(args, ticker)
	}
	qb.WriteString(` ORDER BY finished_at DESC, id DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                     Run
			merged                int
			startedAt, finishedAt string
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &r.CIK, &r.CompanyName,
			&r.OutputDir, &r.Downloaded, &r.Skipped, &r.TotalCandidates,
			&merged, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Merged = merged != 0
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	for i := range runs {
		cats, err := s.loadCategories(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Categories = cats
	}
	return runs, nil
}

func (s *Store) loadCategories(ctx context.Context, runID int64) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, downloaded, candidates
		FROM run_categories WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying category tallies: %w", err)
	}
	defer rows.Close()

	var cats []CategoryCount
	for rows.Next() {
		var (
			c        CategoryCount
			category string
		)
		if err := rows.Scan(&category, &c.Downloaded, &c.Candidates); err != nil {
			return nil, fmt.Errorf("scanning category tally: %w", err)
		}
		c.Category = types.FilingCategory(category)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
