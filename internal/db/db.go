// Package db mirrors the subset store catalogue and the run log into PostgreSQL.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the mirror tables when they are missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateRun records a new run and returns its ID
func (db *DB) CreateRun(ctx context.Context, id uuid.UUID, mode string, fonts []string) error {
	if fonts == nil {
		fonts = []string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO splitter_runs (id, mode, fonts, status)
		 VALUES ($1, $2, $3, $4)`,
		id, mode, fonts, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun stores the outcome of a run
func (db *DB) CompleteRun(ctx context.Context, id uuid.UUID, outcome RunOutcome) error {
	var summary []byte
	if outcome.Summary != nil {
		var err error
		summary, err = json.Marshal(outcome.Summary)
		if err != nil {
			return fmt.Errorf("failed to marshal run summary: %w", err)
		}
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE splitter_runs
		 SET status = $1, subsets = $2, diagnostics = $3, summary = $4, completed_at = NOW()
		 WHERE id = $5`,
		outcome.Status, outcome.Subsets, outcome.Diagnostics, summary, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun retrieves a run by ID, nil when it does not exist
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, mode, fonts, status, subsets, diagnostics, summary, created_at, completed_at
		 FROM splitter_runs WHERE id = $1`,
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, mode, fonts, status, subsets, diagnostics, summary, created_at, completed_at
		 FROM splitter_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var summary []byte
	err := row.Scan(&run.ID, &run.Mode, &run.Fonts, &run.Status,
		&run.Subsets, &run.Diagnostics, &summary, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		run.Summary = json.RawMessage(summary)
	}
	return &run, nil
}
