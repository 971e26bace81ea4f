// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists search run summaries in a local SQLite database
// for the history subcommands.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/grant-engine/pkg/types"
)

const dbFile = "history.db"

// ErrNotFound is returned when no run matches the requested id.
var ErrNotFound = errors.New("run not found")

// Run summarizes one executed search. Envelope is the full result snapshot;
// List leaves it unset and only Show loads it.
type Run struct {
	ID        string          `json:"id" yaml:"id"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	Query     types.Query     `json:"query" yaml:"query"`
	Grants    int             `json:"grants" yaml:"grants"`
	Succeeded []string        `json:"sources_succeeded" yaml:"sources_succeeded"`
	Failed    []string        `json:"sources_failed,omitempty" yaml:"sources_failed,omitempty"`
	Partial   bool            `json:"partial" yaml:"partial"`
	CacheHit  bool            `json:"cache_hit" yaml:"cache_hit"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
	Envelope  *types.Envelope `json:"envelope,omitempty" yaml:"envelope,omitempty"`
}

// Store manages the search history SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at dir/history.db,
// creating the schema if needed.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
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
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			query TEXT NOT NULL,
			grants INTEGER NOT NULL,
			sources_succeeded TEXT,
			sources_failed TEXT,
			partial INTEGER NOT NULL,
			cache_hit INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			envelope TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts a run and returns its id, generating one when unset.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	queryJSON, err := json.Marshal(run.Query)
	if err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}
	succeededJSON, _ := json.Marshal(run.Succeeded)
	failedJSON, _ := json.Marshal(run.Failed)

	envelopeJSON := ""
	if run.Envelope != nil {
		b, err := json.Marshal(run.Envelope)
		if err != nil {
			return "", fmt.Errorf("encoding envelope: %w", err)
		}
		envelopeJSON = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, query, grants, sources_succeeded, sources_failed, partial, cache_hit, duration_ms, envelope)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), string(queryJSON), run.Grants,
		string(succeededJSON), string(failedJSON),
		boolToInt(run.Partial), boolToInt(run.CacheHit), run.Duration.Milliseconds(),
		envelopeJSON,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return run.ID, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, query, grants, sources_succeeded, sources_failed, partial, cache_hit, duration_ms
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Show returns the run with the given id. A unique id prefix works too.
func (s *Store) Show(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, query, grants, sources_succeeded, sources_failed, partial, cache_hit, duration_ms, envelope
		 FROM runs WHERE id = ? OR id LIKE ? LIMIT 2`, id, id+"%")
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows, true)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("id prefix %q is ambiguous", id)
	}
}

// Prune deletes all but the newest keep runs, returning how many went.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned runs: %w", err)
	}
	return int(n), nil
}

func scanRun(rows *sql.Rows, withEnvelope bool) (Run, error) {
	var run Run
	var createdAt, queryJSON, succeededJSON, failedJSON string
	var envelopeJSON sql.NullString
	var partial, cacheHit int
	var durationMS int64

	dest := []any{&run.ID, &createdAt, &queryJSON, &run.Grants,
		&succeededJSON, &failedJSON, &partial, &cacheHit, &durationMS}
	if withEnvelope {
		dest = append(dest, &envelopeJSON)
	}
	if err := rows.Scan(dest...); err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	if envelopeJSON.Valid && envelopeJSON.String != "" {
		var env types.Envelope
		if err := json.Unmarshal([]byte(envelopeJSON.String), &env); err != nil {
			return Run{}, fmt.Errorf("decoding envelope for run %s: %w", run.ID, err)
		}
		run.Envelope = &env
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		run.CreatedAt = t
	}
	if err := json.Unmarshal([]byte(queryJSON), &run.Query); err != nil {
		return Run{}, fmt.Errorf("decoding query for run %s: %w", run.ID, err)
	}
	json.Unmarshal([]byte(succeededJSON), &run.Succeeded)
	json.Unmarshal([]byte(failedJSON), &run.Failed)
	run.Partial = partial != 0
	run.CacheHit = cacheHit != 0
	run.Duration = time.Duration(durationMS) * time.Millisecond

	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
