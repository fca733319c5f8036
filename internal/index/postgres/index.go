// Package postgres maintains a Postgres index of saved decision records and
// of the crawl runs that produced them.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/legal-decisions-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "decisions"

// Config controls the Postgres connection pool used for index rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Index writes one row per saved record into <table> and one row per crawl
// into <table>_runs.
type Index struct {
	pool  execCloser
	table string
}

// New creates a pgx pool from cfg.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("index.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Index{pool: pool, table: table}, nil
}

// NewWithPool constructs an index from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Index, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Index{pool: pool, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (x *Index) Close() {
	if x == nil || x.pool == nil {
		return
	}
	x.pool.Close()
}

// EnsureSchema creates the index tables when they are missing.
func (x *Index) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	job            TEXT NOT NULL,
	key            TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	url            TEXT NOT NULL,
	uri            TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	court          TEXT NOT NULL DEFAULT '',
	decision_style TEXT NOT NULL DEFAULT '',
	decision_date  TEXT NOT NULL DEFAULT '',
	file_number    TEXT NOT NULL DEFAULT '',
	saved_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job, key)
)`, x.table),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s_runs (
	run_id        TEXT PRIMARY KEY,
	job           TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	listing_pages BIGINT NOT NULL DEFAULT 0,
	detail_pages  BIGINT NOT NULL DEFAULT 0,
	saved         BIGINT NOT NULL DEFAULT 0,
	skipped       BIGINT NOT NULL DEFAULT 0,
	fetch_errors  BIGINT NOT NULL DEFAULT 0,
	error         TEXT
)`, x.table),
	}
	for _, stmt := range stmts {
		if _, err := x.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Upsert records a saved decision. A later save of the same key within a job
// replaces the row, matching the overwrite semantics of the record files.
func (x *Index) Upsert(ctx context.Context, rec crawler.SavedRecord) error {
	if rec.Summary.Key == "" {
		return fmt.Errorf("record key is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job,
	key,
	run_id,
	url,
	uri,
	title,
	court,
	decision_style,
	decision_date,
	file_number,
	saved_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (job, key) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	url = EXCLUDED.url,
	uri = EXCLUDED.uri,
	title = EXCLUDED.title,
	court = EXCLUDED.court,
	decision_style = EXCLUDED.decision_style,
	decision_date = EXCLUDED.decision_date,
	file_number = EXCLUDED.file_number,
	saved_at = EXCLUDED.saved_at`, x.table)

	s := rec.Summary
	args := []any{
		rec.Job,
		s.Key,
		rec.RunID,
		rec.URL,
		rec.URI,
		s.Title,
		s.Court,
		s.DecisionStyle,
		s.Date,
		s.FileNumber,
		rec.SavedAt,
	}
	if _, err := x.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert decision: %w", err)
	}
	return nil
}

// StartRun inserts the row for a new crawl run.
func (x *Index) StartRun(ctx context.Context, runID, job string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s_runs (run_id, job, started_at)
VALUES ($1, $2, $3)
ON CONFLICT (run_id) DO NOTHING`, x.table)
	if _, err := x.pool.Exec(ctx, query, runID, job, startedAt); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a crawl run. errMsg is nil for runs
// that completed normally.
func (x *Index) FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats crawler.Stats, errMsg *string) error {
	query := fmt.Sprintf(`
UPDATE %s_runs
SET finished_at = $2,
	listing_pages = $3,
	detail_pages = $4,
	saved = $5,
	skipped = $6,
	fetch_errors = $7,
	error = $8
WHERE run_id = $1`, x.table)
	args := []any{
		runID,
		finishedAt,
		stats.ListingPages,
		stats.DetailPages,
		stats.Saved,
		stats.Skipped,
		stats.FetchErrors,
		errMsg,
	}
	if _, err := x.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
