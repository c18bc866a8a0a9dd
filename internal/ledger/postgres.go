// Package ledger provides Postgres-backed persistence of run outcomes.
package ledger

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for the run ledger.
type Config struct {
	DSN             string
	RunsTable       string
	OutcomesTable   string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// RunSummary is one finished run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	TotalItems int
	Succeeded  int
	NotFound   int
	Failed     int
	Rounds     int
}

// OutcomeRow is one item's terminal outcome within a run.
type OutcomeRow struct {
	RunID  string
	Row    int
	URL    string
	Kind   string
	Reason string
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes run summaries and terminal outcomes into Postgres.
type Store struct {
	pool          execCloser
	runsTable     string
	outcomesTable string
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newStore(pool, cfg.RunsTable, cfg.OutcomesTable)
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool execCloser, runsTable, outcomesTable string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newStore(pool, runsTable, outcomesTable)
}

func newStore(pool execCloser, runsTable, outcomesTable string) (*Store, error) {
	if runsTable == "" {
		runsTable = "scrape_runs"
	}
	if outcomesTable == "" {
		outcomesTable = "scrape_outcomes"
	}
	if !validTableName.MatchString(runsTable) {
		return nil, fmt.Errorf("invalid table name %q", runsTable)
	}
	if !validTableName.MatchString(outcomesTable) {
		return nil, fmt.Errorf("invalid table name %q", outcomesTable)
	}
	return &Store{pool: pool, runsTable: runsTable, outcomesTable: outcomesTable}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordRun inserts one run-summary row.
func (s *Store) RecordRun(ctx context.Context, summary RunSummary) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger store is not configured")
	}
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (run_id, started_at, finished_at, total_items, succeeded, not_found, failed, rounds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.runsTable,
	)
	if _, err := s.pool.Exec(ctx, query,
		summary.RunID,
		summary.StartedAt,
		summary.FinishedAt,
		summary.TotalItems,
		summary.Succeeded,
		summary.NotFound,
		summary.Failed,
		summary.Rounds,
	); err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// RecordOutcomes inserts one row per terminal outcome.
func (s *Store) RecordOutcomes(ctx context.Context, rows []OutcomeRow) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger store is not configured")
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (run_id, row_index, url, kind, reason) VALUES ($1, $2, $3, $4, $5)`,
		s.outcomesTable,
	)
	for _, row := range rows {
		if _, err := s.pool.Exec(ctx, query, row.RunID, row.Row, row.URL, row.Kind, row.Reason); err != nil {
			return fmt.Errorf("insert outcome row %d: %w", row.Row, err)
		}
	}
	return nil
}
