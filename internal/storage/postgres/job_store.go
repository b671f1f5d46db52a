// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/jobradar/internal/jobs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type rowQuerier interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// JobStore writes normalized job records into Postgres. Rows are unique on
// (job_source_id, source); re-upserting an existing posting refreshes its
// mutable fields while keeping the original discovery date.
type JobStore struct {
	pool  rowQuerier
	table string
}

var _ jobs.Store = (*JobStore)(nil)

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
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
	return &JobStore{pool: pool, table: table}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool rowQuerier, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert inserts the record, or refreshes the mutable fields of an existing
// row with the same (job_source_id, source). date_found stays at the value
// of the first sighting. It reports whether a new row was created.
func (s *JobStore) Upsert(ctx context.Context, record jobs.Record) (bool, error) {
	if s == nil || s.pool == nil {
		return false, fmt.Errorf("job store is not configured")
	}
	if record.SourceID == "" || record.Source == "" {
		return false, fmt.Errorf("record source id and source are required")
	}
	tagsJSON, err := json.Marshal(normalizeTags(record.Tags))
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_source_id,
	source,
	title,
	company,
	location,
	salary,
	url,
	tags,
	date_posted,
	date_found,
	description,
	is_remote
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (job_source_id, source) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	location = EXCLUDED.location,
	salary = EXCLUDED.salary,
	url = EXCLUDED.url,
	tags = EXCLUDED.tags,
	date_posted = EXCLUDED.date_posted,
	description = EXCLUDED.description,
	is_remote = EXCLUDED.is_remote
RETURNING (xmax = 0) AS inserted`, s.table)

	args := []any{
		record.SourceID,
		record.Source,
		record.Title,
		record.Company,
		record.Location,
		record.Salary,
		record.URL,
		tagsJSON,
		record.DatePosted,
		record.DateFound,
		record.Description,
		record.Remote,
	}
	// xmax is zero on freshly inserted rows, non-zero when the conflict
	// branch updated an existing one.
	var inserted bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert job: %w", err)
	}
	return inserted, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	return append([]string(nil), tags...)
}
