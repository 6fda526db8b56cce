// Package database owns the pgx connection pool and schema bootstrap.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the sessions table if needed. Keeping the migration in
// code lets the binaries bootstrap a fresh database without extra tooling. The
// table holds live session state only; removed sessions leave no rows behind.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	height TEXT NOT NULL,
	weight TEXT NOT NULL,
	gender TEXT NOT NULL,
	media_id TEXT,
	media_name TEXT,
	media_size BIGINT,
	media_content_type TEXT,
	media_object_key TEXT,
	intake_status TEXT NOT NULL,
	upload_progress INT NOT NULL DEFAULT 0,
	rejection TEXT,
	analysis_status TEXT NOT NULL,
	analysis_message TEXT,
	result JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
