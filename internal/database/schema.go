package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTicksTable = `
	CREATE TABLE IF NOT EXISTS ticks (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(10) NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION,
		ts TIMESTAMPTZ NOT NULL,
		collected_at TIMESTAMPTZ NOT NULL
	)`

var createTickIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_ticks_symbol ON ticks(symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_ticks_ts ON ticks(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_ticks_collected_at ON ticks(collected_at)`,
}

// EnsureSchema creates the ticks table and its indexes if absent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createTicksTable); err != nil {
		return fmt.Errorf("create ticks table: %w", err)
	}
	for _, stmt := range createTickIndexes {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Reset drops and recreates the ticks table. Other backends connected to
// the database are terminated first so the drop does not block.
func Reset(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		SELECT pg_terminate_backend(pg_stat_activity.pid)
		FROM pg_stat_activity
		WHERE pg_stat_activity.datname = current_database()
		AND pid <> pg_backend_pid()`)
	if err != nil {
		return fmt.Errorf("terminate backends: %w", err)
	}

	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS ticks CASCADE`); err != nil {
		return fmt.Errorf("drop ticks table: %w", err)
	}

	return EnsureSchema(ctx, pool)
}

// TableExists reports whether a table exists in the public schema.
func TableExists(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return exists, nil
}

// ConnInfo describes a verified database connection.
type ConnInfo struct {
	Version    string
	TableCount int
}

// CheckConnection verifies the connection and returns server details.
func CheckConnection(ctx context.Context, pool *pgxpool.Pool) (ConnInfo, error) {
	var info ConnInfo

	if err := pool.QueryRow(ctx, `SELECT version()`).Scan(&info.Version); err != nil {
		return ConnInfo{}, fmt.Errorf("query server version: %w", err)
	}

	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'`).Scan(&info.TableCount)
	if err != nil {
		return ConnInfo{}, fmt.Errorf("count tables: %w", err)
	}

	return info, nil
}
