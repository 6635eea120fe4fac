// Package database provides PostgreSQL access for the tick store.
//
// It owns the pgx connection pool, the ticks table schema (creation and
// reset), the read queries backing the dashboard, and the data-quality
// inspection used by the dbcheck command.
package database
