// Package writer implements the batch writer that persists ticks.
//
// The writer drains the tick queue, accumulates rows, and flushes them to
// the ticks table with pgx batches. Rows are append-only; no update path
// exists.
package writer
