// Package dashboard serves a read-only view of collected ticks.
//
// It exposes a small HTML page with auto-refresh plus JSON endpoints
// backed by the ticks table: recent points with a trailing moving
// average, the distinct symbol list, and aggregate table statistics.
package dashboard
