package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evrenbal/tickstream/internal/model"
)

// TickStore provides read access to persisted ticks.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a TickStore on the given pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

// Ping verifies the underlying connection.
func (s *TickStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecentTicks returns the latest ticks across all symbols, newest first.
func (s *TickStore) RecentTicks(ctx context.Context, limit int) ([]model.Tick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, price, COALESCE(volume, 0), ts, collected_at
		FROM ticks
		ORDER BY collected_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent ticks: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		if err := rows.Scan(&t.Symbol, &t.Price, &t.Volume, &t.Timestamp, &t.CollectedAt); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// TicksSince returns ticks collected after the cutoff, newest first, each
// joined with its 5-minute trailing moving average price. An empty symbol
// returns all symbols.
func (s *TickStore) TicksSince(ctx context.Context, symbol string, since time.Time) ([]model.PricePoint, error) {
	query := `
		SELECT symbol, price, COALESCE(volume, 0), ts, collected_at,
		       AVG(price) OVER (
		           PARTITION BY symbol ORDER BY collected_at
		           RANGE BETWEEN INTERVAL '5 minutes' PRECEDING AND CURRENT ROW
		       ) AS price_ma_5
		FROM ticks
		WHERE collected_at > $1`
	args := []any{since}
	if symbol != "" {
		query += ` AND symbol = $2`
		args = append(args, symbol)
	}
	query += ` ORDER BY collected_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ticks since %s: %w", since, err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Symbol, &p.Price, &p.Volume, &p.Timestamp, &p.CollectedAt, &p.PriceMA5); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Symbols returns the distinct symbols present in the ticks table.
func (s *TickStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM ticks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// TableStats summarizes the whole ticks table.
func (s *TickStore) TableStats(ctx context.Context) (model.TableStats, error) {
	var st model.TableStats
	var first, last *time.Time

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT symbol),
			COALESCE(AVG(price), 0),
			COALESCE(MIN(price), 0),
			COALESCE(MAX(price), 0),
			COALESCE(AVG(volume), 0),
			MIN(collected_at),
			MAX(collected_at)
		FROM ticks`).Scan(
		&st.TotalRecords,
		&st.UniqueSymbols,
		&st.AvgPrice,
		&st.MinPrice,
		&st.MaxPrice,
		&st.AvgVolume,
		&first,
		&last,
	)
	if err != nil {
		return model.TableStats{}, fmt.Errorf("query table stats: %w", err)
	}

	if first != nil {
		st.FirstRecord = *first
	}
	if last != nil {
		st.LastRecord = *last
	}
	return st, nil
}

// SymbolStats summarizes persisted ticks per symbol.
func (s *TickStore) SymbolStats(ctx context.Context) ([]model.SymbolStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, COUNT(*), AVG(price), MIN(price), MAX(price)
		FROM ticks
		GROUP BY symbol
		ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbol stats: %w", err)
	}
	defer rows.Close()

	var stats []model.SymbolStats
	for rows.Next() {
		var st model.SymbolStats
		if err := rows.Scan(&st.Symbol, &st.Count, &st.AvgPrice, &st.MinPrice, &st.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan symbol stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
