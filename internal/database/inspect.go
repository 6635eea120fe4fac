package database

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evrenbal/tickstream/internal/model"
)

// Report aggregates the data-quality inspection of the ticks table.
type Report struct {
	Table   model.TableStats
	Symbols []model.SymbolStats
	Issues  []string
	Gaps    []model.Gap
}

// Inspect runs the quality checks concurrently and aggregates the results.
// gapThreshold is the largest acceptable silence per symbol before it
// counts as a missing period.
func (s *TickStore) Inspect(ctx context.Context, gapThreshold time.Duration) (*Report, error) {
	var report Report

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st, err := s.TableStats(ctx)
		if err != nil {
			return err
		}
		report.Table = st
		return nil
	})

	g.Go(func() error {
		st, err := s.SymbolStats(ctx)
		if err != nil {
			return err
		}
		report.Symbols = st
		return nil
	})

	g.Go(func() error {
		issues, err := s.QualityIssues(ctx)
		if err != nil {
			return err
		}
		report.Issues = issues
		return nil
	})

	g.Go(func() error {
		gaps, err := s.MissingPeriods(ctx, gapThreshold)
		if err != nil {
			return err
		}
		report.Gaps = gaps
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &report, nil
}

// QualityIssues runs basic sanity checks and describes any findings.
func (s *TickStore) QualityIssues(ctx context.Context) ([]string, error) {
	var issues []string

	var nullCount int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM ticks
		WHERE price IS NULL OR symbol IS NULL`).Scan(&nullCount)
	if err != nil {
		return nil, fmt.Errorf("null check: %w", err)
	}
	if nullCount > 0 {
		issues = append(issues, fmt.Sprintf("%d rows with null price or symbol", nullCount))
	}

	var negPrices int64
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ticks WHERE price < 0`).Scan(&negPrices)
	if err != nil {
		return nil, fmt.Errorf("negative price check: %w", err)
	}
	if negPrices > 0 {
		issues = append(issues, fmt.Sprintf("%d rows with negative prices", negPrices))
	}

	// Average gap between consecutive collections per symbol.
	var avgSeconds *float64
	err = s.pool.QueryRow(ctx, `
		WITH diffs AS (
			SELECT EXTRACT(EPOCH FROM
				collected_at - LAG(collected_at)
				OVER (PARTITION BY symbol ORDER BY collected_at)
			)::float8 AS diff_seconds
			FROM ticks
		)
		SELECT AVG(diff_seconds) FROM diffs WHERE diff_seconds IS NOT NULL`).Scan(&avgSeconds)
	if err != nil {
		return nil, fmt.Errorf("cadence check: %w", err)
	}
	if avgSeconds != nil && *avgSeconds > 5 {
		issues = append(issues, fmt.Sprintf("average collection cadence is slow: %.1fs between ticks", *avgSeconds))
	}

	return issues, nil
}

// MissingPeriods finds spans per symbol with no data for longer than the
// threshold.
func (s *TickStore) MissingPeriods(ctx context.Context, threshold time.Duration) ([]model.Gap, error) {
	rows, err := s.pool.Query(ctx, `
		WITH spans AS (
			SELECT symbol, collected_at,
			       LEAD(collected_at) OVER (
			           PARTITION BY symbol ORDER BY collected_at
			       ) AS next_at
			FROM ticks
		)
		SELECT symbol, collected_at, next_at
		FROM spans
		WHERE next_at IS NOT NULL
		AND next_at - collected_at > $1
		ORDER BY symbol, collected_at`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query missing periods: %w", err)
	}
	defer rows.Close()

	var gaps []model.Gap
	for rows.Next() {
		var g model.Gap
		if err := rows.Scan(&g.Symbol, &g.Start, &g.End); err != nil {
			return nil, fmt.Errorf("scan gap: %w", err)
		}
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}
