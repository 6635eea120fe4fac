// Package model defines shared data types used across the tick stream collector.
//
// Conventions:
//   - Prices and volumes: float64 as delivered by the feed (stored verbatim)
//   - Timestamp: exchange trade time; CollectedAt: local receive time
//   - Symbols: uppercase exchange tickers, at most 10 characters
package model
