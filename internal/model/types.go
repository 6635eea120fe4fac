package model

import "time"

// MaxSymbolLen is the widest symbol the ticks table accepts (varchar(10)).
const MaxSymbolLen = 10

// Tick represents a single trade observation for a symbol.
type Tick struct {
	Symbol      string    // Exchange ticker (e.g., "AAPL")
	Price       float64   // Trade price
	Volume      float64   // Trade volume (0 if the feed omitted it)
	Timestamp   time.Time // Exchange trade time
	CollectedAt time.Time // Local receive time
}

// SymbolStats summarizes persisted ticks for one symbol.
type SymbolStats struct {
	Symbol   string
	Count    int64
	AvgPrice float64
	MinPrice float64
	MaxPrice float64
}

// TableStats summarizes the whole ticks table.
type TableStats struct {
	TotalRecords  int64
	UniqueSymbols int64
	AvgPrice      float64
	MinPrice      float64
	MaxPrice      float64
	AvgVolume     float64
	FirstRecord   time.Time
	LastRecord    time.Time
}

// Gap is a span with no data for a symbol longer than the configured threshold.
type Gap struct {
	Symbol string
	Start  time.Time
	End    time.Time
}

// PricePoint is a tick joined with its trailing moving average, as served
// to the dashboard.
type PricePoint struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	Volume      float64   `json:"volume"`
	PriceMA5    float64   `json:"price_ma_5"`
	Timestamp   time.Time `json:"timestamp"`
	CollectedAt time.Time `json:"collected_at"`
}
