package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evrenbal/tickstream/internal/metrics"
	"github.com/evrenbal/tickstream/internal/model"
	"github.com/evrenbal/tickstream/internal/queue"
)

// Config holds batch writer settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	}
}

// WriterMetrics contains writer counters.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
}

// TickWriter consumes ticks from the queue and writes them to the ticks table.
type TickWriter struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Input from the feed manager
	input *queue.TickQueue

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []tickRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterMetrics
}

// tickRow is a tick shaped for insertion.
type tickRow struct {
	Symbol      string
	Price       float64
	Volume      float64
	Timestamp   time.Time
	CollectedAt time.Time
}

// NewTickWriter creates a new TickWriter.
func NewTickWriter(cfg Config, input *queue.TickQueue, db *pgxpool.Pool, m *metrics.Metrics, logger *slog.Logger) *TickWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TickWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		metrics: m,
		logger:  logger,
		batch:   make([]tickRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming ticks and writing to the database.
func (w *TickWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("tick writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer. Anything still queued or
// batched is flushed on the caller's context; the internal context is
// already cancelled by then.
func (w *TickWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping tick writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("tick writer stop timed out")
	}

	// Final flush
	w.drainQueue()
	err := w.flush(ctx)

	w.logger.Info("tick writer stopped")
	return err
}

// Stats returns current metrics.
func (w *TickWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop drains the queue and accumulates batches.
func (w *TickWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		// Use TryGet with a context check for responsiveness
		tick, ok := w.input.TryGet()
		if ok {
			w.handleTick(tick)
			continue
		}

		select {
		case <-w.ctx.Done():
			// Anything left in the queue belongs to the final flush.
			w.drainQueue()
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// drainQueue moves whatever remains in the queue into the batch without
// triggering an insert, so Stop can flush it on a live context.
func (w *TickWriter) drainQueue() {
	for {
		tick, ok := w.input.TryGet()
		if !ok {
			return
		}
		row := w.transform(tick)
		w.batchMu.Lock()
		w.batch = append(w.batch, row)
		w.batchMu.Unlock()
	}
}

// flushLoop periodically flushes the batch.
func (w *TickWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleTick transforms and adds a tick to the batch.
func (w *TickWriter) handleTick(t model.Tick) {
	row := w.transform(t)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a model.Tick to a tickRow.
func (w *TickWriter) transform(t model.Tick) tickRow {
	return tickRow{
		Symbol:      t.Symbol,
		Price:       t.Price,
		Volume:      t.Volume,
		Timestamp:   t.Timestamp,
		CollectedAt: t.CollectedAt,
	}
}

// flush writes the current batch to the database.
func (w *TickWriter) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of the current batch
	batch := w.batch
	w.batch = make([]tickRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.metrics.InsertError()
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return err
	}

	w.metrics.TicksInserted(len(batch))
	w.metrics.Flush()

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch))
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed ticks",
		"count", len(batch),
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch.
func (w *TickWriter) batchInsert(ctx context.Context, rows []tickRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO ticks (symbol, price, volume, ts, collected_at)
			VALUES ($1, $2, $3, $4, $5)
		`, r.Symbol, r.Price, r.Volume, r.Timestamp, r.CollectedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
