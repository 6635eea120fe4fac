package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evrenbal/tickstream/internal/model"
	"github.com/evrenbal/tickstream/internal/queue"
)

func TestTickWriter_Transform(t *testing.T) {
	cfg := DefaultConfig()
	input := queue.New(10, 100)
	w := NewTickWriter(cfg, input, nil, nil, nil)

	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	collectedAt := ts.Add(120 * time.Millisecond)
	tick := model.Tick{
		Symbol:      "AAPL",
		Price:       191.25,
		Volume:      100,
		Timestamp:   ts,
		CollectedAt: collectedAt,
	}

	row := w.transform(tick)

	if row.Symbol != "AAPL" {
		t.Errorf("Symbol = %s, want AAPL", row.Symbol)
	}
	if row.Price != 191.25 {
		t.Errorf("Price = %v, want 191.25", row.Price)
	}
	if row.Volume != 100 {
		t.Errorf("Volume = %v, want 100", row.Volume)
	}
	if !row.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", row.Timestamp, ts)
	}
	if !row.CollectedAt.Equal(collectedAt) {
		t.Errorf("CollectedAt = %v, want %v", row.CollectedAt, collectedAt)
	}
}

func TestTickWriter_Lifecycle(t *testing.T) {
	cfg := Config{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
	}
	input := queue.New(10, 100)

	w := NewTickWriter(cfg, input, nil, nil, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestTickWriter_HandleTick_AddsToBatch(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := queue.New(10, 100)
	w := NewTickWriter(cfg, input, nil, nil, nil)

	// No Start: feed the batch directly so nothing flushes to the nil db.
	w.ctx = context.Background()

	for i := 0; i < 3; i++ {
		w.handleTick(model.Tick{
			Symbol:      "MSFT",
			Price:       420.5,
			Timestamp:   time.Now(),
			CollectedAt: time.Now(),
		})
	}

	w.batchMu.Lock()
	got := len(w.batch)
	w.batchMu.Unlock()

	if got != 3 {
		t.Errorf("batch length = %d, want 3", got)
	}
}

func TestTickWriter_ConsumesQueue(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := queue.New(10, 100)
	w := NewTickWriter(cfg, input, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		input.Put(model.Tick{Symbol: "AAPL", Price: float64(i)})
	}

	deadline := time.Now().Add(time.Second)
	for {
		w.batchMu.Lock()
		got := len(w.batch)
		w.batchMu.Unlock()
		if got == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch length = %d, want 5", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Cancel before Stop so the final flush does not hit the nil db.
	cancel()
	w.wg.Wait()
}

// unreachablePool builds a pool whose first connection attempt fails.
// pgxpool connects lazily, so constructing it needs no server.
func unreachablePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig("postgres://collector:pw@127.0.0.1:1/tickstream?sslmode=disable")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestTickWriter_StopFlushesAfterRunContextCancel(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := queue.New(10, 100)
	w := NewTickWriter(cfg, input, unreachablePool(t), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	input.Put(model.Tick{
		Symbol:      "AAPL",
		Price:       191.25,
		Timestamp:   time.Now(),
		CollectedAt: time.Now(),
	})

	deadline := time.Now().Add(time.Second)
	for {
		w.batchMu.Lock()
		got := len(w.batch)
		w.batchMu.Unlock()
		if got == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch length = %d, want 1", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The daemon's signal handler cancels the run context first; one
	// more tick lands in the queue before Stop runs.
	cancel()
	input.Put(model.Tick{
		Symbol:      "MSFT",
		Price:       420.5,
		Timestamp:   time.Now(),
		CollectedAt: time.Now(),
	})
	input.Close()

	err := w.Stop(context.Background())
	if err == nil {
		t.Fatal("Stop() error = nil, want insert failure (nothing listens)")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("final flush ran on the cancelled run context: %v", err)
	}

	// Everything batched and queued made it into the flush attempt.
	if n := input.Len(); n != 0 {
		t.Errorf("queue length after Stop = %d, want 0", n)
	}
	w.batchMu.Lock()
	left := len(w.batch)
	w.batchMu.Unlock()
	if left != 0 {
		t.Errorf("batch length after Stop = %d, want 0", left)
	}
	if got := w.Stats().Errors; got != 1 {
		t.Errorf("Stats().Errors = %d, want 1", got)
	}
}

func TestTickWriter_DrainMovesQueuedTicksToBatch(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := queue.New(10, 100)
	w := NewTickWriter(cfg, input, nil, nil, nil)

	for i := 0; i < 3; i++ {
		input.Put(model.Tick{Symbol: "GOOGL", Price: float64(i)})
	}

	w.drainQueue()

	w.batchMu.Lock()
	got := len(w.batch)
	w.batchMu.Unlock()
	if got != 3 {
		t.Errorf("batch length = %d, want 3", got)
	}
	if n := input.Len(); n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}
