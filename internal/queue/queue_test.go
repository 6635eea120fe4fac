package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/evrenbal/tickstream/internal/model"
)

func tick(symbol string, price float64) model.Tick {
	return model.Tick{
		Symbol:      symbol,
		Price:       price,
		Volume:      10,
		Timestamp:   time.Now(),
		CollectedAt: time.Now(),
	}
}

func TestPutGet_Order(t *testing.T) {
	q := New(4, 100)

	for i := 0; i < 3; i++ {
		if !q.Put(tick("AAPL", float64(i))) {
			t.Fatalf("Put %d returned false", i)
		}
	}

	for i := 0; i < 3; i++ {
		got, ok := q.TryGet()
		if !ok {
			t.Fatalf("TryGet %d returned false", i)
		}
		if got.Price != float64(i) {
			t.Errorf("tick %d price = %v, want %v", i, got.Price, float64(i))
		}
	}

	if _, ok := q.TryGet(); ok {
		t.Error("TryGet on empty queue returned true")
	}
}

func TestPut_GrowsUntilCap(t *testing.T) {
	q := New(2, 8)

	for i := 0; i < 8; i++ {
		if !q.Put(tick("AAPL", float64(i))) {
			t.Fatalf("Put %d returned false before reaching cap", i)
		}
	}

	// At the hard cap, further puts drop.
	if q.Put(tick("AAPL", 99)) {
		t.Error("Put above hard cap returned true")
	}

	st := q.Snapshot()
	if st.Capacity != 8 {
		t.Errorf("Capacity = %d, want 8", st.Capacity)
	}
	if st.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", st.Dropped)
	}
	if st.Resizes == 0 {
		t.Error("expected at least one resize")
	}

	// Order survives growth.
	for i := 0; i < 8; i++ {
		got, ok := q.TryGet()
		if !ok {
			t.Fatalf("TryGet %d returned false", i)
		}
		if got.Price != float64(i) {
			t.Errorf("tick %d price = %v, want %v", i, got.Price, float64(i))
		}
	}
}

func TestGet_BlocksUntilPut(t *testing.T) {
	q := New(4, 100)

	done := make(chan model.Tick, 1)
	go func() {
		got, ok := q.Get()
		if ok {
			done <- got
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(tick("MSFT", 42))

	select {
	case got := <-done:
		if got.Symbol != "MSFT" {
			t.Errorf("Symbol = %q, want MSFT", got.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Put")
	}
}

func TestClose_DrainsThenReportsClosed(t *testing.T) {
	q := New(4, 100)
	q.Put(tick("AAPL", 1))
	q.Close()

	if q.Put(tick("AAPL", 2)) {
		t.Error("Put after Close returned true")
	}

	if got, ok := q.Get(); !ok || got.Price != 1 {
		t.Errorf("Get = (%v, %v), want remaining tick", got, ok)
	}
	if _, ok := q.Get(); ok {
		t.Error("Get on closed drained queue returned true")
	}
}

func TestConcurrentPutGet(t *testing.T) {
	q := New(16, 100000)

	const producers = 4
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Put(tick("AAPL", 1))
			}
		}()
	}

	received := 0
	doneRecv := make(chan struct{})
	go func() {
		defer close(doneRecv)
		for {
			_, ok := q.Get()
			if !ok {
				return
			}
			received++
		}
	}()

	wg.Wait()
	q.Close()
	<-doneRecv

	if received != producers*perProducer {
		t.Errorf("received = %d, want %d", received, producers*perProducer)
	}

	st := q.Snapshot()
	if st.TotalIn != int64(producers*perProducer) {
		t.Errorf("TotalIn = %d, want %d", st.TotalIn, producers*perProducer)
	}
	if st.TotalOut != st.TotalIn {
		t.Errorf("TotalOut = %d, want %d", st.TotalOut, st.TotalIn)
	}
}
