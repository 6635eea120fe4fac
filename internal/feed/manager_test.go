package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evrenbal/tickstream/internal/queue"
	"github.com/evrenbal/tickstream/internal/ratelimit"
)

func testManagerConfig(url string, symbols ...string) ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.URL = url
	cfg.Token = "test-token"
	cfg.Symbols = symbols
	cfg.ReconnectBaseDelay = 50 * time.Millisecond
	cfg.ReconnectMaxDelay = 200 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *queue.TickQueue) {
	t.Helper()
	limiter, err := ratelimit.New(100, time.Minute)
	if err != nil {
		t.Fatalf("ratelimit.New failed: %v", err)
	}
	out := queue.New(100, 1000)
	return NewManager(cfg, limiter, out, nil, nil), out
}

func TestManager_SubscribesOnStart(t *testing.T) {
	subscribed := make(chan string, 10)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if json.Unmarshal(data, &cmd) == nil && cmd.Type == "subscribe" {
				subscribed <- cmd.Symbol
			}
		}
	})
	defer server.Close()

	m, _ := newTestManager(t, testManagerConfig(wsURL(server), "AAPL", "MSFT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop(context.Background())

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-subscribed:
			got[s] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("only received %d subscribes", i)
		}
	}
	if !got["AAPL"] || !got["MSFT"] {
		t.Errorf("subscribed symbols = %v, want AAPL and MSFT", got)
	}
}

func TestManager_ParsesTradesIntoQueue(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Consume the subscribe, then send a trade frame.
		conn.ReadMessage()
		frame := `{"type":"trade","data":[{"s":"AAPL","p":191.25,"v":100,"t":1705320000000}]}`
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	m, out := newTestManager(t, testManagerConfig(wsURL(server), "AAPL"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		if tick, ok := out.TryGet(); ok {
			if tick.Symbol != "AAPL" {
				t.Errorf("Symbol = %q, want AAPL", tick.Symbol)
			}
			if tick.Price != 191.25 {
				t.Errorf("Price = %v, want 191.25", tick.Price)
			}
			if tick.Volume != 100 {
				t.Errorf("Volume = %v, want 100", tick.Volume)
			}
			if want := time.UnixMilli(1705320000000); !tick.Timestamp.Equal(want) {
				t.Errorf("Timestamp = %v, want %v", tick.Timestamp, want)
			}
			if tick.CollectedAt.IsZero() {
				t.Error("CollectedAt not set")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no tick arrived in queue")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManager_AnswersFeedPing(t *testing.T) {
	pong := make(chan struct{}, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if json.Unmarshal(data, &cmd) == nil && cmd.Type == "pong" {
				select {
				case pong <- struct{}{}:
				default:
				}
			}
		}
	})
	defer server.Close()

	m, _ := newTestManager(t, testManagerConfig(wsURL(server), "AAPL"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop(context.Background())

	select {
	case <-pong:
	case <-time.After(2 * time.Second):
		t.Fatal("no pong answer to feed ping")
	}
}

func TestManager_CycleSampling(t *testing.T) {
	cfg := testManagerConfig("ws://unused", "AAPL")
	cfg.SyncInterval = time.Hour // One cycle for the whole test
	cfg.SyncTolerance = 0
	m, _ := newTestManager(t, cfg)

	now := time.Now()
	if !m.shouldProcess("AAPL", now) {
		t.Error("first tick of a cycle should be kept")
	}
	if m.shouldProcess("AAPL", now.Add(time.Second)) {
		t.Error("repeat tick within the cycle should be sampled out")
	}
	if !m.shouldProcess("MSFT", now.Add(time.Second)) {
		t.Error("first tick of another symbol should be kept")
	}

	// After the interval elapses, the cycle resets.
	later := now.Add(2 * time.Hour)
	if !m.shouldProcess("AAPL", later) {
		t.Error("tick after cycle reset should be kept")
	}
}

func TestManager_CycleToleranceStartsEarly(t *testing.T) {
	cfg := testManagerConfig("ws://unused", "AAPL")
	cfg.SyncInterval = 3 * time.Second
	cfg.SyncTolerance = 500 * time.Millisecond
	m, _ := newTestManager(t, cfg)

	now := time.Now()
	m.shouldProcess("AAPL", now)

	// 2.6s elapsed: inside interval but within tolerance of its end, so a
	// new cycle starts.
	if !m.shouldProcess("AAPL", now.Add(2600*time.Millisecond)) {
		t.Error("tick within tolerance of cycle end should start a new cycle")
	}
}

func TestManager_ReconnectsAfterServerClose(t *testing.T) {
	connects := make(chan struct{}, 10)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		connects <- struct{}{}
		// Read one subscribe then drop the connection to force a reconnect.
		conn.ReadMessage()
	})
	defer server.Close()

	m, _ := newTestManager(t, testManagerConfig(wsURL(server), "AAPL"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case <-connects:
		case <-time.After(5 * time.Second):
			t.Fatalf("saw %d connections, want at least 2 (reconnect)", i)
		}
	}

	if m.Stats().Reconnects == 0 {
		t.Error("Stats().Reconnects = 0, want > 0")
	}
}

func TestManager_UpdateSymbols(t *testing.T) {
	type msg struct{ typ, symbol string }
	commands := make(chan msg, 20)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd command
			if json.Unmarshal(data, &cmd) == nil {
				commands <- msg{cmd.Type, cmd.Symbol}
			}
		}
	})
	defer server.Close()

	m, _ := newTestManager(t, testManagerConfig(wsURL(server), "AAPL"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop(context.Background())

	// Drain the initial subscribe.
	select {
	case <-commands:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial subscribe")
	}

	m.UpdateSymbols([]string{"MSFT"})

	want := map[msg]bool{
		{"subscribe", "MSFT"}:   false,
		{"unsubscribe", "AAPL"}: false,
	}
	for i := 0; i < 2; i++ {
		select {
		case got := <-commands:
			if _, ok := want[got]; !ok {
				t.Errorf("unexpected command %v", got)
			}
			want[got] = true
		case <-time.After(2 * time.Second):
			t.Fatal("missing subscription update commands")
		}
	}
	for cmd, seen := range want {
		if !seen {
			t.Errorf("missing command %v", cmd)
		}
	}

	if got := m.Stats().Symbols; got != 1 {
		t.Errorf("Stats().Symbols = %d, want 1", got)
	}
}
