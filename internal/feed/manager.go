package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evrenbal/tickstream/internal/metrics"
	"github.com/evrenbal/tickstream/internal/model"
	"github.com/evrenbal/tickstream/internal/queue"
	"github.com/evrenbal/tickstream/internal/ratelimit"
)

// Manager owns the feed connection: subscriptions, parsing, sampling, and
// reconnection. Every outbound command goes through the rate limiter first.
type Manager struct {
	cfg     ManagerConfig
	limiter *ratelimit.Limiter
	out     *queue.TickQueue
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	client  Client
	symbols map[string]struct{}

	// Collection cycle state: at most one tick per symbol per interval.
	cycleMu   sync.Mutex
	collected map[string]struct{}
	lastSync  time.Time

	reconnects    atomic.Int64
	ticksAccepted atomic.Int64
	ticksSampled  atomic.Int64
	ticksDropped  atomic.Int64
}

// NewManager creates a feed Manager writing accepted ticks to out.
func NewManager(cfg ManagerConfig, limiter *ratelimit.Limiter, out *queue.TickQueue, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}

	return &Manager{
		cfg:       cfg,
		limiter:   limiter,
		out:       out,
		metrics:   m,
		logger:    logger,
		symbols:   symbols,
		collected: make(map[string]struct{}),
	}
}

// Start connects to the feed and subscribes the configured symbols. A
// failed initial connection is not fatal; the reconnect loop keeps trying.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	client := NewClient(m.clientConfig(), m.logger)

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	if err := client.Connect(m.ctx); err != nil {
		m.logger.Warn("initial feed connection failed", "error", err)
		m.wg.Add(1)
		go m.reconnect(client)
		return nil
	}

	if err := m.subscribeAll(client); err != nil {
		m.logger.Warn("failed to subscribe symbols", "error", err)
	}

	m.wg.Add(1)
	go m.readLoop(client)

	m.logger.Info("feed manager started",
		"url", m.cfg.URL,
		"symbols", len(m.symbols),
	)

	return nil
}

// Stop gracefully shuts down.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping feed manager")

	if m.cancel != nil {
		m.cancel()
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client != nil {
		client.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.logger.Info("feed manager stopped")
	return nil
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	connected := m.client != nil && m.client.IsConnected()
	symbols := len(m.symbols)
	m.mu.RUnlock()

	return ManagerStats{
		Connected:     connected,
		Symbols:       symbols,
		Reconnects:    m.reconnects.Load(),
		TicksAccepted: m.ticksAccepted.Load(),
		TicksSampled:  m.ticksSampled.Load(),
		TicksDropped:  m.ticksDropped.Load(),
	}
}

// UpdateSymbols replaces the subscription set, subscribing the additions
// and unsubscribing the removals on the live connection.
func (m *Manager) UpdateSymbols(symbols []string) {
	next := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		next[s] = struct{}{}
	}

	m.mu.Lock()
	var added, removed []string
	for s := range next {
		if _, ok := m.symbols[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range m.symbols {
		if _, ok := next[s]; !ok {
			removed = append(removed, s)
		}
	}
	m.symbols = next
	client := m.client
	m.mu.Unlock()

	if len(added) == 0 && len(removed) == 0 {
		return
	}

	m.logger.Info("updating symbol subscriptions",
		"added", len(added),
		"removed", len(removed),
	)

	if client == nil || !client.IsConnected() {
		// The next reconnect subscribes the new set.
		return
	}

	for _, s := range added {
		if err := m.sendCommand(client, command{Type: "subscribe", Symbol: s}); err != nil {
			m.logger.Warn("failed to subscribe", "symbol", s, "error", err)
		}
	}
	for _, s := range removed {
		if err := m.sendCommand(client, command{Type: "unsubscribe", Symbol: s}); err != nil {
			m.logger.Warn("failed to unsubscribe", "symbol", s, "error", err)
		}
	}
}

// clientConfig builds the per-connection config, including the token URL.
func (m *Manager) clientConfig() ClientConfig {
	return ClientConfig{
		URL:          feedURL(m.cfg.URL, m.cfg.Token),
		PingInterval: m.cfg.PingInterval,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: 5 * time.Second,
		BufferSize:   m.cfg.BufferSize,
	}
}

// feedURL appends the token query parameter to the base URL.
func feedURL(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s?token=%s", base, url.QueryEscape(token))
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// subscribeAll subscribes every configured symbol, paced by the limiter.
func (m *Manager) subscribeAll(client Client) error {
	m.mu.RLock()
	symbols := make([]string, 0, len(m.symbols))
	for s := range m.symbols {
		symbols = append(symbols, s)
	}
	m.mu.RUnlock()

	for _, s := range symbols {
		if err := m.sendCommand(client, command{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		m.logger.Debug("subscribed", "symbol", s)
	}
	return nil
}

// sendCommand acquires a rate limiter slot and writes one command. The
// feed protocol has no command acknowledgements, so sends are fire and
// forget.
func (m *Manager) sendCommand(client Client, cmd command) error {
	start := time.Now()
	if err := m.limiter.Acquire(m.ctx); err != nil {
		return err
	}
	m.metrics.LimiterWait(time.Since(start))

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return client.Send(data)
}

// readLoop consumes messages from one connection until it fails or the
// manager stops.
func (m *Manager) readLoop(client Client) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-client.Errors():
			m.logger.Warn("feed connection error", "error", err)
			m.wg.Add(1)
			go m.reconnect(client)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			m.handleMessage(client, msg)
		}
	}
}

// handleMessage parses one inbound frame.
func (m *Manager) handleMessage(client Client, msg TimestampedMessage) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		m.logger.Warn("unparseable feed message", "error", err)
		return
	}

	switch env.Type {
	case "trade":
		for _, item := range env.Data {
			m.handleTrade(item, msg.ReceivedAt)
		}

	case "ping":
		// Application-level ping: answer in kind, unthrottled (the limiter
		// paces requests, not keepalives).
		data, _ := json.Marshal(command{Type: "pong"})
		if err := client.Send(data); err != nil {
			m.logger.Debug("failed to answer feed ping", "error", err)
		}

	case "error":
		m.logger.Warn("feed error message", "msg", env.Msg)

	default:
		m.logger.Debug("ignoring feed message", "type", env.Type)
	}
}

// handleTrade applies cycle sampling and enqueues one tick.
func (m *Manager) handleTrade(item tradeItem, receivedAt time.Time) {
	m.metrics.TickReceived()

	if !m.shouldProcess(item.Symbol, receivedAt) {
		m.ticksSampled.Add(1)
		m.metrics.TickSampled()
		return
	}

	tick := model.Tick{
		Symbol:      item.Symbol,
		Price:       item.Price,
		Volume:      item.Volume,
		Timestamp:   time.UnixMilli(item.Timestamp),
		CollectedAt: receivedAt,
	}

	if !m.out.Put(tick) {
		m.ticksDropped.Add(1)
		m.metrics.TickDropped()
		m.logger.Warn("tick queue full, dropping", "symbol", item.Symbol)
		return
	}

	m.ticksAccepted.Add(1)
	m.metrics.SetQueueDepth(m.out.Len())
}

// shouldProcess reports whether a tick for symbol should be kept in the
// current collection cycle. A new cycle starts when the sync interval
// (minus tolerance) has elapsed; within a cycle each symbol is kept once.
func (m *Manager) shouldProcess(symbol string, now time.Time) bool {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	if now.Sub(m.lastSync) >= m.cfg.SyncInterval-m.cfg.SyncTolerance {
		m.collected = make(map[string]struct{})
		m.lastSync = now
	}

	if _, ok := m.collected[symbol]; ok {
		return false
	}
	m.collected[symbol] = struct{}{}
	return true
}

// reconnect replaces a failed connection with exponential backoff.
func (m *Manager) reconnect(old Client) {
	defer m.wg.Done()

	old.Close()

	wait := m.cfg.ReconnectBaseDelay
	maxWait := m.cfg.ReconnectMaxDelay

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(wait):
		}

		m.reconnects.Add(1)
		m.metrics.Reconnect()
		m.logger.Info("attempting feed reconnection", "wait", wait)

		client := NewClient(m.clientConfig(), m.logger)
		if err := client.Connect(m.ctx); err != nil {
			m.logger.Warn("reconnection failed", "error", err)

			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
			continue
		}

		m.mu.Lock()
		m.client = client
		m.mu.Unlock()

		// A fresh connection starts a fresh collection cycle.
		m.cycleMu.Lock()
		m.collected = make(map[string]struct{})
		m.lastSync = time.Now()
		m.cycleMu.Unlock()

		if err := m.subscribeAll(client); err != nil {
			m.logger.Warn("failed to resubscribe after reconnect", "error", err)
		}

		m.wg.Add(1)
		go m.readLoop(client)

		m.logger.Info("feed reconnected")
		return
	}
}
