package feed

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// command is an outbound feed command ({"type":"subscribe","symbol":"AAPL"}).
type command struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
}

// envelope is the inbound message frame. Type is "trade", "ping", or "error".
type envelope struct {
	Type string      `json:"type"`
	Data []tradeItem `json:"data,omitempty"`
	Msg  string      `json:"msg,omitempty"`
}

// tradeItem is a single trade inside a "trade" envelope.
type tradeItem struct {
	Symbol    string  `json:"s"`
	Price     float64 `json:"p"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"` // Milliseconds since epoch
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Full WebSocket URL including the token query parameter
	PingInterval time.Duration // How often to send keepalive pings
	PingTimeout  time.Duration // Max time without ping/pong before the connection counts as stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 5 * time.Second,
		PingTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1000,
	}
}

// ManagerConfig configures the feed Manager.
type ManagerConfig struct {
	URL     string   // WebSocket URL (e.g., wss://ws.finnhub.io)
	Token   string   // API token, appended as ?token=
	Symbols []string // Initial subscription set

	PingInterval       time.Duration
	PingTimeout        time.Duration
	ReconnectBaseDelay time.Duration // Base wait before a reconnect attempt
	ReconnectMaxDelay  time.Duration // Backoff ceiling

	// Collection cycle: accept at most one tick per symbol per interval.
	SyncInterval  time.Duration
	SyncTolerance time.Duration

	BufferSize int // Raw message channel buffer
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PingInterval:       5 * time.Second,
		PingTimeout:        15 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		SyncInterval:       3 * time.Second,
		SyncTolerance:      500 * time.Millisecond,
		BufferSize:         1000,
	}
}

// ManagerStats provides statistics about the feed manager.
type ManagerStats struct {
	Connected     bool
	Symbols       int
	Reconnects    int64
	TicksAccepted int64
	TicksSampled  int64 // Filtered by the collection cycle
	TicksDropped  int64 // Lost to a full queue
}
