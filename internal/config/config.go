package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Feed      FeedConfig      `yaml:"feed"`
	Limiter   LimiterConfig   `yaml:"limiter"`
	Queue     QueueConfig     `yaml:"queue"`
	Writer    WriterConfig    `yaml:"writer"`
	Database  DBConfig        `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"` // Defaults to a random UUID when omitted
}

// FeedConfig holds upstream tick feed settings.
type FeedConfig struct {
	URL     string   `yaml:"url"`     // WebSocket URL (e.g., wss://ws.finnhub.io)
	Token   string   `yaml:"token"`   // API token, appended as ?token=
	Symbols []string `yaml:"symbols"` // Symbols to subscribe

	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"` // Max silence before the connection counts as stale
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`

	// Collection cycle: accept at most one tick per symbol per interval.
	SyncInterval  time.Duration `yaml:"sync_interval"`
	SyncTolerance time.Duration `yaml:"sync_tolerance"`

	BufferSize int `yaml:"buffer_size"` // Raw message channel buffer
}

// LimiterConfig holds outbound request throttling settings.
type LimiterConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// QueueConfig holds tick queue settings.
type QueueConfig struct {
	InitialSize int `yaml:"initial_size"`
	MaxSize     int `yaml:"max_size"` // Hard cap; ticks are dropped above it
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DashboardConfig holds the read-only dashboard server settings.
type DashboardConfig struct {
	Port           int `yaml:"port"`
	DefaultHours   int `yaml:"default_hours"`   // Default lookback for queries
	MaxHours       int `yaml:"max_hours"`       // Upper bound on requested lookback
	RefreshSeconds int `yaml:"refresh_seconds"` // HTML page auto-refresh
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
