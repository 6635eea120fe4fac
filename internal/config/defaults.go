package config

import (
	"time"

	"github.com/google/uuid"
)

// Default values for optional configuration fields.
const (
	DefaultFeedURL            = "wss://ws.finnhub.io"
	DefaultPingInterval       = 5 * time.Second
	DefaultPingTimeout        = 15 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultSyncInterval       = 3 * time.Second
	DefaultSyncTolerance      = 500 * time.Millisecond
	DefaultFeedBufferSize     = 1000
	DefaultMaxRequests        = 30
	DefaultLimiterWindow      = time.Minute
	DefaultQueueInitialSize   = 100
	DefaultQueueMaxSize       = 10000
	DefaultBatchSize          = 100
	DefaultFlushInterval      = 5 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultDashboardPort      = 8080
	DefaultDashboardHours     = 1
	DefaultDashboardMaxHours  = 24
	DefaultRefreshSeconds     = 3
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *CollectorConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = uuid.NewString()
	}

	// Feed defaults
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.SyncInterval == 0 {
		c.Feed.SyncInterval = DefaultSyncInterval
	}
	if c.Feed.SyncTolerance == 0 {
		c.Feed.SyncTolerance = DefaultSyncTolerance
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Limiter defaults
	if c.Limiter.MaxRequests == 0 {
		c.Limiter.MaxRequests = DefaultMaxRequests
	}
	if c.Limiter.Window == 0 {
		c.Limiter.Window = DefaultLimiterWindow
	}

	// Queue defaults
	if c.Queue.InitialSize == 0 {
		c.Queue.InitialSize = DefaultQueueInitialSize
	}
	if c.Queue.MaxSize == 0 {
		c.Queue.MaxSize = DefaultQueueMaxSize
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}

	applyDBDefaults(&c.Database)

	// Dashboard defaults
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = DefaultDashboardPort
	}
	if c.Dashboard.DefaultHours == 0 {
		c.Dashboard.DefaultHours = DefaultDashboardHours
	}
	if c.Dashboard.MaxHours == 0 {
		c.Dashboard.MaxHours = DefaultDashboardMaxHours
	}
	if c.Dashboard.RefreshSeconds == 0 {
		c.Dashboard.RefreshSeconds = DefaultRefreshSeconds
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
