package config

import (
	"errors"
	"fmt"

	"github.com/evrenbal/tickstream/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.Token == "" {
		return errors.New("feed.token is required")
	}
	if len(c.Feed.Symbols) == 0 {
		return errors.New("feed.symbols must list at least one symbol")
	}
	for _, s := range c.Feed.Symbols {
		if s == "" {
			return errors.New("feed.symbols must not contain empty entries")
		}
		if len(s) > model.MaxSymbolLen {
			return fmt.Errorf("feed.symbols entry %q exceeds %d characters", s, model.MaxSymbolLen)
		}
	}
	if c.Feed.SyncTolerance >= c.Feed.SyncInterval {
		return fmt.Errorf("feed.sync_tolerance (%s) must be below feed.sync_interval (%s)",
			c.Feed.SyncTolerance, c.Feed.SyncInterval)
	}

	if c.Limiter.MaxRequests < 1 {
		return fmt.Errorf("limiter.max_requests must be >= 1, got %d", c.Limiter.MaxRequests)
	}
	if c.Limiter.Window <= 0 {
		return fmt.Errorf("limiter.window must be positive, got %s", c.Limiter.Window)
	}

	if c.Queue.InitialSize < 1 {
		return errors.New("queue.initial_size must be >= 1")
	}
	if c.Queue.MaxSize < c.Queue.InitialSize {
		return fmt.Errorf("queue.max_size (%d) cannot be below queue.initial_size (%d)",
			c.Queue.MaxSize, c.Queue.InitialSize)
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be between 1 and 65535, got %d", c.Dashboard.Port)
	}
	if c.Dashboard.MaxHours < c.Dashboard.DefaultHours {
		return fmt.Errorf("dashboard.max_hours (%d) cannot be below dashboard.default_hours (%d)",
			c.Dashboard.MaxHours, c.Dashboard.DefaultHours)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
