package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"github.com/evrenbal/tickstream/internal/config"
	"github.com/evrenbal/tickstream/internal/database"
	"github.com/evrenbal/tickstream/internal/feed"
	"github.com/evrenbal/tickstream/internal/metrics"
	"github.com/evrenbal/tickstream/internal/queue"
	"github.com/evrenbal/tickstream/internal/ratelimit"
	"github.com/evrenbal/tickstream/internal/version"
	"github.com/evrenbal/tickstream/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"feed_url", cfg.Feed.URL,
		"symbols", len(cfg.Feed.Symbols),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	logger.Info("database connected")

	// Metrics
	m := metrics.New(cfg.Instance.ID)
	metricsServer := startMetricsServer(cfg.Metrics, m, logger)

	// Tick queue between the feed and the writer
	tickQueue := queue.New(cfg.Queue.InitialSize, cfg.Queue.MaxSize)

	// Outbound command limiter
	limiter, err := ratelimit.New(cfg.Limiter.MaxRequests, cfg.Limiter.Window)
	if err != nil {
		logger.Error("failed to create rate limiter", "error", err)
		os.Exit(1)
	}

	// Batch writer
	tickWriter := writer.NewTickWriter(writer.Config{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
	}, tickQueue, pool, m, logger)

	if err := tickWriter.Start(ctx); err != nil {
		logger.Error("failed to start writer", "error", err)
		os.Exit(1)
	}

	// Feed manager
	managerCfg := feed.ManagerConfig{
		URL:                cfg.Feed.URL,
		Token:              cfg.Feed.Token,
		Symbols:            cfg.Feed.Symbols,
		PingInterval:       cfg.Feed.PingInterval,
		PingTimeout:        cfg.Feed.PingTimeout,
		ReconnectBaseDelay: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Feed.ReconnectMaxDelay,
		SyncInterval:       cfg.Feed.SyncInterval,
		SyncTolerance:      cfg.Feed.SyncTolerance,
		BufferSize:         cfg.Feed.BufferSize,
	}
	manager := feed.NewManager(managerCfg, limiter, tickQueue, m, logger)

	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start feed manager", "error", err)
		os.Exit(1)
	}

	// Watch the config file so the symbol list can change without a restart
	watcher, err := watchConfig(*configPath, manager, logger)
	if err != nil {
		logger.Warn("config watch disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	// Periodically export queue depth
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetQueueDepth(tickQueue.Len())
			}
		}
	}()

	logger.Info("collector running",
		"instance_id", cfg.Instance.ID,
		"metrics_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Warn("feed manager stop", "error", err)
	}

	// Drain remaining ticks before closing the pool
	tickQueue.Close()
	if err := tickWriter.Stop(shutdownCtx); err != nil {
		logger.Warn("writer stop", "error", err)
	}

	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	stats := manager.Stats()
	logger.Info("collector stopped",
		"ticks_accepted", stats.TicksAccepted,
		"ticks_sampled", stats.TicksSampled,
		"ticks_dropped", stats.TicksDropped,
		"reconnects", stats.Reconnects,
	)
}

// startMetricsServer serves the Prometheus endpoint when a port is configured.
func startMetricsServer(cfg config.MetricsConfig, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	if cfg.Port <= 0 {
		return nil
	}

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("starting metrics server", "port", cfg.Port, "path", path)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return server
}

// watchConfig reloads the symbol list when the config file changes.
func watchConfig(path string, manager *feed.Manager, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory; editors often replace the file on save
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)

	go func() {
		// Debounce: editors fire several events per save
		var pending <-chan time.Time
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)

			case <-pending:
				pending = nil
				cfg, err := config.LoadAndValidate(path)
				if err != nil {
					logger.Warn("config reload skipped", "error", err)
					continue
				}
				logger.Info("config changed, updating symbols", "symbols", len(cfg.Feed.Symbols))
				manager.UpdateSymbols(cfg.Feed.Symbols)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watch error", "error", err)
			}
		}
	}()

	logger.Info("watching config file", "path", path)
	return watcher, nil
}
