package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/evrenbal/tickstream/internal/config"
	"github.com/evrenbal/tickstream/internal/database"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	yes := flag.Bool("yes", false, "skip confirmation and drop all tick data")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !*yes {
		logger.Error("refusing to drop data without -yes",
			"database", cfg.Database.Name,
			"host", cfg.Database.Host,
		)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Warn("resetting database",
		"database", cfg.Database.Name,
		"host", cfg.Database.Host,
	)

	if err := database.Reset(ctx, pool); err != nil {
		logger.Error("reset failed", "error", err)
		os.Exit(1)
	}

	logger.Info("database reset complete")
}
