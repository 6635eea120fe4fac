// feedcheck connects to the tick feed and streams parsed trades to the
// console without touching the database. Useful for verifying a token
// and symbol list before running the collector.
//
// Usage: go run ./cmd/feedcheck -config configs/collector.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/evrenbal/tickstream/internal/config"
	"github.com/evrenbal/tickstream/internal/feed"
	"github.com/evrenbal/tickstream/internal/ratelimit"
)

type frame struct {
	Type string `json:"type"`
	Data []struct {
		Symbol    string  `json:"s"`
		Price     float64 `json:"p"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"`
	} `json:"data"`
	Msg string `json:"msg"`
}

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print raw frame JSON")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	url := cfg.Feed.URL
	if cfg.Feed.Token != "" && !strings.Contains(url, "token=") {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "token=" + cfg.Feed.Token
	}

	clientCfg := feed.DefaultClientConfig()
	clientCfg.URL = url
	clientCfg.PingInterval = cfg.Feed.PingInterval
	clientCfg.PingTimeout = cfg.Feed.PingTimeout

	client := feed.NewClient(clientCfg, logger)

	logger.Info("connecting", "url", cfg.Feed.URL)
	if err := client.Connect(ctx); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	limiter, err := ratelimit.New(cfg.Limiter.MaxRequests, cfg.Limiter.Window)
	if err != nil {
		logger.Error("failed to create rate limiter", "error", err)
		os.Exit(1)
	}

	for _, symbol := range cfg.Feed.Symbols {
		if err := limiter.Acquire(ctx); err != nil {
			logger.Error("subscribe aborted", "error", err)
			os.Exit(1)
		}
		sub, _ := json.Marshal(map[string]string{"type": "subscribe", "symbol": symbol})
		if err := client.Send(sub); err != nil {
			logger.Error("subscribe failed", "symbol", symbol, "error", err)
			os.Exit(1)
		}
		logger.Info("subscribed", "symbol", symbol)
	}

	trades := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n%d trade frames received\n", trades)
			return

		case err := <-client.Errors():
			logger.Error("feed error", "error", err)
			os.Exit(1)

		case msg := <-client.Messages():
			if *verbose {
				fmt.Println(string(msg.Data))
			}

			var f frame
			if err := json.Unmarshal(msg.Data, &f); err != nil {
				logger.Warn("unparseable frame", "error", err)
				continue
			}

			switch f.Type {
			case "trade":
				trades++
				for _, item := range f.Data {
					ts := time.UnixMilli(item.Timestamp)
					latency := msg.ReceivedAt.Sub(ts)
					fmt.Printf("%-8s %10.2f  vol %8.0f  %s  (+%s)\n",
						item.Symbol, item.Price, item.Volume,
						ts.Format("15:04:05.000"), latency.Round(time.Millisecond),
					)
				}
			case "ping":
				pong, _ := json.Marshal(map[string]string{"type": "pong"})
				if err := client.Send(pong); err != nil {
					logger.Warn("pong failed", "error", err)
				}
			case "error":
				logger.Warn("feed reported error", "msg", f.Msg)
			}
		}
	}
}
