package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/evrenbal/tickstream/internal/config"
	"github.com/evrenbal/tickstream/internal/database"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	gapThreshold := flag.Duration("gap-threshold", 30*time.Second, "largest acceptable silence per symbol")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	info, err := database.CheckConnection(ctx, pool)
	if err != nil {
		logger.Error("connection check failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("server:  %s\n", info.Version)
	fmt.Printf("tables:  %d\n", info.TableCount)

	exists, err := database.TableExists(ctx, pool, "ticks")
	if err != nil {
		logger.Error("table check failed", "error", err)
		os.Exit(1)
	}
	if !exists {
		fmt.Println("\nticks table does not exist; run the collector or dbreset first")
		os.Exit(1)
	}

	store := database.NewTickStore(pool)
	report, err := store.Inspect(ctx, *gapThreshold)
	if err != nil {
		logger.Error("inspection failed", "error", err)
		os.Exit(1)
	}

	printReport(report, *gapThreshold)

	if len(report.Issues) > 0 {
		os.Exit(2)
	}
}

func printReport(report *database.Report, gapThreshold time.Duration) {
	st := report.Table

	overview := table.NewWriter()
	overview.SetStyle(table.StyleRounded)
	overview.AppendHeader(table.Row{"Metric", "Value"})
	overview.AppendRow(table.Row{"total records", st.TotalRecords})
	overview.AppendRow(table.Row{"unique symbols", st.UniqueSymbols})
	overview.AppendRow(table.Row{"avg price", fmt.Sprintf("%.4f", st.AvgPrice)})
	overview.AppendRow(table.Row{"price range", fmt.Sprintf("%.4f – %.4f", st.MinPrice, st.MaxPrice)})
	overview.AppendRow(table.Row{"avg volume", fmt.Sprintf("%.2f", st.AvgVolume)})
	if !st.FirstRecord.IsZero() {
		overview.AppendRow(table.Row{"first record", st.FirstRecord.Format(time.RFC3339)})
		overview.AppendRow(table.Row{"last record", st.LastRecord.Format(time.RFC3339)})
	}
	fmt.Println()
	fmt.Println(overview.Render())

	if len(report.Symbols) > 0 {
		symbols := table.NewWriter()
		symbols.SetStyle(table.StyleRounded)
		symbols.AppendHeader(table.Row{"Symbol", "Count", "Avg", "Min", "Max"})
		for _, s := range report.Symbols {
			symbols.AppendRow(table.Row{
				s.Symbol,
				s.Count,
				fmt.Sprintf("%.4f", s.AvgPrice),
				fmt.Sprintf("%.4f", s.MinPrice),
				fmt.Sprintf("%.4f", s.MaxPrice),
			})
		}
		fmt.Println()
		fmt.Println(symbols.Render())
	}

	fmt.Println()
	if len(report.Issues) == 0 {
		fmt.Println("quality: no issues found")
	} else {
		fmt.Printf("quality: %d issue(s)\n", len(report.Issues))
		for _, issue := range report.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}

	if len(report.Gaps) > 0 {
		gaps := table.NewWriter()
		gaps.SetStyle(table.StyleRounded)
		gaps.AppendHeader(table.Row{"Symbol", "Gap Start", "Gap End", "Duration"})
		for _, g := range report.Gaps {
			gaps.AppendRow(table.Row{
				g.Symbol,
				g.Start.Format(time.RFC3339),
				g.End.Format(time.RFC3339),
				g.End.Sub(g.Start).Round(time.Second),
			})
		}
		fmt.Println()
		fmt.Printf("gaps longer than %s:\n", gapThreshold)
		fmt.Println(gaps.Render())
	}
}
