package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/evrenbal/tickstream/internal/config"
	"github.com/evrenbal/tickstream/internal/model"
)

// Store is the read side of the ticks table the dashboard needs.
type Store interface {
	Ping(ctx context.Context) error
	RecentTicks(ctx context.Context, limit int) ([]model.Tick, error)
	TicksSince(ctx context.Context, symbol string, since time.Time) ([]model.PricePoint, error)
	Symbols(ctx context.Context) ([]string, error)
	TableStats(ctx context.Context) (model.TableStats, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg    config.DashboardConfig
	store  Store
	logger *slog.Logger
	router *chi.Mux
	server *http.Server
}

// New creates a dashboard server over the given store.
func New(cfg config.DashboardConfig, store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/api/ticks", s.handleTicks)
	r.Get("/api/symbols", s.handleSymbols)
	r.Get("/api/stats", s.handleStats)
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("dashboard listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down dashboard")
	return s.server.Shutdown(ctx)
}

// lookbackHours resolves the ?hours= parameter, clamped to the
// configured maximum.
func (s *Server) lookbackHours(r *http.Request) int {
	hours := s.cfg.DefaultHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if h, err := strconv.Atoi(raw); err == nil && h > 0 {
			hours = h
		}
	}
	if s.cfg.MaxHours > 0 && hours > s.cfg.MaxHours {
		hours = s.cfg.MaxHours
	}
	return hours
}

func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	hours := s.lookbackHours(r)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	points, err := s.store.TicksSince(r.Context(), symbol, since)
	if err != nil {
		s.logger.Error("ticks query failed", "error", err, "symbol", symbol)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	s.writeJSON(w, map[string]any{
		"symbol": symbol,
		"hours":  hours,
		"count":  len(points),
		"ticks":  points,
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.store.Symbols(r.Context())
	if err != nil {
		s.logger.Error("symbols query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	s.writeJSON(w, map[string]any{"symbols": symbols})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.TableStats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	s.writeJSON(w, map[string]any{
		"total_records":  stats.TotalRecords,
		"unique_symbols": stats.UniqueSymbols,
		"avg_price":      stats.AvgPrice,
		"min_price":      stats.MinPrice,
		"max_price":      stats.MaxPrice,
		"avg_volume":     stats.AvgVolume,
		"first_record":   stats.FirstRecord,
		"last_record":    stats.LastRecord,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.store.TableStats(ctx)
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	ticks, err := s.store.RecentTicks(ctx, 50)
	if err != nil {
		s.logger.Error("recent ticks query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	data := indexData{
		Refresh:   s.cfg.RefreshSeconds,
		Generated: time.Now().UTC().Format(time.RFC3339),
		Stats:     stats,
		Ticks:     ticks,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Error("template render failed", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type indexData struct {
	Refresh   int
	Generated string
	Stats     model.TableStats
	Ticks     []model.Tick
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>tickstream</title>
{{if gt .Refresh 0}}<meta http-equiv="refresh" content="{{.Refresh}}">{{end}}
<style>
body { font-family: monospace; margin: 2em; background: #111; color: #ddd; }
h1 { color: #6cf; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #444; padding: 4px 10px; text-align: right; }
th { background: #222; }
td:first-child, th:first-child { text-align: left; }
.meta { color: #888; }
</style>
</head>
<body>
<h1>tickstream</h1>
<p class="meta">generated {{.Generated}} &middot; {{.Stats.TotalRecords}} records &middot; {{.Stats.UniqueSymbols}} symbols</p>
<table>
<tr><th>symbol</th><th>price</th><th>volume</th><th>trade time</th><th>collected</th></tr>
{{range .Ticks}}
<tr>
<td>{{.Symbol}}</td>
<td>{{printf "%.2f" .Price}}</td>
<td>{{printf "%.0f" .Volume}}</td>
<td>{{.Timestamp.Format "15:04:05.000"}}</td>
<td>{{.CollectedAt.Format "15:04:05.000"}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))
