// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Feed message and tick rates, reconnect count
//   - Rate limiter wait time
//   - Tick queue depth and drops
//   - Writer batch inserts and errors
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects collector runtime metrics into a dedicated registry.
// A nil *Metrics is valid and records nothing, so packages can be tested
// without wiring Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	ticksReceived prometheus.Counter
	ticksSampled  prometheus.Counter
	ticksDropped  prometheus.Counter
	ticksInserted prometheus.Counter
	insertErrors  prometheus.Counter
	flushes       prometheus.Counter
	reconnects    prometheus.Counter
	limiterWait   prometheus.Histogram
	queueDepth    prometheus.Gauge
}

// New creates a Metrics set registered in a fresh registry.
func New(instanceID string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	labels := prometheus.Labels{"instance": instanceID}

	return &Metrics{
		registry: reg,
		ticksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name:        "tickstream_ticks_received_total",
			Help:        "Ticks parsed from the feed",
			ConstLabels: labels,
		}),
		ticksSampled: factory.NewCounter(prometheus.CounterOpts{
			Name:        "tickstream_ticks_sampled_total",
			Help:        "Ticks filtered out by the collection cycle",
			ConstLabels: labels,
		}),
		ticksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name:        "tickstream_ticks_dropped_total",
			Help:        "Ticks dropped because the queue was full",
			ConstLabels: labels,
		}),
		ticksInserted: factory.NewCounter(prometheus.CounterOpts{
			Name:        "tickstream_ticks_inserted_total",
			Help:        "Ticks written to the database",
			ConstLabels: labels,
		}),
		insertErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "tickstream_insert_errors_total",
			Help:        "Failed batch inserts",
			ConstLabels: labels,
		}),
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Name:        "tickstream_writer_flushes_total",
			Help:        "Writer batch flushes",
			ConstLabels: labels,
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name:        "tickstream_feed_reconnects_total",
			Help:        "Feed reconnection attempts",
			ConstLabels: labels,
		}),
		limiterWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "tickstream_limiter_wait_seconds",
			Help:        "Time spent waiting in the rate limiter",
			ConstLabels: labels,
			Buckets:     []float64{.001, .01, .1, .5, 1, 2, 5, 10, 30, 60},
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "tickstream_queue_depth",
			Help:        "Ticks currently buffered between feed and writer",
			ConstLabels: labels,
		}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TickReceived() {
	if m != nil {
		m.ticksReceived.Inc()
	}
}

func (m *Metrics) TickSampled() {
	if m != nil {
		m.ticksSampled.Inc()
	}
}

func (m *Metrics) TickDropped() {
	if m != nil {
		m.ticksDropped.Inc()
	}
}

func (m *Metrics) TicksInserted(n int) {
	if m != nil {
		m.ticksInserted.Add(float64(n))
	}
}

func (m *Metrics) InsertError() {
	if m != nil {
		m.insertErrors.Inc()
	}
}

func (m *Metrics) Flush() {
	if m != nil {
		m.flushes.Inc()
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) LimiterWait(d time.Duration) {
	if m != nil {
		m.limiterWait.Observe(d.Seconds())
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}
