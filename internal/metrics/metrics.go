// Package metrics provides Prometheus metrics for the router, the exit
// pipeline and the monitor loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jarvis"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Router
	Swaps        *prometheus.CounterVec
	Fallbacks    prometheus.Counter
	SwapDuration *prometheus.HistogramVec

	// Exit pipeline
	Alerts *prometheus.CounterVec
	Exits  *prometheus.CounterVec

	// Monitor
	PassDuration  prometheus.Histogram
	OpenPositions prometheus.Gauge
	DirtyWrites   prometheus.Gauge

	// Memory
	TradesRecorded *prometheus.CounterVec
	Consolidations prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Swaps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "swaps_total",
			Help:      "Swap attempts by venue, source and result",
		}, []string{"venue", "source", "result"}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Swaps that fell through to the fallback venue",
		}),
		SwapDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "swap_duration_seconds",
			Help:      "Quote plus execute latency per venue",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue"}),

		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exits",
			Name:      "alerts_total",
			Help:      "Exit alerts by type",
		}, []string{"type"}),
		Exits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exits",
			Name:      "executions_total",
			Help:      "Exit executions by result (executed|failed|skipped)",
		}, []string{"result"}),

		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "pass_duration_seconds",
			Help:      "Duration of one monitor pass",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "open_positions",
			Help:      "Open positions at the end of the last pass",
		}),
		DirtyWrites: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "dirty_positions",
			Help:      "Positions whose last write failed",
		}),

		TradesRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "trades_recorded_total",
			Help:      "Closed trades recorded by outcome",
		}, []string{"outcome"}),
		Consolidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "consolidations_total",
			Help:      "Tier 1 to Tier 2 consolidations",
		}),
	}
}

// ObserveSwap records one venue attempt.
func (m *Metrics) ObserveSwap(venue, source string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Swaps.WithLabelValues(venue, source, result).Inc()
	m.SwapDuration.WithLabelValues(venue).Observe(d.Seconds())
}

func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

func (m *Metrics) IncAlert(alertType string) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(alertType).Inc()
}

func (m *Metrics) IncExit(result string) {
	if m == nil {
		return
	}
	m.Exits.WithLabelValues(result).Inc()
}

// ObservePass records a finished monitor pass.
func (m *Metrics) ObservePass(d time.Duration, open, dirty int) {
	if m == nil {
		return
	}
	m.PassDuration.Observe(d.Seconds())
	m.OpenPositions.Set(float64(open))
	m.DirtyWrites.Set(float64(dirty))
}

func (m *Metrics) IncTrade(outcome string) {
	if m == nil {
		return
	}
	m.TradesRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncConsolidation() {
	if m == nil {
		return
	}
	m.Consolidations.Inc()
}

// Handler returns the /metrics HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
