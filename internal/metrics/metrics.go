// Package metrics exposes Prometheus metrics for the orchestration engine
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantage-ai/vantage/pkg/events"
	"github.com/vantage-ai/vantage/pkg/plan"
)

// Metrics holds the engine's Prometheus collectors. It doubles as an event
// sink so action counts stay accurate without touching the orchestrator.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	ActionsTotal  *prometheus.CounterVec
	RetriesTotal  *prometheus.CounterVec
	EventsDropped prometheus.Counter
}

// New creates and registers all collectors on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vantage_runs_total",
			Help: "Completed runs by final status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vantage_run_duration_seconds",
			Help:    "Wall time of a full run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vantage_actions_total",
			Help: "Terminal action states by kind and status",
		}, []string{"kind", "status"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vantage_action_retries_total",
			Help: "Retry transitions by action kind",
		}, []string{"kind"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vantage_progress_events_dropped_total",
			Help: "Progress events dropped for slow subscribers",
		}),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ActionsTotal,
		m.RetriesTotal,
		m.EventsDropped,
	)
	return m
}

// Emit implements events.Sink: terminal and retrying transitions feed the
// action counters.
func (m *Metrics) Emit(ev events.Event) {
	switch {
	case ev.Status.Terminal():
		m.ActionsTotal.WithLabelValues(string(ev.Kind), string(ev.Status)).Inc()
	case ev.Status == plan.StatusRetrying:
		m.RetriesTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
}

var _ events.Sink = (*Metrics)(nil)

// ObserveRun records one finished run
func (m *Metrics) ObserveRun(status plan.RunStatus, started time.Time) {
	m.RunsTotal.WithLabelValues(string(status)).Inc()
	m.RunDuration.Observe(time.Since(started).Seconds())
}

// Handler returns the scrape endpoint for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
