package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/clprof/internal/store"
)

const namespace = "clprof"

// Metrics exposes the results of computed sessions to Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	SessionTotal     *prometheus.GaugeVec
	SessionEffective *prometheus.GaugeVec
	EventTime        *prometheus.GaugeVec
	OverlapTime      *prometheus.GaugeVec

	SessionsCreated prometheus.Counter
	SkippedEvents   prometheus.Counter
	ComputeLatency  prometheus.Histogram
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SessionTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_total_seconds",
			Help:      "Summed busy time of all events in a session",
		}, []string{"session"}),

		SessionEffective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_effective_seconds",
			Help:      "Busy time of a session with pairwise overlaps removed",
		}, []string{"session"}),

		EventTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_absolute_seconds",
			Help:      "Busy time per event name",
		}, []string{"session", "event"}),

		OverlapTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_overlap_seconds",
			Help:      "Time two event names were running at the same time",
		}, []string{"session", "event1", "event2"}),

		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions computed from uploaded traces",
		}),

		SkippedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_events_total",
			Help:      "Events dropped because their profiling info was unavailable",
		}),

		ComputeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Time to ingest and analyse an uploaded trace",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	m.registry.MustRegister(
		m.SessionTotal,
		m.SessionEffective,
		m.EventTime,
		m.OverlapTime,
		m.SessionsCreated,
		m.SkippedEvents,
		m.ComputeLatency,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveReport publishes the gauges of one report.
func (m *Metrics) ObserveReport(r *store.Report) {
	m.SessionTotal.WithLabelValues(r.ID).Set(float64(r.Total) / 1e9)
	m.SessionEffective.WithLabelValues(r.ID).Set(float64(r.Effective) / 1e9)
	for _, a := range r.Aggregates {
		m.EventTime.WithLabelValues(r.ID, a.EventName).Set(float64(a.AbsoluteTime) / 1e9)
	}
	for _, o := range r.Overlaps {
		m.OverlapTime.WithLabelValues(r.ID, o.Event1Name, o.Event2Name).Set(float64(o.Duration) / 1e9)
	}
}

// Forget removes every series of a session.
func (m *Metrics) Forget(id string) {
	labels := prometheus.Labels{"session": id}
	m.SessionTotal.DeletePartialMatch(labels)
	m.SessionEffective.DeletePartialMatch(labels)
	m.EventTime.DeletePartialMatch(labels)
	m.OverlapTime.DeletePartialMatch(labels)
}
