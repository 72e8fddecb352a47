// Package metrics provides Prometheus metrics export for the scheduling
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports engine metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	// Calendar source metrics
	fetchRequests *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec

	// Availability metrics
	availabilityRequests *prometheus.CounterVec
	availabilityLatency  prometheus.Histogram

	// Conflict metrics
	conflictsDetected *prometheus.CounterVec

	// Resolution metrics
	plansGenerated     *prometheus.CounterVec
	decisionsProcessed *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.fetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clearday",
			Subsystem: "source",
			Name:      "fetch_requests_total",
			Help:      "Total number of calendar provider fetches",
		},
		[]string{"provider", "status"},
	)

	e.fetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clearday",
			Subsystem: "source",
			Name:      "fetch_latency_seconds",
			Help:      "Calendar provider fetch latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"provider"},
	)

	e.availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clearday",
			Subsystem: "engine",
			Name:      "availability_requests_total",
			Help:      "Total number of availability aggregations",
		},
		[]string{"status"},
	)

	e.availabilityLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clearday",
			Subsystem: "engine",
			Name:      "availability_latency_seconds",
			Help:      "Availability aggregation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.conflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clearday",
			Subsystem: "engine",
			Name:      "conflicts_detected_total",
			Help:      "Total number of detected scheduling conflicts",
		},
		[]string{"type", "severity"},
	)

	e.plansGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clearday",
			Subsystem: "engine",
			Name:      "resolution_plans_total",
			Help:      "Total number of generated resolution candidates",
		},
		[]string{"type"},
	)

	e.decisionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clearday",
			Subsystem: "engine",
			Name:      "action_decisions_total",
			Help:      "Total number of processed action decisions",
		},
		[]string{"decision", "status"},
	)

	registry.MustRegister(
		e.fetchRequests,
		e.fetchLatency,
		e.availabilityRequests,
		e.availabilityLatency,
		e.conflictsDetected,
		e.plansGenerated,
		e.decisionsProcessed,
	)
	return e
}

func (e *Exporter) ObserveFetch(provider, status string, elapsed time.Duration) {
	e.fetchRequests.WithLabelValues(provider, status).Inc()
	e.fetchLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (e *Exporter) ObserveAvailability(status string, elapsed time.Duration) {
	e.availabilityRequests.WithLabelValues(status).Inc()
	e.availabilityLatency.Observe(elapsed.Seconds())
}

func (e *Exporter) CountConflict(conflictType, severity string) {
	e.conflictsDetected.WithLabelValues(conflictType, severity).Inc()
}

func (e *Exporter) CountPlan(resolutionType string) {
	e.plansGenerated.WithLabelValues(resolutionType).Inc()
}

func (e *Exporter) CountDecision(decision, status string) {
	e.decisionsProcessed.WithLabelValues(decision, status).Inc()
}

// Handler returns an HTTP handler serving the registry in Prometheus
// text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
