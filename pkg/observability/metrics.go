// Package observability holds metrics and tracing for the API.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"scribe/application/ports"
	"scribe/domain/core/valueobjects"
	"scribe/domain/ledger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	ConsumeDecisions *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	ExportsTotal     *prometheus.CounterVec
	ExportDuration   *prometheus.HistogramVec
}

var _ ports.Metrics = (*Collector)(nil)

// NewCollector creates a collector with its own registry, so tests can build
// as many as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ConsumeDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_decisions_total",
				Help:      "Metered usage decisions by kind, outcome and basis",
			},
			[]string{"kind", "outcome", "basis"},
		),
		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Whiteboard analysis duration in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"status"},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Exports generated by format and final status",
			},
			[]string{"format", "status"},
		),
		ExportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Export rendering duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"format"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ConsumeDecisions,
		c.AnalysisDuration,
		c.ExportsTotal,
		c.ExportDuration,
	)
	return c
}

// RecordConsume counts one ledger decision
func (c *Collector) RecordConsume(kind valueobjects.UsageKind, decision ledger.Decision) {
	outcome := "allowed"
	if !decision.Allowed {
		outcome = "denied"
	}
	c.ConsumeDecisions.WithLabelValues(string(kind), outcome, string(decision.Basis)).Inc()
}

// RecordAnalysis observes one analysis run
func (c *Collector) RecordAnalysis(status string, took time.Duration) {
	c.AnalysisDuration.WithLabelValues(status).Observe(took.Seconds())
}

// RecordExport observes one export generation
func (c *Collector) RecordExport(format valueobjects.ExportFormat, status valueobjects.ExportStatus, took time.Duration) {
	c.ExportsTotal.WithLabelValues(string(format), string(status)).Inc()
	c.ExportDuration.WithLabelValues(string(format)).Observe(took.Seconds())
}

// RecordHTTP observes one served request
func (c *Collector) RecordHTTP(method, route string, status int, took time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
