// Package metrics exposes Prometheus counters for the agent's pipeline,
// save, export and HTTP activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	uploadBytes      prometheus.Counter
	savesTotal       *prometheus.CounterVec
	exportsTotal     *prometheus.CounterVec
	exportBytes      prometheus.Counter
	requestsTotal    *prometheus.CounterVec
	errorsTotal      prometheus.Counter
	unsavedChanges   prometheus.Gauge
}

// New creates and registers the agent's metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sportcut_pipeline_runs_total",
			Help: "Ingestion runs by outcome (done, duplicate, failed)",
		}, []string{"outcome"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sportcut_pipeline_duration_seconds",
			Help:    "Wall time of ingestion runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportcut_upload_bytes_total",
			Help: "Video bytes sent to the analysis server",
		}),
		savesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sportcut_saves_total",
			Help: "Highlight saves by outcome",
		}, []string{"outcome"}),
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sportcut_exports_total",
			Help: "Exports by kind (render, edl) and outcome",
		}, []string{"kind", "outcome"}),
		exportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportcut_export_bytes_total",
			Help: "Rendered export bytes written to disk",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sportcut_http_requests_total",
			Help: "Loopback API requests by method",
		}, []string{"method"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sportcut_http_errors_total",
			Help: "Loopback API responses with status >= 400",
		}),
		unsavedChanges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sportcut_unsaved_changes",
			Help: "1 when the loaded timeline has unsaved edits",
		}),
	}

	registry.MustRegister(
		m.pipelineRuns,
		m.pipelineDuration,
		m.uploadBytes,
		m.savesTotal,
		m.exportsTotal,
		m.exportBytes,
		m.requestsTotal,
		m.errorsTotal,
		m.unsavedChanges,
	)
	return m
}

// ObserveRun records a finished ingestion run.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
	m.pipelineDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) AddUploadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadBytes.Add(float64(n))
}

func (m *Metrics) IncSaves(outcome string) {
	if m == nil {
		return
	}
	m.savesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncExports(kind, outcome string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) AddExportBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.exportBytes.Add(float64(n))
}

// IncRequests increments the request counter for method.
func (m *Metrics) IncRequests(method string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method).Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

func (m *Metrics) SetUnsaved(dirty bool) {
	if m == nil {
		return
	}
	if dirty {
		m.unsavedChanges.Set(1)
	} else {
		m.unsavedChanges.Set(0)
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Gatherer exposes the registry to tests and embedders.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
