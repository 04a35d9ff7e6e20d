// Package metrics provides Prometheus metrics export for the concierge pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives pipeline events. Components accept a Recorder so tests and
// CLI runs can pass NopRecorder.
type Recorder interface {
	RecordIntent(intent, rule string)
	RecordSignalDegraded(signal, reason string)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	RecordResolution(method string, found bool)
	RecordLLMLatency(model, provider string, latency time.Duration)
	ObserveStage(stage string, latency time.Duration)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) RecordIntent(string, string) {}
func (NopRecorder) RecordSignalDegraded(string, string) {}
func (NopRecorder) RecordCacheHit(string) {}
func (NopRecorder) RecordCacheMiss(string) {}
func (NopRecorder) RecordResolution(string, bool) {}
func (NopRecorder) RecordLLMLatency(string, string, time.Duration) {}
func (NopRecorder) ObserveStage(string, time.Duration) {}

// PrometheusExporter exports concierge metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	intents      *prometheus.CounterVec
	degraded     *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	resolutions  *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	stageLatency *prometheus.HistogramVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "routing",
			Name:      "intents_total",
			Help:      "Final intents by the arbitration rule that produced them",
		},
		[]string{"intent", "rule"},
	)

	e.degraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "routing",
			Name:      "signal_degraded_total",
			Help:      "Classifier signals that fell back to their default value",
		},
		[]string{"signal", "reason"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "retrieval",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "retrieval",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	e.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "location",
			Name:      "resolutions_total",
			Help:      "Location lookups by method and outcome",
		},
		[]string{"method", "result"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model", "provider"},
	)

	e.stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"stage"},
	)

	registry.MustRegister(
		e.intents,
		e.degraded,
		e.cacheHits,
		e.cacheMisses,
		e.resolutions,
		e.llmLatency,
		e.stageLatency,
	)

	return e
}

// RecordIntent records a final classification.
func (e *PrometheusExporter) RecordIntent(intent, rule string) {
	e.intents.WithLabelValues(intent, rule).Inc()
}

// RecordSignalDegraded records a signal falling back to its default.
func (e *PrometheusExporter) RecordSignalDegraded(signal, reason string) {
	e.degraded.WithLabelValues(signal, reason).Inc()
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordResolution records a location lookup.
func (e *PrometheusExporter) RecordResolution(method string, found bool) {
	result := "hit"
	if !found {
		result = "miss"
	}
	e.resolutions.WithLabelValues(method, result).Inc()
}

// RecordLLMLatency records LLM request latency.
func (e *PrometheusExporter) RecordLLMLatency(model, provider string, latency time.Duration) {
	e.llmLatency.WithLabelValues(model, provider).Observe(latency.Seconds())
}

// ObserveStage records the latency of one pipeline stage.
func (e *PrometheusExporter) ObserveStage(stage string, latency time.Duration) {
	e.stageLatency.WithLabelValues(stage).Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}

var (
	_ Recorder = (*PrometheusExporter)(nil)
	_ Recorder = NopRecorder{}
)
