// Package telemetry exposes Prometheus metrics for the HTTP surface and for
// the translation, AI and token-verification paths. All recording methods are
// safe to call on a nil *Metrics so components can run without telemetry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "namaste"

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	ActiveRequests prometheus.Gauge

	TranslationOutcomes *prometheus.CounterVec
	AIRequests          *prometheus.CounterVec
	AILatency           *prometheus.HistogramVec
	KeyFetches          *prometheus.CounterVec
	TokenVerifications  *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	BreakerOpen         *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry registers collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   defaultDurationBuckets,
		}, []string{"method", "route"}),

		ActiveRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "In-flight HTTP requests",
		}),

		TranslationOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_outcomes_total",
			Help:      "Translation results by outcome (mapped, unmappable, not_found, error)",
		}, []string{"outcome"}),

		AIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "AI mapper calls by operation and result origin",
		}, []string{"operation", "origin"}),

		AILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_provider_duration_seconds",
			Help:      "Latency of calls to the generative provider",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"operation"}),

		KeyFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jwks_fetches_total",
			Help:      "JWKS endpoint fetches by result",
		}, []string{"result"}),

		TokenVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Token verification results by result kind and mode",
		}, []string{"result", "mode"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and hit/miss",
		}, []string{"cache", "result"}),

		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 when the named circuit breaker is open",
		}, []string{"name"}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IncTranslation(outcome string) {
	if m != nil {
		m.TranslationOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncAIRequest(operation, origin string) {
	if m != nil {
		m.AIRequests.WithLabelValues(operation, origin).Inc()
	}
}

func (m *Metrics) ObserveAILatency(operation string, d time.Duration) {
	if m != nil {
		m.AILatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncKeyFetch(result string) {
	if m != nil {
		m.KeyFetches.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncTokenVerification(result, mode string) {
	if m != nil {
		m.TokenVerifications.WithLabelValues(result, mode).Inc()
	}
}

// IncCacheLookup records a hit or miss on the named cache.
func (m *Metrics) IncCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.WithLabelValues(name).Set(v)
}
