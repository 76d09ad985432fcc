// Package observability collects Prometheus metrics for the gate.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the gate's Prometheus collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	decisionsTotal  *prometheus.CounterVec
	catalogRefresh  prometheus.Histogram
	catalogState    *prometheus.GaugeVec
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "akademos_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "akademos_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "akademos_gate_decisions_total",
		Help: "Route-guard decisions by outcome.",
	}, []string{"outcome"})
	refresh := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "akademos_catalog_refresh_duration_seconds",
		Help:    "Duration of catalog refreshes from the upstream backend.",
		Buckets: prometheus.DefBuckets,
	})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "akademos_catalog_state",
		Help: "Current catalog snapshot state (1 for the active state).",
	}, []string{"state"})
	registry.MustRegister(requests, duration, decisions, refresh, state)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		decisionsTotal:  decisions,
		catalogRefresh:  refresh,
		catalogState:    state,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RecordDecision counts a gate decision by outcome. Satisfies gate.Recorder.
func (m *Metrics) RecordDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCatalogRefresh records the duration of a catalog refresh.
func (m *Metrics) ObserveCatalogRefresh(d time.Duration) {
	if m == nil {
		return
	}
	m.catalogRefresh.Observe(d.Seconds())
}

// SetCatalogState marks the active catalog snapshot state.
func (m *Metrics) SetCatalogState(state string) {
	if m == nil {
		return
	}
	for _, s := range []string{"loading", "fresh", "stale", "failed"} {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.catalogState.WithLabelValues(s).Set(value)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := r.URL.Path
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
