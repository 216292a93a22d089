// Package metrics exposes Prometheus instrumentation for the HTTP
// surface, the ranking pipeline and the notification queue.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so the default Go collectors and any
// embedding process stay out of the scrape output.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	oracleRequests  *prometheus.CounterVec
	recommendations prometheus.Counter
	jobsProcessed   *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskd",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		httpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deskd",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		oracleRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskd",
			Name:      "oracle_requests_total",
			Help:      "Relevance oracle calls by operation and outcome",
		}, []string{"op", "outcome"}),
		recommendations: auto.NewCounter(prometheus.CounterOpts{
			Namespace: "deskd",
			Name:      "recommendations_total",
			Help:      "Completed agent ranking runs",
		}),
		jobsProcessed: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskd",
			Name:      "jobs_processed_total",
			Help:      "Background jobs by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// RecordOracle counts one oracle call. outcome is "ok" or the error class.
func (m *Metrics) RecordOracle(op, outcome string) {
	m.oracleRequests.WithLabelValues(op, outcome).Inc()
}

// RecordRecommendation counts one completed ranking run.
func (m *Metrics) RecordRecommendation() {
	m.recommendations.Inc()
}

// RecordJob counts one processed background job.
func (m *Metrics) RecordJob(jobType, outcome string) {
	m.jobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments each request, labeled by the chi route pattern
// so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
