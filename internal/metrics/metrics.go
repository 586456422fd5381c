// Package metrics holds the Prometheus collectors for analyses and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	alignedPoints    prometheus.Histogram
	collabDuration   *prometheus.HistogramVec
	collabErrors     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "correlate_analyses_total",
			Help: "Analyses run, by outcome and correlation method.",
		}, []string{"outcome", "method"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "correlate_analysis_duration_seconds",
			Help:    "End-to-end analysis duration including model calls.",
			Buckets: prometheus.DefBuckets,
		}),
		alignedPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "correlate_aligned_points",
			Help:    "Number of days shared by the two datasets.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		collabDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "correlate_collaborator_duration_seconds",
			Help:    "Model collaborator call duration by step.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		collabErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "correlate_collaborator_errors_total",
			Help: "Failed model collaborator calls by step.",
		}, []string{"step"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.analysesTotal,
		m.analysisDuration,
		m.alignedPoints,
		m.collabDuration,
		m.collabErrors,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Analysis records one finished analysis. method may be empty when the run
// failed before a method was chosen.
func (m *Metrics) Analysis(outcome, method string, points int, d time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "none"
	}
	m.analysesTotal.WithLabelValues(outcome, method).Inc()
	m.analysisDuration.Observe(d.Seconds())
	if points > 0 {
		m.alignedPoints.Observe(float64(points))
	}
}

// Collaborator records one model call.
func (m *Metrics) Collaborator(step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.collabDuration.WithLabelValues(step).Observe(d.Seconds())
	if err != nil {
		m.collabErrors.WithLabelValues(step).Inc()
	}
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }
