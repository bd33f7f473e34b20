package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kinflick"

// Metrics holds the service's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// CaptionsTotal counts per-photo outcomes: completed, failed or error.
	CaptionsTotal *prometheus.CounterVec

	// InferenceDurationSeconds is the latency of one vision model call.
	InferenceDurationSeconds *prometheus.HistogramVec

	// BatchesTotal counts caption batches by result: done, all_failed or rejected.
	BatchesTotal *prometheus.CounterVec

	BatchesInFlight prometheus.Gauge

	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry
// together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CaptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "caption",
			Name:      "photos_total",
			Help:      "Total number of photos processed by the caption pipeline, labeled by status.",
		}, []string{"status"}),
		InferenceDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "caption",
			Name:      "inference_duration_seconds",
			Help:      "Time spent waiting for the vision model, labeled by result.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"result"}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "caption",
			Name:      "batches_total",
			Help:      "Total number of caption batches, labeled by result.",
		}, []string{"result"}),
		BatchesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "caption",
			Name:      "batches_in_flight",
			Help:      "Current number of caption batches being generated.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests, labeled by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, labeled by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CaptionsTotal,
		m.InferenceDurationSeconds,
		m.BatchesTotal,
		m.BatchesInFlight,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCaption(status string) {
	if m == nil {
		return
	}
	m.CaptionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveInference(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceDurationSeconds.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) ObserveBatch(result string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(result).Inc()
}

// BatchStarted increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) BatchStarted() func() {
	if m == nil {
		return func() {}
	}
	m.BatchesInFlight.Inc()
	return m.BatchesInFlight.Dec
}

func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
