package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// gateway and the scan pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	scanTotal       *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	sessionsEnded   prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	scanTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_scans_total",
		Help: "Total identity scans by outcome",
	}, []string{"outcome"})

	sessionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_created_total",
		Help: "Total attendance sessions created",
	})

	sessionsEnded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_ended_total",
		Help: "Total attendance sessions explicitly ended",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, scanTotal, sessionsCreated, sessionsEnded, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		scanTotal:       scanTotal,
		sessionsCreated: sessionsCreated,
		sessionsEnded:   sessionsEnded,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records a completed HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveScan records an identity scan outcome.
func (m *MetricsService) ObserveScan(outcome string) {
	m.scanTotal.WithLabelValues(outcome).Inc()
}

// SessionCreated bumps the created counter.
func (m *MetricsService) SessionCreated() {
	m.sessionsCreated.Inc()
}

// SessionEnded bumps the ended counter.
func (m *MetricsService) SessionEnded() {
	m.sessionsEnded.Inc()
}
