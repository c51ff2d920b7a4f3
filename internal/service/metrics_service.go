package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth operation outcomes recorded against the operation counter.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// MetricsService encapsulates Prometheus instrumentation for the auth
// core: HTTP timings plus per-operation auth counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	authOperations  *prometheus.CounterVec
	sessionsRevoked prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
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

	authOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Authentication and session lifecycle operations by outcome",
	}, []string{"operation", "role", "outcome"})

	sessionsRevoked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_revoked_total",
		Help: "Sessions revoked by logout, logout-all and password changes",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guest_cache_hits_total",
		Help: "Guest restriction lookups served from cache",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guest_cache_misses_total",
		Help: "Guest restriction lookups that fell through to the store",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, authOperations, sessionsRevoked, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		authOperations:  authOperations,
		sessionsRevoked: sessionsRevoked,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAuthOperation counts a lifecycle operation outcome.
func (m *MetricsService) RecordAuthOperation(operation, role, outcome string) {
	if m == nil {
		return
	}
	m.authOperations.WithLabelValues(operation, role, outcome).Inc()
}

// AddSessionsRevoked counts sessions terminated by revocation flows.
func (m *MetricsService) AddSessionsRevoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsRevoked.Add(float64(n))
}

// RecordCacheOperation records guest-cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
