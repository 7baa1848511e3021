package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath serves the Prometheus exposition.
const MetricsPath = "/metrics"

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	handshakes *prometheus.CounterVec
	refreshes  *prometheus.CounterVec
}

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpacks",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adpacks",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpacks",
			Name:      "oauth_callbacks_total",
			Help:      "OAuth callback requests by provider and final handshake state.",
		}, []string{"provider", "state"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adpacks",
			Name:      "pack_refreshes_total",
			Help:      "Pack refreshes started from the dashboard, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.handshakes, m.refreshes)
	return m
}

// Middleware counts requests and observes their latency.
func (m *Metrics) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			m.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
			m.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// ObserveHandshake records one callback outcome.
func (m *Metrics) ObserveHandshake(out Outcome) {
	provider := string(out.Provider)
	if provider == "" {
		provider = "unknown"
	}
	m.handshakes.WithLabelValues(provider, string(out.State)).Inc()
}

// ObserveRefresh records a dashboard refresh result: ok, paused, busy or failed.
func (m *Metrics) ObserveRefresh(result string) {
	m.refreshes.WithLabelValues(result).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
