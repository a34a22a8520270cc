// Package metrics registers and serves the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	rateLookups     *prometheus.CounterVec
}

// New creates the service collectors and registers them on the default
// registry. The service name becomes the metric prefix, with hyphens
// replaced so Prometheus accepts it.
func New(serviceName, version string) *Metrics {
	prefix := strings.ReplaceAll(serviceName, "-", "_")

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),
		rateLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_rate_lookups_total",
				Help: "Exchange rate lookups by outcome (hit, fetch, fallback)",
			},
			[]string{"outcome"},
		),
	}

	serviceInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_service_info",
			Help: "Service information",
		},
		[]string{"version"},
	)

	prometheus.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
		m.rateLookups,
		serviceInfo,
	)
	serviceInfo.WithLabelValues(version).Set(1)

	return m
}

// Middleware records request counts and latencies per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
		m.requestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveRateLookup counts one exchange-rate lookup outcome. Wired into the
// rates client as its fetch hook.
func (m *Metrics) ObserveRateLookup(outcome string) {
	m.rateLookups.WithLabelValues(outcome).Inc()
}
