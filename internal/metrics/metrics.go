// Package metrics holds the Prometheus instruments of the registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Mutations           *prometheus.CounterVec
	MintAttempts        prometheus.Histogram
	NotificationsFailed prometheus.Counter
	RelayFailures       prometheus.Counter
	RequestDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dmphub_mutations_total",
			Help: "Mutations by operation and result",
		}, []string{"op", "result"}),
		MintAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dmphub_mint_attempts",
			Help:    "Candidate identifiers tried per successful or exhausted mint",
			Buckets: []float64{1, 2, 3, 5, 10},
		}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dmphub_notifications_failed_total",
			Help: "Change events that could not be published after a successful mutation",
		}),
		RelayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dmphub_relay_failures_total",
			Help: "Outbox entries a sink rejected (they are retried)",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dmphub_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
}

// ObserveMutation counts one create, update or tombstone outcome.
func (m *Metrics) ObserveMutation(op, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

// ObserveMintAttempts records how many candidates a mint tried.
func (m *Metrics) ObserveMintAttempts(n int) {
	if m == nil {
		return
	}
	m.MintAttempts.Observe(float64(n))
}

// NotificationFailed counts a change event that was lost after its mutation.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}

// RelayFailed counts a sink rejection seen by the outbox relay.
func (m *Metrics) RelayFailed() {
	if m == nil {
		return
	}
	m.RelayFailures.Inc()
}

// Middleware records request latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
