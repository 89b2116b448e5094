package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type saleMetrics struct {
	requests   *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	feesRouted prometheus.Counter
}

var (
	saleMetricsOnce sync.Once
	saleRegistry    *saleMetrics
)

// SaleMetrics returns the lazily-initialised metrics registry used to record
// edition sale RPC activity.
func SaleMetrics() *saleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &saleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "perpeditions",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "perpeditions",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "perpeditions",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			feesRouted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "perpeditions",
				Subsystem: "sale",
				Name:      "fees_routed_total",
				Help:      "Count of protocol fee transfers routed to the treasury.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.requests,
			saleRegistry.errors,
			saleRegistry.latency,
			saleRegistry.feesRouted,
		)
	})
	return saleRegistry
}

// Observe records the outcome of an RPC request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *saleMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordFeeRouted increments the treasury fee counter.
func (m *saleMetrics) RecordFeeRouted() {
	if m == nil {
		return
	}
	m.feesRouted.Inc()
}
