// Package telemetry provides observability primitives for the aipipe gateway.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge

	UpstreamDuration *prometheus.HistogramVec // labels: provider
	UpstreamErrors   *prometheus.CounterVec   // labels: provider, status

	LedgerAddTotal *prometheus.CounterVec // labels: native ("true"/"false")
	LedgerAddUSD   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aipipe",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "aipipe",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aipipe",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aipipe",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream provider fetch duration in seconds.",
		}, []string{"provider"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aipipe",
			Name:      "upstream_errors_total",
			Help:      "Total upstream provider fetch errors.",
		}, []string{"provider", "status"}),

		LedgerAddTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aipipe",
			Name:      "ledger_add_total",
			Help:      "Total cost ledger add operations, by whether the credential was native.",
		}, []string{"native"}),

		LedgerAddUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aipipe",
			Name:      "ledger_add_usd_total",
			Help:      "Total dollars added to the cost ledger.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.LedgerAddTotal,
		m.LedgerAddUSD,
	)

	return m
}
