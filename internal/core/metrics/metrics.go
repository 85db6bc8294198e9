// Package metrics holds the Prometheus collectors for outbound provider
// traffic and order lifecycle outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "smm_orders"

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	// Registry is what /metrics exposes.
	Registry *prometheus.Registry

	// OutboundRequests counts provider HTTP calls by method and status code ("error" on transport failure).
	OutboundRequests *prometheus.CounterVec
	// OutboundDuration observes provider call latency in seconds.
	OutboundDuration *prometheus.HistogramVec
	// RateLimited counts sends rejected by the fingerprint limiter, per definition.
	RateLimited *prometheus.CounterVec
	// OrderStarts counts Start outcomes ("submitted", "skipped", "failed").
	OrderStarts *prometheus.CounterVec
	// StatusUpdates counts reconciled records by canonical status.
	StatusUpdates *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		OutboundRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Outbound provider requests by method and status code.",
		}, []string{"method", "code"}),
		OutboundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Outbound provider request latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "rate_limited_total",
			Help:      "Requests rejected because the same fingerprint exceeded its decay window budget.",
		}, []string{"definition"}),
		OrderStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "starts_total",
			Help:      "Order start attempts by outcome.",
		}, []string{"result"}),
		StatusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_updates_total",
			Help:      "Orders updated by reconciliation, by resulting status.",
		}, []string{"status"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OutboundRequests,
		m.OutboundDuration,
		m.RateLimited,
		m.OrderStarts,
		m.StatusUpdates,
	)

	return m
}
