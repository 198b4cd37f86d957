// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts terminal pipeline states by status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cencori",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Gateway requests by terminal status.",
	}, []string{"status", "provider"})

	// RequestDuration observes end-to-end request latency.
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cencori",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "End-to-end gateway request latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// CacheLookups counts cache consults per tier and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cencori",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by tier (exact, semantic) and outcome (hit, miss).",
	}, []string{"tier", "outcome"})

	// WebhookDeliveries counts webhook delivery attempts by outcome.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cencori",
		Subsystem: "webhooks",
		Name:      "deliveries_total",
		Help:      "Webhook delivery attempts by outcome (ok, failed).",
	}, []string{"outcome"})

	// RateLimited counts requests rejected by the per-project limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cencori",
		Subsystem: "gateway",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-project rate limiter.",
	})
)
