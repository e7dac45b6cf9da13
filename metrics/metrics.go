// Package metrics registers the gateway's prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts handled requests by method and response code.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests handled by the gateway.",
		},
		[]string{"method", "code"},
	)

	// RequestDuration observes request handling time by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Request handling duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ForwardedTotal counts requests relayed to each target service.
	ForwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_forwarded_total",
			Help: "Total number of requests forwarded to target services.",
		},
		[]string{"target"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration, ForwardedTotal, RateLimitedTotal)
}
