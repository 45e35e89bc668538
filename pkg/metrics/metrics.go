// Package metrics declares the Prometheus collectors exported on /metrics.
// Collectors register with the default registry when the package loads.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orangelink"

var (
	// HTTPRequests counts requests by route pattern, method and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// Clicks counts link click outcomes: recorded, ignored (unknown or inactive link), failed.
	Clicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_clicks_total",
		Help:      "Public link clicks by outcome.",
	}, []string{"outcome"})

	// ProfileViews counts profile view recording outcomes: recorded, ignored, failed.
	ProfileViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_views_total",
		Help:      "Public profile view recordings by outcome.",
	}, []string{"outcome"})

	// TokenRefreshes counts refresh attempts by outcome: rotated, rejected.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "token_refreshes_total",
		Help:      "Refresh token rotations by outcome.",
	}, []string{"outcome"})

	// RateLimited counts rejected requests per limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter.",
	}, []string{"limiter"})

	// AssistRequests counts text-rewrite calls by kind and outcome: applied, unchanged, failed.
	AssistRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assist",
		Name:      "requests_total",
		Help:      "Text rewrite suggestions by kind and outcome.",
	}, []string{"kind", "outcome"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
