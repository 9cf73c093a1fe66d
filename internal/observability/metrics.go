package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// KNMI EDR API call rate. Watch for: error vs success ratio.
	EDRAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 approaching the 30s timeout.
	EDRAPIDuration *prometheus.HistogramVec

	// Categorized upstream errors (timeout, unauthorized, upstream_5xx, ...).
	EDRAPIErrorsTotal *prometheus.CounterVec

	// Cache hits per backend. Hit rate = hits/(hits+edrApiCallsTotal).
	CacheHitsTotal *prometheus.CounterVec

	// Advisory outcomes by result: mask_required, clear, unknown.
	AdvisoryEvaluationsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Background poller runs and failures per station.
	PollerRunsTotal   prometheus.Counter
	PollerErrorsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	EDRAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edrApiCallsTotal",
			Help: "Total number of KNMI EDR API calls",
		},
		[]string{"status"},
	)
	EDRAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edrApiDurationSeconds",
			Help:    "KNMI EDR API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	EDRAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edrApiErrorsTotal",
			Help: "Total EDR API errors by category",
		},
		[]string{"category"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits",
		},
		[]string{"cacheType"},
	)
	AdvisoryEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisoryEvaluationsTotal",
			Help: "Advisory evaluations by outcome (mask_required, clear, unknown)",
		},
		[]string{"outcome"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	PollerRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pollerRunsTotal",
			Help: "Total background poll cycles",
		},
	)
	PollerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollerErrorsTotal",
			Help: "Background poll failures by station",
		},
		[]string{"station"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		EDRAPICallsTotal, EDRAPIDuration, EDRAPIErrorsTotal,
		CacheHitsTotal, AdvisoryEvaluationsTotal,
		RateLimitDeniedTotal,
		PollerRunsTotal, PollerErrorsTotal,
	)
}

// RecordAdvisoryOutcome records one evaluation outcome.
func RecordAdvisoryOutcome(hasReading, maskRequired bool) {
	switch {
	case !hasReading:
		AdvisoryEvaluationsTotal.WithLabelValues("unknown").Inc()
	case maskRequired:
		AdvisoryEvaluationsTotal.WithLabelValues("mask_required").Inc()
	default:
		AdvisoryEvaluationsTotal.WithLabelValues("clear").Inc()
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
