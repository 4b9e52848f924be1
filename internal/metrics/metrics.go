// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60},
		},
		[]string{"route", "method"},
	)

	AgentCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_calls_total",
			Help: "Calls to upstream AI agents by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	AgentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_call_duration_seconds",
			Help:    "Upstream AI agent latency including polling",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractions_total",
			Help: "Reply extractions by target and winning strategy",
		},
		[]string{"target", "strategy"},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Session state machine transitions",
		},
		[]string{"from", "to"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Sessions currently held in memory",
		},
	)

	WorkerJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_total",
			Help: "Background jobs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Jobs waiting in the worker queue",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAgentCall records one upstream agent call.
func RecordAgentCall(provider, operation string, d time.Duration, err error) {
	AgentCalls.WithLabelValues(provider, operation, outcome(err)).Inc()
	AgentDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// RecordExtraction has the signature of an extract.Observer.
func RecordExtraction(target, strategy string) {
	Extractions.WithLabelValues(target, strategy).Inc()
}

func RecordTransition(from, to string) {
	SessionTransitions.WithLabelValues(from, to).Inc()
}

func RecordJob(kind string, err error) {
	WorkerJobs.WithLabelValues(kind, outcome(err)).Inc()
}

func RecordHTTP(route, method, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(route, method, status).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
