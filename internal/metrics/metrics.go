// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLMRequests counts generation calls by purpose and outcome
	// (ok, rate_limited, timeout, error). Retried attempts count separately.
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepreview_llm_requests_total",
			Help: "Total number of LLM generation calls",
		},
		[]string{"purpose", "outcome"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepreview_llm_request_duration_seconds",
			Help:    "Time spent waiting on a single LLM call",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"purpose"},
	)

	// LLMTokens counts tokens by purpose and kind (input, output).
	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepreview_llm_tokens_total",
			Help: "Tokens consumed by LLM calls",
		},
		[]string{"purpose", "kind"},
	)

	// Turns counts assessment turns by kind (start, answer) and result code
	// (ok or the error code returned to the client).
	Turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepreview_turns_total",
			Help: "Total number of assessment turns",
		},
		[]string{"kind", "result"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepreview_turn_duration_seconds",
			Help:    "End-to-end duration of an assessment turn",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
		},
		[]string{"kind"},
	)

	SessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepreview_sessions_completed_total",
			Help: "Total number of completed assessment sessions",
		},
	)

	SessionAverageScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepreview_session_average_score",
			Help:    "Final average score of completed sessions",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// GradingFallbacks counts verdicts that fell back to the default
	// because the model output could not be parsed.
	GradingFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepreview_grading_fallbacks_total",
			Help: "Total number of unparseable grading responses",
		},
	)

	EvaluationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepreview_evaluation_fallbacks_total",
			Help: "Total number of session evaluations that used the fallback",
		},
	)

	// HTTPRequests counts API requests by route, method and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepreview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
)
