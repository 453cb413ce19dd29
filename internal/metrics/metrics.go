// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by route template, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novamind",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by route, method and status code.",
	}, []string{"route", "method", "status"})

	// ChatTurns counts chat and image turns by kind and outcome.
	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "novamind",
		Name:      "chat_turns_total",
		Help:      "Conversation turns, by kind (text, image) and outcome (ok, upstream_error, store_error).",
	}, []string{"kind", "outcome"})

	// CompletionLatency observes calls to the completion service.
	CompletionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "novamind",
		Name:      "completion_duration_seconds",
		Help:      "Latency of completion service calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"kind"})

	// ThreadsCreated counts threads created on a first message.
	ThreadsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "novamind",
		Name:      "threads_created_total",
		Help:      "Threads created lazily on their first message.",
	})
)

const (
	KindText  = "text"
	KindImage = "image"

	OutcomeOK            = "ok"
	OutcomeUpstreamError = "upstream_error"
	OutcomeStoreError    = "store_error"
)
