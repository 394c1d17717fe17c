// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_attempts_total",
		Help: "Document dispatch attempts by document kind and outcome.",
	}, []string{"kind", "outcome"})

	DocumentsAssembled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_assembled_total",
		Help: "Documents assembled for preview or dispatch, by kind.",
	}, []string{"kind"})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "Time spent in the dispatch collaborator.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)

// Dispatch outcomes.
const (
	OutcomeSent      = "sent"
	OutcomeAuthError = "auth_error"
	OutcomeFailed    = "dispatch_error"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
	OutcomeUnsaved   = "status_not_saved"
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
