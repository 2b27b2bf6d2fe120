// Package metrics exposes Prometheus metrics for workflow operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attest_workflow_operations_total",
			Help: "Workflow operations by operation name and outcome.",
		},
		[]string{"op", "outcome"},
	)

	orphanedUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attest_workflow_orphaned_uploads_total",
			Help: "Content uploads left without a ledger reference after a failed flow.",
		},
		[]string{"op"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attest_workflow_operation_seconds",
			Help:    "Workflow operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// ObserveOperation records one finished workflow operation.
func ObserveOperation(op, outcome string, seconds float64) {
	operationsTotal.WithLabelValues(op, outcome).Inc()
	operationDuration.WithLabelValues(op).Observe(seconds)
}

// IncrementOrphanedUploads records a content upload orphaned by a
// failed flow.
func IncrementOrphanedUploads(op string) {
	orphanedUploadsTotal.WithLabelValues(op).Inc()
}
