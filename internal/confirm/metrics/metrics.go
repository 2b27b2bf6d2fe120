package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	WriteOutcomes     *prometheus.CounterVec
	WriteAttempts     prometheus.Histogram
	ConsistencyFaults prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		WriteOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_confirm_writes_total",
			Help: "Total confirmed ledger writes by operation and final state",
		}, []string{"op", "state"}),
		WriteAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_confirm_attempts",
			Help:    "Submit attempts needed per confirmed write",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		ConsistencyFaults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_confirm_consistency_faults_total",
			Help: "Writes whose read-back verification kept mismatching after all retries",
		}),
	}
}

func (m *Metrics) ObserveWrite(op, state string, attempts int) {
	m.WriteOutcomes.WithLabelValues(op, state).Inc()
	m.WriteAttempts.Observe(float64(attempts))
}

func (m *Metrics) IncrementConsistencyFaults() {
	m.ConsistencyFaults.Inc()
}
