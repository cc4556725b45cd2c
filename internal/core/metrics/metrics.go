package metrics

import (
	"context"

	"github.com/Nzyazin/schoolwallet/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "school_wallet"

// Recorder counts wallet operations by outcome and low-balance signals.
type Recorder struct {
	operations *prometheus.CounterVec
	lowBalance prometheus.Counter
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Balance changing wallet operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		lowBalance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_balance_total",
			Help:      "Debits that left a wallet under its low balance threshold.",
		}),
	}
	reg.MustRegister(r.operations, r.lowBalance)
	return r
}

func (r *Recorder) ObserveOperation(operation, outcome string) {
	r.operations.WithLabelValues(operation, outcome).Inc()
}

func (r *Recorder) NotifyLowBalance(_ context.Context, _ models.Wallet) {
	r.lowBalance.Inc()
}
