package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks allocation batch activity.
type Metrics struct {
	BatchItems      *prometheus.CounterVec
	OverReturnClamps prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		BatchItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultd_allocation_batch_items_total",
			Help: "Batch items processed, labeled by direction and outcome.",
		}, []string{"direction", "outcome"}),
		OverReturnClamps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultd_allocation_overreturn_clamps_total",
			Help: "Returned amounts that exceeded the outstanding allocation and were clamped to zero.",
		}),
	}
}
