package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the asset registry.
type Metrics struct {
	AssetsRegistered prometheus.Counter
	RegisterRejected prometheus.Counter
}

// New creates and registers all registry metrics.
func New() *Metrics {
	return &Metrics{
		AssetsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultd_assets_registered_total",
			Help: "Total number of asset classes registered",
		}),
		RegisterRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultd_asset_register_rejected_total",
			Help: "Registration attempts rejected (duplicate or unauthorized)",
		}),
	}
}
