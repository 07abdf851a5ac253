package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the share ledger.
type Metrics struct {
	Deposits            prometheus.Counter
	Withdrawals         prometheus.Counter
	Transfers           prometheus.Counter
	LiquidityShortfalls prometheus.Counter
}

// New creates and registers all ledger metrics.
func New() *Metrics {
	return &Metrics{
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultd_ledger_deposits_total",
			Help: "Completed deposit and mint operations",
		}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultd_ledger_withdrawals_total",
			Help: "Completed withdraw and redeem operations",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultd_ledger_transfers_total",
			Help: "Completed share transfers",
		}),
		LiquidityShortfalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaultd_ledger_liquidity_shortfalls_total",
			Help: "Withdrawals rejected because owed assets exceeded custodied cash",
		}),
	}
}
