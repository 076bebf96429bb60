package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MATICBalance tracks the gas token balance.
	MATICBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_matic_balance",
		Help: "Current MATIC balance of the trading wallet",
	})

	// USDCBalance tracks the collateral balance.
	USDCBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_usdc_balance",
		Help: "Current USDC balance of the trading wallet",
	})

	// USDCAllowance tracks the USDC allowance granted to the CTF exchange.
	USDCAllowance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_usdc_allowance",
		Help: "Current USDC allowance granted to the CTF exchange",
	})

	// LastUpdateTimestamp tracks when balances were last refreshed.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_last_update_timestamp",
		Help: "Unix timestamp of the last successful balance refresh",
	})

	// UpdateErrorsTotal tracks failed balance refreshes.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_wallet_update_errors_total",
		Help: "Total number of failed balance refreshes",
	})

	// UpdateDuration tracks balance refresh latency.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_wallet_update_duration_seconds",
		Help:    "Duration of wallet balance refreshes",
		Buckets: prometheus.DefBuckets,
	})
)
