package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal tracks order submissions by side and outcome.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_exchange_orders_total",
			Help: "Total orders submitted by side and outcome",
		},
		[]string{"side", "outcome"},
	)

	// OrderDurationSeconds tracks order placement latency end to end.
	OrderDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_exchange_order_duration_seconds",
		Help:    "Duration of order placement including signing and submission",
		Buckets: prometheus.DefBuckets,
	})

	// DryRunOrdersTotal tracks locally simulated fills.
	DryRunOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_exchange_dry_run_orders_total",
		Help: "Total orders simulated in dry-run mode",
	})

	// OddsRequestsTotal tracks midpoint quote fetches.
	OddsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_exchange_odds_requests_total",
			Help: "Total odds (midpoint) requests by outcome",
		},
		[]string{"outcome"},
	)

	// ConditionLookupsTotal tracks Gamma condition ID resolutions.
	ConditionLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_exchange_condition_lookups_total",
			Help: "Total condition ID lookups by outcome",
		},
		[]string{"outcome"},
	)
)
