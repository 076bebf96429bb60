package budget

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardEnabled is 1 while new sessions may be opened.
	GuardEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_budget_guard_enabled",
		Help: "Whether the budget guard currently admits new sessions (1) or not (0)",
	})

	// GuardBalance tracks the last checked USDC balance.
	GuardBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_budget_balance_usdc",
		Help: "Last checked USDC balance of the trading wallet",
	})

	// GuardDisableThreshold tracks the balance below which entry stops.
	GuardDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_budget_disable_threshold",
		Help: "USDC balance below which new sessions are refused",
	})

	// GuardEnableThreshold tracks the balance required to re-enable entry.
	GuardEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_budget_enable_threshold",
		Help: "USDC balance required to re-enable session entry",
	})

	// GuardLockedProfit tracks the bankroll slice withheld by the profit lock.
	GuardLockedProfit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_budget_locked_profit",
		Help: "USDC withheld from the tradeable bankroll by the profit lock",
	})

	// GuardAvgStakeSize tracks the rolling average stake.
	GuardAvgStakeSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_budget_avg_stake_size",
		Help: "Rolling average stake size over recent orders",
	})

	// GuardStateChanges tracks enable/disable transitions.
	GuardStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_budget_state_changes_total",
		Help: "Total number of budget guard state transitions",
	})

	// GuardCheckDuration tracks balance check latency.
	GuardCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_budget_check_duration_seconds",
		Help:    "Duration of budget guard balance checks",
		Buckets: prometheus.DefBuckets,
	})
)
