package redeem

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InsertsTotal tracks new ledger entries.
	InsertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_redeem_inserts_total",
		Help: "Total bet records inserted into the ledger",
	})

	// RecordCount tracks the total ledger size.
	RecordCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_redeem_record_count",
		Help: "Total bet records in the ledger",
	})

	// PendingRecords tracks unredeemed records after each sweep.
	PendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_redeem_pending_records",
		Help: "Unredeemed bet records in the ledger",
	})

	// SweepsTotal tracks sweep invocations by outcome.
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_redeem_sweeps_total",
			Help: "Total redemption sweeps by outcome",
		},
		[]string{"outcome"},
	)

	// RedemptionsTotal tracks records reaching the terminal state.
	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_redeem_redemptions_total",
			Help: "Total records marked redeemed by reason",
		},
		[]string{"reason"},
	)

	// AttemptErrorsTotal tracks failed per-record attempts.
	AttemptErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_redeem_attempt_errors_total",
		Help: "Total failed redemption attempts across sweeps",
	})

	// SweepDurationSeconds tracks full-sweep latency.
	SweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_redeem_sweep_duration_seconds",
		Help:    "Duration of full redemption sweeps",
		Buckets: prometheus.DefBuckets,
	})
)
