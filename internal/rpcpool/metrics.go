package rpcpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EndpointCount tracks the configured endpoint pool size.
	EndpointCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_rpc_endpoint_count",
		Help: "Number of configured RPC endpoints",
	})

	// CallsTotal tracks individual endpoint attempts by kind and outcome.
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_rpc_calls_total",
			Help: "Total RPC endpoint attempts",
		},
		[]string{"kind", "outcome"},
	)

	// RetryRoundsTotal tracks backoff rounds entered.
	RetryRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_rpc_retry_rounds_total",
			Help: "Total retry rounds entered after a full-round failure",
		},
		[]string{"kind"},
	)

	// ExhaustionsTotal tracks operations that exhausted every round.
	ExhaustionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_rpc_exhaustions_total",
			Help: "Total operations that failed against every endpoint",
		},
		[]string{"kind"},
	)

	// CallDurationSeconds tracks per-attempt latency.
	CallDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_rpc_call_duration_seconds",
		Help:    "Duration of individual RPC endpoint attempts",
		Buckets: prometheus.DefBuckets,
	})
)
