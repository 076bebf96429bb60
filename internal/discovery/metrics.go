package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsDiscoveredTotal tracks up/down markets returned by the Gamma API.
	MarketsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_discovery_markets_total",
		Help: "Total number of up/down markets returned by Gamma API polls",
	})

	// NewMarketsTotal tracks windows emitted for the first time.
	NewMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_discovery_new_markets_total",
		Help: "Total number of new market windows emitted",
	})

	// MalformedMarketsTotal tracks up/down markets dropped during parsing.
	MalformedMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_discovery_malformed_markets_total",
		Help: "Total number of up/down markets dropped for malformed fields",
	})

	// SubscribedMarkets tracks the size of the dedup set.
	SubscribedMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_discovery_subscribed_markets",
		Help: "Number of market windows currently tracked for deduplication",
	})

	// PollDurationSeconds tracks Gamma API poll latency.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_discovery_poll_duration_seconds",
		Help:    "Duration of Gamma API polls",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks Gamma API poll failures.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_discovery_poll_errors_total",
		Help: "Total number of Gamma API poll failures",
	})
)
