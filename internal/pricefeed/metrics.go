package pricefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CurrentPrice tracks the last accepted price per asset.
	CurrentPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "updown_price_current",
			Help: "Last accepted price per asset",
		},
		[]string{"asset"},
	)

	// TicksTotal tracks accepted ticks per asset.
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_price_ticks_total",
			Help: "Total accepted price ticks",
		},
		[]string{"asset"},
	)

	// TicksRejectedTotal tracks ticks discarded by the sanity filter.
	TicksRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_price_ticks_rejected_total",
			Help: "Total price ticks rejected by the sanity filter",
		},
		[]string{"asset"},
	)

	// StreamConnected indicates whether the stream connection is up.
	StreamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_price_stream_connected",
		Help: "1 when the price stream is connected",
	})

	// StreamDisconnectsTotal counts stream disconnects.
	StreamDisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_price_stream_disconnects_total",
		Help: "Total price stream disconnects",
	})

	// StreamDropsTotal counts ticks dropped due to a slow consumer.
	StreamDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_price_stream_drops_total",
		Help: "Total ticks dropped because the update buffer was full",
	})

	// FallbackActive indicates the permanent REST polling fallback is active.
	FallbackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_price_fallback_active",
		Help: "1 when the feed has fallen back to REST polling",
	})

	// PollErrorsTotal counts REST polling failures.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_price_poll_errors_total",
		Help: "Total REST price poll failures",
	})
)
