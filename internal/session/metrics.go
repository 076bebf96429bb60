package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the registry size.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_session_active",
		Help: "Number of active sessions in the registry",
	})

	// SidesLockedTotal tracks side decisions.
	SidesLockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_session_sides_locked_total",
			Help: "Total side decisions by direction",
		},
		[]string{"side"},
	)

	// BetsExecutedTotal tracks staged bet outcomes.
	BetsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_session_bets_executed_total",
			Help: "Total staged bets reaching executed state by status",
		},
		[]string{"status"},
	)

	// BetSkipsTotal tracks gate and policy rejections by reason.
	BetSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_session_bet_skips_total",
			Help: "Total staged bets skipped by reason",
		},
		[]string{"reason"},
	)

	// SessionsResolvedTotal tracks terminal sessions by result.
	SessionsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_session_resolved_total",
			Help: "Total resolved sessions by result",
		},
		[]string{"result"},
	)

	// ProfitTotal accumulates realized profit across resolved sessions.
	ProfitTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_session_profit_total",
		Help: "Cumulative realized profit in USDC across resolved sessions",
	})

	// StaleCleanupsTotal tracks sessions removed by the cleanup pass.
	StaleCleanupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_session_stale_cleanups_total",
		Help: "Total sessions removed for outliving their market window",
	})
)
