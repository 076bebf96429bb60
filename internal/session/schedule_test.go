package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/polymarket-updown/internal/testutil"
)

func TestPlanForTimeframeClasses(t *testing.T) {
	tests := []struct {
		name      string
		timeframe int
		want      []Stage
	}{
		{name: "one-minute", timeframe: 1, want: planShort},
		{name: "five-minutes", timeframe: 5, want: planShort},
		{name: "fifteen-minutes", timeframe: 15, want: planQuarter},
		{name: "one-hour", timeframe: 60, want: planHour},
		{name: "one-day", timeframe: 1440, want: planLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanFor(tt.timeframe))
		})
	}
}

func TestPlansStageFullBudget(t *testing.T) {
	for _, plan := range [][]Stage{planShort, planQuarter, planHour, planLong} {
		var total float64
		for _, stage := range plan {
			total += stage.BudgetFraction
			assert.Greater(t, stage.TimeFraction, 0.0)
			assert.Less(t, stage.TimeFraction, 1.0)
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
}

func TestMaterializeBets(t *testing.T) {
	market := testutil.Market("1") // 15 minutes
	bets := MaterializeBets(market, 10)

	require.Len(t, bets, 3)
	assert.InDelta(t, 3.0, bets[0].ScheduledMinute, 1e-9)
	assert.InDelta(t, 6.0, bets[1].ScheduledMinute, 1e-9)
	assert.InDelta(t, 9.0, bets[2].ScheduledMinute, 1e-9)
	assert.InDelta(t, 4.0, bets[0].Amount, 1e-9)
	assert.InDelta(t, 3.5, bets[1].Amount, 1e-9)
	assert.InDelta(t, 2.5, bets[2].Amount, 1e-9)

	var total float64
	for _, bet := range bets {
		assert.False(t, bet.Executed)
		total += bet.Amount
	}
	assert.InDelta(t, 10.0, total, 1e-9)
}

func TestMaterializeBetsShortWindow(t *testing.T) {
	market := testutil.Market("1", testutil.WithTimeframe(5))
	bets := MaterializeBets(market, 4)

	require.Len(t, bets, 2)
	assert.InDelta(t, 1.0, bets[0].ScheduledMinute, 1e-9)
	assert.InDelta(t, 2.5, bets[1].ScheduledMinute, 1e-9)
	assert.InDelta(t, 2.4, bets[0].Amount, 1e-9)
	assert.InDelta(t, 1.6, bets[1].Amount, 1e-9)
}
