package session

import "github.com/mselser95/polymarket-updown/pkg/types"

// Stage is one entry in a timeframe's bet plan: at TimeFraction of the
// window, stage BudgetFraction of the session budget.
type Stage struct {
	TimeFraction   float64
	BudgetFraction float64
}

// Plans are front-loaded: the earlier a bet lands after the signal, the
// better the entry price, but a reserve is kept for later confirmation.
// Budget fractions in each plan sum to 1.
var (
	planShort = []Stage{ // up to 5 minutes
		{TimeFraction: 0.20, BudgetFraction: 0.60},
		{TimeFraction: 0.50, BudgetFraction: 0.40},
	}
	planQuarter = []Stage{ // up to 15 minutes
		{TimeFraction: 0.20, BudgetFraction: 0.40},
		{TimeFraction: 0.40, BudgetFraction: 0.35},
		{TimeFraction: 0.60, BudgetFraction: 0.25},
	}
	planHour = []Stage{ // up to 60 minutes
		{TimeFraction: 0.15, BudgetFraction: 0.35},
		{TimeFraction: 0.35, BudgetFraction: 0.35},
		{TimeFraction: 0.55, BudgetFraction: 0.30},
	}
	planLong = []Stage{ // anything longer
		{TimeFraction: 0.10, BudgetFraction: 0.30},
		{TimeFraction: 0.30, BudgetFraction: 0.30},
		{TimeFraction: 0.50, BudgetFraction: 0.40},
	}
)

// PlanFor returns the stage plan for a timeframe class in minutes.
func PlanFor(timeframe int) []Stage {
	switch {
	case timeframe <= 5:
		return planShort
	case timeframe <= 15:
		return planQuarter
	case timeframe <= 60:
		return planHour
	default:
		return planLong
	}
}

// MaterializeBets turns the timeframe's plan into concrete staged bets for
// one market window and budget. The result is append-only: only execution
// fields mutate afterwards.
func MaterializeBets(market types.Market, budget float64) []Bet {
	plan := PlanFor(market.Timeframe)
	minutes := market.Duration().Minutes()

	bets := make([]Bet, 0, len(plan))
	for _, stage := range plan {
		bets = append(bets, Bet{
			ScheduledMinute: stage.TimeFraction * minutes,
			Amount:          stage.BudgetFraction * budget,
		})
	}
	return bets
}
