// Package gate implements the expected-value check that every staged bet
// must pass before it is submitted. Evaluate is pure: it never touches the
// network and callers decide what to do with a rejection.
package gate

import "fmt"

// Rejection reasons surfaced in Decision.Reason and on the skip metric.
const (
	ReasonBelowMinProbability = "probability-below-minimum"
	ReasonNoProfitableStake   = "no-profitable-stake"
	ReasonMinStakeOverBudget  = "min-stake-exceeds-budget"
	ReasonNegativeEV          = "negative-ev-at-suggested-stake"
	ReasonInvalidInput        = "invalid-input"
)

// Params holds the cost model and sizing limits.
type Params struct {
	MinProbability float64 // reject below this regardless of stake
	FixedCostPerTx float64 // flat gas-like cost, charged twice (entry + claim)
	SpreadPct      float64 // variable cost as a fraction of stake
	KellyCap       float64 // Kelly fraction cap as a fraction of budget
	StakeCap       float64 // final suggestion cap as a fraction of budget
}

// DefaultParams returns the production cost model.
func DefaultParams() Params {
	return Params{
		MinProbability: 0.53,
		FixedCostPerTx: 0.02,
		SpreadPct:      0.02,
		KellyCap:       0.25,
		StakeCap:       0.50,
	}
}

// Decision is the result of one gate evaluation.
type Decision struct {
	Enter          bool
	SuggestedStake float64
	Reason         string
}

// Evaluate decides whether a bet with the given estimated win probability,
// execution price, and available budget is worth entering, and suggests a
// stake size.
//
// The EV model: a stake S at price p buys S/p shares, each paying $1 on a
// win. With win probability q, spread s and fixed costs F:
//
//	EV(S) = q*S/p - S - s*S - F = S*(q/p - 1 - s) - F
//
// The coefficient c = q/p - 1 - s determines whether any stake is
// profitable; the minimum profitable stake is F/c.
func Evaluate(params Params, probability, price, availableBudget float64) Decision {
	if probability <= 0 || probability >= 1 || price <= 0 || price >= 1 || availableBudget <= 0 {
		return Decision{Reason: ReasonInvalidInput}
	}

	if probability < params.MinProbability {
		return Decision{Reason: ReasonBelowMinProbability}
	}

	fixedCosts := 2 * params.FixedCostPerTx
	coefficient := probability/price - 1 - params.SpreadPct
	if coefficient <= 0 {
		// No stake size can cover costs at these odds.
		return Decision{Reason: ReasonNoProfitableStake}
	}

	minStake := fixedCosts / coefficient
	if minStake > availableBudget {
		return Decision{Reason: ReasonMinStakeOverBudget}
	}

	// Kelly sizing for a binary payout: f* = (q - p) / (1 - p), capped.
	edge := probability - price
	kellyFraction := edge / (1 - price)
	if kellyFraction > params.KellyCap {
		kellyFraction = params.KellyCap
	}
	if kellyFraction < 0 {
		kellyFraction = 0
	}

	stake := kellyFraction * availableBudget
	if stake < minStake {
		stake = minStake
	}
	if maxStake := params.StakeCap * availableBudget; stake > maxStake {
		stake = maxStake
	}

	// Re-validate: capping can push the stake back below profitability.
	if stake*coefficient-fixedCosts < 0 {
		return Decision{Reason: ReasonNegativeEV}
	}

	return Decision{Enter: true, SuggestedStake: stake}
}

// Validate checks the parameter set.
func (p Params) Validate() error {
	if p.MinProbability <= 0.5 || p.MinProbability >= 1 {
		return fmt.Errorf("min probability must be in (0.5, 1), got %f", p.MinProbability)
	}
	if p.FixedCostPerTx < 0 {
		return fmt.Errorf("fixed cost cannot be negative")
	}
	if p.SpreadPct < 0 || p.SpreadPct >= 1 {
		return fmt.Errorf("spread must be in [0, 1), got %f", p.SpreadPct)
	}
	if p.KellyCap <= 0 || p.KellyCap > 1 {
		return fmt.Errorf("kelly cap must be in (0, 1], got %f", p.KellyCap)
	}
	if p.StakeCap <= 0 || p.StakeCap > 1 {
		return fmt.Errorf("stake cap must be in (0, 1], got %f", p.StakeCap)
	}
	return nil
}
