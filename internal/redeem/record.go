// Package redeem implements the durable, idempotent claim workflow that
// recovers settled winnings on-chain. Records survive process restarts via a
// persisted ledger and are swept periodically until redeemed.
package redeem

import (
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

var conditionIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// BetRecord is one persisted position awaiting redemption. (ConditionID,
// TokenID) is the natural key; inserting a duplicate is a no-op.
type BetRecord struct {
	ConditionID    string     `json:"conditionId"`
	TokenID        string     `json:"tokenId"`
	MarketLabel    string     `json:"marketLabel"`
	Side           types.Side `json:"side"`
	CreatedAt      time.Time  `json:"createdAt"`
	Redeemed       bool       `json:"redeemed"`
	RedeemedAt     *time.Time `json:"redeemedAt,omitempty"`
	RedeemedAmount float64    `json:"redeemedAmount,omitempty"`
	AttemptCount   int        `json:"attemptCount"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	Note           string     `json:"note,omitempty"`
}

// Key returns the natural ledger key.
func (r *BetRecord) Key() string {
	return r.ConditionID + "/" + r.TokenID
}

// Validate rejects malformed records before they can enter the ledger. A bad
// condition or token ID would fail every future sweep, so it is refused at
// the door instead.
func (r *BetRecord) Validate() error {
	if !conditionIDPattern.MatchString(r.ConditionID) {
		return fmt.Errorf("condition ID %q is not a 32-byte hex value", r.ConditionID)
	}
	if r.TokenID == "" {
		return fmt.Errorf("token ID cannot be empty")
	}
	if _, ok := new(big.Int).SetString(r.TokenID, 10); !ok {
		return fmt.Errorf("token ID %q is not a decimal integer", r.TokenID)
	}
	if r.Side != types.SideUp && r.Side != types.SideDown {
		return fmt.Errorf("side must be up or down, got %s", r.Side)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created-at timestamp cannot be zero")
	}
	return nil
}

// markAttempt records one sweep attempt, success or not.
func (r *BetRecord) markAttempt(at time.Time, attemptErr error) {
	r.AttemptCount++
	r.LastAttemptAt = &at
	if attemptErr != nil {
		r.LastError = attemptErr.Error()
	} else {
		r.LastError = ""
	}
}

// markRedeemed transitions the record to its terminal state. Redeemed is
// monotonic: callers never clear it.
func (r *BetRecord) markRedeemed(at time.Time, amount float64, note string) {
	r.Redeemed = true
	r.RedeemedAt = &at
	r.RedeemedAmount = amount
	r.Note = note
}
