package httpserver

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/mselser95/polymarket-updown/internal/budget"
	"github.com/mselser95/polymarket-updown/internal/redeem"
	"github.com/mselser95/polymarket-updown/internal/rpcpool"
	"github.com/mselser95/polymarket-updown/internal/session"
)

// ErrorResponse is the JSON body for handler errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// sessionView is the read-only JSON projection of one session.
type sessionView struct {
	MarketID      string    `json:"marketId"`
	Label         string    `json:"label"`
	Asset         string    `json:"asset"`
	Timeframe     int       `json:"timeframe"`
	Side          string    `json:"side"`
	Result        string    `json:"result"`
	OpenPrice     float64   `json:"openPrice"`
	TotalInvested float64   `json:"totalInvested"`
	TotalShares   float64   `json:"totalShares"`
	Profit        float64   `json:"profit"`
	PendingBets   int       `json:"pendingBets"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// handleSessions serves a snapshot of every active session.
func handleSessions(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := registry.Snapshot()

		views := make([]sessionView, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, sessionView{
				MarketID:      s.Market.ID,
				Label:         s.Market.Label,
				Asset:         s.Market.Asset,
				Timeframe:     s.Market.Timeframe,
				Side:          s.Side.String(),
				Result:        s.Result.String(),
				OpenPrice:     s.OpenPrice,
				TotalInvested: s.TotalInvested,
				TotalShares:   s.TotalShares,
				Profit:        s.Profit,
				PendingBets:   s.PendingBets(),
				StartTime:     s.Market.StartTime,
				EndTime:       s.Market.EndTime,
			})
		}

		writeJSON(w, http.StatusOK, views)
	}
}

// handleLedger serves the redemption ledger. ?pending=true narrows the
// view to records still awaiting redemption.
func handleLedger(ledger *redeem.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := ledger.Records()

		if r.URL.Query().Get("pending") == "true" {
			pending := records[:0]
			for _, rec := range records {
				if !rec.Redeemed {
					pending = append(pending, rec)
				}
			}
			records = pending
		}

		writeJSON(w, http.StatusOK, records)
	}
}

// handleBudget serves the budget guard state.
func handleBudget(guard *budget.Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, guard.GetStatus())
	}
}

// handleRPCStatus serves per-endpoint health of the RPC pool.
func handleRPCStatus(pool *rpcpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, pool.Statuses())
	}
}
