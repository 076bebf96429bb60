package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/polymarket-updown/pkg/types"
	"go.uber.org/zap"
)

// MaxBatchSize is the maximum number of markets the Gamma API returns
// per request.
const MaxBatchSize = 100

// Client is an HTTP client for the Polymarket Gamma API, scoped to the
// short-lived crypto up/down markets.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// gammaMarket is the raw Gamma API market shape. The Outcomes,
// OutcomePrices and ClobTokenIDs fields arrive as JSON arrays encoded
// inside JSON strings.
type gammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Slug          string `json:"slug"`
	ConditionID   string `json:"conditionId"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`
	ClobTokenIDs  string `json:"clobTokenIds"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
}

// assetKeywords maps slug fragments to the asset symbols the price feed
// tracks. Gamma slugs spell assets out ("bitcoin-up-or-down-...").
var assetKeywords = map[string]string{
	"bitcoin":  "BTC",
	"btc":      "BTC",
	"ethereum": "ETH",
	"eth":      "ETH",
	"solana":   "SOL",
	"sol":      "SOL",
	"xrp":      "XRP",
}

// FetchUpDownMarkets fetches active up/down markets expiring soonest,
// paginating as needed. limit == 0 fetches all available markets.
func (c *Client) FetchUpDownMarkets(ctx context.Context, limit int) ([]types.DiscoveredMarket, error) {
	var (
		all          []types.DiscoveredMarket
		page         = 0
		totalFetched = 0
		fetchAll     = limit == 0
	)

	for {
		pageSize := MaxBatchSize
		if !fetchAll {
			remaining := limit - totalFetched
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}

		raw, err := c.fetchPage(ctx, pageSize, page*MaxBatchSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		totalFetched += len(raw)

		for i := range raw {
			dm, ok := c.toDiscovered(&raw[i])
			if !ok {
				continue
			}
			all = append(all, *dm)
		}

		if len(raw) < pageSize {
			break
		}
		if !fetchAll && totalFetched >= limit {
			break
		}

		page++
	}

	return all, nil
}

// fetchPage fetches a single page of active markets ordered by end date
// ascending, so the windows expiring soonest come first.
func (c *Client) fetchPage(ctx context.Context, limit int, offset int) ([]gammaMarket, error) {
	params := url.Values{}
	params.Add("closed", "false")
	params.Add("active", "true")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))
	params.Add("order", "endDate")
	params.Add("ascending", "true")

	requestURL := fmt.Sprintf("%s/markets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polymarket-updown/1.0")

	c.logger.Debug("fetching-markets",
		zap.String("url", requestURL),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	// Gamma returns a bare array, not a wrapped object.
	var markets []gammaMarket
	err = json.Unmarshal(body, &markets)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return markets, nil
}

// toDiscovered converts a raw Gamma market into a DiscoveredMarket.
// Markets that are not crypto up/down windows are dropped silently;
// up/down markets with malformed fields are dropped with a log line.
func (c *Client) toDiscovered(raw *gammaMarket) (*types.DiscoveredMarket, bool) {
	if raw.Closed || !raw.Active {
		return nil, false
	}

	outcomes, err := decodeStringArray(raw.Outcomes)
	if err != nil || len(outcomes) != 2 {
		return nil, false
	}

	upIdx, downIdx := -1, -1
	for i, o := range outcomes {
		switch strings.ToLower(o) {
		case "up":
			upIdx = i
		case "down":
			downIdx = i
		}
	}
	if upIdx < 0 || downIdx < 0 {
		// Not an up/down market at all, e.g. Yes/No.
		return nil, false
	}

	asset := assetFromSlug(raw.Slug)
	if asset == "" {
		return nil, false
	}

	tokens, err := decodeStringArray(raw.ClobTokenIDs)
	if err != nil || len(tokens) != 2 {
		c.logger.Warn("market-missing-clob-tokens",
			zap.String("market-id", raw.ID),
			zap.String("slug", raw.Slug))
		MalformedMarketsTotal.Inc()
		return nil, false
	}

	start, err := time.Parse(time.RFC3339, raw.StartDate)
	if err != nil {
		c.logger.Warn("market-bad-start-date",
			zap.String("market-id", raw.ID),
			zap.String("start-date", raw.StartDate))
		MalformedMarketsTotal.Inc()
		return nil, false
	}
	end, err := time.Parse(time.RFC3339, raw.EndDate)
	if err != nil || !end.After(start) {
		c.logger.Warn("market-bad-end-date",
			zap.String("market-id", raw.ID),
			zap.String("end-date", raw.EndDate))
		MalformedMarketsTotal.Inc()
		return nil, false
	}

	upPrice, downPrice := 0.0, 0.0
	prices, err := decodeStringArray(raw.OutcomePrices)
	if err == nil && len(prices) == 2 {
		upPrice, _ = strconv.ParseFloat(prices[upIdx], 64)
		downPrice, _ = strconv.ParseFloat(prices[downIdx], 64)
	}

	dm := &types.DiscoveredMarket{
		Market: types.Market{
			ID:          raw.ID,
			Label:       raw.Question,
			Asset:       asset,
			Timeframe:   int(math.Round(end.Sub(start).Minutes())),
			UpTokenID:   tokens[upIdx],
			DownTokenID: tokens[downIdx],
			StartTime:   start,
			EndTime:     end,
		},
		UpPrice:   upPrice,
		DownPrice: downPrice,
	}

	err = dm.Validate()
	if err != nil {
		c.logger.Warn("market-failed-validation",
			zap.String("market-id", raw.ID),
			zap.Error(err))
		MalformedMarketsTotal.Inc()
		return nil, false
	}

	return dm, true
}

// decodeStringArray parses a JSON array that the Gamma API double-encodes
// as a string, e.g. `"[\"Up\", \"Down\"]"`.
func decodeStringArray(s string) ([]string, error) {
	if s == "" {
		return nil, fmt.Errorf("empty array field")
	}

	var out []string
	err := json.Unmarshal([]byte(s), &out)
	if err != nil {
		return nil, fmt.Errorf("decode string array: %w", err)
	}

	return out, nil
}

// assetFromSlug returns the asset symbol named by the market slug, or
// "" if no known asset keyword appears.
func assetFromSlug(slug string) string {
	lower := strings.ToLower(slug)
	for keyword, symbol := range assetKeywords {
		if strings.Contains(lower, keyword) {
			return symbol
		}
	}
	return ""
}
