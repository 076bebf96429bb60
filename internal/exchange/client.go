// Package exchange talks to the Polymarket CLOB: odds quotes, order
// submission, and condition ID resolution for settled-market redemption.
package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// Client is the trading surface the session machine drives. Implementations
// must be safe for concurrent use.
type Client interface {
	// Initialize prepares the client for trading. It must be called once
	// before any other method.
	Initialize(ctx context.Context) error

	// GetOdds returns the current midpoint probability for both outcome
	// tokens of a market.
	GetOdds(ctx context.Context, market *types.Market) (types.Odds, error)

	// PlaceOrder buys amountUSD worth of the given side's outcome token.
	// A nil error with Success=false never happens: rejections come back
	// as a *types.OrderError.
	PlaceOrder(ctx context.Context, market *types.Market, side types.Side, amountUSD float64) (*types.OrderResult, error)

	// ConditionID resolves the on-chain condition ID for a market, needed
	// to redeem winning positions after resolution.
	ConditionID(ctx context.Context, marketID string) (string, error)
}

// Config holds CLOB client configuration.
type Config struct {
	CLOBURL       string
	GammaURL      string
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	ProxyAddress  string
	SignatureType int
	DryRun        bool
	HTTPTimeout   time.Duration
	Logger        *zap.Logger
}

// CLOBClient implements Client against the Polymarket CLOB and Gamma APIs.
type CLOBClient struct {
	clobURL    string
	gammaURL   string
	dryRun     bool
	httpClient *http.Client
	signer     *orderSigner
	logger     *zap.Logger

	mu         sync.RWMutex
	conditions map[string]string // marketID -> conditionID
}

// New creates a CLOB client. In live mode the signing credentials are
// required; in dry-run mode orders are simulated locally and only the
// public endpoints are used.
func New(cfg *Config) (*CLOBClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.CLOBURL == "" {
		return nil, fmt.Errorf("CLOB URL cannot be empty")
	}
	if cfg.GammaURL == "" {
		return nil, fmt.Errorf("gamma URL cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &CLOBClient{
		clobURL:    cfg.CLOBURL,
		gammaURL:   cfg.GammaURL,
		dryRun:     cfg.DryRun,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
		conditions: make(map[string]string),
	}

	if !cfg.DryRun {
		signer, err := newOrderSigner(cfg, c.httpClient)
		if err != nil {
			return nil, fmt.Errorf("create order signer: %w", err)
		}
		c.signer = signer
	}

	return c, nil
}

// Initialize verifies connectivity against the CLOB time endpoint.
func (c *CLOBClient) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.clobURL+"/time", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach CLOB: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("CLOB time endpoint returned status %d", resp.StatusCode)
	}

	c.logger.Info("exchange-initialized",
		zap.String("clob_url", c.clobURL),
		zap.Bool("dry_run", c.dryRun))

	return nil
}

// midpointResponse is the CLOB /midpoint payload.
type midpointResponse struct {
	Mid string `json:"mid"`
}

// GetOdds fetches the midpoint price for both outcome tokens. Midpoints are
// already probabilities in [0, 1].
func (c *CLOBClient) GetOdds(ctx context.Context, market *types.Market) (types.Odds, error) {
	up, err := c.midpoint(ctx, market.UpTokenID)
	if err != nil {
		OddsRequestsTotal.WithLabelValues("error").Inc()
		return types.Odds{}, fmt.Errorf("fetch up midpoint: %w", err)
	}

	down, err := c.midpoint(ctx, market.DownTokenID)
	if err != nil {
		OddsRequestsTotal.WithLabelValues("error").Inc()
		return types.Odds{}, fmt.Errorf("fetch down midpoint: %w", err)
	}

	OddsRequestsTotal.WithLabelValues("success").Inc()
	return types.Odds{Up: up, Down: down}, nil
}

func (c *CLOBClient) midpoint(ctx context.Context, tokenID string) (float64, error) {
	endpoint := fmt.Sprintf("%s/midpoint?token_id=%s", c.clobURL, tokenID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var mid midpointResponse
	if err = json.Unmarshal(body, &mid); err != nil {
		return 0, fmt.Errorf("unmarshal response: %w", err)
	}

	price, err := strconv.ParseFloat(mid.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("parse midpoint %q: %w", mid.Mid, err)
	}
	if price <= 0 || price >= 1 {
		return 0, fmt.Errorf("midpoint %f outside (0, 1)", price)
	}

	return price, nil
}

// PlaceOrder buys the given side. In dry-run mode the fill is simulated at
// the current midpoint; in live mode a signed FOK buy is submitted.
func (c *CLOBClient) PlaceOrder(ctx context.Context, market *types.Market, side types.Side, amountUSD float64) (result *types.OrderResult, err error) {
	if side != types.SideUp && side != types.SideDown {
		return nil, fmt.Errorf("side must be up or down, got %s", side)
	}
	if amountUSD <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %f", amountUSD)
	}

	start := time.Now()
	defer func() {
		OrderDurationSeconds.Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		OrdersTotal.WithLabelValues(side.String(), outcome).Inc()
	}()

	tokenID := market.TokenFor(side)

	if c.dryRun {
		return c.simulateOrder(ctx, market, side, tokenID, amountUSD)
	}

	orderResp, err := c.signer.placeOrder(ctx, tokenID, amountUSD)
	if err != nil {
		return nil, err
	}

	c.logger.Info("order-placed",
		zap.String("market", market.ID),
		zap.String("side", side.String()),
		zap.String("order_id", orderResp.OrderID),
		zap.Float64("amount_usd", amountUSD),
		zap.Float64("fill_price", orderResp.Price),
		zap.Float64("fill_size", orderResp.Size))

	return &types.OrderResult{
		Success:      true,
		OrderID:      orderResp.OrderID,
		FilledShares: orderResp.Size,
		FillPrice:    orderResp.Price,
	}, nil
}

// simulateOrder fills at the current midpoint without touching the order
// endpoint, so dry-run ledgers carry realistic prices.
func (c *CLOBClient) simulateOrder(ctx context.Context, market *types.Market, side types.Side, tokenID string, amountUSD float64) (*types.OrderResult, error) {
	price, err := c.midpoint(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("fetch fill price: %w", err)
	}

	orderID := "dry-" + uuid.NewString()
	shares := amountUSD / price

	DryRunOrdersTotal.Inc()
	c.logger.Info("order-simulated",
		zap.String("market", market.ID),
		zap.String("side", side.String()),
		zap.String("order_id", orderID),
		zap.Float64("amount_usd", amountUSD),
		zap.Float64("fill_price", price),
		zap.Float64("shares", shares))

	return &types.OrderResult{
		Success:      true,
		OrderID:      orderID,
		FilledShares: shares,
		FillPrice:    price,
	}, nil
}

// gammaMarket is the subset of the Gamma /markets/{id} payload we need.
type gammaMarket struct {
	ID          string `json:"id"`
	ConditionID string `json:"conditionId"`
}

// ConditionID resolves and caches the condition ID for a market.
func (c *CLOBClient) ConditionID(ctx context.Context, marketID string) (string, error) {
	c.mu.RLock()
	cached, ok := c.conditions[marketID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/markets/%s", c.gammaURL, marketID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ConditionLookupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ConditionLookupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		ConditionLookupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var market gammaMarket
	if err = json.Unmarshal(body, &market); err != nil {
		ConditionLookupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if market.ConditionID == "" {
		ConditionLookupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("market %s has no condition ID", marketID)
	}

	c.mu.Lock()
	c.conditions[marketID] = market.ConditionID
	c.mu.Unlock()

	ConditionLookupsTotal.WithLabelValues("success").Inc()
	return market.ConditionID, nil
}
