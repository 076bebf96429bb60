package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

func testMarket() *types.Market {
	now := time.Now()
	return &types.Market{
		ID:          "mkt-1",
		Label:       "BTC up or down 12:00-12:15",
		Asset:       "BTC",
		Timeframe:   15,
		UpTokenID:   "111",
		DownTokenID: "222",
		StartTime:   now,
		EndTime:     now.Add(15 * time.Minute),
	}
}

func newDryRunClient(t *testing.T, serverURL string) *CLOBClient {
	t.Helper()
	client, err := New(&Config{
		CLOBURL:  serverURL,
		GammaURL: serverURL,
		DryRun:   true,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return client
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name:    "nil-config",
			cfg:     nil,
			wantErr: "config cannot be nil",
		},
		{
			name:    "missing-clob-url",
			cfg:     &Config{GammaURL: "http://gamma", Logger: zap.NewNop()},
			wantErr: "CLOB URL cannot be empty",
		},
		{
			name:    "missing-gamma-url",
			cfg:     &Config{CLOBURL: "http://clob", Logger: zap.NewNop()},
			wantErr: "gamma URL cannot be empty",
		},
		{
			name:    "missing-logger",
			cfg:     &Config{CLOBURL: "http://clob", GammaURL: "http://gamma"},
			wantErr: "logger cannot be nil",
		},
		{
			name: "live-without-credentials",
			cfg: &Config{
				CLOBURL:  "http://clob",
				GammaURL: "http://gamma",
				Logger:   zap.NewNop(),
			},
			wantErr: "credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitialize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/time", r.URL.Path)
		w.Write([]byte(`1693500000`))
	}))
	defer server.Close()

	client := newDryRunClient(t, server.URL)
	require.NoError(t, client.Initialize(context.Background()))
}

func TestInitializeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newDryRunClient(t, server.URL)
	err := client.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestGetOdds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/midpoint", r.URL.Path)
		switch r.URL.Query().Get("token_id") {
		case "111":
			w.Write([]byte(`{"mid":"0.55"}`))
		case "222":
			w.Write([]byte(`{"mid":"0.45"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newDryRunClient(t, server.URL)
	odds, err := client.GetOdds(context.Background(), testMarket())
	require.NoError(t, err)
	assert.InDelta(t, 0.55, odds.Up, 1e-9)
	assert.InDelta(t, 0.45, odds.Down, 1e-9)
	assert.InDelta(t, 0.55, odds.For(types.SideUp), 1e-9)
	assert.InDelta(t, 0.45, odds.For(types.SideDown), 1e-9)
}

func TestGetOddsRejectsBadMidpoints(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero", body: `{"mid":"0"}`},
		{name: "above-one", body: `{"mid":"1.2"}`},
		{name: "not-a-number", body: `{"mid":"n/a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newDryRunClient(t, server.URL)
			_, err := client.GetOdds(context.Background(), testMarket())
			require.Error(t, err)
		})
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	client := newDryRunClient(t, "http://unused")

	_, err := client.PlaceOrder(context.Background(), testMarket(), types.SideUnset, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "side must be up or down")

	_, err = client.PlaceOrder(context.Background(), testMarket(), types.SideUp, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestPlaceOrderDryRun(t *testing.T) {
	var orderEndpointHit bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/order" {
			orderEndpointHit = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.Equal(t, "/midpoint", r.URL.Path)
		require.Equal(t, "222", r.URL.Query().Get("token_id"))
		w.Write([]byte(`{"mid":"0.50"}`))
	}))
	defer server.Close()

	client := newDryRunClient(t, server.URL)
	result, err := client.PlaceOrder(context.Background(), testMarket(), types.SideDown, 10)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.OrderID, "dry-"))
	assert.InDelta(t, 0.50, result.FillPrice, 1e-9)
	assert.InDelta(t, 20.0, result.FilledShares, 1e-9)
	assert.False(t, orderEndpointHit, "dry-run must never hit the order endpoint")
}

func TestConditionIDCached(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "/markets/mkt-1", r.URL.Path)
		w.Write([]byte(`{"id":"mkt-1","conditionId":"0xabc123"}`))
	}))
	defer server.Close()

	client := newDryRunClient(t, server.URL)

	for range 3 {
		conditionID, err := client.ConditionID(context.Background(), "mkt-1")
		require.NoError(t, err)
		assert.Equal(t, "0xabc123", conditionID)
	}

	assert.Equal(t, 1, requests, "second and third lookups must come from cache")
}

func TestConditionIDMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"mkt-1"}`))
	}))
	defer server.Close()

	client := newDryRunClient(t, server.URL)
	_, err := client.ConditionID(context.Background(), "mkt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no condition ID")
}
