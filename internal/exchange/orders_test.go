package exchange

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

// Throwaway key, never funded.
const testPrivateKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func newLiveClient(t *testing.T, serverURL string) *CLOBClient {
	t.Helper()
	client, err := New(&Config{
		CLOBURL:    serverURL,
		GammaURL:   serverURL,
		APIKey:     "api-key",
		Secret:     base64.URLEncoding.EncodeToString([]byte("test-secret")),
		Passphrase: "passphrase",
		PrivateKey: testPrivateKey,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return client
}

func TestPlaceOrderLive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/order", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		// L2 auth headers must all be present.
		assert.Equal(t, "api-key", r.Header.Get("POLY_API_KEY"))
		assert.Equal(t, "passphrase", r.Header.Get("POLY_PASSPHRASE"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
		assert.NotEmpty(t, r.Header.Get("POLY_ADDRESS"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload struct {
			Order     signedOrderJSON `json:"order"`
			Owner     string          `json:"owner"`
			OrderType string          `json:"orderType"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))

		assert.Equal(t, "api-key", payload.Owner)
		assert.Equal(t, "FOK", payload.OrderType)
		assert.Equal(t, "BUY", payload.Order.Side)
		assert.Equal(t, "111", payload.Order.TokenID)
		assert.Equal(t, "10000000", payload.Order.MakerAmount) // 10 USD in raw units
		assert.NotEmpty(t, payload.Order.Signature)

		w.Write([]byte(`{"orderID":"ord-1","status":"matched","price":"0.55","size":"18.18"}`))
	}))
	defer server.Close()

	client := newLiveClient(t, server.URL)
	result, err := client.PlaceOrder(context.Background(), testMarket(), types.SideUp, 10)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "ord-1", result.OrderID)
	assert.InDelta(t, 0.55, result.FillPrice, 1e-9)
	assert.InDelta(t, 18.18, result.FilledShares, 1e-9)
}

func TestPlaceOrderLiveRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"order rejected: INVALID_ORDER_NOT_ENOUGH_BALANCE"}`))
	}))
	defer server.Close()

	client := newLiveClient(t, server.URL)
	_, err := client.PlaceOrder(context.Background(), testMarket(), types.SideUp, 10)
	require.Error(t, err)

	var orderErr *types.OrderError
	require.True(t, errors.As(err, &orderErr))
	assert.Equal(t, types.ErrNotEnoughBalance, orderErr.Code)
	assert.Equal(t, "111", orderErr.TokenID)
	assert.False(t, orderErr.Retryable())
}

func TestPlaceOrderLiveFOKNotFilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderID":"ord-2","status":"unmatched","errorMsg":"FOK_ORDER_NOT_FILLED_ERROR"}`))
	}))
	defer server.Close()

	client := newLiveClient(t, server.URL)
	_, err := client.PlaceOrder(context.Background(), testMarket(), types.SideUp, 10)
	require.Error(t, err)

	var orderErr *types.OrderError
	require.True(t, errors.As(err, &orderErr))
	assert.Equal(t, types.ErrFOKNotFilled, orderErr.Code)
	assert.Equal(t, "ord-2", orderErr.OrderID)
	assert.False(t, orderErr.Retryable())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "tick-size",
			message: "order rejected: INVALID_ORDER_MIN_TICK_SIZE",
			want:    types.ErrInvalidMinTickSize,
		},
		{
			name:    "balance",
			message: "INVALID_ORDER_NOT_ENOUGH_BALANCE",
			want:    types.ErrNotEnoughBalance,
		},
		{
			name:    "market-not-ready",
			message: "MARKET_NOT_READY try again later",
			want:    types.ErrMarketNotReady,
		},
		{
			name:    "unknown",
			message: "internal server error",
			want:    types.ErrUnknownStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.message))
		})
	}
}

func TestUsdToRawAmount(t *testing.T) {
	assert.Equal(t, "10000000", usdToRawAmount(10))
	assert.Equal(t, "500000", usdToRawAmount(0.5))
	assert.Equal(t, "1250000", usdToRawAmount(1.25))
}
