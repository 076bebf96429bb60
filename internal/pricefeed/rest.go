package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// RESTClient fetches last prices from the ticker endpoint. Used as the
// permanent fallback once the stream's reconnect budget is spent.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a ticker client.
func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// LastPrice fetches the last traded price for one asset.
func (c *RESTClient) LastPrice(ctx context.Context, asset string) (float64, error) {
	url := fmt.Sprintf("%s?symbol=%s", c.baseURL, SymbolForAsset(asset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ticker API error: status %d", resp.StatusCode)
	}

	var body struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	price, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", body.Price, err)
	}

	return price, nil
}
