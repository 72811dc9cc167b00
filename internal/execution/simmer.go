package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const simmerBaseURL = "https://api.simmer.markets"

// tradeRequest is the Simmer SDK trade payload. Sells additionally carry
// action and shares.
type tradeRequest struct {
	MarketID string   `json:"market_id"`
	Side     string   `json:"side"`
	Amount   float64  `json:"amount"`
	Venue    string   `json:"venue"`
	Source   string   `json:"source"`
	Action   string   `json:"action,omitempty"`
	Shares   *float64 `json:"shares,omitempty"`
}

// tradeResponse covers the field variants the Simmer API returns across
// venues.
type tradeResponse struct {
	Success      bool     `json:"success"`
	TradeID      string   `json:"trade_id"`
	FillPrice    *float64 `json:"fill_price"`
	Price        *float64 `json:"price"`
	SharesBought *float64 `json:"shares_bought"`
	Shares       *float64 `json:"shares"`
	FillSize     *float64 `json:"fill_size"`
	Size         *float64 `json:"size"`
	Error        string   `json:"error"`
	Message      string   `json:"message"`
}

// SimmerClient talks to the Simmer trading API with bearer auth.
type SimmerClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewSimmerClient creates a client authenticated with the given API key.
func NewSimmerClient(baseURL, apiKey string, logger *slog.Logger) *SimmerClient {
	if baseURL == "" {
		baseURL = simmerBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &SimmerClient{
		http:   client,
		logger: logger.With("component", "execution", "adapter", "simmer"),
	}
}

// Trade submits one trade. A non-nil error means the request never reached a
// usable response (transport failure or HTTP >= 400); venue-level rejections
// come back in the response body.
func (c *SimmerClient) Trade(ctx context.Context, req tradeRequest) (*tradeResponse, error) {
	var out tradeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/sdk/trade")
	if err != nil {
		return nil, fmt.Errorf("simmer trade: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("simmer trade: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}
