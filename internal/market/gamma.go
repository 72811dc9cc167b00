package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultGammaBaseURL is the public Polymarket Gamma API endpoint.
const DefaultGammaBaseURL = "https://gamma-api.polymarket.com"

// GammaEvent mirrors the Gamma API event object for weather events.
type GammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Markets []GammaMarket `json:"markets"`
}

// GammaMarket mirrors the Gamma API market object. OutcomePrices,
// ClobTokenIds and Liquidity arrive as JSON-encoded strings.
type GammaMarket struct {
	ID                 string  `json:"id"`
	ConditionID        string  `json:"conditionId"`
	Slug               string  `json:"slug"`
	GroupItemTitle     string  `json:"groupItemTitle"`
	GroupItemThreshold string  `json:"groupItemThreshold"`
	OutcomePrices      string  `json:"outcomePrices"`
	ClobTokenIds       string  `json:"clobTokenIds"`
	BestBid            float64 `json:"bestBid"`
	BestAsk            float64 `json:"bestAsk"`
	LastTradePrice     float64 `json:"lastTradePrice"`
	Liquidity          string  `json:"liquidity"`
	Volume24hr         float64 `json:"volume24hr"`
	MakerBaseFee       float64 `json:"makerBaseFee"`
	TakerBaseFee       float64 `json:"takerBaseFee"`
	OrderMinSize       float64 `json:"orderMinSize"`
	AcceptingOrders    bool    `json:"acceptingOrders"`
	EndDate            string  `json:"endDate"`
}

// GammaClient fetches weather events and market prices from the Gamma API.
type GammaClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewGammaClient creates a Gamma API client with retry on 5xx and transport errors.
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	if baseURL == "" {
		baseURL = DefaultGammaBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &GammaClient{
		http:   httpClient,
		logger: logger.With("component", "gamma"),
	}
}

// GetEventBySlug fetches a single event by slug. The API returns a list; the
// first match wins. Returns (nil, "", nil) when the event does not exist.
func (c *GammaClient) GetEventBySlug(ctx context.Context, slug string) (*GammaEvent, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		Get("/events")
	if err != nil {
		return nil, "", fmt.Errorf("get event %s: %w", slug, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, "", nil
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("get event %s: status %d: %s", slug, resp.StatusCode(), resp.String())
	}

	var events []GammaEvent
	if err := json.Unmarshal(resp.Body(), &events); err != nil {
		return nil, "", fmt.Errorf("decode event %s: %w", slug, err)
	}
	if len(events) == 0 {
		return nil, "", nil
	}

	// Raw JSON of the matched event is kept for the audit trail.
	raw, err := json.Marshal(events[0])
	if err != nil {
		return nil, "", fmt.Errorf("encode event %s: %w", slug, err)
	}
	return &events[0], string(raw), nil
}

// GetMarketPrice fetches the current YES price for a market. Used by the exit
// pipeline to mark open positions to market. Returns (0, false, nil) when the
// market has no quoted prices.
func (c *GammaClient) GetMarketPrice(ctx context.Context, marketID string) (float64, bool, error) {
	var m GammaMarket
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&m).
		Get("/markets/" + marketID)
	if err != nil {
		return 0, false, fmt.Errorf("get market %s: %w", marketID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, false, fmt.Errorf("get market %s: status %d", marketID, resp.StatusCode())
	}

	prices, err := parseJSONFloats(m.OutcomePrices)
	if err != nil || len(prices) == 0 {
		return 0, false, nil
	}
	return prices[0], true, nil
}

// parseJSONFloats decodes Gamma's string-encoded arrays like `["0.12", "0.88"]`.
func parseJSONFloats(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(strs))
	for _, s := range strs {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// parseJSONStrings decodes Gamma's string-encoded string arrays.
func parseJSONStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, err
	}
	return strs, nil
}
