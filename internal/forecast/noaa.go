// Package forecast fetches NOAA gridpoint forecasts and extracts the daytime
// high temperature for a city and target date.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultNoaaBaseURL is the public NWS API endpoint.
const DefaultNoaaBaseURL = "https://api.weather.gov"

// The NWS API requires an identifying User-Agent.
const userAgent = "weather-engine/0.1.0"

// NoaaForecast mirrors the relevant parts of the gridpoint forecast response.
type NoaaForecast struct {
	Properties struct {
		GeneratedAt string       `json:"generatedAt"`
		Periods     []NoaaPeriod `json:"periods"`
	} `json:"properties"`
}

// NoaaPeriod is one half-day forecast period.
type NoaaPeriod struct {
	Name            string `json:"name"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	Temperature     int    `json:"temperature"`
	TemperatureUnit string `json:"temperatureUnit"`
	IsDaytime       bool   `json:"isDaytime"`
	ShortForecast   string `json:"shortForecast"`
}

// NoaaClient fetches 7-day gridpoint forecasts with bounded retries. The NWS
// API sheds load with 503s, so those and 429s are retried with exponential
// backoff before giving up.
type NoaaClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewNoaaClient creates a NOAA API client.
func NewNoaaClient(baseURL string, logger *slog.Logger) *NoaaClient {
	if baseURL == "" {
		baseURL = DefaultNoaaBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(5 * time.Second).
		SetRetryMaxWaitTime(40 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusServiceUnavailable ||
				r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/geo+json")

	return &NoaaClient{
		http:   httpClient,
		logger: logger.With("component", "noaa"),
	}
}

// GetForecast fetches the gridpoint forecast for the given NWS grid cell.
func (c *NoaaClient) GetForecast(ctx context.Context, gridID string, gridX, gridY int) (*NoaaForecast, error) {
	var result NoaaForecast
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/gridpoints/%s/%d,%d/forecast", gridID, gridX, gridY))
	if err != nil {
		return nil, fmt.Errorf("noaa forecast %s/%d,%d: %w", gridID, gridX, gridY, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("noaa forecast %s/%d,%d: status %d: %s",
			gridID, gridX, gridY, resp.StatusCode(), resp.String())
	}
	return &result, nil
}
