package forecast

import (
	"context"
	"log/slog"
	"time"

	"weather-engine/internal/config"
	"weather-engine/pkg/types"
)

type cacheKey struct {
	citySlug   string
	targetDate string
}

// Fetcher retrieves forecasts and caches them for the duration of one scan
// cycle, so multiple events for the same city and date share a single NOAA
// request.
type Fetcher struct {
	noaa   *NoaaClient
	cache  map[cacheKey]*types.ForecastPoint
	logger *slog.Logger
	now    func() time.Time
}

// NewFetcher creates a per-cycle forecast fetcher.
func NewFetcher(noaa *NoaaClient, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		noaa:   noaa,
		cache:  make(map[cacheKey]*types.ForecastPoint),
		logger: logger.With("component", "forecast"),
		now:    time.Now,
	}
}

// Fetch returns the forecast point for a city and target date, or nil when no
// daytime high could be extracted or the fetch failed. A missing forecast is
// a business outcome, not an error; failures are logged here.
func (f *Fetcher) Fetch(ctx context.Context, city config.CityConfig, targetDate string) *types.ForecastPoint {
	key := cacheKey{city.Slug, targetDate}
	if point, ok := f.cache[key]; ok {
		return point
	}

	raw, err := f.noaa.GetForecast(ctx, city.NoaaGridID, city.NoaaGridX, city.NoaaGridY)
	if err != nil {
		f.logger.Warn("forecast fetch failed",
			"city", city.Slug, "target_date", targetDate, "error", err)
		return nil
	}

	point := extractForecastPoint(raw, city.Slug, targetDate, f.now().UTC())
	if point != nil {
		f.cache[key] = point
	}
	return point
}

// ClearCache drops all cached forecasts. Called between cycles.
func (f *Fetcher) ClearCache() {
	f.cache = make(map[cacheKey]*types.ForecastPoint)
}

// extractForecastPoint pulls the maximum daytime temperature among periods
// whose start date matches the target date.
func extractForecastPoint(raw *NoaaForecast, citySlug, targetDate string, fetchedAt time.Time) *types.ForecastPoint {
	periods := make([]types.ForecastPeriod, 0, len(raw.Properties.Periods))
	var high *int

	for _, p := range raw.Properties.Periods {
		periods = append(periods, types.ForecastPeriod{
			Name:            p.Name,
			StartTime:       p.StartTime,
			EndTime:         p.EndTime,
			Temperature:     p.Temperature,
			TemperatureUnit: p.TemperatureUnit,
			IsDaytime:       p.IsDaytime,
			ShortForecast:   p.ShortForecast,
		})

		// NOAA start times look like "2026-02-11T06:00:00-05:00"; the first
		// ten chars are the local date.
		if p.IsDaytime && len(p.StartTime) >= 10 && p.StartTime[:10] == targetDate {
			if high == nil || p.Temperature > *high {
				t := p.Temperature
				high = &t
			}
		}
	}

	if high == nil {
		return nil
	}
	return &types.ForecastPoint{
		CitySlug:          citySlug,
		TargetDate:        targetDate,
		HighTempF:         *high,
		SourceGeneratedAt: raw.Properties.GeneratedAt,
		FetchedAt:         fetchedAt,
		Periods:           periods,
	}
}
