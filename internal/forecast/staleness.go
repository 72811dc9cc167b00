package forecast

import "time"

// MarketDataStale reports whether market data fetched at the given time is
// older than maxAgeMinutes.
func MarketDataStale(fetchedAt time.Time, maxAgeMinutes int, now time.Time) bool {
	if fetchedAt.IsZero() {
		return true
	}
	return now.Sub(fetchedAt) > time.Duration(maxAgeMinutes)*time.Minute
}

// ForecastStale reports whether a forecast is older than maxAgeMinutes based
// on the time NOAA generated it. Unparsable timestamps count as stale.
func ForecastStale(sourceGeneratedAt string, maxAgeMinutes int, now time.Time) bool {
	generated, err := time.Parse(time.RFC3339, sourceGeneratedAt)
	if err != nil {
		return true
	}
	return now.Sub(generated) > time.Duration(maxAgeMinutes)*time.Minute
}
