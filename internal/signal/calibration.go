// Package signal turns forecasts and market prices into edge results: bucket
// probabilities from a Normal temperature model, gross/net edge versus the
// market's YES price, and a reason code per bucket.
package signal

import "time"

// MinSigma floors the uncertainty to prevent overconfidence on same-day
// forecasts.
const MinSigma = 1.0

// Sigma computes the forecast uncertainty for a target date:
// sigma = max(MinSigma, base + perDay * daysOut), where daysOut is measured
// to end-of-day UTC of the target date and clamped at zero.
func Sigma(targetDate string, now time.Time, base, perDay float64) (float64, error) {
	day, err := time.ParseInLocation("2006-01-02", targetDate, time.UTC)
	if err != nil {
		return 0, err
	}
	endOfDay := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC)

	daysOut := endOfDay.Sub(now).Seconds() / 86400
	if daysOut < 0 {
		daysOut = 0
	}
	sigma := base + daysOut*perDay
	if sigma < MinSigma {
		sigma = MinSigma
	}
	return sigma, nil
}
