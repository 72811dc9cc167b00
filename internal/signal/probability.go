package signal

import (
	"fmt"
	"math"

	"weather-engine/pkg/types"
)

// normCDF is the standard Normal CDF.
func normCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// BucketProbability computes the probability that the daily high falls in the
// given bucket under a Normal(mu, sigma) model with a +-0.5 continuity
// correction for integer temperature rounding. sigma must be positive.
func BucketProbability(b types.TemperatureBucket, mu, sigma float64) (float64, error) {
	if sigma <= 0 {
		return 0, fmt.Errorf("sigma must be positive, got %g", sigma)
	}

	switch b.Type {
	case types.BucketRange:
		// P(low <= T <= high)
		return normCDF((float64(b.High)+0.5-mu)/sigma) - normCDF((float64(b.Low)-0.5-mu)/sigma), nil
	case types.BucketExact:
		// P(T == low)
		return normCDF((float64(b.Low)+0.5-mu)/sigma) - normCDF((float64(b.Low)-0.5-mu)/sigma), nil
	case types.BucketOrHigher:
		// P(T >= low)
		return 1.0 - normCDF((float64(b.Low)-0.5-mu)/sigma), nil
	case types.BucketOrBelow:
		// P(T <= low)
		return normCDF((float64(b.Low)+0.5-mu)/sigma), nil
	default:
		return 0, fmt.Errorf("unknown bucket type: %s", b.Type)
	}
}
