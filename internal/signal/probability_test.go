package signal

import (
	"math"
	"testing"

	"weather-engine/pkg/types"
)

func bucket(typ types.BucketType, low, high int) types.TemperatureBucket {
	return types.TemperatureBucket{Type: typ, Low: low, High: high, Unit: types.UnitFahrenheit}
}

func TestBucketProbabilityRange(t *testing.T) {
	t.Parallel()

	// range(36,37) with mu=38 sigma=2.5:
	// Phi((37.5-38)/2.5) - Phi((35.5-38)/2.5) = Phi(-0.2) - Phi(-1.0)
	p, err := BucketProbability(bucket(types.BucketRange, 36, 37), 38, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p-0.26209) > 1e-4 {
		t.Errorf("P(range 36-37) = %v, want ~0.26209", p)
	}
}

func TestBucketProbabilityTails(t *testing.T) {
	t.Parallel()

	higher, err := BucketProbability(bucket(types.BucketOrHigher, 44, 44), 38, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	below, err := BucketProbability(bucket(types.BucketOrBelow, 43, 43), 38, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	// P(T >= 44) + P(T <= 43) covers everything exactly once.
	if math.Abs(higher+below-1.0) > 1e-12 {
		t.Errorf("tail probabilities sum to %v, want 1", higher+below)
	}
	if higher <= 0 || higher >= 0.5 {
		t.Errorf("P(T >= 44 | mu=38) = %v, expected in (0, 0.5)", higher)
	}
}

func TestBucketProbabilityExactMatchesUnitRange(t *testing.T) {
	t.Parallel()

	exact, err := BucketProbability(bucket(types.BucketExact, 38, 38), 38, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	asRange, err := BucketProbability(bucket(types.BucketRange, 38, 38), 38, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(exact-asRange) > 1e-12 {
		t.Errorf("exact %v != single-degree range %v", exact, asRange)
	}
}

func TestBucketProbabilityInvalidSigma(t *testing.T) {
	t.Parallel()

	for _, sigma := range []float64{0, -1} {
		if _, err := BucketProbability(bucket(types.BucketRange, 36, 37), 38, sigma); err == nil {
			t.Errorf("sigma=%v: expected error", sigma)
		}
	}
}

func TestBucketSetSumsToOne(t *testing.T) {
	t.Parallel()

	// or_below 33, ranges 34-35 ... 42-43, or_higher 44: a complete partition.
	buckets := []types.TemperatureBucket{
		bucket(types.BucketOrBelow, 33, 33),
		bucket(types.BucketRange, 34, 35),
		bucket(types.BucketRange, 36, 37),
		bucket(types.BucketRange, 38, 39),
		bucket(types.BucketRange, 40, 41),
		bucket(types.BucketRange, 42, 43),
		bucket(types.BucketOrHigher, 44, 44),
	}

	sum := 0.0
	for _, b := range buckets {
		p, err := BucketProbability(b, 38, 2.5)
		if err != nil {
			t.Fatal(err)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 0.01 {
		t.Errorf("bucket set sums to %v, want within 0.01 of 1", sum)
	}
}
