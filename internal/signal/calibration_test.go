package signal

import (
	"math"
	"testing"
	"time"
)

func TestSigmaScalesWithDaysOut(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)

	// Target three days out: ~4 days until its end-of-day.
	sigma, err := Sigma("2026-02-14", now, 2.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	want := 2.5 + (3.0+86399.0/86400.0)*0.5
	if math.Abs(sigma-want) > 1e-6 {
		t.Errorf("sigma = %v, want %v", sigma, want)
	}
}

func TestSigmaFloor(t *testing.T) {
	t.Parallel()

	// A past target date clamps days_out to 0; with a tiny base the floor wins.
	now := time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)
	sigma, err := Sigma("2026-02-01", now, 0.2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if sigma != MinSigma {
		t.Errorf("sigma = %v, want floor %v", sigma, MinSigma)
	}
}

func TestSigmaSameDay(t *testing.T) {
	t.Parallel()

	// Late in the target day, sigma approaches the base.
	now := time.Date(2026, 2, 11, 23, 0, 0, 0, time.UTC)
	sigma, err := Sigma("2026-02-11", now, 2.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if sigma < 2.5 || sigma > 2.53 {
		t.Errorf("same-day sigma = %v, want just above 2.5", sigma)
	}
}

func TestSigmaBadDate(t *testing.T) {
	t.Parallel()

	if _, err := Sigma("02/11/2026", time.Now(), 2.5, 0.5); err == nil {
		t.Error("expected error for malformed date")
	}
}
