package risk

import (
	"fmt"
	"time"
)

// stateStore is the slice of the persistence layer the risk gate reads.
type stateStore interface {
	KillSwitchActive() (bool, error)
	Paused() (bool, error)
	TotalOpenExposure() (float64, error)
	CityOpenExposure(citySlug string) (float64, error)
	DailyLoss(date string) (float64, error)
	LastTradeTime(marketID string) (*time.Time, error)
}

// Tracker carries per-run mutable state across candidate evaluations: the
// trade counter and exposure deltas from trades executed within the run.
// Store-backed exposure is hydrated once and kept separate from the in-run
// delta so hydration order never matters.
type Tracker struct {
	store stateStore

	hydrated      bool
	tradesThisRun int
	storeTotal    float64
	storeCity     map[string]float64
	totalDelta    float64
	cityDelta     map[string]float64
}

// NewTracker creates a tracker bound to the store.
func NewTracker(store stateStore) *Tracker {
	return &Tracker{
		store:     store,
		storeCity: make(map[string]float64),
		cityDelta: make(map[string]float64),
	}
}

// hydrate loads the total open exposure once per run. Per-city exposure is
// loaded lazily on first access.
func (t *Tracker) hydrate() error {
	if t.hydrated {
		return nil
	}
	total, err := t.store.TotalOpenExposure()
	if err != nil {
		return fmt.Errorf("hydrate exposure: %w", err)
	}
	t.storeTotal = total
	t.hydrated = true
	return nil
}

// TradesThisRun returns the number of trades executed so far this run.
func (t *Tracker) TradesThisRun() int {
	return t.tradesThisRun
}

// TotalExposure returns open exposure including in-run trades.
func (t *Tracker) TotalExposure() (float64, error) {
	if err := t.hydrate(); err != nil {
		return 0, err
	}
	return t.storeTotal + t.totalDelta, nil
}

// CityExposure returns open exposure for one city including in-run trades.
func (t *Tracker) CityExposure(citySlug string) (float64, error) {
	cur, ok := t.storeCity[citySlug]
	if !ok {
		var err error
		cur, err = t.store.CityOpenExposure(citySlug)
		if err != nil {
			return 0, fmt.Errorf("hydrate city exposure: %w", err)
		}
		t.storeCity[citySlug] = cur
	}
	return cur + t.cityDelta[citySlug], nil
}

// RecordTrade advances the in-memory counters after an executed trade.
func (t *Tracker) RecordTrade(citySlug string, sizeUSD float64) {
	t.tradesThisRun++
	t.totalDelta += sizeUSD
	t.cityDelta[citySlug] += sizeUSD
}

// MinutesSinceLastTrade returns minutes since the market last traded, or nil
// for a market with no executed trades.
func (t *Tracker) MinutesSinceLastTrade(marketID string, now time.Time) (*float64, error) {
	last, err := t.store.LastTradeTime(marketID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}
	minutes := now.Sub(*last).Minutes()
	return &minutes, nil
}
