package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"weather-engine/internal/config"
	"weather-engine/internal/execution"
	"weather-engine/pkg/types"
)

type fakePrices struct {
	prices map[string]float64
	errs   map[string]error
}

func (f *fakePrices) GetMarketPrice(_ context.Context, marketID string) (float64, bool, error) {
	if err := f.errs[marketID]; err != nil {
		return 0, false, err
	}
	price, ok := f.prices[marketID]
	return price, ok, nil
}

func TestExitClosesRunnerUp(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	id, err := st.OpenPosition(types.Position{
		MarketID: "m1", CitySlug: "nyc", TargetDate: "2026-02-11",
		BucketLabel: "36-37°F", EntryPrice: 0.10, SizeUSD: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	exit := NewExit(config.Default(), st, &fakePrices{prices: map[string]float64{"m1": 0.55}},
		execution.NewDryRunAdapter(discard()), discard())

	closed, err := exit.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if closed != 1 {
		t.Fatalf("closed = %d, want 1", closed)
	}

	if positions, _ := st.OpenPositions(); len(positions) != 0 {
		t.Errorf("position %d still open", id)
	}

	// 50 shares gained 0.45 each.
	date := time.Now().UTC().Format("2006-01-02")
	pnl, err := st.DailyPnL(date)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pnl.RealizedPnL-22.5) > 1e-9 {
		t.Errorf("realized = %v, want 22.5", pnl.RealizedPnL)
	}

	// The sell intent is durable and keyed for this run.
	exists, err := st.OrderIntentExists(execution.Key("run-1", "m1", "SELL", 0.55))
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("sell intent not persisted")
	}
}

func TestExitMarksToMarketBelowThreshold(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	if _, err := st.OpenPosition(types.Position{
		MarketID: "m1", CitySlug: "nyc", TargetDate: "2026-02-11",
		EntryPrice: 0.10, SizeUSD: 5,
	}); err != nil {
		t.Fatal(err)
	}

	exit := NewExit(config.Default(), st, &fakePrices{prices: map[string]float64{"m1": 0.20}},
		execution.NewDryRunAdapter(discard()), discard())

	closed, err := exit.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if closed != 0 {
		t.Fatalf("closed = %d, want 0 below min exit price", closed)
	}

	positions, _ := st.OpenPositions()
	if len(positions) != 1 {
		t.Fatal("position must stay open")
	}
	if positions[0].CurrentPrice != 0.20 {
		t.Errorf("current price = %v, want mark to 0.20", positions[0].CurrentPrice)
	}
	if math.Abs(positions[0].UnrealizedPnL-5.0) > 1e-9 {
		t.Errorf("unrealized = %v, want 5.0 (50 shares x 0.10)", positions[0].UnrealizedPnL)
	}
}

func TestExitSkipsMarketsWithoutPrice(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	if _, err := st.OpenPosition(types.Position{
		MarketID: "m1", CitySlug: "nyc", TargetDate: "2026-02-11",
		EntryPrice: 0.10, SizeUSD: 5,
	}); err != nil {
		t.Fatal(err)
	}

	exit := NewExit(config.Default(), st,
		&fakePrices{errs: map[string]error{"m1": errors.New("gamma down")}},
		execution.NewDryRunAdapter(discard()), discard())

	closed, err := exit.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("price failures must be best-effort: %v", err)
	}
	if closed != 0 {
		t.Errorf("closed = %d, want 0", closed)
	}
	if positions, _ := st.OpenPositions(); len(positions) != 1 {
		t.Error("position must remain open when its price is unavailable")
	}
}

func TestExitSkippedByKillSwitch(t *testing.T) {
	t.Parallel()

	st := openStore(t)
	if err := st.SetSystemState("kill_switch", "true"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.OpenPosition(types.Position{
		MarketID: "m1", CitySlug: "nyc", TargetDate: "2026-02-11",
		EntryPrice: 0.10, SizeUSD: 5,
	}); err != nil {
		t.Fatal(err)
	}

	exit := NewExit(config.Default(), st, &fakePrices{prices: map[string]float64{"m1": 0.99}},
		execution.NewDryRunAdapter(discard()), discard())

	closed, err := exit.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if closed != 0 {
		t.Errorf("closed = %d, want 0 under kill switch", closed)
	}
}
