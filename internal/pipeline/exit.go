package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"weather-engine/internal/config"
	"weather-engine/internal/execution"
	"weather-engine/internal/store"
	"weather-engine/pkg/types"
)

// priceSource returns the current YES price for a market. ok is false when
// the market exists but has no usable price.
type priceSource interface {
	GetMarketPrice(ctx context.Context, marketID string) (float64, bool, error)
}

// Exit closes open positions whose price has run up past the exit threshold,
// and marks the rest to market.
type Exit struct {
	cfg     *config.Config
	store   *store.Store
	prices  priceSource
	adapter execution.Adapter
	logger  *slog.Logger
	now     func() time.Time
}

// NewExit wires the exit pipeline over the same adapter as entries.
func NewExit(cfg *config.Config, st *store.Store, prices priceSource, adapter execution.Adapter, logger *slog.Logger) *Exit {
	return &Exit{
		cfg:     cfg,
		store:   st,
		prices:  prices,
		adapter: adapter,
		logger:  logger.With("component", "exit"),
		now:     time.Now,
	}
}

// Run refreshes prices for all open positions and sells any at or above the
// minimum exit price. Price fetches are best-effort per market; a market
// without a fresh price is simply skipped this cycle. Returns the number of
// positions closed.
func (x *Exit) Run(ctx context.Context, runID string) (int, error) {
	killActive, err := x.store.KillSwitchActive()
	if err != nil {
		return 0, err
	}
	paused, err := x.store.Paused()
	if err != nil {
		return 0, err
	}
	if killActive || paused {
		x.logger.Info("exit checks skipped by operator state",
			"kill_switch", killActive, "paused", paused)
		return 0, nil
	}

	positions, err := x.store.OpenPositions()
	if err != nil {
		return 0, fmt.Errorf("load open positions: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	prices := x.fetchPrices(ctx, positions)

	executor := execution.NewExecutor(x.store, x.adapter, x.logger)
	closed := 0

	for _, pos := range positions {
		price, ok := prices[pos.MarketID]
		if !ok {
			continue
		}

		if err := x.store.UpdatePositionPrice(pos.ID, price); err != nil {
			x.logger.Error("mark to market failed", "position", pos.ID, "error", err)
		}

		if price < x.cfg.Strategy.MinExitPrice {
			continue
		}

		shares := 0.0
		if pos.EntryPrice > 0 {
			shares = pos.SizeUSD / pos.EntryPrice
		}

		intent := types.OrderIntent{
			RunID:          runID,
			IdempotencyKey: execution.Key(runID, pos.MarketID, "SELL", price),
			MarketID:       pos.MarketID,
			Side:           "SELL",
			Price:          price,
			SizeUSD:        pos.SizeUSD,
			Shares:         shares,
			CitySlug:       pos.CitySlug,
			TargetDate:     pos.TargetDate,
			BucketLabel:    pos.BucketLabel,
		}

		result, err := executor.Execute(ctx, intent)
		if err != nil {
			x.logger.Error("exit order failed", "market", pos.MarketID, "error", err)
			continue
		}
		if !result.Status.Succeeded() {
			x.logger.Warn("exit order not executed",
				"market", pos.MarketID, "status", result.Status, "error", result.ErrorMessage)
			continue
		}

		exitPrice := price
		if result.FillPrice != nil {
			exitPrice = *result.FillPrice
		}
		if err := x.store.ClosePosition(pos.ID, exitPrice); err != nil {
			x.logger.Error("close position failed", "position", pos.ID, "error", err)
			continue
		}

		realized := shares * (exitPrice - pos.EntryPrice)
		date := x.now().UTC().Format("2006-01-02")
		if err := x.store.AddRealizedPnL(date, realized); err != nil {
			x.logger.Error("record realized pnl failed", "position", pos.ID, "error", err)
		}

		closed++
		x.logger.Info("position closed",
			"market", pos.MarketID,
			"bucket", pos.BucketLabel,
			"entry", pos.EntryPrice,
			"exit", exitPrice,
			"realized", realized)
	}

	return closed, nil
}

// fetchPrices loads current YES prices for the unique markets across all open
// positions, a few at a time. Failures are logged and the market skipped.
func (x *Exit) fetchPrices(ctx context.Context, positions []types.Position) map[string]float64 {
	unique := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		unique[pos.MarketID] = struct{}{}
	}

	var mu sync.Mutex
	prices := make(map[string]float64, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for marketID := range unique {
		g.Go(func() error {
			price, ok, err := x.prices.GetMarketPrice(gctx, marketID)
			if err != nil {
				x.logger.Warn("price fetch failed", "market", marketID, "error", err)
				return nil
			}
			if !ok {
				return nil
			}
			mu.Lock()
			prices[marketID] = price
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return prices
}
