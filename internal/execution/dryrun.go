package execution

import (
	"context"
	"log/slog"
	"time"

	"weather-engine/pkg/types"
)

// DryRunAdapter simulates instant fills at the intent price. It is the
// default adapter; no network traffic, no capital at risk.
type DryRunAdapter struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewDryRunAdapter creates the simulation adapter.
func NewDryRunAdapter(logger *slog.Logger) *DryRunAdapter {
	return &DryRunAdapter{
		logger: logger.With("component", "execution", "adapter", "dry-run"),
		now:    time.Now,
	}
}

func (a *DryRunAdapter) Name() string { return "dry-run" }

// Execute fills immediately at the intent price. Buys report the fill in
// intent dollars; sells report the intent's share count. Share conversion for
// positions happens when the position is opened, not here.
func (a *DryRunAdapter) Execute(_ context.Context, intent types.OrderIntent) (types.OrderResult, error) {
	fillSize := intent.SizeUSD
	if intent.Side == "SELL" {
		fillSize = intent.Shares
	}

	a.logger.Info("simulated fill",
		"market", intent.MarketID,
		"side", intent.Side,
		"price", intent.Price,
		"size_usd", intent.SizeUSD,
		"fill_size", fillSize)

	return types.OrderResult{
		IdempotencyKey: intent.IdempotencyKey,
		Status:         types.StatusDryRun,
		FillPrice:      types.Float64(intent.Price),
		FillSize:       types.Float64(fillSize),
		ExecutedAt:     a.now().UTC(),
	}, nil
}
