package execution

import (
	"context"
	"log/slog"
	"time"

	"weather-engine/pkg/types"
)

const tradeSource = "sdk:weatherchannel"

// LiveAdapter places real orders through the Simmer API.
type LiveAdapter struct {
	client *SimmerClient
	venue  string
	logger *slog.Logger
	now    func() time.Time
}

// NewLiveAdapter creates the live adapter for one venue.
func NewLiveAdapter(client *SimmerClient, venue string, logger *slog.Logger) *LiveAdapter {
	return &LiveAdapter{
		client: client,
		venue:  venue,
		logger: logger.With("component", "execution", "adapter", "simmer"),
		now:    time.Now,
	}
}

func (a *LiveAdapter) Name() string { return "simmer" }

// Execute maps the intent onto a Simmer trade. BUY spends SizeUSD; SELL
// liquidates the intent's share count. Transport failures surface as errors
// (the executor records FAILED); an explicit venue rejection returns REJECTED.
func (a *LiveAdapter) Execute(ctx context.Context, intent types.OrderIntent) (types.OrderResult, error) {
	req := tradeRequest{
		MarketID: intent.MarketID,
		Side:     "yes",
		Amount:   intent.SizeUSD,
		Venue:    a.venue,
		Source:   tradeSource,
	}
	if intent.Side == "SELL" {
		req.Action = "sell"
		req.Shares = types.Float64(intent.Shares)
	}

	resp, err := a.client.Trade(ctx, req)
	if err != nil {
		return types.OrderResult{}, err
	}

	executedAt := a.now().UTC()
	if resp.Success || resp.TradeID != "" {
		fillPrice := intent.Price
		if resp.FillPrice != nil {
			fillPrice = *resp.FillPrice
		} else if resp.Price != nil {
			fillPrice = *resp.Price
		}

		var fillSize *float64
		switch {
		case resp.SharesBought != nil:
			fillSize = resp.SharesBought
		case resp.Shares != nil:
			fillSize = resp.Shares
		case resp.FillSize != nil:
			fillSize = resp.FillSize
		case resp.Size != nil:
			fillSize = resp.Size
		}

		a.logger.Info("order filled",
			"market", intent.MarketID,
			"side", intent.Side,
			"trade_id", resp.TradeID,
			"fill_price", fillPrice)

		return types.OrderResult{
			IdempotencyKey: intent.IdempotencyKey,
			Status:         types.StatusFilled,
			FillPrice:      types.Float64(fillPrice),
			FillSize:       fillSize,
			ExecutedAt:     executedAt,
		}, nil
	}

	reason := resp.Error
	if reason == "" {
		reason = resp.Message
	}
	if reason == "" {
		reason = "rejected without reason"
	}

	a.logger.Warn("order rejected",
		"market", intent.MarketID,
		"side", intent.Side,
		"reason", reason)

	return types.OrderResult{
		IdempotencyKey: intent.IdempotencyKey,
		Status:         types.StatusRejected,
		ErrorMessage:   reason,
		ExecutedAt:     executedAt,
	}, nil
}
