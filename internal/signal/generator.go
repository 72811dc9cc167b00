package signal

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"weather-engine/internal/config"
	"weather-engine/internal/forecast"
	"weather-engine/pkg/types"
)

// ForecastKey identifies the forecast for one city and target date.
type ForecastKey struct {
	CitySlug   string
	TargetDate string
}

// Generator computes edge results for every bucket of every scanned event.
type Generator struct {
	cfg    *config.Config
	runID  string
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator creates a signal generator for one run.
func NewGenerator(cfg *config.Config, runID string, logger *slog.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		runID:  runID,
		logger: logger.With("component", "signal"),
		now:    time.Now,
	}
}

// Generate produces one EdgeResult per bucket market (and per unparseable
// market), sorted by net edge descending. Buckets without a usable forecast
// or with stale data get the matching reason code with zeroed economics.
func (g *Generator) Generate(events []types.MarketEvent, forecasts map[ForecastKey]*types.ForecastPoint) ([]types.EdgeResult, error) {
	now := g.now().UTC()
	var results []types.EdgeResult

	for _, event := range events {
		for _, um := range event.Unparsed {
			results = append(results, g.placeholder(event, um.MarketID, um.GroupItemTitle, um.OutcomePriceYes, types.ReasonBucketParseError))
		}

		fp := forecasts[ForecastKey{event.CitySlug, event.TargetDate}]

		var skip types.ReasonCode
		switch {
		case fp == nil:
			skip = types.ReasonNoForecast
		case forecast.ForecastStale(fp.SourceGeneratedAt, g.cfg.Ops.ForecastMaxAgeMinutes, now):
			skip = types.ReasonStaleForecastData
		case forecast.MarketDataStale(event.FetchedAt, g.cfg.Ops.MarketDataMaxAgeMinutes, now):
			skip = types.ReasonStaleMarketData
		}
		if skip != "" {
			for _, bm := range event.Buckets {
				results = append(results, g.placeholder(event, bm.MarketID, bm.GroupItemTitle, bm.OutcomePriceYes, skip))
			}
			continue
		}

		mu := float64(fp.HighTempF)
		sigma, err := Sigma(event.TargetDate, now, g.cfg.Strategy.UncertaintyBaseF, g.cfg.Strategy.UncertaintyPerDayF)
		if err != nil {
			return nil, fmt.Errorf("sigma for %s: %w", event.TargetDate, err)
		}

		probSum := 0.0
		for _, bm := range event.Buckets {
			prob, err := BucketProbability(bm.Bucket, mu, sigma)
			if err != nil {
				return nil, fmt.Errorf("probability for market %s: %w", bm.MarketID, err)
			}
			probSum += prob

			results = append(results, computeEdge(edgeInput{
				runID:           g.runID,
				eventID:         event.EventID,
				marketID:        bm.MarketID,
				citySlug:        event.CitySlug,
				targetDate:      event.TargetDate,
				bucketLabel:     bm.GroupItemTitle,
				probability:     prob,
				priceYes:        bm.OutcomePriceYes,
				fee:             g.cfg.Strategy.FeeEstimate,
				slip:            g.cfg.Strategy.SlippageEstimate,
				sigma:           sigma,
				minEdge:         g.cfg.Strategy.MinEdgeThreshold,
				maxEntryPrice:   g.cfg.Strategy.MaxEntryPrice,
				acceptingOrders: bm.AcceptingOrders,
				liquidity:       bm.Liquidity,
			}))
		}

		// A complete bucket set should sum to ~1. A drift beyond 1% means the
		// event is missing buckets or the model disagrees with the market
		// structure; worth surfacing but never blocking.
		if len(event.Buckets) > 0 && math.Abs(probSum-1.0) >= 0.01 {
			g.logger.Info("bucket probabilities do not sum to 1",
				"event", event.Slug, "sum", probSum, "sigma", sigma)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].NetEdge > results[j].NetEdge
	})
	return results, nil
}

func (g *Generator) placeholder(event types.MarketEvent, marketID, label string, priceYes float64, reason types.ReasonCode) types.EdgeResult {
	return types.EdgeResult{
		RunID:          g.runID,
		EventID:        event.EventID,
		MarketID:       marketID,
		CitySlug:       event.CitySlug,
		TargetDate:     event.TargetDate,
		BucketLabel:    label,
		MarketPriceYes: priceYes,
		ReasonCode:     reason,
	}
}

// Opportunities filters edge results down to OPPORTUNITY entries.
func (g *Generator) Opportunities(results []types.EdgeResult) []types.EdgeResult {
	var opps []types.EdgeResult
	for _, r := range results {
		if r.ReasonCode == types.ReasonOpportunity {
			opps = append(opps, r)
		}
	}
	return opps
}

// ToSignals promotes opportunities to executable signals sized at the
// per-position maximum. Top-of-book and end date are carried from the source
// market for the risk gate.
func (g *Generator) ToSignals(opportunities []types.EdgeResult, events []types.MarketEvent) []types.Signal {
	markets := make(map[string]types.BucketMarket)
	for _, event := range events {
		for _, bm := range event.Buckets {
			markets[bm.MarketID] = bm
		}
	}

	var signals []types.Signal
	for _, opp := range opportunities {
		bm, ok := markets[opp.MarketID]
		if !ok {
			continue
		}
		signals = append(signals, types.Signal{
			Edge:            opp,
			MarketID:        opp.MarketID,
			ClobTokenIDYes:  bm.ClobTokenIDYes,
			BestBid:         bm.BestBid,
			BestAsk:         bm.BestAsk,
			EndDate:         bm.EndDate,
			ProposedSizeUSD: g.cfg.Risk.MaxPositionSizeUSD,
		})
	}
	return signals
}
