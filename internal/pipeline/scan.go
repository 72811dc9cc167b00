package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"weather-engine/internal/config"
	"weather-engine/internal/execution"
	"weather-engine/internal/market"
	"weather-engine/internal/risk"
	"weather-engine/internal/signal"
	"weather-engine/internal/store"
	"weather-engine/pkg/types"
)

// eventScanner abstracts market discovery for tests.
type eventScanner interface {
	Scan(ctx context.Context) ([]market.ScannedEvent, error)
}

// forecastSource abstracts forecast retrieval for tests.
type forecastSource interface {
	Fetch(ctx context.Context, city config.CityConfig, targetDate string) *types.ForecastPoint
	ClearCache()
}

// Scan runs one full cycle: discover, forecast, price, gate, execute, exit.
type Scan struct {
	cfg       *config.Config
	store     *store.Store
	scanner   eventScanner
	forecasts forecastSource
	adapter   execution.Adapter
	exit      *Exit
	logger    *slog.Logger
	now       func() time.Time
}

// NewScan wires a scan pipeline over shared components. The adapter decides
// dry-run versus live; the pipeline itself is mode-agnostic.
func NewScan(cfg *config.Config, st *store.Store, scanner eventScanner, forecasts forecastSource, adapter execution.Adapter, exit *Exit, logger *slog.Logger) *Scan {
	return &Scan{
		cfg:       cfg,
		store:     st,
		scanner:   scanner,
		forecasts: forecasts,
		adapter:   adapter,
		exit:      exit,
		logger:    logger.With("component", "pipeline"),
		now:       time.Now,
	}
}

// Run executes one scan cycle and returns its summary. The run row is always
// finalized: "aborted" when halted by operator state, "failed" on a pipeline
// error, "completed" otherwise.
func (p *Scan) Run(ctx context.Context) (types.RunSummary, error) {
	runID := uuid.NewString()
	started := p.now().UTC()
	mode := p.cfg.Execution.Mode
	sum := NewSummarizer(runID, mode, started)

	logger := p.logger.With("run_id", runID)
	logger.Info("scan cycle starting", "mode", mode)

	if err := p.store.SnapshotConfig(p.cfg.Hash(), p.cfg.JSON()); err != nil {
		return sum.Finalize(p.now().UTC()), fmt.Errorf("snapshot config: %w", err)
	}
	if err := p.store.CreateRun(runID, mode, started); err != nil {
		return sum.Finalize(p.now().UTC()), fmt.Errorf("create run: %w", err)
	}

	killActive, err := p.store.KillSwitchActive()
	if err != nil {
		return p.finishRun(runID, "failed", sum, err)
	}
	paused, err := p.store.Paused()
	if err != nil {
		return p.finishRun(runID, "failed", sum, err)
	}
	if killActive || paused {
		logger.Warn("scan aborted by operator state",
			"kill_switch", killActive, "paused", paused)
		return p.finishRun(runID, "aborted", sum, nil)
	}

	summary, err := p.runCycle(ctx, runID, sum, logger)
	if err != nil {
		return p.finishRun(runID, "failed", sum, err)
	}
	return summary, nil
}

func (p *Scan) runCycle(ctx context.Context, runID string, sum *Summarizer, logger *slog.Logger) (types.RunSummary, error) {
	cities := p.cfg.EnabledCities()
	sum.RecordCities(len(cities))

	p.forecasts.ClearCache()
	scanned, err := p.scanner.Scan(ctx)
	if err != nil {
		return types.RunSummary{}, fmt.Errorf("scan markets: %w", err)
	}
	sum.RecordEvents(len(scanned))

	events := make([]types.MarketEvent, 0, len(scanned))
	for _, se := range scanned {
		events = append(events, se.Event)
		if err := p.store.SaveMarketEvent(runID, se.Event, se.RawJSON); err != nil {
			sum.RecordError(fmt.Sprintf("save event %s: %v", se.Event.Slug, err))
			logger.Error("save event failed", "slug", se.Event.Slug, "error", err)
		}
	}

	cityBySlug := make(map[string]config.CityConfig, len(cities))
	for _, c := range cities {
		cityBySlug[c.Slug] = c
	}

	forecasts := make(map[signal.ForecastKey]*types.ForecastPoint)
	for _, event := range events {
		key := signal.ForecastKey{CitySlug: event.CitySlug, TargetDate: event.TargetDate}
		if _, done := forecasts[key]; done {
			continue
		}
		city, ok := cityBySlug[event.CitySlug]
		if !ok {
			continue
		}
		fp := p.forecasts.Fetch(ctx, city, event.TargetDate)
		forecasts[key] = fp
		if fp == nil {
			continue
		}
		periodsJSON, _ := json.Marshal(fp.Periods)
		if err := p.store.SaveForecast(runID, *fp, string(periodsJSON)); err != nil {
			sum.RecordError(fmt.Sprintf("save forecast %s/%s: %v", fp.CitySlug, fp.TargetDate, err))
		}
	}

	gen := signal.NewGenerator(p.cfg, runID, p.logger)
	results, err := gen.Generate(events, forecasts)
	if err != nil {
		return types.RunSummary{}, fmt.Errorf("generate signals: %w", err)
	}
	sum.RecordEdgeResults(results)
	for _, r := range results {
		if err := p.store.SaveEdgeResult(r); err != nil {
			sum.RecordError(fmt.Sprintf("save edge result %s: %v", r.MarketID, err))
		}
	}

	signals := gen.ToSignals(gen.Opportunities(results), events)
	p.executeSignals(ctx, runID, signals, sum, logger)

	if p.exit != nil {
		closed, err := p.exit.Run(ctx, runID)
		if err != nil {
			sum.RecordError(fmt.Sprintf("exit checks: %v", err))
			logger.Error("exit checks failed", "error", err)
		} else if closed > 0 {
			logger.Info("positions closed", "count", closed)
		}
	}

	if exposure, err := p.store.TotalOpenExposure(); err == nil {
		sum.SetExposure(exposure)
	}
	if pnl, err := p.store.DailyPnL(p.now().UTC().Format("2006-01-02")); err == nil {
		sum.SetDailyPnL(pnl.TotalPnL)
	}

	return p.finishRun(runID, "completed", sum, nil)
}

// executeSignals walks opportunities best-edge-first through the risk gate
// and the executor, stopping once the per-run trade cap is reached.
func (p *Scan) executeSignals(ctx context.Context, runID string, signals []types.Signal, sum *Summarizer, logger *slog.Logger) {
	if len(signals) == 0 {
		return
	}

	tracker := risk.NewTracker(p.store)
	gate := risk.NewEngine(p.cfg, p.store, tracker, p.logger)
	executor := execution.NewExecutor(p.store, p.adapter, p.logger)

	for _, sig := range signals {
		key := execution.Key(runID, sig.MarketID, "BUY", sig.Edge.MarketPriceYes)

		verdict, err := gate.Evaluate(sig)
		if err != nil {
			sum.RecordError(fmt.Sprintf("risk evaluate %s: %v", sig.MarketID, err))
			continue
		}
		if err := p.store.SaveRiskChecks(runID, key, verdict.Checks); err != nil {
			sum.RecordError(fmt.Sprintf("save risk checks %s: %v", sig.MarketID, err))
		}
		if !verdict.Approved {
			sum.RecordBlocked(verdict.BlockReasons())
			continue
		}

		intent := types.OrderIntent{
			RunID:          runID,
			IdempotencyKey: key,
			MarketID:       sig.MarketID,
			ClobTokenID:    sig.ClobTokenIDYes,
			Side:           "BUY",
			Price:          sig.Edge.MarketPriceYes,
			SizeUSD:        sig.ProposedSizeUSD,
			CitySlug:       sig.Edge.CitySlug,
			TargetDate:     sig.Edge.TargetDate,
			BucketLabel:    sig.Edge.BucketLabel,
			NetEdge:        sig.Edge.NetEdge,
		}

		result, err := executor.Execute(ctx, intent)
		if err != nil {
			sum.RecordError(fmt.Sprintf("execute %s: %v", sig.MarketID, err))
			continue
		}
		sum.RecordOrderResult(result.Status)

		if result.Status.Succeeded() {
			tracker.RecordTrade(sig.Edge.CitySlug, sig.ProposedSizeUSD)
			entryPrice := sig.Edge.MarketPriceYes
			if result.FillPrice != nil {
				entryPrice = *result.FillPrice
			}
			if _, err := p.store.OpenPosition(types.Position{
				MarketID:    sig.MarketID,
				CitySlug:    sig.Edge.CitySlug,
				TargetDate:  sig.Edge.TargetDate,
				BucketLabel: sig.Edge.BucketLabel,
				EntryPrice:  entryPrice,
				SizeUSD:     sig.ProposedSizeUSD,
			}); err != nil {
				sum.RecordError(fmt.Sprintf("open position %s: %v", sig.MarketID, err))
			}
			logger.Info("entered position",
				"market", sig.MarketID,
				"bucket", sig.Edge.BucketLabel,
				"price", entryPrice,
				"size_usd", sig.ProposedSizeUSD,
				"net_edge", sig.Edge.NetEdge)
		}

		if tracker.TradesThisRun() >= p.cfg.Risk.MaxTradesPerRun {
			logger.Info("per-run trade cap reached", "trades", tracker.TradesThisRun())
			break
		}
	}
}

// finishRun finalizes the run row and the summary. runErr, when non-nil, is
// recorded and returned.
func (p *Scan) finishRun(runID, status string, sum *Summarizer, runErr error) (types.RunSummary, error) {
	if runErr != nil {
		sum.RecordError(runErr.Error())
	}
	summary := sum.Finalize(p.now().UTC())
	if err := p.store.CompleteRun(runID, status, summary); err != nil {
		p.logger.Error("complete run failed", "run_id", runID, "error", err)
	}
	p.logger.Info("scan cycle finished",
		"run_id", runID,
		"status", status,
		"opportunities", summary.OpportunitiesFound,
		"orders_succeeded", summary.OrdersSucceeded,
		"duration_s", summary.DurationSeconds)
	return summary, runErr
}
