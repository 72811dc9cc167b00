package risk

import (
	"log/slog"
	"time"

	"weather-engine/internal/config"
	"weather-engine/pkg/types"
)

// Engine evaluates candidates against the full check sequence.
type Engine struct {
	cfg     *config.Config
	store   stateStore
	tracker *Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates a risk engine sharing one tracker for the run.
func NewEngine(cfg *config.Config, store stateStore, tracker *Tracker, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
		logger:  logger.With("component", "risk"),
		now:     time.Now,
	}
}

// Tracker exposes the run tracker so the pipeline can record executed trades.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Evaluate runs all checks in their fixed order and returns the verdict.
// Approved is true only when every check passed.
func (e *Engine) Evaluate(sig types.Signal) (types.RiskVerdict, error) {
	now := e.now().UTC()

	killActive, err := e.store.KillSwitchActive()
	if err != nil {
		return types.RiskVerdict{}, err
	}
	paused, err := e.store.Paused()
	if err != nil {
		return types.RiskVerdict{}, err
	}
	totalExposure, err := e.tracker.TotalExposure()
	if err != nil {
		return types.RiskVerdict{}, err
	}
	cityExposure, err := e.tracker.CityExposure(sig.Edge.CitySlug)
	if err != nil {
		return types.RiskVerdict{}, err
	}
	dailyLoss, err := e.store.DailyLoss(now.Format("2006-01-02"))
	if err != nil {
		return types.RiskVerdict{}, err
	}
	minutesSince, err := e.tracker.MinutesSinceLastTrade(sig.MarketID, now)
	if err != nil {
		return types.RiskVerdict{}, err
	}

	checks := []types.RiskCheckResult{
		checkKillSwitch(killActive),
		checkPaused(paused),
		checkPositionSize(sig.ProposedSizeUSD, e.cfg.Risk.MaxPositionSizeUSD),
		checkTradesPerRun(e.tracker.TradesThisRun(), e.cfg.Risk.MaxTradesPerRun),
		checkTotalExposure(totalExposure, sig.ProposedSizeUSD, e.cfg.Risk.MaxTotalExposureUSD),
		checkPerCityExposure(cityExposure, sig.ProposedSizeUSD, e.cfg.Risk.MaxPerCityExposureUSD),
		checkDailyLoss(dailyLoss, e.cfg.Risk.MaxDailyLossUSD),
		checkCooldown(minutesSince, e.cfg.Risk.CooldownMinutes),
		checkTimeToResolution(hoursToResolution(sig.EndDate, now), e.cfg.Risk.MinHoursToResolution),
		checkSlippage(sig.BestBid, sig.BestAsk, e.cfg.Risk.SlippageCeiling),
	}

	verdict := types.RiskVerdict{Approved: true, Checks: checks}
	for _, c := range checks {
		if !c.Passed {
			verdict.Approved = false
		}
	}

	if !verdict.Approved {
		e.logger.Info("candidate blocked",
			"market", sig.MarketID,
			"bucket", sig.Edge.BucketLabel,
			"reasons", verdict.BlockReasons())
	}
	return verdict, nil
}

// hoursToResolution parses the market end date; an unparsable date counts as
// zero hours and fails the minimum-time check rather than passing silently.
func hoursToResolution(endDate string, now time.Time) float64 {
	t, err := time.Parse(time.RFC3339, endDate)
	if err != nil {
		return 0
	}
	return t.Sub(now).Hours()
}
