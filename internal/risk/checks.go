// Package risk gates every candidate trade behind a fixed sequence of checks.
//
// All checks always run; a failing check never short-circuits the rest. The
// full sequence is persisted per candidate so the audit trail shows exactly
// which limits a blocked trade tripped. Values exactly at a limit pass; only
// strict violations block.
package risk

import (
	"fmt"

	"weather-engine/pkg/types"
)

func pass(name string) types.RiskCheckResult {
	return types.RiskCheckResult{Name: name, Passed: true, Detail: "ok"}
}

func fail(name string, reason types.BlockReason, detail string) types.RiskCheckResult {
	return types.RiskCheckResult{Name: name, Passed: false, BlockReason: reason, Detail: detail}
}

func checkKillSwitch(active bool) types.RiskCheckResult {
	if active {
		return fail("kill_switch", types.BlockKillSwitch, "Kill switch is active")
	}
	return pass("kill_switch")
}

func checkPaused(paused bool) types.RiskCheckResult {
	if paused {
		return fail("paused", types.BlockPaused, "System is paused")
	}
	return pass("paused")
}

func checkPositionSize(proposedUSD, maxUSD float64) types.RiskCheckResult {
	if proposedUSD > maxUSD {
		return fail("position_size", types.BlockPositionSize,
			fmt.Sprintf("$%.2f > limit $%.2f", proposedUSD, maxUSD))
	}
	return pass("position_size")
}

func checkTradesPerRun(count, max int) types.RiskCheckResult {
	if count >= max {
		return fail("trades_per_run", types.BlockTradesPerRun,
			fmt.Sprintf("%d >= limit %d", count, max))
	}
	return pass("trades_per_run")
}

func checkTotalExposure(currentUSD, proposedUSD, maxUSD float64) types.RiskCheckResult {
	if currentUSD+proposedUSD > maxUSD {
		return fail("total_exposure", types.BlockTotalExposure,
			fmt.Sprintf("$%.2f > limit $%.2f", currentUSD+proposedUSD, maxUSD))
	}
	return pass("total_exposure")
}

func checkPerCityExposure(currentUSD, proposedUSD, maxUSD float64) types.RiskCheckResult {
	if currentUSD+proposedUSD > maxUSD {
		return fail("per_city_exposure", types.BlockPerCityExposure,
			fmt.Sprintf("$%.2f > limit $%.2f", currentUSD+proposedUSD, maxUSD))
	}
	return pass("per_city_exposure")
}

func checkDailyLoss(lossUSD, maxUSD float64) types.RiskCheckResult {
	if lossUSD > maxUSD {
		return fail("daily_loss", types.BlockDailyLoss,
			fmt.Sprintf("$%.2f > limit $%.2f", lossUSD, maxUSD))
	}
	return pass("daily_loss")
}

// checkCooldown passes when the market has never traded (minutesSince nil)
// and when exactly the cooldown has elapsed.
func checkCooldown(minutesSince *float64, cooldownMinutes int) types.RiskCheckResult {
	if minutesSince == nil {
		return pass("cooldown")
	}
	if *minutesSince < float64(cooldownMinutes) {
		return fail("cooldown", types.BlockCooldown,
			fmt.Sprintf("%.1fmin < %dmin cooldown", *minutesSince, cooldownMinutes))
	}
	return pass("cooldown")
}

func checkTimeToResolution(hours, minHours float64) types.RiskCheckResult {
	if hours < minHours {
		return fail("time_to_resolution", types.BlockTimeToResolution,
			fmt.Sprintf("%.1fh < %.1fh minimum", hours, minHours))
	}
	return pass("time_to_resolution")
}

// checkSlippage uses real top-of-book: relative spread (ask-bid)/bid against
// the configured ceiling. A missing or crossed bid fails outright.
func checkSlippage(bestBid, bestAsk, ceiling float64) types.RiskCheckResult {
	if bestBid <= 0 {
		return fail("slippage", types.BlockSlippage, "Best bid is zero or negative")
	}
	spread := (bestAsk - bestBid) / bestBid
	if spread > ceiling {
		return fail("slippage", types.BlockSlippage,
			fmt.Sprintf("Spread %.4f > ceiling %.4f", spread, ceiling))
	}
	return pass("slippage")
}
