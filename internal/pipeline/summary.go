// Package pipeline orchestrates one scan cycle end to end: market discovery,
// forecasts, edge computation, the risk gate, order execution, exit checks
// and the run summary.
package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"weather-engine/pkg/types"
)

// Summarizer accumulates run metrics as the cycle progresses and produces the
// final RunSummary.
type Summarizer struct {
	summary types.RunSummary
	started time.Time
}

// NewSummarizer starts metric collection for one run.
func NewSummarizer(runID, mode string, started time.Time) *Summarizer {
	return &Summarizer{
		summary: types.RunSummary{
			RunID:        runID,
			Mode:         mode,
			BlockReasons: make(map[string]int),
		},
		started: started,
	}
}

func (s *Summarizer) RecordCities(n int)  { s.summary.CitiesScanned = n }
func (s *Summarizer) RecordEvents(n int)  { s.summary.EventsFound = n }

// RecordEdgeResults counts analyzed buckets and tracks the best tradeable
// edge.
func (s *Summarizer) RecordEdgeResults(results []types.EdgeResult) {
	s.summary.BucketsAnalyzed += len(results)
	for _, r := range results {
		if r.ReasonCode != types.ReasonOpportunity {
			continue
		}
		s.summary.OpportunitiesFound++
		if r.NetEdge > s.summary.BestEdge {
			s.summary.BestEdge = r.NetEdge
			s.summary.BestEdgeLabel = fmt.Sprintf("%s %s $%.3f",
				r.CitySlug, r.BucketLabel, r.MarketPriceYes)
		}
	}
}

// RecordBlocked tallies one blocked candidate and its reasons.
func (s *Summarizer) RecordBlocked(reasons []types.BlockReason) {
	s.summary.BlockedCount++
	for _, r := range reasons {
		s.summary.BlockReasons[string(r)]++
	}
}

// RecordOrderResult tallies one dispatched order.
func (s *Summarizer) RecordOrderResult(status types.OrderStatus) {
	s.summary.OrdersAttempted++
	if status.Succeeded() {
		s.summary.OrdersSucceeded++
	} else {
		s.summary.OrdersFailed++
	}
}

// RecordError appends a non-fatal error to the summary.
func (s *Summarizer) RecordError(msg string) {
	s.summary.Errors = append(s.summary.Errors, msg)
}

func (s *Summarizer) SetExposure(usd float64) { s.summary.TotalExposureUSD = usd }
func (s *Summarizer) SetDailyPnL(usd float64) { s.summary.DailyPnLUSD = usd }

// Finalize stamps the duration and returns the completed summary.
func (s *Summarizer) Finalize(now time.Time) types.RunSummary {
	s.summary.DurationSeconds = now.Sub(s.started).Seconds()
	return s.summary
}

// blockReasonsLine renders "COOLDOWN: 2, SLIPPAGE: 1" sorted by reason name.
func blockReasonsLine(reasons map[string]int) string {
	if len(reasons) == 0 {
		return ""
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, reasons[k]))
	}
	return strings.Join(parts, ", ")
}

// FormatText renders the summary for terminal and log file output.
func FormatText(s types.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Scan Complete (%s) | Run %s ===\n", s.Mode, s.RunID)
	fmt.Fprintf(&b, "Cities scanned:    %d\n", s.CitiesScanned)
	fmt.Fprintf(&b, "Events found:      %d\n", s.EventsFound)
	fmt.Fprintf(&b, "Buckets analyzed:  %d\n", s.BucketsAnalyzed)
	fmt.Fprintf(&b, "Opportunities:     %d\n", s.OpportunitiesFound)
	if s.BlockedCount > 0 {
		fmt.Fprintf(&b, "Blocked:           %d (%s)\n", s.BlockedCount, blockReasonsLine(s.BlockReasons))
	} else {
		fmt.Fprintf(&b, "Blocked:           0\n")
	}
	fmt.Fprintf(&b, "Orders:            %d attempted, %d succeeded, %d failed\n",
		s.OrdersAttempted, s.OrdersSucceeded, s.OrdersFailed)
	if s.BestEdgeLabel != "" {
		fmt.Fprintf(&b, "Best edge:         %.4f (%s)\n", s.BestEdge, s.BestEdgeLabel)
	}
	fmt.Fprintf(&b, "Total exposure:    $%.2f\n", s.TotalExposureUSD)
	fmt.Fprintf(&b, "Daily PnL:         $%.2f\n", s.DailyPnLUSD)
	fmt.Fprintf(&b, "Duration:          %.1fs\n", s.DurationSeconds)
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "Error: %s\n", e)
	}
	return b.String()
}

// FormatChat renders the summary as markdown for chat notifications.
func FormatChat(s types.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Scan Complete** (%s) | Run %.8s\n", s.Mode, s.RunID)
	fmt.Fprintf(&b, "- Events: %d across %d cities (%d buckets)\n",
		s.EventsFound, s.CitiesScanned, s.BucketsAnalyzed)
	fmt.Fprintf(&b, "- Opportunities: %d | Blocked: %d", s.OpportunitiesFound, s.BlockedCount)
	if line := blockReasonsLine(s.BlockReasons); line != "" {
		fmt.Fprintf(&b, " (%s)", line)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Orders: %d/%d succeeded\n", s.OrdersSucceeded, s.OrdersAttempted)
	if s.BestEdgeLabel != "" {
		fmt.Fprintf(&b, "- Best edge: %.4f (%s)\n", s.BestEdge, s.BestEdgeLabel)
	}
	fmt.Fprintf(&b, "- Exposure: $%.2f | Daily PnL: $%.2f\n", s.TotalExposureUSD, s.DailyPnLUSD)
	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "- Errors: %d\n", len(s.Errors))
	}
	return b.String()
}
