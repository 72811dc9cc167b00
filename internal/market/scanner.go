// Package market discovers Polymarket daily-high-temperature events via the
// Gamma API and parses their bucket markets.
//
// Event slugs are deterministic per city and date
// ("highest-temperature-in-nyc-on-february-11-2026"), so the scanner probes
// every enabled city crossed with every date inside the lookahead window and
// skips slugs that do not exist.
package market

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"weather-engine/internal/config"
	"weather-engine/pkg/types"
)

// ScannedEvent pairs a parsed event with the raw Gamma JSON for the audit trail.
type ScannedEvent struct {
	Event   types.MarketEvent
	RawJSON string
}

// Scanner probes the Gamma API for active weather events.
type Scanner struct {
	cfg     *config.Config
	gamma   *GammaClient
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewScanner creates a scanner. Requests are paced by ops.request_delay_ms.
func NewScanner(cfg *config.Config, gamma *GammaClient, logger *slog.Logger) *Scanner {
	limit := rate.Inf
	if cfg.Ops.RequestDelayMs > 0 {
		limit = rate.Every(time.Duration(cfg.Ops.RequestDelayMs) * time.Millisecond)
	}
	return &Scanner{
		cfg:     cfg,
		gamma:   gamma,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "scanner"),
		now:     time.Now,
	}
}

// Scan probes every enabled city x lookahead date combination. Per-slug
// failures are logged and skipped; the scan itself only fails on context
// cancellation.
func (s *Scanner) Scan(ctx context.Context) ([]ScannedEvent, error) {
	today := s.now().UTC()
	var results []ScannedEvent

	for _, city := range s.cfg.EnabledCities() {
		for offset := 0; offset < s.cfg.Ops.LookaheadDays; offset++ {
			if err := s.limiter.Wait(ctx); err != nil {
				return results, err
			}

			target := today.AddDate(0, 0, offset)
			slug := BuildEventSlug(city.Slug, target)

			raw, rawJSON, err := s.gamma.GetEventBySlug(ctx, slug)
			if err != nil {
				if ctx.Err() != nil {
					return results, ctx.Err()
				}
				s.logger.Warn("scan failed for slug", "slug", slug, "error", err)
				continue
			}
			if raw == nil {
				s.logger.Debug("no event for slug", "slug", slug)
				continue
			}

			event, ok := s.parseEvent(raw, city.Slug, target.Format("2006-01-02"))
			if !ok {
				continue
			}
			results = append(results, ScannedEvent{Event: event, RawJSON: rawJSON})
			s.logger.Info("found event",
				"slug", slug,
				"buckets", len(event.Buckets),
				"unparsed", len(event.Unparsed))
		}
	}
	return results, nil
}

// parseEvent converts a Gamma event into a MarketEvent. Markets whose bucket
// suffix cannot be parsed are excluded from trading but recorded so they show
// up downstream as BUCKET_PARSE_ERROR.
func (s *Scanner) parseEvent(raw *GammaEvent, citySlug, targetDate string) (types.MarketEvent, bool) {
	if raw.ID == "" || len(raw.Markets) == 0 {
		return types.MarketEvent{}, false
	}

	event := types.MarketEvent{
		EventID:    raw.ID,
		Slug:       raw.Slug,
		CitySlug:   citySlug,
		TargetDate: targetDate,
		Title:      raw.Title,
		FetchedAt:  s.now().UTC(),
	}

	for _, m := range raw.Markets {
		bm, ok := s.parseBucketMarket(m)
		if ok {
			event.Buckets = append(event.Buckets, bm)
			continue
		}
		price := 0.0
		if prices, err := parseJSONFloats(m.OutcomePrices); err == nil && len(prices) > 0 {
			price = prices[0]
		}
		event.Unparsed = append(event.Unparsed, types.UnparsedMarket{
			MarketID:        m.ID,
			Slug:            m.Slug,
			GroupItemTitle:  m.GroupItemTitle,
			OutcomePriceYes: price,
		})
	}

	if len(event.Buckets) == 0 {
		s.logger.Warn("no parseable buckets for event", "slug", raw.Slug)
		return types.MarketEvent{}, false
	}
	return event, true
}

func (s *Scanner) parseBucketMarket(m GammaMarket) (types.BucketMarket, bool) {
	clobIDs, err := parseJSONStrings(m.ClobTokenIds)
	if err != nil || len(clobIDs) < 2 {
		return types.BucketMarket{}, false
	}
	prices, err := parseJSONFloats(m.OutcomePrices)
	if err != nil {
		return types.BucketMarket{}, false
	}
	priceYes := 0.0
	if len(prices) > 0 {
		priceYes = prices[0]
	}

	// Market slugs end in "...-be-{bucket}"; the suffix encodes the bucket.
	var bucket types.TemperatureBucket
	parsed := false
	if idx := strings.LastIndex(m.Slug, "-be-"); idx >= 0 {
		bucket, parsed = ParseBucketSuffix(m.Slug[idx+len("-be-"):])
	}
	if !parsed {
		s.logger.Debug("could not parse bucket from slug", "slug", m.Slug)
		return types.BucketMarket{}, false
	}

	liquidity := 0.0
	if m.Liquidity != "" {
		if f, err := strconv.ParseFloat(m.Liquidity, 64); err == nil {
			liquidity = f
		}
	}

	return types.BucketMarket{
		MarketID:           m.ID,
		ConditionID:        m.ConditionID,
		ClobTokenIDYes:     clobIDs[0],
		ClobTokenIDNo:      clobIDs[1],
		OutcomePriceYes:    priceYes,
		BestBid:            m.BestBid,
		BestAsk:            m.BestAsk,
		LastTradePrice:     m.LastTradePrice,
		Liquidity:          liquidity,
		Volume24hr:         m.Volume24hr,
		MakerBaseFee:       m.MakerBaseFee,
		TakerBaseFee:       m.TakerBaseFee,
		OrderMinSize:       m.OrderMinSize,
		AcceptingOrders:    m.AcceptingOrders,
		EndDate:            m.EndDate,
		GroupItemTitle:     m.GroupItemTitle,
		GroupItemThreshold: m.GroupItemThreshold,
		Bucket:             bucket,
	}, true
}
