package store

import (
	"fmt"
	"time"

	"weather-engine/pkg/types"
)

// SaveMarketEvent writes one scanned event and all of its bucket markets in a
// single transaction. RawJSON is the Gamma payload kept for audit.
func (s *Store) SaveMarketEvent(runID string, event types.MarketEvent, rawJSON string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO market_events
		(run_id, event_id, slug, city_slug, target_date, title, raw_json, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, event.EventID, event.Slug, event.CitySlug, event.TargetDate,
		event.Title, rawJSON, event.FetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert market event: %w", err)
	}
	eventRowID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, bm := range event.Buckets {
		if _, err := tx.Exec(`INSERT INTO bucket_markets
			(event_row_id, market_id, condition_id, clob_token_id_yes, clob_token_id_no,
			 outcome_price_yes, best_bid, best_ask, last_trade_price, liquidity,
			 volume_24hr, maker_base_fee, taker_base_fee, order_min_size,
			 accepting_orders, end_date, group_item_title, group_item_threshold,
			 bucket_type, bucket_low, bucket_high, bucket_unit)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			eventRowID, bm.MarketID, bm.ConditionID, bm.ClobTokenIDYes, bm.ClobTokenIDNo,
			bm.OutcomePriceYes, bm.BestBid, bm.BestAsk, bm.LastTradePrice, bm.Liquidity,
			bm.Volume24hr, bm.MakerBaseFee, bm.TakerBaseFee, bm.OrderMinSize,
			bm.AcceptingOrders, bm.EndDate, bm.GroupItemTitle, bm.GroupItemThreshold,
			string(bm.Bucket.Type), bm.Bucket.Low, bm.Bucket.High, string(bm.Bucket.Unit)); err != nil {
			return fmt.Errorf("insert bucket market %s: %w", bm.MarketID, err)
		}
	}
	return tx.Commit()
}

// SaveForecast snapshots one extracted forecast point.
func (s *Store) SaveForecast(runID string, fp types.ForecastPoint, rawPeriodsJSON string) error {
	_, err := s.db.Exec(`INSERT INTO forecast_snapshots
		(run_id, city_slug, target_date, high_temp_f, source_generated_at, raw_periods_json, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, fp.CitySlug, fp.TargetDate, fp.HighTempF, fp.SourceGeneratedAt,
		rawPeriodsJSON, fp.FetchedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert forecast snapshot: %w", err)
	}
	return nil
}

// SaveEdgeResult records the computed edge and reason code for one bucket.
func (s *Store) SaveEdgeResult(r types.EdgeResult) error {
	_, err := s.db.Exec(`INSERT INTO edge_results
		(run_id, event_id, market_id, city_slug, target_date, bucket_label,
		 bucket_probability, market_price_yes, gross_edge, fee_estimate,
		 slippage_estimate, net_edge, reason_code, sigma_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.EventID, r.MarketID, r.CitySlug, r.TargetDate, r.BucketLabel,
		r.BucketProbability, r.MarketPriceYes, r.GrossEdge, r.FeeEstimate,
		r.SlippageEstimate, r.NetEdge, string(r.ReasonCode), r.SigmaUsed)
	if err != nil {
		return fmt.Errorf("insert edge result: %w", err)
	}
	return nil
}
