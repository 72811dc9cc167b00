package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"weather-engine/pkg/types"
)

// SaveRiskChecks persists the full check sequence for one candidate, keyed by
// run and idempotency key. Every evaluated candidate leaves all of its rows,
// approved or not.
func (s *Store) SaveRiskChecks(runID, idempotencyKey string, checks []types.RiskCheckResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range checks {
		if _, err := tx.Exec(`INSERT INTO risk_checks
			(run_id, idempotency_key, check_name, passed, block_reason, detail)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, idempotencyKey, c.Name, c.Passed, string(c.BlockReason), c.Detail); err != nil {
			return fmt.Errorf("insert risk check %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// SaveOrderIntent writes the durable intent row. The UNIQUE constraint on
// idempotency_key is the last line of defense against double submission.
func (s *Store) SaveOrderIntent(intent types.OrderIntent) error {
	_, err := s.db.Exec(`INSERT INTO order_intents
		(run_id, idempotency_key, market_id, clob_token_id, side, price, size_usd,
		 shares, city_slug, target_date, bucket_label, net_edge)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.RunID, intent.IdempotencyKey, intent.MarketID, intent.ClobTokenID,
		intent.Side, intent.Price, intent.SizeUSD, intent.Shares,
		intent.CitySlug, intent.TargetDate, intent.BucketLabel, intent.NetEdge)
	if err != nil {
		return fmt.Errorf("insert order intent: %w", err)
	}
	return nil
}

// SaveOrderResult records the outcome of dispatching an intent.
func (s *Store) SaveOrderResult(r types.OrderResult) error {
	_, err := s.db.Exec(`INSERT INTO order_results
		(idempotency_key, status, fill_price, fill_size, error_message, executed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.IdempotencyKey, string(r.Status), r.FillPrice, r.FillSize,
		r.ErrorMessage, r.ExecutedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert order result: %w", err)
	}
	return nil
}

// OrderIntentExists reports whether an intent with this idempotency key was
// ever written.
func (s *Store) OrderIntentExists(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM order_intents WHERE idempotency_key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LastTradeTime returns the most recent executed-trade time for a market, or
// nil when the market has never traded. Only DRY_RUN and FILLED results count.
func (s *Store) LastTradeTime(marketID string) (*time.Time, error) {
	var raw string
	err := s.db.QueryRow(`SELECT r.executed_at
		FROM order_results r
		JOIN order_intents i ON i.idempotency_key = r.idempotency_key
		WHERE i.market_id = ? AND r.status IN ('DRY_RUN', 'FILLED')
		ORDER BY r.executed_at DESC LIMIT 1`, marketID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse executed_at %q: %w", raw, err)
	}
	return &t, nil
}
