package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"weather-engine/pkg/types"
)

// OpenPosition records a new open holding and returns its row id.
func (s *Store) OpenPosition(p types.Position) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO positions
		(market_id, city_slug, target_date, bucket_label, entry_price,
		 current_price, size_usd, status, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'open', ?)`,
		p.MarketID, p.CitySlug, p.TargetDate, p.BucketLabel, p.EntryPrice,
		p.EntryPrice, p.SizeUSD, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert position: %w", err)
	}
	return res.LastInsertId()
}

// OpenPositions returns all currently open positions.
func (s *Store) OpenPositions() ([]types.Position, error) {
	rows, err := s.db.Query(`SELECT id, market_id, city_slug, target_date,
		COALESCE(bucket_label, ''), entry_price, COALESCE(current_price, entry_price),
		size_usd, unrealized_pnl, status, opened_at, COALESCE(closed_at, '')
		FROM positions WHERE status = 'open' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []types.Position
	for rows.Next() {
		var p types.Position
		if err := rows.Scan(&p.ID, &p.MarketID, &p.CitySlug, &p.TargetDate,
			&p.BucketLabel, &p.EntryPrice, &p.CurrentPrice, &p.SizeUSD,
			&p.UnrealizedPnL, &p.Status, &p.OpenedAt, &p.ClosedAt); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// TotalOpenExposure sums size_usd across all open positions.
func (s *Store) TotalOpenExposure() (float64, error) {
	var total float64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(size_usd), 0) FROM positions
		WHERE status = 'open'`).Scan(&total)
	return total, err
}

// CityOpenExposure sums size_usd across open positions in one city.
func (s *Store) CityOpenExposure(citySlug string) (float64, error) {
	var total float64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(size_usd), 0) FROM positions
		WHERE status = 'open' AND city_slug = ?`, citySlug).Scan(&total)
	return total, err
}

// UpdatePositionPrice marks an open position to the latest market price and
// refreshes its unrealized PnL.
func (s *Store) UpdatePositionPrice(id int64, currentPrice float64) error {
	var entry, size float64
	err := s.db.QueryRow(`SELECT entry_price, size_usd FROM positions WHERE id = ?`, id).
		Scan(&entry, &size)
	if err != nil {
		return fmt.Errorf("load position %d: %w", id, err)
	}

	unrealized := 0.0
	if entry > 0 {
		shares := decimal.NewFromFloat(size).Div(decimal.NewFromFloat(entry))
		unrealized, _ = shares.Mul(decimal.NewFromFloat(currentPrice - entry)).Float64()
	}

	_, err = s.db.Exec(`UPDATE positions SET current_price = ?, unrealized_pnl = ?
		WHERE id = ?`, currentPrice, unrealized, id)
	return err
}

// ClosePosition marks a position closed at the given exit price.
func (s *Store) ClosePosition(id int64, exitPrice float64) error {
	_, err := s.db.Exec(`UPDATE positions SET status = 'closed', current_price = ?,
		unrealized_pnl = 0, closed_at = ? WHERE id = ?`,
		exitPrice, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// AddRealizedPnL folds a realized gain or loss into the rollup for date
// (YYYY-MM-DD, UTC). Decimal arithmetic keeps repeated small adjustments from
// drifting.
func (s *Store) AddRealizedPnL(date string, amount float64) error {
	var realized, unrealized float64
	err := s.db.QueryRow(`SELECT realized_pnl, unrealized_pnl FROM daily_pnl
		WHERE date = ?`, date).Scan(&realized, &unrealized)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	newRealized, _ := decimal.NewFromFloat(realized).Add(decimal.NewFromFloat(amount)).Float64()
	total, _ := decimal.NewFromFloat(newRealized).Add(decimal.NewFromFloat(unrealized)).Float64()

	_, err = s.db.Exec(`INSERT INTO daily_pnl (date, realized_pnl, unrealized_pnl, total_pnl)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET realized_pnl = ?, total_pnl = ?`,
		date, newRealized, unrealized, total, newRealized, total)
	return err
}

// SetUnrealizedPnL replaces the unrealized component of the rollup for date.
func (s *Store) SetUnrealizedPnL(date string, amount float64) error {
	var realized float64
	err := s.db.QueryRow(`SELECT realized_pnl FROM daily_pnl WHERE date = ?`, date).Scan(&realized)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	total, _ := decimal.NewFromFloat(realized).Add(decimal.NewFromFloat(amount)).Float64()

	_, err = s.db.Exec(`INSERT INTO daily_pnl (date, realized_pnl, unrealized_pnl, total_pnl)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET unrealized_pnl = ?, total_pnl = ?`,
		date, realized, amount, total, amount, total)
	return err
}

// DailyPnL returns the rollup for date, zeroed when no row exists yet.
func (s *Store) DailyPnL(date string) (types.DailyPnL, error) {
	p := types.DailyPnL{Date: date}
	err := s.db.QueryRow(`SELECT realized_pnl, unrealized_pnl, total_pnl
		FROM daily_pnl WHERE date = ?`, date).
		Scan(&p.RealizedPnL, &p.UnrealizedPnL, &p.TotalPnL)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	return p, err
}

// DailyLoss returns today's loss as a positive number, zero when flat or up.
func (s *Store) DailyLoss(date string) (float64, error) {
	p, err := s.DailyPnL(date)
	if err != nil {
		return 0, err
	}
	if p.TotalPnL < 0 {
		return -p.TotalPnL, nil
	}
	return 0, nil
}
