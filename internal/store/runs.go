package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"weather-engine/pkg/types"
)

// CreateRun opens the bookkeeping row for a scan cycle.
func (s *Store) CreateRun(runID, mode string, startedAt time.Time) error {
	_, err := s.db.Exec(`INSERT INTO runs (run_id, mode, status, started_at)
		VALUES (?, ?, 'running', ?)`,
		runID, mode, startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// CompleteRun finalizes the run row with its terminal status and metrics.
func (s *Store) CompleteRun(runID, status string, summary types.RunSummary) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ?, completed_at = ?,
		cities_scanned = ?, events_found = ?, buckets_analyzed = ?,
		opportunities_found = ?, blocked_count = ?,
		orders_attempted = ?, orders_succeeded = ?, orders_failed = ?,
		best_edge = ?, error_text = ?
		WHERE run_id = ?`,
		status, time.Now().UTC().Format(time.RFC3339),
		summary.CitiesScanned, summary.EventsFound, summary.BucketsAnalyzed,
		summary.OpportunitiesFound, summary.BlockedCount,
		summary.OrdersAttempted, summary.OrdersSucceeded, summary.OrdersFailed,
		summary.BestEdge, strings.Join(summary.Errors, "; "),
		runID)
	return err
}

// RunRecord is the persisted view of one scan cycle.
type RunRecord struct {
	RunID              string
	Mode               string
	Status             string
	StartedAt          string
	CompletedAt        string
	EventsFound        int
	OpportunitiesFound int
	OrdersSucceeded    int
}

// LatestRun returns the most recent run, or nil when the database is fresh.
func (s *Store) LatestRun() (*RunRecord, error) {
	var r RunRecord
	err := s.db.QueryRow(`SELECT run_id, mode, status, started_at,
		COALESCE(completed_at, ''), events_found, opportunities_found, orders_succeeded
		FROM runs ORDER BY id DESC LIMIT 1`).
		Scan(&r.RunID, &r.Mode, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.EventsFound, &r.OpportunitiesFound, &r.OrdersSucceeded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
