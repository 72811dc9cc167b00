package store

import "fmt"

// migration is one schema version. Statements run inside a single transaction
// together with the schema_versions bookkeeping row.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{version: 1, name: "initial_schema", stmts: v1Schema},
}

var v1Schema = []string{
	`CREATE TABLE IF NOT EXISTS market_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		slug TEXT NOT NULL,
		city_slug TEXT NOT NULL,
		target_date TEXT NOT NULL,
		title TEXT,
		raw_json TEXT,
		fetched_at TEXT NOT NULL,
		UNIQUE(event_id, fetched_at)
	)`,
	`CREATE TABLE IF NOT EXISTS bucket_markets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_row_id INTEGER NOT NULL REFERENCES market_events(id),
		market_id TEXT NOT NULL,
		condition_id TEXT,
		clob_token_id_yes TEXT,
		clob_token_id_no TEXT,
		outcome_price_yes REAL,
		best_bid REAL,
		best_ask REAL,
		last_trade_price REAL,
		liquidity REAL,
		volume_24hr REAL,
		maker_base_fee REAL,
		taker_base_fee REAL,
		order_min_size REAL,
		accepting_orders INTEGER NOT NULL DEFAULT 0,
		end_date TEXT,
		group_item_title TEXT,
		group_item_threshold TEXT,
		bucket_type TEXT,
		bucket_low INTEGER,
		bucket_high INTEGER,
		bucket_unit TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS forecast_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		city_slug TEXT NOT NULL,
		target_date TEXT NOT NULL,
		high_temp_f INTEGER NOT NULL,
		source_generated_at TEXT,
		raw_periods_json TEXT,
		fetched_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edge_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		market_id TEXT NOT NULL,
		city_slug TEXT NOT NULL,
		target_date TEXT NOT NULL,
		bucket_label TEXT,
		bucket_probability REAL NOT NULL,
		market_price_yes REAL NOT NULL,
		gross_edge REAL NOT NULL,
		fee_estimate REAL NOT NULL,
		slippage_estimate REAL NOT NULL,
		net_edge REAL NOT NULL,
		reason_code TEXT NOT NULL,
		sigma_used REAL NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS risk_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		idempotency_key TEXT NOT NULL,
		check_name TEXT NOT NULL,
		passed INTEGER NOT NULL,
		block_reason TEXT,
		detail TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS order_intents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		idempotency_key TEXT NOT NULL UNIQUE,
		market_id TEXT NOT NULL,
		clob_token_id TEXT,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		size_usd REAL NOT NULL,
		shares REAL,
		city_slug TEXT,
		target_date TEXT,
		bucket_label TEXT,
		net_edge REAL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS order_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		idempotency_key TEXT NOT NULL REFERENCES order_intents(idempotency_key),
		status TEXT NOT NULL,
		fill_price REAL,
		fill_size REAL,
		error_message TEXT,
		executed_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market_id TEXT NOT NULL,
		city_slug TEXT NOT NULL,
		target_date TEXT NOT NULL,
		bucket_label TEXT,
		entry_price REAL NOT NULL,
		current_price REAL,
		size_usd REAL NOT NULL,
		unrealized_pnl REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'open',
		opened_at TEXT NOT NULL DEFAULT (datetime('now')),
		closed_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS daily_pnl (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		realized_pnl REAL NOT NULL DEFAULT 0,
		unrealized_pnl REAL NOT NULL DEFAULT 0,
		total_pnl REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS config_snapshots (
		config_hash TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS system_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS operator_commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL,
		argument TEXT,
		issued_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		started_at TEXT NOT NULL,
		completed_at TEXT,
		cities_scanned INTEGER NOT NULL DEFAULT 0,
		events_found INTEGER NOT NULL DEFAULT 0,
		buckets_analyzed INTEGER NOT NULL DEFAULT 0,
		opportunities_found INTEGER NOT NULL DEFAULT 0,
		blocked_count INTEGER NOT NULL DEFAULT 0,
		orders_attempted INTEGER NOT NULL DEFAULT 0,
		orders_succeeded INTEGER NOT NULL DEFAULT 0,
		orders_failed INTEGER NOT NULL DEFAULT 0,
		best_edge REAL,
		error_text TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_edge_results_run ON edge_results(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_risk_checks_key ON risk_checks(idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS idx_order_results_key ON order_results(idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status)`,
	`INSERT OR IGNORE INTO system_state (key, value) VALUES ('mode', 'dry-run')`,
	`INSERT OR IGNORE INTO system_state (key, value) VALUES ('paused', 'false')`,
	`INSERT OR IGNORE INTO system_state (key, value) VALUES ('kill_switch', 'false')`,
}

// migrate applies any migrations newer than the recorded schema version.
// Safe to call on every Open; already-applied versions are skipped.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_versions`).Scan(&current); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_versions (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
