package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SystemState reads one operator-controlled state key, falling back to def
// when the key is missing.
func (s *Store) SystemState(key, def string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM system_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSystemState upserts one state key.
func (s *Store) SetSystemState(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO system_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?`,
		key, value, time.Now().UTC().Format(time.RFC3339),
		value, time.Now().UTC().Format(time.RFC3339))
	return err
}

// KillSwitchActive reports whether the operator kill switch is on.
func (s *Store) KillSwitchActive() (bool, error) {
	v, err := s.SystemState("kill_switch", "false")
	return v == "true", err
}

// Paused reports whether scanning is paused.
func (s *Store) Paused() (bool, error) {
	v, err := s.SystemState("paused", "false")
	return v == "true", err
}

// Mode returns the persisted execution mode, defaulting to dry-run.
func (s *Store) Mode() (string, error) {
	return s.SystemState("mode", "dry-run")
}

// LogOperatorCommand appends one operator action to the audit log.
func (s *Store) LogOperatorCommand(command, argument string) error {
	_, err := s.db.Exec(`INSERT INTO operator_commands (command, argument)
		VALUES (?, ?)`, command, argument)
	if err != nil {
		return fmt.Errorf("log operator command: %w", err)
	}
	return nil
}

// OperatorCommand is one audited operator action.
type OperatorCommand struct {
	Command  string
	Argument string
	IssuedAt string
}

// RecentOperatorCommands returns the newest n commands, most recent first.
func (s *Store) RecentOperatorCommands(n int) ([]OperatorCommand, error) {
	rows, err := s.db.Query(`SELECT command, COALESCE(argument, ''), issued_at
		FROM operator_commands ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []OperatorCommand
	for rows.Next() {
		var c OperatorCommand
		if err := rows.Scan(&c.Command, &c.Argument, &c.IssuedAt); err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// SnapshotConfig stores the active config JSON keyed by its hash. Re-running
// with an unchanged config writes nothing.
func (s *Store) SnapshotConfig(hash, configJSON string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO config_snapshots (config_hash, config_json)
		VALUES (?, ?)`, hash, configJSON)
	return err
}
