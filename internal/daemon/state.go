package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// State is the daemon's status file, rewritten after every cycle.
type State struct {
	PID                 int    `json:"pid"`
	StartedAt           string `json:"started_at"`
	IntervalSeconds     int    `json:"interval_seconds"`
	Mode                string `json:"mode"`
	TotalScans          int    `json:"total_scans"`
	TotalSuccesses      int    `json:"total_successes"`
	TotalFailures       int    `json:"total_failures"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastUpdate          string `json:"last_update"`
}

// writePIDFile claims the PID file. A file left by a dead process is cleaned
// up; a live one means another daemon owns this data dir.
func writePIDFile(dataDir string) error {
	path := pidFilePath(dataDir)
	if pid, err := readPIDFile(dataDir); err == nil {
		if processAlive(pid) {
			return fmt.Errorf("daemon already running with pid %d", pid)
		}
		os.Remove(path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(dataDir string) (int, error) {
	data, err := os.ReadFile(pidFilePath(dataDir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file: %w", err)
	}
	return pid, nil
}

// processAlive probes a pid with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func writeState(dataDir string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := stateFilePath(dataDir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, stateFilePath(dataDir))
}

func readState(dataDir string) (State, error) {
	var state State
	data, err := os.ReadFile(stateFilePath(dataDir))
	if err != nil {
		return state, err
	}
	return state, json.Unmarshal(data, &state)
}

// Status describes the running daemon, or Running=false when there is none.
type Status struct {
	Running bool
	State   State
}

// GetStatus reports whether a daemon is alive for this data dir.
func GetStatus(dataDir string) (Status, error) {
	pid, err := readPIDFile(dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Status{}, nil
		}
		return Status{}, err
	}
	if !processAlive(pid) {
		return Status{}, nil
	}
	state, err := readState(dataDir)
	if err != nil {
		// Alive but no state yet: report the pid only.
		return Status{Running: true, State: State{PID: pid}}, nil
	}
	return Status{Running: true, State: state}, nil
}

// Stop terminates the running daemon: SIGTERM, up to a minute's grace for the
// current cycle to finish, then SIGKILL. Returns false when nothing was
// running.
func Stop(dataDir string) (bool, error) {
	pid, err := readPIDFile(dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !processAlive(pid) {
		os.Remove(pidFilePath(dataDir))
		return false, nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return false, fmt.Errorf("signal daemon %d: %w", pid, err)
	}

	for range 60 {
		time.Sleep(time.Second)
		if !processAlive(pid) {
			return true, nil
		}
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return false, fmt.Errorf("kill daemon %d: %w", pid, err)
	}
	return true, nil
}
