// Package daemon runs scan cycles on an interval as a detached background
// process, with a PID file for liveness, a JSON state file for status
// reporting, exponential backoff after consecutive failures, and one log file
// per cycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

const (
	// DefaultInterval between scan cycles.
	DefaultInterval = 120 * time.Second

	// maxBackoff caps the failure backoff.
	maxBackoff = 600 * time.Second

	pidFileName   = "daemon.pid"
	stateFileName = "daemon_state.json"
)

// CycleFunc runs one scan cycle. The logger writes to that cycle's log file.
type CycleFunc func(ctx context.Context, logger *slog.Logger) error

// Daemon drives the scan loop.
type Daemon struct {
	dataDir  string
	logDir   string
	interval time.Duration
	mode     string
	cycle    CycleFunc
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a daemon. interval <= 0 uses DefaultInterval.
func New(dataDir, logDir string, interval time.Duration, mode string, cycle CycleFunc, logger *slog.Logger) *Daemon {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Daemon{
		dataDir:  dataDir,
		logDir:   logDir,
		interval: interval,
		mode:     mode,
		cycle:    cycle,
		logger:   logger.With("component", "daemon"),
		now:      time.Now,
	}
}

// Run executes the scan loop until the context is cancelled or a termination
// signal arrives. A signal lets the in-flight cycle finish; only the sleep is
// interrupted.
func (d *Daemon) Run(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(d.logDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	if err := writePIDFile(d.dataDir); err != nil {
		return err
	}
	defer os.Remove(pidFilePath(d.dataDir))
	defer os.Remove(stateFilePath(d.dataDir))

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	state := State{
		PID:             os.Getpid(),
		StartedAt:       d.now().UTC().Format(time.RFC3339),
		IntervalSeconds: int(d.interval.Seconds()),
		Mode:            d.mode,
	}
	if err := writeState(d.dataDir, state); err != nil {
		d.logger.Warn("state write failed", "error", err)
	}

	d.logger.Info("daemon started",
		"pid", state.PID, "interval", d.interval, "mode", d.mode)

	for {
		d.runOneCycle(sigCtx, &state)

		sleep := d.interval
		if state.ConsecutiveFailures > 0 {
			sleep = backoff(d.interval, state.ConsecutiveFailures)
			d.logger.Warn("backing off after failures",
				"consecutive_failures", state.ConsecutiveFailures, "sleep", sleep)
		}

		if !sleepUntil(sigCtx, sleep) {
			d.logger.Info("daemon stopping",
				"total_scans", state.TotalScans,
				"total_failures", state.TotalFailures)
			return nil
		}
	}
}

// runOneCycle opens the cycle log, runs the cycle with the signal context so
// an in-flight cycle is not torn down mid-write, and updates counters.
func (d *Daemon) runOneCycle(ctx context.Context, state *State) {
	cycleLogger, closeLog, err := openCycleLog(d.logDir, d.now().UTC())
	if err != nil {
		d.logger.Warn("cycle log unavailable, using daemon logger", "error", err)
		cycleLogger = d.logger
		closeLog = func() {}
	}
	defer closeLog()

	state.TotalScans++
	if err := runCycle(context.WithoutCancel(ctx), d.cycle, cycleLogger); err != nil {
		state.TotalFailures++
		state.ConsecutiveFailures++
		d.logger.Error("scan cycle failed",
			"error", err, "consecutive_failures", state.ConsecutiveFailures)
	} else {
		state.TotalSuccesses++
		state.ConsecutiveFailures = 0
	}
	state.LastUpdate = d.now().UTC().Format(time.RFC3339)

	if err := writeState(d.dataDir, *state); err != nil {
		d.logger.Warn("state write failed", "error", err)
	}

	if err := rotateCycleLogs(d.logDir); err != nil {
		d.logger.Warn("log rotation failed", "error", err)
	}
}

// runCycle converts a panicking cycle into an ordinary failure so the loop
// keeps running and backs off instead of dying.
func runCycle(ctx context.Context, cycle CycleFunc, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return cycle(ctx, logger)
}

// backoff doubles the interval per consecutive failure, capped at maxBackoff.
func backoff(interval time.Duration, consecutiveFailures int) time.Duration {
	sleep := interval
	for range consecutiveFailures {
		sleep *= 2
		if sleep >= maxBackoff {
			return maxBackoff
		}
	}
	return sleep
}

// sleepUntil waits for d in one-second steps so shutdown is never more than a
// second away. Returns false when the context was cancelled.
func sleepUntil(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	return true
}

func pidFilePath(dataDir string) string   { return filepath.Join(dataDir, pidFileName) }
func stateFilePath(dataDir string) string { return filepath.Join(dataDir, stateFileName) }
