package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// keepCycleLogs is how many per-cycle log files survive rotation.
const keepCycleLogs = 100

// openCycleLog creates logs/scan_<timestamp>.log and returns a logger writing
// to both the file and stderr.
func openCycleLog(logDir string, now time.Time) (*slog.Logger, func(), error) {
	name := fmt.Sprintf("scan_%s.log", now.Format("20060102T150405Z"))
	f, err := os.Create(filepath.Join(logDir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("create cycle log: %w", err)
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, f), nil)
	return slog.New(handler), func() { f.Close() }, nil
}

// rotateCycleLogs removes the oldest scan_*.log files beyond the retention
// count. Timestamped names sort chronologically.
func rotateCycleLogs(logDir string) error {
	matches, err := filepath.Glob(filepath.Join(logDir, "scan_*.log"))
	if err != nil {
		return err
	}
	if len(matches) <= keepCycleLogs {
		return nil
	}
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-keepCycleLogs] {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
