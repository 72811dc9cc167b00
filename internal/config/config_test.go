package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "logging:\n  level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Strategy.MinEdgeThreshold != 0.05 {
		t.Errorf("min_edge_threshold = %v, want 0.05", cfg.Strategy.MinEdgeThreshold)
	}
	if cfg.Risk.MaxTradesPerRun != 3 {
		t.Errorf("max_trades_per_run = %d, want 3", cfg.Risk.MaxTradesPerRun)
	}
	if cfg.Execution.Mode != ModeDryRun {
		t.Errorf("mode = %q, want dry-run", cfg.Execution.Mode)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Cities) != 5 {
		t.Fatalf("expected 5 default cities, got %d", len(cfg.Cities))
	}
	if cfg.Cities[0].Slug != "nyc" || cfg.Cities[0].NoaaGridID != "OKX" {
		t.Errorf("unexpected first city: %+v", cfg.Cities[0])
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "strategy:\n  min_edge_treshold: 0.1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"edge threshold above one", func(c *Config) { c.Strategy.MinEdgeThreshold = 1.5 }, "min_edge_threshold"},
		{"zero uncertainty base", func(c *Config) { c.Strategy.UncertaintyBaseF = 0 }, "uncertainty_base_f"},
		{"zero position size", func(c *Config) { c.Risk.MaxPositionSizeUSD = 0 }, "max_position_size_usd"},
		{"zero trades per run", func(c *Config) { c.Risk.MaxTradesPerRun = 0 }, "max_trades_per_run"},
		{"bad mode", func(c *Config) { c.Execution.Mode = "paper" }, "execution.mode"},
		{"lookahead too long", func(c *Config) { c.Ops.LookaheadDays = 15 }, "lookahead_days"},
		{"negative delay", func(c *Config) { c.Ops.RequestDelayMs = -1 }, "request_delay_ms"},
		{"city without slug", func(c *Config) { c.Cities[0].Slug = "" }, "cities[0].slug"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	a := Default()
	b := Default()
	if a.Hash() != b.Hash() {
		t.Errorf("identical configs hash differently: %s vs %s", a.Hash(), b.Hash())
	}
	if len(a.Hash()) != 16 {
		t.Errorf("hash length = %d, want 16", len(a.Hash()))
	}

	b.Risk.MaxTradesPerRun = 4
	if a.Hash() == b.Hash() {
		t.Error("different configs produced the same hash")
	}
}

func TestGetSetDottedPath(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Set("risk.max_position_size_usd", "7.5"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if cfg.Risk.MaxPositionSizeUSD != 7.5 {
		t.Errorf("max_position_size_usd = %v, want 7.5", cfg.Risk.MaxPositionSizeUSD)
	}

	got, err := cfg.Get("risk.max_position_size_usd")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.(float64) != 7.5 {
		t.Errorf("Get = %v, want 7.5", got)
	}

	if err := cfg.Set("execution.mode", "live"); err != nil {
		t.Fatalf("Set mode: %v", err)
	}
	if !cfg.IsLive() {
		t.Error("expected live mode after set")
	}
}

func TestSetRejectsInvalidValue(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Set("risk.max_trades_per_run", "0"); err == nil {
		t.Fatal("expected validation error for zero trades per run")
	}
	// Failed set must not mutate the config.
	if cfg.Risk.MaxTradesPerRun != 3 {
		t.Errorf("config mutated on failed set: %d", cfg.Risk.MaxTradesPerRun)
	}

	if err := cfg.Set("risk.nope", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}
