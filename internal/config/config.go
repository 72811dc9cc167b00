// Package config defines all configuration for the weather trading engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// overrides via WEATHER_* environment variables. Unknown keys are rejected.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Execution modes and adapters. "dry-run" simulates fills locally; "live"
// routes orders through the Simmer REST API.
const (
	ModeDryRun = "dry-run"
	ModeLive   = "live"

	AdapterDryRun = "dry-run"
	AdapterSimmer = "simmer"

	VenueSimmer     = "simmer"     // $SIM virtual trading
	VenuePolymarket = "polymarket" // real USDC trading
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Strategy  StrategyConfig  `mapstructure:"strategy" json:"strategy"`
	Risk      RiskConfig      `mapstructure:"risk" json:"risk"`
	Execution ExecutionConfig `mapstructure:"execution" json:"execution"`
	Ops       OpsConfig       `mapstructure:"ops" json:"ops"`
	Store     StoreConfig     `mapstructure:"store" json:"store"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
	Cities    []CityConfig    `mapstructure:"cities" json:"cities"`
}

// StrategyConfig tunes edge computation and exits.
//
//   - MinEdgeThreshold: minimum net edge to act on.
//   - MaxEntryPrice: never buy YES above this price.
//   - MinExitPrice: sell open positions once price reaches this level.
//   - UncertaintyBaseF / UncertaintyPerDayF: forecast sigma model,
//     sigma = max(1.0, base + per_day * days_out).
//   - FeeEstimate / SlippageEstimate: flat deductions from gross edge.
type StrategyConfig struct {
	MinEdgeThreshold   float64 `mapstructure:"min_edge_threshold" json:"min_edge_threshold"`
	MaxEntryPrice      float64 `mapstructure:"max_entry_price" json:"max_entry_price"`
	MinExitPrice       float64 `mapstructure:"min_exit_price" json:"min_exit_price"`
	UncertaintyBaseF   float64 `mapstructure:"uncertainty_base_f" json:"uncertainty_base_f"`
	UncertaintyPerDayF float64 `mapstructure:"uncertainty_per_day_f" json:"uncertainty_per_day_f"`
	FeeEstimate        float64 `mapstructure:"fee_estimate" json:"fee_estimate"`
	SlippageEstimate   float64 `mapstructure:"slippage_estimate" json:"slippage_estimate"`
}

// RiskConfig sets the hard limits enforced by the risk gate.
type RiskConfig struct {
	MaxPositionSizeUSD    float64 `mapstructure:"max_position_size_usd" json:"max_position_size_usd"`
	MaxTradesPerRun       int     `mapstructure:"max_trades_per_run" json:"max_trades_per_run"`
	MaxTotalExposureUSD   float64 `mapstructure:"max_total_exposure_usd" json:"max_total_exposure_usd"`
	MaxPerCityExposureUSD float64 `mapstructure:"max_per_city_exposure_usd" json:"max_per_city_exposure_usd"`
	MaxDailyLossUSD       float64 `mapstructure:"max_daily_loss_usd" json:"max_daily_loss_usd"`
	CooldownMinutes       int     `mapstructure:"cooldown_minutes" json:"cooldown_minutes"`
	MinHoursToResolution  float64 `mapstructure:"min_hours_to_resolution" json:"min_hours_to_resolution"`
	SlippageCeiling       float64 `mapstructure:"slippage_ceiling" json:"slippage_ceiling"`
}

// ExecutionConfig selects how approved orders are executed.
type ExecutionConfig struct {
	Mode    string `mapstructure:"mode" json:"mode"`
	Adapter string `mapstructure:"adapter" json:"adapter"`
	Venue   string `mapstructure:"venue" json:"venue"`
}

// OpsConfig controls scan cadence and data freshness limits.
type OpsConfig struct {
	ScanIntervalMinutes     int `mapstructure:"scan_interval_minutes" json:"scan_interval_minutes"`
	ForecastMaxAgeMinutes   int `mapstructure:"forecast_max_age_minutes" json:"forecast_max_age_minutes"`
	MarketDataMaxAgeMinutes int `mapstructure:"market_data_max_age_minutes" json:"market_data_max_age_minutes"`
	LookaheadDays           int `mapstructure:"lookahead_days" json:"lookahead_days"`
	RequestDelayMs          int `mapstructure:"request_delay_ms" json:"request_delay_ms"`
}

// StoreConfig sets where the SQLite database, runtime files and logs live.
type StoreConfig struct {
	DBPath  string `mapstructure:"db_path" json:"db_path"`
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
	LogDir  string `mapstructure:"log_dir" json:"log_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// CityConfig identifies a tradeable city and its NOAA gridpoint.
type CityConfig struct {
	Name       string `mapstructure:"name" json:"name"`
	Slug       string `mapstructure:"slug" json:"slug"`
	NoaaGridID string `mapstructure:"noaa_grid_id" json:"noaa_grid_id"`
	NoaaGridX  int    `mapstructure:"noaa_grid_x" json:"noaa_grid_x"`
	NoaaGridY  int    `mapstructure:"noaa_grid_y" json:"noaa_grid_y"`
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
}

// DefaultCities are the five supported markets with pre-resolved NOAA grid
// coordinates, injected when the YAML lists no cities.
func DefaultCities() []CityConfig {
	return []CityConfig{
		{Name: "New York City", Slug: "nyc", NoaaGridID: "OKX", NoaaGridX: 37, NoaaGridY: 39, Enabled: true},
		{Name: "Chicago", Slug: "chicago", NoaaGridID: "LOT", NoaaGridX: 66, NoaaGridY: 77, Enabled: true},
		{Name: "Seattle", Slug: "seattle", NoaaGridID: "SEW", NoaaGridX: 124, NoaaGridY: 61, Enabled: true},
		{Name: "Atlanta", Slug: "atlanta", NoaaGridID: "FFC", NoaaGridX: 50, NoaaGridY: 82, Enabled: true},
		{Name: "Dallas", Slug: "dallas", NoaaGridID: "FWD", NoaaGridX: 87, NoaaGridY: 107, Enabled: true},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy.min_edge_threshold", 0.05)
	v.SetDefault("strategy.max_entry_price", 0.15)
	v.SetDefault("strategy.min_exit_price", 0.45)
	v.SetDefault("strategy.uncertainty_base_f", 2.5)
	v.SetDefault("strategy.uncertainty_per_day_f", 0.5)
	v.SetDefault("strategy.fee_estimate", 0.02)
	v.SetDefault("strategy.slippage_estimate", 0.01)

	v.SetDefault("risk.max_position_size_usd", 5.00)
	v.SetDefault("risk.max_trades_per_run", 3)
	v.SetDefault("risk.max_total_exposure_usd", 25.00)
	v.SetDefault("risk.max_per_city_exposure_usd", 10.00)
	v.SetDefault("risk.max_daily_loss_usd", 10.00)
	v.SetDefault("risk.cooldown_minutes", 30)
	v.SetDefault("risk.min_hours_to_resolution", 6.0)
	v.SetDefault("risk.slippage_ceiling", 0.05)

	v.SetDefault("execution.mode", ModeDryRun)
	v.SetDefault("execution.adapter", AdapterDryRun)
	v.SetDefault("execution.venue", VenueSimmer)

	v.SetDefault("ops.scan_interval_minutes", 60)
	v.SetDefault("ops.forecast_max_age_minutes", 360)
	v.SetDefault("ops.market_data_max_age_minutes", 30)
	v.SetDefault("ops.lookahead_days", 7)
	v.SetDefault("ops.request_delay_ms", 200)

	v.SetDefault("store.db_path", "data/engine.db")
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.log_dir", "logs")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads config from a YAML file with WEATHER_* env overrides, injects
// the default city set when none is configured, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WEATHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Cities) == 0 {
		cfg.Cities = DefaultCities()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading a file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode cleanly.
	_ = v.Unmarshal(&cfg)
	cfg.Cities = DefaultCities()
	return &cfg
}

// IsLive reports whether real orders will be placed.
func (c *Config) IsLive() bool { return c.Execution.Mode == ModeLive }

// EnabledCities filters the city list down to enabled entries.
func (c *Config) EnabledCities() []CityConfig {
	var out []CityConfig
	for _, city := range c.Cities {
		if city.Enabled {
			out = append(out, city)
		}
	}
	return out
}

// Validate checks all value ranges. Returns the first violated constraint.
func (c *Config) Validate() error {
	if err := unit(c.Strategy.MinEdgeThreshold, "strategy.min_edge_threshold"); err != nil {
		return err
	}
	if err := unit(c.Strategy.MaxEntryPrice, "strategy.max_entry_price"); err != nil {
		return err
	}
	if err := unit(c.Strategy.MinExitPrice, "strategy.min_exit_price"); err != nil {
		return err
	}
	if c.Strategy.UncertaintyBaseF <= 0 {
		return fmt.Errorf("strategy.uncertainty_base_f must be > 0")
	}
	if c.Strategy.UncertaintyPerDayF < 0 {
		return fmt.Errorf("strategy.uncertainty_per_day_f must be >= 0")
	}
	if err := unit(c.Strategy.FeeEstimate, "strategy.fee_estimate"); err != nil {
		return err
	}
	if err := unit(c.Strategy.SlippageEstimate, "strategy.slippage_estimate"); err != nil {
		return err
	}

	if c.Risk.MaxPositionSizeUSD <= 0 {
		return fmt.Errorf("risk.max_position_size_usd must be > 0")
	}
	if c.Risk.MaxTradesPerRun < 1 {
		return fmt.Errorf("risk.max_trades_per_run must be >= 1")
	}
	if c.Risk.MaxTotalExposureUSD <= 0 {
		return fmt.Errorf("risk.max_total_exposure_usd must be > 0")
	}
	if c.Risk.MaxPerCityExposureUSD <= 0 {
		return fmt.Errorf("risk.max_per_city_exposure_usd must be > 0")
	}
	if c.Risk.MaxDailyLossUSD <= 0 {
		return fmt.Errorf("risk.max_daily_loss_usd must be > 0")
	}
	if c.Risk.CooldownMinutes < 0 {
		return fmt.Errorf("risk.cooldown_minutes must be >= 0")
	}
	if c.Risk.MinHoursToResolution < 0 {
		return fmt.Errorf("risk.min_hours_to_resolution must be >= 0")
	}
	if err := unit(c.Risk.SlippageCeiling, "risk.slippage_ceiling"); err != nil {
		return err
	}

	switch c.Execution.Mode {
	case ModeDryRun, ModeLive:
	default:
		return fmt.Errorf("execution.mode must be %q or %q", ModeDryRun, ModeLive)
	}
	switch c.Execution.Adapter {
	case AdapterDryRun, AdapterSimmer:
	default:
		return fmt.Errorf("execution.adapter must be %q or %q", AdapterDryRun, AdapterSimmer)
	}
	switch c.Execution.Venue {
	case VenueSimmer, VenuePolymarket:
	default:
		return fmt.Errorf("execution.venue must be %q or %q", VenueSimmer, VenuePolymarket)
	}

	if c.Ops.ScanIntervalMinutes < 1 {
		return fmt.Errorf("ops.scan_interval_minutes must be >= 1")
	}
	if c.Ops.ForecastMaxAgeMinutes < 1 {
		return fmt.Errorf("ops.forecast_max_age_minutes must be >= 1")
	}
	if c.Ops.MarketDataMaxAgeMinutes < 1 {
		return fmt.Errorf("ops.market_data_max_age_minutes must be >= 1")
	}
	if c.Ops.LookaheadDays < 1 || c.Ops.LookaheadDays > 14 {
		return fmt.Errorf("ops.lookahead_days must be in [1, 14]")
	}
	if c.Ops.RequestDelayMs < 0 {
		return fmt.Errorf("ops.request_delay_ms must be >= 0")
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}

	for i, city := range c.Cities {
		if city.Slug == "" {
			return fmt.Errorf("cities[%d].slug is required", i)
		}
		if city.NoaaGridID == "" {
			return fmt.Errorf("cities[%d].noaa_grid_id is required", i)
		}
	}
	return nil
}

func unit(val float64, key string) error {
	if val < 0 || val > 1 {
		return fmt.Errorf("%s must be in [0, 1]", key)
	}
	return nil
}

// WriteYAML persists the current config to a YAML file, so operator edits via
// Set survive restarts.
func (c *Config) WriteYAML(path string) error {
	var m map[string]any
	data, _ := json.Marshal(c)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	v := viper.New()
	if err := v.MergeConfigMap(m); err != nil {
		return err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Hash returns the first 16 hex chars of the SHA-256 of the canonical JSON
// encoding. Identical configs always hash identically.
func (c *Config) Hash() string {
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// JSON returns the canonical JSON encoding used for snapshots.
func (c *Config) JSON() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// Get resolves a dotted key path such as "risk.max_position_size_usd".
func (c *Config) Get(key string) (any, error) {
	var m map[string]any
	data, _ := json.Marshal(c)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	cur := any(m)
	for _, part := range strings.Split(key, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("config key not found: %s", key)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("config key not found: %s", key)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("config key not found: %s", key)
		}
	}
	return cur, nil
}

// Set updates a dotted key path from its string representation, re-validates
// the whole config and applies it in place. The value is coerced to the type
// of the existing field.
func (c *Config) Set(key, value string) error {
	var m map[string]any
	data, _ := json.Marshal(c)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	target := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := target[part].(map[string]any)
		if !ok {
			return fmt.Errorf("config key not found: %s", key)
		}
		target = next
	}
	leaf := parts[len(parts)-1]
	old, ok := target[leaf]
	if !ok {
		return fmt.Errorf("config key not found: %s", key)
	}

	switch old.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected bool, got %q", key, value)
		}
		target[leaf] = b
	case float64: // JSON numbers, covers int fields too
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: expected number, got %q", key, value)
		}
		target[leaf] = f
	case string:
		target[leaf] = value
	default:
		return fmt.Errorf("%s: cannot set non-scalar value", key)
	}

	patched, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var next Config
	if err := json.Unmarshal(patched, &next); err != nil {
		return fmt.Errorf("apply %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
