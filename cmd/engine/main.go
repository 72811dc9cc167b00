// Weather Engine — an autonomous trading engine for Polymarket daily-high
// temperature markets.
//
// Architecture:
//
//	main.go              — CLI: run, daemon, status, pause/resume, kill-switch, config
//	pipeline/scan.go     — one scan cycle: discover → forecast → price → gate → execute
//	pipeline/exit.go     — sells positions whose price ran past the exit threshold
//	market/scanner.go    — probes Gamma API event slugs per city and date
//	forecast/fetcher.go  — NOAA gridpoint forecasts with per-cycle caching
//	signal/generator.go  — Normal-CDF bucket probabilities and net edge per market
//	risk/engine.go       — ten-check gate; every check persisted per candidate
//	execution/executor.go— idempotent order flow over dry-run or Simmer adapters
//	daemon/daemon.go     — interval loop with PID/state files and failure backoff
//	store/               — SQLite audit trail: every event, forecast, edge, check,
//	                       intent, result, position and PnL rollup
//
// How it makes money:
//
//	NOAA forecasts move faster than Polymarket temperature bucket prices. The
//	engine converts a forecast high into per-bucket probabilities, buys YES in
//	buckets priced well below that probability, and exits once the market
//	catches up or the bucket resolves.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"weather-engine/internal/config"
	"weather-engine/internal/daemon"
	"weather-engine/internal/execution"
	"weather-engine/internal/forecast"
	"weather-engine/internal/market"
	"weather-engine/internal/pipeline"
	"weather-engine/internal/store"
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("WEATHER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	logger := buildLogger(cfg)

	var code int
	switch os.Args[1] {
	case "run", "scan":
		code = cmdRun(cfg, logger, os.Args[2:])
	case "daemon":
		code = cmdDaemon(cfg, logger, os.Args[2:])
	case "status":
		code = cmdStatus(cfg)
	case "pause":
		code = cmdSetState(cfg, logger, "pause", "paused", "true")
	case "resume":
		code = cmdSetState(cfg, logger, "resume", "paused", "false")
	case "kill-switch":
		code = cmdKillSwitch(cfg, logger, os.Args[2:])
	case "config":
		code = cmdConfig(cfg, logger, cfgPath, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: engine <command> [flags]

commands:
  run [--live]                 run one scan cycle
  daemon [--interval <sec>] [--live] [--stop] [--status]
  status                       show engine and daemon state
  pause | resume               pause or resume scanning
  kill-switch on|off           halt or re-enable all trading
  config show                  print the active configuration
  config set <key> <value>     update one config value
`)
}

// loadConfig falls back to built-in defaults when no config file exists yet.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildAdapter picks dry-run or live execution. Live mode requires
// SIMMER_API_KEY.
func buildAdapter(cfg *config.Config, logger *slog.Logger) (execution.Adapter, error) {
	if !cfg.IsLive() || cfg.Execution.Adapter != config.AdapterSimmer {
		return execution.NewDryRunAdapter(logger), nil
	}
	apiKey := os.Getenv("SIMMER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("live mode requires SIMMER_API_KEY")
	}
	client := execution.NewSimmerClient("", apiKey, logger)
	return execution.NewLiveAdapter(client, cfg.Execution.Venue, logger), nil
}

// buildPipeline wires one scan pipeline over shared clients and the store.
func buildPipeline(cfg *config.Config, st *store.Store, logger *slog.Logger) (*pipeline.Scan, error) {
	adapter, err := buildAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}

	gamma := market.NewGammaClient("", logger)
	scanner := market.NewScanner(cfg, gamma, logger)
	noaa := forecast.NewNoaaClient("", logger)
	fetcher := forecast.NewFetcher(noaa, logger)
	exit := pipeline.NewExit(cfg, st, gamma, adapter, logger)

	return pipeline.NewScan(cfg, st, scanner, fetcher, adapter, exit, logger), nil
}

func cmdRun(cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	live := fs.Bool("live", false, "override execution mode to live")
	fs.Parse(args)

	if *live {
		cfg.Execution.Mode = config.ModeLive
		cfg.Execution.Adapter = config.AdapterSimmer
	}
	if cfg.IsLive() {
		logger.Warn("LIVE MODE — real orders will be placed", "venue", cfg.Execution.Venue)
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Error("open store failed", "error", err)
		return 1
	}
	defer st.Close()

	scan, err := buildPipeline(cfg, st, logger)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := scan.Run(ctx)
	fmt.Print(pipeline.FormatText(summary))
	if err != nil || len(summary.Errors) > 0 {
		return 1
	}
	return 0
}

func cmdDaemon(cfg *config.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	intervalSec := fs.Int("interval", int(daemon.DefaultInterval.Seconds()), "seconds between scans")
	live := fs.Bool("live", false, "override execution mode to live")
	stopFlag := fs.Bool("stop", false, "stop the running daemon")
	statusFlag := fs.Bool("status", false, "show daemon status")
	fs.Parse(args)

	if *stopFlag {
		stopped, err := daemon.Stop(cfg.Store.DataDir)
		if err != nil {
			logger.Error("stop failed", "error", err)
			return 1
		}
		if !stopped {
			fmt.Println("No daemon running.")
			return 0
		}
		fmt.Println("Daemon stopped.")
		return 0
	}
	if *statusFlag {
		return printDaemonStatus(cfg)
	}

	if *live {
		cfg.Execution.Mode = config.ModeLive
		cfg.Execution.Adapter = config.AdapterSimmer
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Error("open store failed", "error", err)
		return 1
	}
	defer st.Close()

	scan, err := buildPipeline(cfg, st, logger)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		return 1
	}

	cycle := func(ctx context.Context, cycleLogger *slog.Logger) error {
		summary, err := scan.Run(ctx)
		cycleLogger.Info("cycle summary", "summary", pipeline.FormatChat(summary))
		if err != nil {
			return err
		}
		if len(summary.Errors) > 0 {
			return fmt.Errorf("%d errors during scan", len(summary.Errors))
		}
		return nil
	}

	d := daemon.New(cfg.Store.DataDir, cfg.Store.LogDir,
		time.Duration(*intervalSec)*time.Second, cfg.Execution.Mode, cycle, logger)
	if err := d.Run(context.Background()); err != nil {
		logger.Error("daemon failed", "error", err)
		return 1
	}
	return 0
}

func printDaemonStatus(cfg *config.Config) int {
	status, err := daemon.GetStatus(cfg.Store.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon status: %v\n", err)
		return 1
	}
	if !status.Running {
		fmt.Println("Daemon: not running")
		return 0
	}
	s := status.State
	fmt.Printf("Daemon: running (pid %d)\n", s.PID)
	fmt.Printf("  Mode:       %s\n", s.Mode)
	fmt.Printf("  Interval:   %ds\n", s.IntervalSeconds)
	fmt.Printf("  Started:    %s\n", s.StartedAt)
	fmt.Printf("  Scans:      %d (%d ok, %d failed)\n", s.TotalScans, s.TotalSuccesses, s.TotalFailures)
	if s.ConsecutiveFailures > 0 {
		fmt.Printf("  Consecutive failures: %d\n", s.ConsecutiveFailures)
	}
	fmt.Printf("  Last update: %s\n", s.LastUpdate)
	return 0
}

func cmdStatus(cfg *config.Config) int {
	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer st.Close()

	mode, _ := st.Mode()
	paused, _ := st.Paused()
	kill, _ := st.KillSwitchActive()
	fmt.Printf("Mode: %s | Paused: %v | Kill switch: %v\n", mode, paused, kill)

	if run, err := st.LatestRun(); err == nil && run != nil {
		fmt.Printf("Last run: %s (%s, %s)\n", run.RunID, run.Status, run.StartedAt)
		fmt.Printf("  Events: %d | Opportunities: %d | Orders succeeded: %d\n",
			run.EventsFound, run.OpportunitiesFound, run.OrdersSucceeded)
	} else {
		fmt.Println("Last run: none")
	}

	positions, err := st.OpenPositions()
	if err == nil {
		total := 0.0
		for _, p := range positions {
			total += p.SizeUSD
		}
		fmt.Printf("Open positions: %d ($%.2f)\n", len(positions), total)
		for _, p := range positions {
			fmt.Printf("  %s %s %s: $%.2f @ %.3f (now %.3f, PnL %+.2f)\n",
				p.CitySlug, p.TargetDate, p.BucketLabel,
				p.SizeUSD, p.EntryPrice, p.CurrentPrice, p.UnrealizedPnL)
		}
	}

	date := time.Now().UTC().Format("2006-01-02")
	if pnl, err := st.DailyPnL(date); err == nil {
		fmt.Printf("Daily PnL (%s): $%.2f realized, $%.2f unrealized\n",
			date, pnl.RealizedPnL, pnl.UnrealizedPnL)
	}

	printDaemonStatus(cfg)
	return 0
}

// cmdSetState flips one system_state key and audit-logs the operator command.
func cmdSetState(cfg *config.Config, logger *slog.Logger, command, key, value string) int {
	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Error("open store failed", "error", err)
		return 1
	}
	defer st.Close()

	if err := st.SetSystemState(key, value); err != nil {
		logger.Error("state update failed", "key", key, "error", err)
		return 1
	}
	if err := st.LogOperatorCommand(command, value); err != nil {
		logger.Warn("operator audit log failed", "error", err)
	}
	fmt.Printf("%s: %s = %s\n", command, key, value)
	return 0
}

func cmdKillSwitch(cfg *config.Config, logger *slog.Logger, args []string) int {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(os.Stderr, "usage: engine kill-switch on|off")
		return 2
	}
	value := "false"
	if args[0] == "on" {
		value = "true"
	}
	return cmdSetState(cfg, logger, "kill-switch "+args[0], "kill_switch", value)
}

func cmdConfig(cfg *config.Config, logger *slog.Logger, cfgPath string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: engine config show | config set <key> <value>")
		return 2
	}
	switch args[0] {
	case "show":
		fmt.Println(cfg.JSON())
		return 0
	case "set":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: engine config set <key> <value>")
			return 2
		}
		key, value := args[1], args[2]
		if err := cfg.Set(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "config set: %v\n", err)
			return 1
		}
		if err := cfg.WriteYAML(cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "config set: %v\n", err)
			return 1
		}
		// Config changes join pause/resume/kill-switch in the operator audit log.
		if st, err := store.Open(cfg.Store.DBPath); err == nil {
			if err := st.LogOperatorCommand("config-set", key+"="+value); err != nil {
				logger.Warn("operator audit log failed", "error", err)
			}
			st.Close()
		} else {
			logger.Warn("operator audit log unavailable", "error", err)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown config command: %s\n", args[0])
		return 2
	}
}
