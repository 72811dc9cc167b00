package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"weather-engine/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "engine.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	var version int
	if err := s2.DB().QueryRow(`SELECT MAX(version) FROM schema_versions`).Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
}

func TestSystemStateSeedsAndUpsert(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	mode, err := s.Mode()
	if err != nil {
		t.Fatal(err)
	}
	if mode != "dry-run" {
		t.Errorf("seeded mode = %q, want dry-run", mode)
	}
	if kill, _ := s.KillSwitchActive(); kill {
		t.Error("kill switch seeded active")
	}
	if paused, _ := s.Paused(); paused {
		t.Error("paused seeded true")
	}

	if err := s.SetSystemState("kill_switch", "true"); err != nil {
		t.Fatal(err)
	}
	if kill, _ := s.KillSwitchActive(); !kill {
		t.Error("kill switch not set")
	}
	if err := s.SetSystemState("kill_switch", "false"); err != nil {
		t.Fatal(err)
	}
	if kill, _ := s.KillSwitchActive(); kill {
		t.Error("kill switch upsert did not overwrite")
	}
}

func TestOrderIntentUniqueness(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	intent := types.OrderIntent{
		RunID:          "run-1",
		IdempotencyKey: "abc123",
		MarketID:       "m1",
		Side:           "BUY",
		Price:          0.075,
		SizeUSD:        5,
	}
	if err := s.SaveOrderIntent(intent); err != nil {
		t.Fatal(err)
	}

	exists, err := s.OrderIntentExists("abc123")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("intent not found after save")
	}
	if exists, _ := s.OrderIntentExists("other"); exists {
		t.Error("unknown key reported as existing")
	}

	if err := s.SaveOrderIntent(intent); err == nil {
		t.Error("duplicate idempotency key must violate UNIQUE")
	}
}

func TestLastTradeTimeCountsExecutedOnly(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if ts, err := s.LastTradeTime("m1"); err != nil || ts != nil {
		t.Fatalf("fresh market: got %v, %v", ts, err)
	}

	early := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	late := time.Date(2026, 2, 11, 11, 0, 0, 0, time.UTC)

	save := func(key string, status types.OrderStatus, at time.Time) {
		t.Helper()
		if err := s.SaveOrderIntent(types.OrderIntent{
			RunID: "run-1", IdempotencyKey: key, MarketID: "m1", Side: "BUY", Price: 0.1, SizeUSD: 5,
		}); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveOrderResult(types.OrderResult{
			IdempotencyKey: key, Status: status, ExecutedAt: at,
		}); err != nil {
			t.Fatal(err)
		}
	}

	save("k1", types.StatusDryRun, early)
	save("k2", types.StatusRejected, late)

	ts, err := s.LastTradeTime("m1")
	if err != nil {
		t.Fatal(err)
	}
	if ts == nil || !ts.Equal(early) {
		t.Errorf("last trade = %v, want %v (rejected result must not count)", ts, early)
	}

	save("k3", types.StatusFilled, late)
	ts, _ = s.LastTradeTime("m1")
	if ts == nil || !ts.Equal(late) {
		t.Errorf("last trade = %v, want %v", ts, late)
	}
}

func TestExposureSums(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if total, _ := s.TotalOpenExposure(); total != 0 {
		t.Errorf("fresh exposure = %v, want 0", total)
	}

	open := func(market, city string, size float64) int64 {
		t.Helper()
		id, err := s.OpenPosition(types.Position{
			MarketID: market, CitySlug: city, TargetDate: "2026-02-11",
			BucketLabel: "36-37°F", EntryPrice: 0.075, SizeUSD: size,
		})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}

	id1 := open("m1", "nyc", 5)
	open("m2", "nyc", 3)
	open("m3", "chicago", 4)

	if total, _ := s.TotalOpenExposure(); total != 12 {
		t.Errorf("total exposure = %v, want 12", total)
	}
	if nyc, _ := s.CityOpenExposure("nyc"); nyc != 8 {
		t.Errorf("nyc exposure = %v, want 8", nyc)
	}

	if err := s.ClosePosition(id1, 0.5); err != nil {
		t.Fatal(err)
	}
	if total, _ := s.TotalOpenExposure(); total != 7 {
		t.Errorf("exposure after close = %v, want 7", total)
	}
	if nyc, _ := s.CityOpenExposure("nyc"); nyc != 3 {
		t.Errorf("nyc exposure after close = %v, want 3", nyc)
	}
}

func TestUpdatePositionPrice(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	id, err := s.OpenPosition(types.Position{
		MarketID: "m1", CitySlug: "nyc", TargetDate: "2026-02-11",
		EntryPrice: 0.10, SizeUSD: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpdatePositionPrice(id, 0.55); err != nil {
		t.Fatal(err)
	}

	positions, err := s.OpenPositions()
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 {
		t.Fatalf("open positions = %d, want 1", len(positions))
	}
	p := positions[0]
	if p.CurrentPrice != 0.55 {
		t.Errorf("current price = %v, want 0.55", p.CurrentPrice)
	}
	// 50 shares at +0.45 each.
	if math.Abs(p.UnrealizedPnL-22.5) > 1e-9 {
		t.Errorf("unrealized = %v, want 22.5", p.UnrealizedPnL)
	}
}

func TestDailyPnLRollup(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	const date = "2026-02-11"

	if loss, _ := s.DailyLoss(date); loss != 0 {
		t.Errorf("fresh loss = %v, want 0", loss)
	}

	if err := s.AddRealizedPnL(date, -4); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRealizedPnL(date, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUnrealizedPnL(date, -2); err != nil {
		t.Fatal(err)
	}

	p, err := s.DailyPnL(date)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.RealizedPnL-(-2.5)) > 1e-9 {
		t.Errorf("realized = %v, want -2.5", p.RealizedPnL)
	}
	if math.Abs(p.TotalPnL-(-4.5)) > 1e-9 {
		t.Errorf("total = %v, want -4.5", p.TotalPnL)
	}

	loss, err := s.DailyLoss(date)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(loss-4.5) > 1e-9 {
		t.Errorf("loss = %v, want 4.5", loss)
	}
}

func TestConfigSnapshotDedup(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.SnapshotConfig("hash1", `{"a":1}`); err != nil {
		t.Fatal(err)
	}
	if err := s.SnapshotConfig("hash1", `{"a":1}`); err != nil {
		t.Fatal(err)
	}
	if err := s.SnapshotConfig("hash2", `{"a":2}`); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM config_snapshots`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("snapshots = %d, want 2", n)
	}
}

func TestOperatorCommandAudit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	// pause/resume/kill-switch and config set all land in the same audit log.
	for _, c := range []struct{ command, argument string }{
		{"pause", "true"},
		{"config-set", "risk.max_trades_per_run=2"},
		{"kill-switch on", "true"},
	} {
		if err := s.LogOperatorCommand(c.command, c.argument); err != nil {
			t.Fatal(err)
		}
	}

	cmds, err := s.RecentOperatorCommands(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 3 {
		t.Fatalf("commands = %d, want 3", len(cmds))
	}
	if cmds[0].Command != "kill-switch on" {
		t.Errorf("newest command = %q, want most recent first", cmds[0].Command)
	}
	if cmds[1].Command != "config-set" || cmds[1].Argument != "risk.max_trades_per_run=2" {
		t.Errorf("config change not audited: %+v", cmds[1])
	}
	if cmds[0].IssuedAt == "" {
		t.Error("issued_at must be populated")
	}
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if r, err := s.LatestRun(); err != nil || r != nil {
		t.Fatalf("fresh LatestRun: got %v, %v", r, err)
	}

	started := time.Now()
	if err := s.CreateRun("run-1", "dry-run", started); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteRun("run-1", "completed", types.RunSummary{
		CitiesScanned: 5, EventsFound: 3, BucketsAnalyzed: 21,
		OpportunitiesFound: 2, OrdersAttempted: 2, OrdersSucceeded: 1, OrdersFailed: 1,
		BestEdge: 0.14,
	}); err != nil {
		t.Fatal(err)
	}

	r, err := s.LatestRun()
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || r.RunID != "run-1" || r.Status != "completed" {
		t.Fatalf("latest run = %+v", r)
	}
	if r.EventsFound != 3 || r.OpportunitiesFound != 2 || r.OrdersSucceeded != 1 {
		t.Errorf("metrics not persisted: %+v", r)
	}
}

func TestSaveMarketEventAndEdges(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	event := types.MarketEvent{
		EventID: "55", Slug: "highest-temperature-in-nyc-on-february-11-2026",
		CitySlug: "nyc", TargetDate: "2026-02-11", Title: "Highest temperature in NYC",
		FetchedAt: time.Now(),
		Buckets: []types.BucketMarket{
			{MarketID: "m1", ClobTokenIDYes: "t1", OutcomePriceYes: 0.075,
				AcceptingOrders: true, Liquidity: 100,
				Bucket: types.TemperatureBucket{Type: types.BucketRange, Low: 36, High: 37, Unit: types.UnitFahrenheit}},
		},
	}
	if err := s.SaveMarketEvent("run-1", event, `{"id":"55"}`); err != nil {
		t.Fatal(err)
	}

	var buckets int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM bucket_markets`).Scan(&buckets); err != nil {
		t.Fatal(err)
	}
	if buckets != 1 {
		t.Errorf("bucket rows = %d, want 1", buckets)
	}

	if err := s.SaveEdgeResult(types.EdgeResult{
		RunID: "run-1", EventID: "55", MarketID: "m1", CitySlug: "nyc",
		TargetDate: "2026-02-11", BucketLabel: "36-37°F",
		BucketProbability: 0.262, MarketPriceYes: 0.075, GrossEdge: 0.187,
		FeeEstimate: 0.02, SlippageEstimate: 0.01, NetEdge: 0.157,
		ReasonCode: types.ReasonOpportunity, SigmaUsed: 2.5,
	}); err != nil {
		t.Fatal(err)
	}

	var reason string
	if err := s.DB().QueryRow(`SELECT reason_code FROM edge_results WHERE market_id = 'm1'`).Scan(&reason); err != nil {
		t.Fatal(err)
	}
	if reason != "OPPORTUNITY" {
		t.Errorf("reason_code = %q", reason)
	}
}

func TestSaveRiskChecks(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	checks := []types.RiskCheckResult{
		{Name: "kill_switch", Passed: true, Detail: "ok"},
		{Name: "position_size", Passed: false, BlockReason: types.BlockPositionSize, Detail: "$6.00 > limit $5.00"},
	}
	if err := s.SaveRiskChecks("run-1", "key-1", checks); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM risk_checks WHERE idempotency_key = 'key-1'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("risk check rows = %d, want 2", n)
	}
}
