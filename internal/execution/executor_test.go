package execution

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"weather-engine/pkg/types"
)

type fakeExecStore struct {
	killActive   bool
	existingKeys map[string]bool
	intents      []types.OrderIntent
	results      []types.OrderResult
}

func (f *fakeExecStore) KillSwitchActive() (bool, error) { return f.killActive, nil }
func (f *fakeExecStore) OrderIntentExists(key string) (bool, error) {
	return f.existingKeys[key], nil
}
func (f *fakeExecStore) SaveOrderIntent(i types.OrderIntent) error {
	f.intents = append(f.intents, i)
	return nil
}
func (f *fakeExecStore) SaveOrderResult(r types.OrderResult) error {
	f.results = append(f.results, r)
	return nil
}

type failingAdapter struct{}

func (failingAdapter) Name() string { return "failing" }
func (failingAdapter) Execute(context.Context, types.OrderIntent) (types.OrderResult, error) {
	return types.OrderResult{}, errors.New("connection reset")
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIntent() types.OrderIntent {
	return types.OrderIntent{
		RunID:          "run-1",
		IdempotencyKey: Key("run-1", "m1", "BUY", 0.075),
		MarketID:       "m1",
		Side:           "BUY",
		Price:          0.075,
		SizeUSD:        5,
	}
}

func TestKeyDeterministicAnd32Hex(t *testing.T) {
	t.Parallel()

	k1 := Key("run-1", "m1", "BUY", 0.075)
	k2 := Key("run-1", "m1", "BUY", 0.075)
	if k1 != k2 {
		t.Errorf("key not deterministic: %s vs %s", k1, k2)
	}
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(k1) {
		t.Errorf("key = %q, want 32 lowercase hex chars", k1)
	}

	// Price rounds to four decimals before hashing.
	if Key("run-1", "m1", "BUY", 0.07500004) != k1 {
		t.Error("sub-4dp price noise must not change the key")
	}
	if Key("run-1", "m1", "BUY", 0.0751) == k1 {
		t.Error("distinct 4dp prices must differ")
	}
	if Key("run-2", "m1", "BUY", 0.075) == k1 {
		t.Error("distinct runs must differ")
	}
	if Key("run-1", "m1", "SELL", 0.075) == k1 {
		t.Error("distinct sides must differ")
	}
}

func TestExecuteDryRunHappyPath(t *testing.T) {
	t.Parallel()

	fs := &fakeExecStore{existingKeys: map[string]bool{}}
	ex := NewExecutor(fs, NewDryRunAdapter(discard()), discard())

	result, err := ex.Execute(context.Background(), testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusDryRun {
		t.Fatalf("status = %s, want DRY_RUN", result.Status)
	}
	if result.FillPrice == nil || *result.FillPrice != 0.075 {
		t.Errorf("fill price = %v, want 0.075", result.FillPrice)
	}
	// A $5 buy at 0.075 fills for the intent's $5, not a share count.
	if result.FillSize == nil || *result.FillSize != 5.0 {
		t.Errorf("fill size = %v, want intent size 5.0", result.FillSize)
	}
	if len(fs.intents) != 1 || len(fs.results) != 1 {
		t.Errorf("persisted %d intents, %d results; want 1 and 1", len(fs.intents), len(fs.results))
	}
	if !result.Status.Succeeded() {
		t.Error("DRY_RUN must count as executed")
	}
}

func TestExecuteKillSwitchRejectsWithoutPersisting(t *testing.T) {
	t.Parallel()

	fs := &fakeExecStore{killActive: true, existingKeys: map[string]bool{}}
	ex := NewExecutor(fs, NewDryRunAdapter(discard()), discard())

	result, err := ex.Execute(context.Background(), testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", result.Status)
	}
	if result.ErrorMessage != "Kill switch active at executor level" {
		t.Errorf("message = %q", result.ErrorMessage)
	}
	if len(fs.intents) != 0 || len(fs.results) != 0 {
		t.Error("kill rejection must write neither intent nor result")
	}
}

func TestExecuteDuplicateKeySkipsAdapter(t *testing.T) {
	t.Parallel()

	intent := testIntent()
	fs := &fakeExecStore{existingKeys: map[string]bool{intent.IdempotencyKey: true}}
	ex := NewExecutor(fs, NewDryRunAdapter(discard()), discard())

	result, err := ex.Execute(context.Background(), intent)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusDuplicate {
		t.Fatalf("status = %s, want DUPLICATE", result.Status)
	}
	if result.ErrorMessage != "Duplicate idempotency key" {
		t.Errorf("message = %q", result.ErrorMessage)
	}
	if len(fs.intents) != 0 || len(fs.results) != 0 {
		t.Error("duplicate must not persist anything new")
	}
}

func TestExecuteAdapterErrorRecordsFailed(t *testing.T) {
	t.Parallel()

	fs := &fakeExecStore{existingKeys: map[string]bool{}}
	ex := NewExecutor(fs, failingAdapter{}, discard())

	result, err := ex.Execute(context.Background(), testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusFailed {
		t.Fatalf("status = %s, want FAILED", result.Status)
	}
	if result.ErrorMessage != "connection reset" {
		t.Errorf("message = %q", result.ErrorMessage)
	}
	// The intent was written before dispatch; the failure is recorded too.
	if len(fs.intents) != 1 || len(fs.results) != 1 {
		t.Errorf("persisted %d intents, %d results; want 1 and 1", len(fs.intents), len(fs.results))
	}
}

// panickingAdapter dereferences a missing response field, the way a live
// adapter would on a malformed brokerage payload.
type panickingAdapter struct{}

func (panickingAdapter) Name() string { return "panicking" }
func (panickingAdapter) Execute(context.Context, types.OrderIntent) (types.OrderResult, error) {
	var resp tradeResponse
	return types.OrderResult{FillSize: types.Float64(*resp.FillSize)}, nil
}

func TestExecuteAdapterPanicRecordsFailed(t *testing.T) {
	t.Parallel()

	fs := &fakeExecStore{existingKeys: map[string]bool{}}
	ex := NewExecutor(fs, panickingAdapter{}, discard())

	result, err := ex.Execute(context.Background(), testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusFailed {
		t.Fatalf("status = %s, want FAILED", result.Status)
	}
	if result.ErrorMessage == "" {
		t.Error("panic must surface as an error message")
	}
	// The intent must not be orphaned: its failure row is written too.
	if len(fs.intents) != 1 || len(fs.results) != 1 {
		t.Errorf("persisted %d intents, %d results; want 1 and 1", len(fs.intents), len(fs.results))
	}
}

func TestDryRunSellUsesIntentShares(t *testing.T) {
	t.Parallel()

	adapter := NewDryRunAdapter(discard())
	intent := testIntent()
	intent.Side = "SELL"
	intent.Shares = 66.67

	result, err := adapter.Execute(context.Background(), intent)
	if err != nil {
		t.Fatal(err)
	}
	if result.FillSize == nil || *result.FillSize != 66.67 {
		t.Errorf("sell fill size = %v, want intent shares", result.FillSize)
	}
}
