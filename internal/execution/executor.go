package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"weather-engine/pkg/types"
)

// execStore is the slice of the persistence layer the executor writes.
type execStore interface {
	KillSwitchActive() (bool, error)
	OrderIntentExists(key string) (bool, error)
	SaveOrderIntent(intent types.OrderIntent) error
	SaveOrderResult(result types.OrderResult) error
}

// Executor runs the order sequence: kill-switch recheck, idempotency check,
// durable intent, adapter dispatch, durable result.
type Executor struct {
	store   execStore
	adapter Adapter
	logger  *slog.Logger
	now     func() time.Time
}

// NewExecutor creates an executor over the given adapter.
func NewExecutor(store execStore, adapter Adapter, logger *slog.Logger) *Executor {
	return &Executor{
		store:   store,
		adapter: adapter,
		logger:  logger.With("component", "execution"),
		now:     time.Now,
	}
}

// Execute dispatches one intent. The kill switch is rechecked here because
// the operator may have flipped it between the risk gate and this point; a
// kill rejection writes neither an intent nor a result row. Duplicate keys
// return DUPLICATE without touching the adapter.
func (e *Executor) Execute(ctx context.Context, intent types.OrderIntent) (types.OrderResult, error) {
	killActive, err := e.store.KillSwitchActive()
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("kill switch recheck: %w", err)
	}
	if killActive {
		e.logger.Warn("order rejected by kill switch", "market", intent.MarketID)
		return types.OrderResult{
			IdempotencyKey: intent.IdempotencyKey,
			Status:         types.StatusRejected,
			ErrorMessage:   "Kill switch active at executor level",
			ExecutedAt:     e.now().UTC(),
		}, nil
	}

	exists, err := e.store.OrderIntentExists(intent.IdempotencyKey)
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("idempotency check: %w", err)
	}
	if exists {
		e.logger.Info("duplicate order skipped",
			"market", intent.MarketID, "key", intent.IdempotencyKey)
		return types.OrderResult{
			IdempotencyKey: intent.IdempotencyKey,
			Status:         types.StatusDuplicate,
			ErrorMessage:   "Duplicate idempotency key",
			ExecutedAt:     e.now().UTC(),
		}, nil
	}

	if err := e.store.SaveOrderIntent(intent); err != nil {
		return types.OrderResult{}, fmt.Errorf("persist intent: %w", err)
	}

	result, err := e.dispatch(ctx, intent)
	if err != nil {
		result = types.OrderResult{
			IdempotencyKey: intent.IdempotencyKey,
			Status:         types.StatusFailed,
			ErrorMessage:   err.Error(),
			ExecutedAt:     e.now().UTC(),
		}
	}

	if err := e.store.SaveOrderResult(result); err != nil {
		return types.OrderResult{}, fmt.Errorf("persist result: %w", err)
	}
	return result, nil
}

// dispatch calls the adapter, converting a panic into an error. The intent is
// already durable at this point; whatever the adapter does, a result row must
// follow it.
func (e *Executor) dispatch(ctx context.Context, intent types.OrderIntent) (result types.OrderResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("adapter panicked",
				"adapter", e.adapter.Name(), "market", intent.MarketID, "panic", r)
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return e.adapter.Execute(ctx, intent)
}
