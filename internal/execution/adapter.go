package execution

import (
	"context"

	"weather-engine/pkg/types"
)

// Adapter places one order and reports the outcome. Implementations return an
// error only for transport-level failures; venue rejections come back as a
// REJECTED result with a nil error.
type Adapter interface {
	Name() string
	Execute(ctx context.Context, intent types.OrderIntent) (types.OrderResult, error)
}
