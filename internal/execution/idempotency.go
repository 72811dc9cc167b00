// Package execution turns approved signals into orders: a durable intent row,
// an adapter dispatch (dry-run or live), and a persisted result. The
// idempotency key makes retries and crash-replays safe.
package execution

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// Key derives the idempotency key for one order: run, market, side and price
// rounded to four decimals. Two candidates differing only in float noise below
// the fourth decimal collapse to the same key.
func Key(runID, marketID, side string, price float64) string {
	fixed := decimal.NewFromFloat(price).StringFixed(4)
	payload := strings.Join([]string{runID, marketID, side, fixed}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}
