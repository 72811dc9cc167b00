// Package types defines the domain types shared across the weather trading
// engine: bucket markets and their parsed temperature buckets, NOAA forecast
// points, edge/signal results, risk verdicts, order intents/results, positions,
// and per-run summaries.
package types

import (
	"fmt"
	"time"
)

// BucketType classifies how a temperature bucket market resolves.
type BucketType string

const (
	BucketOrHigher BucketType = "or_higher" // resolves YES when T >= Low
	BucketOrBelow  BucketType = "or_below"  // resolves YES when T <= Low
	BucketRange    BucketType = "range"     // resolves YES when Low <= T <= High
	BucketExact    BucketType = "exact"     // resolves YES when T == Low
)

// TemperatureUnit is the unit encoded in the market slug suffix.
type TemperatureUnit string

const (
	UnitFahrenheit TemperatureUnit = "F"
	UnitCelsius    TemperatureUnit = "C"
)

// TemperatureBucket is a parsed bucket definition. For or_higher, or_below and
// exact buckets Low == High and holds the threshold.
type TemperatureBucket struct {
	Type BucketType
	Low  int
	High int
	Unit TemperatureUnit
}

// Label renders a human-readable bucket label, e.g. "42-43°F" or "≥44°F".
func (b TemperatureBucket) Label() string {
	switch b.Type {
	case BucketRange:
		return fmt.Sprintf("%d-%d°%s", b.Low, b.High, b.Unit)
	case BucketOrHigher:
		return fmt.Sprintf("≥%d°%s", b.Low, b.Unit)
	case BucketOrBelow:
		return fmt.Sprintf("≤%d°%s", b.Low, b.Unit)
	default:
		return fmt.Sprintf("%d°%s", b.Low, b.Unit)
	}
}

// BucketMarket is one tradeable temperature bucket within a daily-high event.
// Fields mirror the Gamma API market object.
type BucketMarket struct {
	MarketID           string
	ConditionID        string
	ClobTokenIDYes     string
	ClobTokenIDNo      string
	OutcomePriceYes    float64
	BestBid            float64
	BestAsk            float64
	LastTradePrice     float64
	Liquidity          float64
	Volume24hr         float64
	MakerBaseFee       float64
	TakerBaseFee       float64
	OrderMinSize       float64
	AcceptingOrders    bool
	EndDate            string
	GroupItemTitle     string
	GroupItemThreshold string
	Bucket             TemperatureBucket
}

// UnparsedMarket records a market whose bucket suffix could not be parsed.
// These are excluded from trading but still reported downstream.
type UnparsedMarket struct {
	MarketID        string
	Slug            string
	GroupItemTitle  string
	OutcomePriceYes float64
}

// MarketEvent is one city/date daily-high event with all of its buckets.
type MarketEvent struct {
	EventID    string
	Slug       string
	CitySlug   string
	TargetDate string // YYYY-MM-DD
	Title      string
	Buckets    []BucketMarket
	Unparsed   []UnparsedMarket
	FetchedAt  time.Time
}

// ForecastPeriod is a single period from the NOAA gridpoint forecast.
type ForecastPeriod struct {
	Name            string `json:"name"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	Temperature     int    `json:"temperature"`
	TemperatureUnit string `json:"temperatureUnit"`
	IsDaytime       bool   `json:"isDaytime"`
	ShortForecast   string `json:"shortForecast"`
}

// ForecastPoint is the extracted daytime high for one city and target date.
type ForecastPoint struct {
	CitySlug          string
	TargetDate        string // YYYY-MM-DD
	HighTempF         int
	SourceGeneratedAt string
	FetchedAt         time.Time
	Periods           []ForecastPeriod
}

// ReasonCode explains why a bucket was or was not promoted to a signal.
type ReasonCode string

const (
	ReasonOpportunity        ReasonCode = "OPPORTUNITY"
	ReasonEdgeBelowThreshold ReasonCode = "EDGE_BELOW_THRESHOLD"
	ReasonPriceAboveMaxEntry ReasonCode = "PRICE_ABOVE_MAX_ENTRY"
	ReasonNotAcceptingOrders ReasonCode = "NOT_ACCEPTING_ORDERS"
	ReasonZeroLiquidity      ReasonCode = "ZERO_LIQUIDITY"
	ReasonNoForecast         ReasonCode = "NO_FORECAST_AVAILABLE"
	ReasonStaleForecastData  ReasonCode = "STALE_FORECAST_DATA"
	ReasonStaleMarketData    ReasonCode = "STALE_MARKET_DATA"
	ReasonBucketParseError   ReasonCode = "BUCKET_PARSE_ERROR"
	ReasonNegativeEdge       ReasonCode = "NEGATIVE_EDGE"
)

// EdgeResult is the audited outcome of the edge computation for one bucket.
type EdgeResult struct {
	RunID             string
	EventID           string
	MarketID          string
	CitySlug          string
	TargetDate        string
	BucketLabel       string
	BucketProbability float64
	MarketPriceYes    float64
	GrossEdge         float64
	FeeEstimate       float64
	SlippageEstimate  float64
	NetEdge           float64
	ReasonCode        ReasonCode
	SigmaUsed         float64
}

// Signal is an OPPORTUNITY edge result promoted to an executable entry
// candidate. BestBid/BestAsk and EndDate are carried from the source market so
// the risk gate can evaluate real top-of-book spread and time to resolution.
type Signal struct {
	Edge            EdgeResult
	MarketID        string
	ClobTokenIDYes  string
	BestBid         float64
	BestAsk         float64
	EndDate         string
	ProposedSizeUSD float64
}

// BlockReason identifies which risk check blocked a candidate.
type BlockReason string

const (
	BlockKillSwitch       BlockReason = "KILL_SWITCH"
	BlockPaused           BlockReason = "PAUSED"
	BlockPositionSize     BlockReason = "POSITION_SIZE"
	BlockTradesPerRun     BlockReason = "TRADES_PER_RUN"
	BlockTotalExposure    BlockReason = "TOTAL_EXPOSURE"
	BlockPerCityExposure  BlockReason = "PER_CITY_EXPOSURE"
	BlockDailyLoss        BlockReason = "DAILY_LOSS"
	BlockCooldown         BlockReason = "COOLDOWN"
	BlockTimeToResolution BlockReason = "TIME_TO_RESOLUTION"
	BlockSlippage         BlockReason = "SLIPPAGE"
)

// RiskCheckResult is the outcome of a single risk check. BlockReason is empty
// when the check passed.
type RiskCheckResult struct {
	Name        string
	Passed      bool
	BlockReason BlockReason
	Detail      string
}

// RiskVerdict is the combined outcome of the full check sequence.
type RiskVerdict struct {
	Approved bool
	Checks   []RiskCheckResult
}

// BlockReasons returns the reasons of all failed checks, in check order.
func (v RiskVerdict) BlockReasons() []BlockReason {
	var reasons []BlockReason
	for _, c := range v.Checks {
		if c.BlockReason != "" {
			reasons = append(reasons, c.BlockReason)
		}
	}
	return reasons
}

// OrderStatus is the lifecycle state of an order result.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusDryRun    OrderStatus = "DRY_RUN"
	StatusSubmitted OrderStatus = "SUBMITTED"
	StatusFilled    OrderStatus = "FILLED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusFailed    OrderStatus = "FAILED"
	StatusDuplicate OrderStatus = "DUPLICATE"
)

// Succeeded reports whether a status counts as an executed trade.
func (s OrderStatus) Succeeded() bool {
	return s == StatusDryRun || s == StatusFilled
}

// OrderIntent is a durable record of what the engine is about to do, written
// before any adapter call. Shares is set on SELL intents only.
type OrderIntent struct {
	RunID          string
	IdempotencyKey string
	MarketID       string
	ClobTokenID    string
	Side           string // "BUY" or "SELL"
	Price          float64
	SizeUSD        float64
	Shares         float64
	CitySlug       string
	TargetDate     string
	BucketLabel    string
	NetEdge        float64
}

// OrderResult records the outcome of dispatching an intent. FillPrice and
// FillSize are nil for non-fill outcomes.
type OrderResult struct {
	IdempotencyKey string
	Status         OrderStatus
	FillPrice      *float64
	FillSize       *float64
	ErrorMessage   string
	ExecutedAt     time.Time
}

// Position is an open or closed holding in one bucket market.
type Position struct {
	ID            int64
	MarketID      string
	CitySlug      string
	TargetDate    string
	BucketLabel   string
	EntryPrice    float64
	CurrentPrice  float64
	SizeUSD       float64
	UnrealizedPnL float64
	Status        string // "open" or "closed"
	OpenedAt      string
	ClosedAt      string
}

// DailyPnL is the per-UTC-date profit and loss rollup.
type DailyPnL struct {
	Date          string
	RealizedPnL   float64
	UnrealizedPnL float64
	TotalPnL      float64
}

// RunSummary aggregates everything that happened in one scan cycle.
type RunSummary struct {
	RunID             string
	Mode              string
	CitiesScanned     int
	EventsFound       int
	BucketsAnalyzed   int
	OpportunitiesFound int
	BlockedCount      int
	BlockReasons      map[string]int
	OrdersAttempted   int
	OrdersSucceeded   int
	OrdersFailed      int
	BestEdge          float64
	BestEdgeLabel     string
	TotalExposureUSD  float64
	DailyPnLUSD       float64
	DurationSeconds   float64
	Errors            []string
}

// Float64 returns a pointer to v. Used for nullable fill fields.
func Float64(v float64) *float64 { return &v }
