package signal

import "weather-engine/pkg/types"

// edgeInput carries everything needed to price one bucket.
type edgeInput struct {
	runID       string
	eventID     string
	marketID    string
	citySlug    string
	targetDate  string
	bucketLabel string

	probability     float64
	priceYes        float64
	fee             float64
	slip            float64
	sigma           float64
	minEdge         float64
	maxEntryPrice   float64
	acceptingOrders bool
	liquidity       float64
}

// computeEdge derives gross/net edge and the reason code for one bucket.
// Checks run in a fixed order; the first disqualifier wins. Equality with the
// threshold counts as tradeable.
func computeEdge(in edgeInput) types.EdgeResult {
	gross := in.probability - in.priceYes
	net := gross - in.fee - in.slip

	var reason types.ReasonCode
	switch {
	case !in.acceptingOrders:
		reason = types.ReasonNotAcceptingOrders
	case in.liquidity <= 0:
		reason = types.ReasonZeroLiquidity
	case in.priceYes > in.maxEntryPrice:
		reason = types.ReasonPriceAboveMaxEntry
	case net < 0:
		reason = types.ReasonNegativeEdge
	case net < in.minEdge:
		reason = types.ReasonEdgeBelowThreshold
	default:
		reason = types.ReasonOpportunity
	}

	return types.EdgeResult{
		RunID:             in.runID,
		EventID:           in.eventID,
		MarketID:          in.marketID,
		CitySlug:          in.citySlug,
		TargetDate:        in.targetDate,
		BucketLabel:       in.bucketLabel,
		BucketProbability: in.probability,
		MarketPriceYes:    in.priceYes,
		GrossEdge:         gross,
		FeeEstimate:       in.fee,
		SlippageEstimate:  in.slip,
		NetEdge:           net,
		ReasonCode:        reason,
		SigmaUsed:         in.sigma,
	}
}
