package aggregation

import (
	"math"

	"delta-spread/internal/models"
)

// NakedShortMarginRate is the fraction of short notional held when the
// strategy's loss is unbounded.
const NakedShortMarginRate = 0.20

// EstimateMargin is a rough capital requirement. Strategies with a bounded
// max loss reserve that loss (nothing when every outcome profits); otherwise a flat share of the short legs'
// strike notional is reserved. It is not a broker margin model.
func EstimateMargin(s models.Strategy, metrics models.StrategyMetrics) float64 {
	if !metrics.MaxLoss.Unbounded {
		return math.Max(-metrics.MaxLoss.Value, 0)
	}
	notional := 0.0
	for _, leg := range s.Legs {
		if leg.Side == models.OrderSideSell {
			notional += leg.Contract.Strike * float64(leg.Quantity) * float64(s.Underlier.Multiplier)
		}
	}
	return NakedShortMarginRate * notional
}
