package aggregation

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"delta-spread/internal/payoff"
)

type popInputs struct {
	spot  float64
	sigma float64
	years float64
	rate  float64
}

// probabilityOfProfit integrates a lognormal terminal price distribution over
// the intervals between breakevens where the expiration payoff is positive.
// Without breakevens the payoff has one sign across the domain, so the result
// is 0 or 1 from the payoff at spot. A payoff of exactly zero at spot, as for
// offsetting legs, counts as not profitable and gives 0.
func probabilityOfProfit(ev *payoff.Evaluator, breakevens []float64, in popInputs) float64 {
	profitable := func(p float64) bool { return ev.At(p, true) > 0 }

	if len(breakevens) == 0 {
		if profitable(in.spot) {
			return 1
		}
		return 0
	}

	scale := in.sigma * math.Sqrt(in.years)
	if !(scale > 0) {
		// Degenerate distribution: all mass at the forward price.
		if profitable(in.spot * math.Exp(in.rate*in.years)) {
			return 1
		}
		return 0
	}

	dist := distuv.LogNormal{
		Mu:    math.Log(in.spot) + (in.rate-0.5*in.sigma*in.sigma)*in.years,
		Sigma: scale,
	}
	cdf := func(x float64) float64 {
		switch {
		case x <= 0:
			return 0
		case math.IsInf(x, 1):
			return 1
		}
		return dist.CDF(x)
	}

	edges := make([]float64, 0, len(breakevens)+2)
	edges = append(edges, 0)
	edges = append(edges, breakevens...)
	edges = append(edges, math.Inf(1))

	pop := 0.0
	for i := 0; i+1 < len(edges); i++ {
		lo, hi := edges[i], edges[i+1]
		if profitable(probePoint(lo, hi)) {
			pop += cdf(hi) - cdf(lo)
		}
	}
	return math.Min(math.Max(pop, 0), 1)
}

// probePoint picks a price strictly inside (lo, hi).
func probePoint(lo, hi float64) float64 {
	if math.IsInf(hi, 1) {
		return lo + math.Max(1, lo*0.05)
	}
	return 0.5 * (lo + hi)
}
