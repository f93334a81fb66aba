// Package pricing values European options and strategy legs with the
// Black-Scholes model.
package pricing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

const (
	// DaysPerYear converts calendar days to model time.
	DaysPerYear = 365.0
	// MinTimeToExpiry is the floor applied to time to expiry, in years.
	MinTimeToExpiry = 1.0 / DaysPerYear
)

// Result is the theoretical price and Greeks of one unit of an option.
type Result struct {
	Price  float64             `json:"price"`
	Greeks models.OptionGreeks `json:"greeks"`
}

// PriceAndGreeks prices a European option. years is clamped to MinTimeToExpiry.
// Theta is per calendar day; vega and rho are per one percentage point.
func PriceAndGreeks(kind models.OptionKind, spot, strike, years, vol, rate float64) (Result, error) {
	if err := validateInputs(kind, spot, strike, years, vol, rate); err != nil {
		return Result{}, err
	}

	t := math.Max(years, MinTimeToExpiry)
	df := math.Exp(-rate * t)

	var res Result
	if vol == 0 {
		res = discountedIntrinsic(kind, spot, strike*df)
	} else {
		res = blackScholes(kind, spot, strike, t, vol, rate, df)
	}

	if !finite(res.Price) || !finite(res.Greeks.Delta) || !finite(res.Greeks.Gamma) ||
		!finite(res.Greeks.Theta) || !finite(res.Greeks.Vega) || !finite(res.Greeks.Rho) {
		return Result{}, apperrors.NewDomainError("inputs",
			fmt.Sprintf("S=%g K=%g T=%g v=%g r=%g", spot, strike, t, vol, rate), "model produced a non-finite result")
	}
	return res, nil
}

func blackScholes(kind models.OptionKind, spot, strike, t, vol, rate, df float64) Result {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*t) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT

	pdf := distuv.UnitNormal.Prob(d1)
	gamma := pdf / (spot * vol * sqrtT)
	vega := spot * pdf * sqrtT
	decay := -spot * pdf * vol / (2 * sqrtT)

	var price, delta, theta, rho float64
	switch kind {
	case models.OptionKindCall:
		nd2 := distuv.UnitNormal.CDF(d2)
		price = spot*distuv.UnitNormal.CDF(d1) - strike*df*nd2
		delta = distuv.UnitNormal.CDF(d1)
		theta = decay - rate*strike*df*nd2
		rho = strike * t * df * nd2
	case models.OptionKindPut:
		nmd2 := distuv.UnitNormal.CDF(-d2)
		price = strike*df*nmd2 - spot*distuv.UnitNormal.CDF(-d1)
		delta = distuv.UnitNormal.CDF(d1) - 1
		theta = decay + rate*strike*df*nmd2
		rho = -strike * t * df * nmd2
	}

	return Result{
		// Cancellation can leave a deep OTM price a hair below zero.
		Price: math.Max(price, 0),
		Greeks: models.OptionGreeks{
			Delta: delta,
			Gamma: gamma,
			Theta: theta / DaysPerYear,
			Vega:  vega / 100,
			Rho:   rho / 100,
		},
	}
}

// discountedIntrinsic is the zero-volatility limit of the model.
func discountedIntrinsic(kind models.OptionKind, spot, pvStrike float64) Result {
	var res Result
	switch kind {
	case models.OptionKindCall:
		if spot > pvStrike {
			res.Price = spot - pvStrike
			res.Greeks.Delta = 1
		}
	case models.OptionKindPut:
		if pvStrike > spot {
			res.Price = pvStrike - spot
			res.Greeks.Delta = -1
		}
	}
	return res
}

func validateInputs(kind models.OptionKind, spot, strike, years, vol, rate float64) error {
	if !kind.Valid() {
		return apperrors.NewDomainError("kind", kind, "must be CALL or PUT")
	}
	if !finite(spot) || spot <= 0 {
		return apperrors.NewDomainError("spot", spot, "must be positive")
	}
	if !finite(strike) || strike <= 0 {
		return apperrors.NewDomainError("strike", strike, "must be positive")
	}
	if math.IsNaN(years) || math.IsInf(years, 0) {
		return apperrors.NewDomainError("time_to_expiry", years, "must be finite")
	}
	if !finite(vol) || vol < 0 {
		return apperrors.NewDomainError("volatility", vol, "must be non-negative")
	}
	if !finite(rate) || rate < 0 {
		return apperrors.NewDomainError("rate", rate, "must be non-negative")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Implied volatility solver bounds.
const (
	ivMinVol     = 1e-6
	ivMaxVol     = 5.0
	ivTolerance  = 1e-8
	ivIterations = 100
)

// ImpliedVolatility solves for the volatility that reproduces premium.
// Newton-Raphson is tried first; bisection takes over when a step leaves
// the bracket or vega vanishes.
func ImpliedVolatility(kind models.OptionKind, spot, strike, years, rate, premium float64) (float64, error) {
	if err := validateInputs(kind, spot, strike, years, 0, rate); err != nil {
		return 0, err
	}
	t := math.Max(years, MinTimeToExpiry)
	pvStrike := strike * math.Exp(-rate*t)

	lower := discountedIntrinsic(kind, spot, pvStrike).Price
	upper := spot
	if kind == models.OptionKindPut {
		upper = pvStrike
	}
	if !finite(premium) || premium < lower || premium >= upper {
		return 0, apperrors.NewDomainError("premium", premium,
			fmt.Sprintf("outside no-arbitrage bounds [%.4f, %.4f)", lower, upper))
	}

	priceAt := func(v float64) (float64, float64) {
		res, _ := PriceAndGreeks(kind, spot, strike, t, v, rate)
		return res.Price - premium, res.Greeks.Vega * 100
	}

	lo, hi := ivMinVol, ivMaxVol
	if diff, _ := priceAt(hi); diff < 0 {
		return 0, apperrors.Wrapf(apperrors.ErrNoConvergence, "premium %.4f needs volatility above %.0f%%", premium, ivMaxVol*100)
	}

	v := 0.3
	for i := 0; i < ivIterations; i++ {
		diff, vega := priceAt(v)
		if math.Abs(diff) < ivTolerance {
			return v, nil
		}
		if diff > 0 {
			hi = v
		} else {
			lo = v
		}

		next := v - diff/vega
		if vega < 1e-12 || next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		v = next
		if hi-lo < 1e-12 {
			return v, nil
		}
	}
	return 0, apperrors.Wrapf(apperrors.ErrNoConvergence, "implied volatility after %d iterations", ivIterations)
}
