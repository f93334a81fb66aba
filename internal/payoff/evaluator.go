// Package payoff evaluates strategy profit and loss across underlying prices
// and locates breakevens.
package payoff

import (
	"fmt"
	"math"
	"time"

	"delta-spread/internal/models"
	"delta-spread/internal/pricing"
)

// Evaluator computes the P&L of a fixed strategy under a fixed market state.
// Premiums and volatilities are resolved once in NewEvaluator; At is then a
// pure function of price and time slice. Safe for concurrent use.
type Evaluator struct {
	strategy models.Strategy
	market   models.MarketState
	priced   []models.PricedLeg
	premiums []float64
	scales   []float64
	expiry   time.Time
}

// NewEvaluator validates the strategy and fixes each leg's premium: the entry
// price when present, otherwise the theoretical price at the valuation date
// and the underlier spot.
func NewEvaluator(s models.Strategy, market models.MarketState) (*Evaluator, error) {
	priced, err := pricing.PriceStrategy(s, market)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		strategy: s.Clone(),
		market:   market,
		priced:   priced,
		premiums: make([]float64, len(s.Legs)),
		scales:   make([]float64, len(s.Legs)),
		expiry:   s.NearestExpiry(),
	}
	for i, leg := range s.Legs {
		e.premiums[i] = priced[i].UnitPrice
		if leg.EntryPrice != nil {
			e.premiums[i] = *leg.EntryPrice
		}
		e.scales[i] = leg.Side.Sign() * float64(leg.Quantity) * float64(s.Underlier.Multiplier)
	}
	return e, nil
}

// PayoffAt is a one-shot helper around NewEvaluator and At.
func PayoffAt(s models.Strategy, price float64, market models.MarketState, atExpiration bool) (float64, error) {
	e, err := NewEvaluator(s, market)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(price) || price < 0 {
		return 0, fmt.Errorf("underlying price %v: must be non-negative", price)
	}
	return e.At(price, atExpiration), nil
}

// At returns the total strategy P&L at the given underlying price.
//
// At expiration the legs expiring on the nearest expiry pay their intrinsic
// value; legs expiring later keep their time value for the remaining period.
// Before expiration every leg is valued by the model from the valuation date.
func (e *Evaluator) At(price float64, atExpiration bool) float64 {
	total := 0.0
	for i := range e.strategy.Legs {
		total += e.legAt(i, price, atExpiration)
	}
	return total
}

// LegAt returns the P&L contribution of leg i at the given price.
func (e *Evaluator) LegAt(i int, price float64, atExpiration bool) float64 {
	return e.legAt(i, price, atExpiration)
}

func (e *Evaluator) legAt(i int, price float64, atExpiration bool) float64 {
	return e.scales[i] * (e.unitValue(i, price, atExpiration) - e.premiums[i])
}

func (e *Evaluator) unitValue(i int, price float64, atExpiration bool) float64 {
	leg := e.strategy.Legs[i]
	from := e.market.ValuationDate
	if atExpiration {
		from = e.expiry
	}
	years := pricing.YearsBetween(from, leg.Contract.Expiry)
	if atExpiration && years <= 0 {
		return leg.Contract.Intrinsic(price)
	}
	return modelValue(leg.Contract, price, years, e.priced[i].Volatility, e.market.RiskFreeRate)
}

// modelValue prices a contract, taking the limit at a zero underlying price
// where the model itself is undefined.
func modelValue(c models.OptionContract, price, years, vol, rate float64) float64 {
	if price <= 0 {
		if c.Kind == models.OptionKindPut {
			return c.Strike * math.Exp(-rate*math.Max(years, pricing.MinTimeToExpiry))
		}
		return 0
	}
	res, err := pricing.PriceAndGreeks(c.Kind, price, c.Strike, years, vol, rate)
	if err != nil {
		return math.NaN()
	}
	return res.Price
}

// Strategy returns a copy of the evaluated strategy.
func (e *Evaluator) Strategy() models.Strategy {
	return e.strategy.Clone()
}

// PricedLegs returns the legs priced at the valuation date and spot.
func (e *Evaluator) PricedLegs() []models.PricedLeg {
	return append([]models.PricedLeg(nil), e.priced...)
}

// Premiums returns the per-unit premium fixed for each leg.
func (e *Evaluator) Premiums() []float64 {
	return append([]float64(nil), e.premiums...)
}

// NetDebitCredit is positive for a net credit received, negative for a net debit paid.
func (e *Evaluator) NetDebitCredit() float64 {
	total := 0.0
	for i, p := range e.premiums {
		total -= e.scales[i] * p
	}
	return total
}

// NearestExpiry returns the date treated as expiration.
func (e *Evaluator) NearestExpiry() time.Time {
	return e.expiry
}

// UpperTailSlope returns d(P&L)/d(price) as price grows without bound. Only
// calls contribute; puts are worthless in the upper tail.
func (e *Evaluator) UpperTailSlope() float64 {
	slope := 0.0
	for i, leg := range e.strategy.Legs {
		switch leg.Contract.Kind {
		case models.OptionKindCall:
			slope += e.scales[i]
		case models.OptionKindPut:
		}
	}
	return slope
}

// Breakevens finds the roots of the payoff over domain.
func (e *Evaluator) Breakevens(atExpiration bool, domain models.PriceDomain, opts Options) ([]float64, error) {
	return FindBreakevens(func(p float64) float64 { return e.At(p, atExpiration) }, domain, opts)
}
