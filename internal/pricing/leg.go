package pricing

import (
	"fmt"
	"time"

	"delta-spread/internal/models"
)

// YearsBetween returns the calendar-day distance from valuation to expiry in
// years. The result is not floored and may be zero or negative.
func YearsBetween(valuation, expiry time.Time) float64 {
	return float64(calendarDays(valuation, expiry)) / DaysPerYear
}

func calendarDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// PriceLeg values one leg at the given spot. Signed values are the unit
// values scaled by quantity, multiplier and side sign.
func PriceLeg(leg models.OptionLeg, multiplier int, spot, vol, rate float64, valuation time.Time) (models.PricedLeg, error) {
	return PriceLegAt(leg, multiplier, spot, vol, rate, YearsBetween(valuation, leg.Contract.Expiry))
}

// PriceLegAt is PriceLeg with an explicit time to expiry in years.
func PriceLegAt(leg models.OptionLeg, multiplier int, spot, vol, rate, years float64) (models.PricedLeg, error) {
	res, err := PriceAndGreeks(leg.Contract.Kind, spot, leg.Contract.Strike, years, vol, rate)
	if err != nil {
		return models.PricedLeg{}, err
	}
	scale := legScale(leg, multiplier)
	return models.PricedLeg{
		Leg:          leg,
		Volatility:   vol,
		TimeToExpiry: maxYears(years),
		UnitPrice:    res.Price,
		UnitGreeks:   res.Greeks,
		SignedPrice:  res.Price * scale,
		SignedGreeks: res.Greeks.Scale(scale),
	}, nil
}

// PriceStrategy validates the strategy and prices every leg at the
// underlier spot and the market's valuation date.
func PriceStrategy(s models.Strategy, market models.MarketState) ([]models.PricedLeg, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	priced := make([]models.PricedLeg, len(s.Legs))
	for i, leg := range s.Legs {
		vol, err := market.VolatilityFor(i)
		if err != nil {
			return nil, err
		}
		p, err := PriceLeg(leg, s.Underlier.Multiplier, s.Underlier.Spot, vol, market.RiskFreeRate, market.ValuationDate)
		if err != nil {
			return nil, fmt.Errorf("leg %d (%s): %w", i, leg.Contract, err)
		}
		priced[i] = p
	}
	return priced, nil
}

// TotalGreeks sums the signed Greeks of priced legs.
func TotalGreeks(legs []models.PricedLeg) models.OptionGreeks {
	var total models.OptionGreeks
	for _, p := range legs {
		total = total.Add(p.SignedGreeks)
	}
	return total
}

func legScale(leg models.OptionLeg, multiplier int) float64 {
	return leg.Side.Sign() * float64(leg.Quantity) * float64(multiplier)
}

func maxYears(years float64) float64 {
	if years < MinTimeToExpiry {
		return MinTimeToExpiry
	}
	return years
}
