package models

import (
	"fmt"
	"math"
	"sort"
	"time"

	apperrors "delta-spread/internal/errors"
)

// DateLayout is the layout used for expiry dates everywhere.
const DateLayout = "2006-01-02"

// OptionContract identifies a tradable option independent of direction.
type OptionContract struct {
	Symbol string     `json:"symbol"`
	Expiry time.Time  `json:"expiry"`
	Strike float64    `json:"strike"`
	Kind   OptionKind `json:"kind"`
}

// String returns an OCC-like description, e.g. "SPY 2026-11-20 450.00 C".
func (c OptionContract) String() string {
	return fmt.Sprintf("%s %s %.2f %s", c.Symbol, c.Expiry.Format(DateLayout), c.Strike, c.Kind.Short())
}

// Intrinsic returns the contract's payoff per unit at the given underlying price.
func (c OptionContract) Intrinsic(price float64) float64 {
	switch c.Kind {
	case OptionKindCall:
		return math.Max(price-c.Strike, 0)
	case OptionKindPut:
		return math.Max(c.Strike-price, 0)
	}
	return 0
}

// OptionLeg represents one position within a strategy.
type OptionLeg struct {
	Contract   OptionContract `json:"contract"`
	Side       OrderSide      `json:"side"`
	Quantity   int            `json:"quantity"`
	EntryPrice *float64       `json:"entry_price,omitempty"`
	Notes      string         `json:"notes,omitempty"`
}

// HasEntryPrice reports whether the leg carries an entry premium.
func (l OptionLeg) HasEntryPrice() bool {
	return l.EntryPrice != nil
}

// WithEntryPrice returns a copy of the leg with a new entry price.
func (l OptionLeg) WithEntryPrice(price float64) OptionLeg {
	l.EntryPrice = Float(price)
	return l
}

// WithoutEntryPrice returns a copy of the leg with the entry price cleared.
func (l OptionLeg) WithoutEntryPrice() OptionLeg {
	l.EntryPrice = nil
	return l
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// StrategyConstraints holds optional structural rules for a strategy.
type StrategyConstraints struct {
	SameExpiry       bool `json:"same_expiry"`
	MaxTotalShortQty int  `json:"max_total_short_qty,omitempty"` // 0 = unlimited
}

// Strategy is an ordered set of legs on one underlier.
// Methods never modify the receiver; edits return new values with cloned slices.
type Strategy struct {
	Name        string              `json:"name"`
	Underlier   Underlier           `json:"underlier"`
	Legs        []OptionLeg         `json:"legs"`
	CreatedAt   time.Time           `json:"created_at"`
	Tags        []string            `json:"tags,omitempty"`
	Constraints StrategyConstraints `json:"constraints"`
}

// Clone returns a deep copy of the strategy.
func (s Strategy) Clone() Strategy {
	out := s
	out.Legs = make([]OptionLeg, len(s.Legs))
	for i, leg := range s.Legs {
		if leg.EntryPrice != nil {
			leg.EntryPrice = Float(*leg.EntryPrice)
		}
		out.Legs[i] = leg
	}
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	return out
}

// WithLegs returns a copy of the strategy with the given legs.
func (s Strategy) WithLegs(legs []OptionLeg) Strategy {
	out := s.Clone()
	out.Legs = append([]OptionLeg(nil), legs...)
	return out
}

// WithLeg returns a copy with the leg at index i replaced.
func (s Strategy) WithLeg(i int, leg OptionLeg) Strategy {
	out := s.Clone()
	out.Legs[i] = leg
	return out
}

// WithAddedLeg returns a copy with leg appended.
func (s Strategy) WithAddedLeg(leg OptionLeg) Strategy {
	out := s.Clone()
	out.Legs = append(out.Legs, leg)
	return out
}

// WithoutLeg returns a copy with the leg at index i removed.
func (s Strategy) WithoutLeg(i int) Strategy {
	out := s.Clone()
	out.Legs = append(out.Legs[:i:i], out.Legs[i+1:]...)
	return out
}

// WithUnderlier returns a copy on a different underlier state (e.g. a new spot).
func (s Strategy) WithUnderlier(u Underlier) Strategy {
	out := s.Clone()
	out.Underlier = u
	return out
}

// NearestExpiry returns the earliest leg expiry.
func (s Strategy) NearestExpiry() time.Time {
	var nearest time.Time
	for i, leg := range s.Legs {
		if i == 0 || leg.Contract.Expiry.Before(nearest) {
			nearest = leg.Contract.Expiry
		}
	}
	return nearest
}

// Strikes returns the distinct strikes in ascending order.
func (s Strategy) Strikes() []float64 {
	seen := make(map[float64]bool, len(s.Legs))
	strikes := make([]float64, 0, len(s.Legs))
	for _, leg := range s.Legs {
		if !seen[leg.Contract.Strike] {
			seen[leg.Contract.Strike] = true
			strikes = append(strikes, leg.Contract.Strike)
		}
	}
	sort.Float64s(strikes)
	return strikes
}

// TotalShortQuantity returns the sum of quantities across SELL legs.
func (s Strategy) TotalShortQuantity() int {
	total := 0
	for _, leg := range s.Legs {
		if leg.Side == OrderSideSell {
			total += leg.Quantity
		}
	}
	return total
}

// Validate enforces the strategy invariants. Structural violations are
// reported as AggregationError, numeric ones as DomainError.
func (s Strategy) Validate() error {
	if len(s.Legs) == 0 {
		return apperrors.NewAggregationError(s.Name, -1, "at least one leg is required", apperrors.ErrEmptyStrategy)
	}
	if s.Underlier.Multiplier <= 0 {
		return apperrors.NewAggregationError(s.Name, -1,
			fmt.Sprintf("multiplier must be positive, got %d", s.Underlier.Multiplier), apperrors.ErrInvalidInput)
	}
	if !(s.Underlier.Spot > 0) || math.IsInf(s.Underlier.Spot, 0) {
		return apperrors.NewDomainError("spot", s.Underlier.Spot, "must be positive and finite")
	}

	base := s.Legs[0].Contract.Expiry
	for i, leg := range s.Legs {
		if leg.Contract.Symbol != s.Underlier.Symbol {
			return apperrors.NewAggregationError(s.Name, i,
				fmt.Sprintf("underlier %q does not match strategy underlier %q", leg.Contract.Symbol, s.Underlier.Symbol),
				apperrors.ErrMixedUnderliers)
		}
		if leg.Quantity <= 0 {
			return apperrors.NewAggregationError(s.Name, i,
				fmt.Sprintf("quantity must be positive, got %d", leg.Quantity), apperrors.ErrInvalidInput)
		}
		if !leg.Side.Valid() {
			return apperrors.NewDomainError("side", leg.Side, "must be BUY or SELL")
		}
		if !leg.Contract.Kind.Valid() {
			return apperrors.NewDomainError("kind", leg.Contract.Kind, "must be CALL or PUT")
		}
		if !(leg.Contract.Strike > 0) || math.IsInf(leg.Contract.Strike, 0) {
			return apperrors.NewDomainError("strike", leg.Contract.Strike, "must be positive and finite")
		}
		if leg.EntryPrice != nil && (*leg.EntryPrice < 0 || math.IsNaN(*leg.EntryPrice)) {
			return apperrors.NewDomainError("entry_price", *leg.EntryPrice, "must be non-negative")
		}
		if s.Constraints.SameExpiry && !sameDate(leg.Contract.Expiry, base) {
			return apperrors.NewAggregationError(s.Name, i,
				fmt.Sprintf("expiry %s differs from %s", leg.Contract.Expiry.Format(DateLayout), base.Format(DateLayout)),
				apperrors.ErrExpiryMismatch)
		}
	}

	if limit := s.Constraints.MaxTotalShortQty; limit > 0 {
		if total := s.TotalShortQuantity(); total > limit {
			return apperrors.NewAggregationError(s.Name, -1,
				fmt.Sprintf("short quantity %d exceeds limit %d", total, limit), apperrors.ErrShortQtyExceeded)
		}
	}
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// MarketState carries the per-call market inputs for a strategy.
type MarketState struct {
	// Volatilities holds implied volatility per leg, aligned with Strategy.Legs.
	Volatilities []float64 `json:"volatilities,omitempty"`
	// FlatVolatility, when set, is used for legs without an entry in Volatilities.
	FlatVolatility *float64  `json:"flat_volatility,omitempty"`
	RiskFreeRate   float64   `json:"risk_free_rate"`
	ValuationDate  time.Time `json:"valuation_date"`
}

// VolatilityFor returns the volatility to use for leg i.
func (m MarketState) VolatilityFor(i int) (float64, error) {
	if i >= 0 && i < len(m.Volatilities) {
		return m.Volatilities[i], nil
	}
	if m.FlatVolatility != nil {
		return *m.FlatVolatility, nil
	}
	return 0, apperrors.Wrapf(apperrors.ErrMissingVolatility, "leg %d", i)
}

// OptionGreeks represents option Greeks.
// Theta is per calendar day, Vega per volatility point, Rho per rate point.
type OptionGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Scale returns the Greeks multiplied by f.
func (g OptionGreeks) Scale(f float64) OptionGreeks {
	return OptionGreeks{
		Delta: g.Delta * f,
		Gamma: g.Gamma * f,
		Theta: g.Theta * f,
		Vega:  g.Vega * f,
		Rho:   g.Rho * f,
	}
}

// Add returns the element-wise sum.
func (g OptionGreeks) Add(o OptionGreeks) OptionGreeks {
	return OptionGreeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Theta: g.Theta + o.Theta,
		Vega:  g.Vega + o.Vega,
		Rho:   g.Rho + o.Rho,
	}
}

// PricedLeg is a leg valued by the pricing model.
type PricedLeg struct {
	Leg          OptionLeg    `json:"leg"`
	Volatility   float64      `json:"volatility"`
	TimeToExpiry float64      `json:"time_to_expiry"` // years, after flooring
	UnitPrice    float64      `json:"unit_price"`
	UnitGreeks   OptionGreeks `json:"unit_greeks"`
	SignedPrice  float64      `json:"signed_price"`
	SignedGreeks OptionGreeks `json:"signed_greeks"`
}

// Bound is a max profit/loss value that may be unbounded.
type Bound struct {
	Value     float64 `json:"value"`
	Unbounded bool    `json:"unbounded"`
}

// PriceDomain is a closed interval of underlying prices.
type PriceDomain struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether p lies within the domain.
func (d PriceDomain) Contains(p float64) bool {
	return p >= d.Low && p <= d.High
}

// Width returns High - Low.
func (d PriceDomain) Width() float64 {
	return d.High - d.Low
}

// Validate checks that the domain is a non-empty finite interval of non-negative prices.
func (d PriceDomain) Validate() error {
	if math.IsNaN(d.Low) || math.IsNaN(d.High) || math.IsInf(d.Low, 0) || math.IsInf(d.High, 0) {
		return apperrors.NewValidationError("price_domain", d, "bounds must be finite")
	}
	if d.Low < 0 || d.High <= d.Low {
		return apperrors.NewValidationError("price_domain", d, "require 0 <= low < high")
	}
	return nil
}

// StrategyMetrics is the aggregated result for a strategy. Built fresh on every call.
type StrategyMetrics struct {
	// NetDebitCredit is positive for a net credit received, negative for a net debit paid.
	NetDebitCredit      float64      `json:"net_debit_credit"`
	MaxProfit           Bound        `json:"max_profit"`
	MaxLoss             Bound        `json:"max_loss"`
	Breakevens          []float64    `json:"breakevens"`
	Greeks              OptionGreeks `json:"greeks"`
	ProbabilityOfProfit float64      `json:"probability_of_profit"`
	Domain              PriceDomain  `json:"domain"`
	Volatility          float64      `json:"volatility"`
	YearsToExpiry       float64      `json:"years_to_expiry"`
}

// CurvePoint is one sample of a payoff curve.
type CurvePoint struct {
	Price float64 `json:"price" csv:"price"`
	PnL   float64 `json:"pnl" csv:"pnl"`
}

// PayoffCurve is an ordered sequence of samples, strictly increasing in price.
type PayoffCurve struct {
	AtExpiration bool         `json:"at_expiration"`
	Points       []CurvePoint `json:"points"`
}

// OptionQuote represents a market quote for a single contract.
type OptionQuote struct {
	Symbol      string     `json:"symbol"`
	Expiry      time.Time  `json:"expiry"`
	Strike      float64    `json:"strike"`
	Kind        OptionKind `json:"kind"`
	Bid         float64    `json:"bid"`
	Ask         float64    `json:"ask"`
	Mid         float64    `json:"mid"`
	IV          float64    `json:"iv"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Validate enforces bid <= mid <= ask, non-negative prices and IV.
func (q OptionQuote) Validate() error {
	if q.Bid < 0 || q.Ask < 0 || q.Mid < 0 {
		return apperrors.NewValidationError("quote", q.Mid, "prices must be non-negative")
	}
	if q.Bid > q.Mid || q.Mid > q.Ask {
		return apperrors.NewValidationError("quote", fmt.Sprintf("%.2f/%.2f/%.2f", q.Bid, q.Mid, q.Ask), "require bid <= mid <= ask")
	}
	if q.IV < 0 {
		return apperrors.NewValidationError("iv", q.IV, "must be non-negative")
	}
	return nil
}

// OptionChain represents an option chain for one expiry.
type OptionChain struct {
	Symbol    string         `json:"symbol"`
	SpotPrice float64        `json:"spot_price"`
	Expiry    time.Time      `json:"expiry"`
	Strikes   []OptionStrike `json:"strikes"`
}

// OptionStrike represents a single strike in the option chain.
type OptionStrike struct {
	Strike float64      `json:"strike"`
	Call   *OptionQuote `json:"call,omitempty"`
	Put    *OptionQuote `json:"put,omitempty"`
}
