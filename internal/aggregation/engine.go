// Package aggregation turns a strategy and market state into whole-strategy
// metrics and chart-ready payoff curves.
package aggregation

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/payoff"
	"delta-spread/internal/pricing"
)

// Default engine settings.
const (
	DefaultDomainSigmas  = 4.0
	DefaultDomainPadding = 0.10
	DefaultCurveSamples  = 200
)

// Config tunes the price domain and the breakeven scan.
type Config struct {
	DomainSigmas  float64
	DomainPadding float64
	Breakeven     payoff.Options
	CurveSamples  int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DomainSigmas:  DefaultDomainSigmas,
		DomainPadding: DefaultDomainPadding,
		Breakeven:     payoff.DefaultOptions(),
		CurveSamples:  DefaultCurveSamples,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if !(c.DomainSigmas > 0) {
		c.DomainSigmas = d.DomainSigmas
	}
	if !(c.DomainPadding > 0) {
		c.DomainPadding = d.DomainPadding
	}
	if c.Breakeven.Samples <= 0 {
		c.Breakeven.Samples = d.Breakeven.Samples
	}
	if !(c.Breakeven.Precision > 0) {
		c.Breakeven.Precision = d.Breakeven.Precision
	}
	if c.CurveSamples <= 1 {
		c.CurveSamples = d.CurveSamples
	}
	return c
}

// Engine computes strategy metrics. It holds no mutable state; every call
// builds its results from scratch and it is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEngine creates an engine. Zero config fields fall back to defaults.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg.normalized(),
		logger: zerolog.Nop(),
	}
}

// WithLogger returns a copy of the engine that emits debug traces to logger.
func (e *Engine) WithLogger(logger zerolog.Logger) *Engine {
	out := *e
	out.logger = logger
	return &out
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ComputeMetrics evaluates the full metrics bundle for a strategy.
func (e *Engine) ComputeMetrics(s models.Strategy, market models.MarketState) (models.StrategyMetrics, error) {
	ev, err := payoff.NewEvaluator(s, market)
	if err != nil {
		return models.StrategyMetrics{}, err
	}

	priced := ev.PricedLegs()
	sigma := representativeVolatility(priced)
	years := yearsToNearest(s, market)
	domain := e.domainFor(s, sigma, years)

	maxProfit, maxLoss := e.extremes(ev, s, domain)

	breakevens, err := ev.Breakevens(true, domain, e.cfg.Breakeven)
	if err != nil {
		return models.StrategyMetrics{}, apperrors.NewAggregationError(s.Name, -1, "breakeven search failed", err)
	}

	pop := probabilityOfProfit(ev, breakevens, popInputs{
		spot:  s.Underlier.Spot,
		sigma: sigma,
		years: years,
		rate:  market.RiskFreeRate,
	})

	metrics := models.StrategyMetrics{
		NetDebitCredit:      ev.NetDebitCredit(),
		MaxProfit:           maxProfit,
		MaxLoss:             maxLoss,
		Breakevens:          breakevens,
		Greeks:              pricing.TotalGreeks(priced),
		ProbabilityOfProfit: pop,
		Domain:              domain,
		Volatility:          sigma,
		YearsToExpiry:       years,
	}

	e.logger.Debug().
		Str("strategy", s.Name).
		Int("legs", len(s.Legs)).
		Float64("domain_low", domain.Low).
		Float64("domain_high", domain.High).
		Int("breakevens", len(breakevens)).
		Msg("Computed strategy metrics")

	return metrics, nil
}

// ComputeCurve samples the strategy P&L at sampleCount evenly spaced prices
// across domain, inclusive of both ends. sampleCount <= 1 selects the
// configured default.
func (e *Engine) ComputeCurve(s models.Strategy, market models.MarketState, domain models.PriceDomain, sampleCount int, atExpiration bool) (models.PayoffCurve, error) {
	if err := domain.Validate(); err != nil {
		return models.PayoffCurve{}, err
	}
	ev, err := payoff.NewEvaluator(s, market)
	if err != nil {
		return models.PayoffCurve{}, err
	}
	if sampleCount <= 1 {
		sampleCount = e.cfg.CurveSamples
	}

	points := make([]models.CurvePoint, sampleCount)
	step := domain.Width() / float64(sampleCount-1)
	for i := range points {
		price := domain.Low + float64(i)*step
		if i == sampleCount-1 {
			price = domain.High
		}
		points[i] = models.CurvePoint{Price: price, PnL: ev.At(price, atExpiration)}
	}

	return models.PayoffCurve{AtExpiration: atExpiration, Points: points}, nil
}

// DefaultDomain returns the price domain ComputeMetrics would use: spot
// scaled by exp(±N·σ·√T), widened to cover every strike and the spot with
// the configured padding.
func (e *Engine) DefaultDomain(s models.Strategy, market models.MarketState) (models.PriceDomain, error) {
	priced, err := pricing.PriceStrategy(s, market)
	if err != nil {
		return models.PriceDomain{}, err
	}
	return e.domainFor(s, representativeVolatility(priced), yearsToNearest(s, market)), nil
}

func (e *Engine) domainFor(s models.Strategy, sigma, years float64) models.PriceDomain {
	spot := s.Underlier.Spot
	pad := e.cfg.DomainPadding
	move := e.cfg.DomainSigmas * sigma * math.Sqrt(years)

	low := math.Min(spot*math.Exp(-move), spot*(1-pad))
	high := math.Max(spot*math.Exp(move), spot*(1+pad))
	for _, k := range s.Strikes() {
		low = math.Min(low, k*(1-pad))
		high = math.Max(high, k*(1+pad))
	}
	return models.PriceDomain{Low: math.Max(low, 0), High: high}
}

// extremes scans the expiration payoff over the domain samples, every strike
// and the lower boundary. The upper tail is unbounded whenever the net call
// position is non-zero; the lower tail stops at a price of zero. Bounded
// values are the sampled extremes as-is, so a position that loses everywhere
// reports a negative max profit.
func (e *Engine) extremes(ev *payoff.Evaluator, s models.Strategy, domain models.PriceDomain) (models.Bound, models.Bound) {
	n := e.cfg.Breakeven.Samples
	candidates := make([]float64, 0, n+len(s.Legs)+2)
	step := domain.Width() / float64(n)
	for i := 0; i < n; i++ {
		candidates = append(candidates, domain.Low+float64(i)*step)
	}
	candidates = append(candidates, domain.High)
	candidates = append(candidates, s.Strikes()...)
	if uniformExpiry(s) {
		candidates = append(candidates, 0)
	}

	hi, lo := math.Inf(-1), math.Inf(1)
	for _, p := range candidates {
		v := ev.At(p, true)
		hi = math.Max(hi, v)
		lo = math.Min(lo, v)
	}

	slope := ev.UpperTailSlope()
	maxProfit := models.Bound{Value: hi}
	maxLoss := models.Bound{Value: lo}
	if slope > 0 {
		maxProfit = models.Bound{Unbounded: true}
	}
	if slope < 0 {
		maxLoss = models.Bound{Unbounded: true}
	}
	return maxProfit, maxLoss
}

func uniformExpiry(s models.Strategy) bool {
	nearest := s.NearestExpiry()
	for _, leg := range s.Legs {
		if pricing.YearsBetween(nearest, leg.Contract.Expiry) > 0 {
			return false
		}
	}
	return true
}

// representativeVolatility is the mean leg volatility.
func representativeVolatility(priced []models.PricedLeg) float64 {
	if len(priced) == 0 {
		return 0
	}
	vols := make([]float64, len(priced))
	for i, p := range priced {
		vols[i] = p.Volatility
	}
	return stat.Mean(vols, nil)
}

func yearsToNearest(s models.Strategy, market models.MarketState) float64 {
	return math.Max(pricing.YearsBetween(market.ValuationDate, s.NearestExpiry()), pricing.MinTimeToExpiry)
}
