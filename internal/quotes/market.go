package quotes

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/iter"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// ResolveOptions controls how quotes become a MarketState.
type ResolveOptions struct {
	RiskFreeRate  float64
	ValuationDate time.Time
	// FallbackVolatility is used for legs whose quote is unavailable or has
	// no IV. Nil means such legs are an error.
	FallbackVolatility *float64
	// MaxConcurrency bounds parallel quote requests; 0 means one per leg.
	MaxConcurrency int
}

type legQuote struct {
	quote models.OptionQuote
	err   error
}

// FetchLegQuotes quotes every leg of the strategy concurrently. Results are
// aligned with s.Legs; per-leg failures are returned in the slice, not as an
// overall error. A maxConcurrency of 0 or less runs one request per leg.
func FetchLegQuotes(ctx context.Context, src Source, s models.Strategy, maxConcurrency int) ([]models.OptionQuote, []error) {
	if maxConcurrency <= 0 {
		maxConcurrency = max(len(s.Legs), 1)
	}
	mapper := iter.Mapper[models.OptionLeg, legQuote]{MaxGoroutines: maxConcurrency}
	results := mapper.Map(s.Legs, func(leg *models.OptionLeg) legQuote {
		q, err := src.GetQuote(ctx, leg.Contract)
		if err != nil {
			return legQuote{err: err}
		}
		if err := q.Validate(); err != nil {
			return legQuote{err: apperrors.NewQuoteError(leg.Contract.Symbol, leg.Contract.Expiry.Format(models.DateLayout),
				leg.Contract.Strike, string(leg.Contract.Kind), err)}
		}
		return legQuote{quote: q}
	})

	quotes := make([]models.OptionQuote, len(results))
	errs := make([]error, len(results))
	for i, r := range results {
		quotes[i], errs[i] = r.quote, r.err
	}
	return quotes, errs
}

// ResolveMarketState builds the market inputs for a strategy from quoted IVs.
// A leg without a usable IV falls back to opts.FallbackVolatility when set and
// fails otherwise.
func ResolveMarketState(ctx context.Context, src Source, s models.Strategy, opts ResolveOptions) (models.MarketState, error) {
	quotes, errs := FetchLegQuotes(ctx, src, s, opts.MaxConcurrency)
	if err := ctx.Err(); err != nil {
		return models.MarketState{}, err
	}

	vols := make([]float64, len(s.Legs))
	for i, leg := range s.Legs {
		switch {
		case errs[i] == nil && quotes[i].IV > 0:
			vols[i] = quotes[i].IV
		case opts.FallbackVolatility != nil:
			vols[i] = *opts.FallbackVolatility
		case errs[i] != nil:
			return models.MarketState{}, apperrors.Wrapf(errs[i], "leg %d", i)
		default:
			return models.MarketState{}, apperrors.NewQuoteError(leg.Contract.Symbol, leg.Contract.Expiry.Format(models.DateLayout),
				leg.Contract.Strike, string(leg.Contract.Kind), apperrors.ErrMissingVolatility)
		}
	}

	valuation := opts.ValuationDate
	if valuation.IsZero() {
		valuation = time.Now()
	}
	return models.MarketState{
		Volatilities:   vols,
		FlatVolatility: opts.FallbackVolatility,
		RiskFreeRate:   opts.RiskFreeRate,
		ValuationDate:  valuation,
	}, nil
}

// EntryPricesFromQuotes returns a copy of the strategy where every leg
// without an entry price takes its quote mid. Existing entry prices are kept
// even when their quote fails.
func EntryPricesFromQuotes(ctx context.Context, src Source, s models.Strategy) (models.Strategy, error) {
	quotes, errs := FetchLegQuotes(ctx, src, s, 0)
	out := s.Clone()
	for i, leg := range out.Legs {
		if leg.HasEntryPrice() {
			continue
		}
		if errs[i] != nil {
			return models.Strategy{}, apperrors.Wrapf(errs[i], "leg %d", i)
		}
		out.Legs[i] = leg.WithEntryPrice(quotes[i].Mid)
	}
	return out, nil
}
