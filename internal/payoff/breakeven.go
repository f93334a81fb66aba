package payoff

import (
	"math"
	"sort"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// Default breakeven search resolution.
const (
	DefaultSamples   = 400
	DefaultPrecision = 0.01
	maxBisectSteps   = 200
)

// Options controls the breakeven scan. Zero values select the defaults.
type Options struct {
	// Samples is the number of equal intervals the domain is split into.
	Samples int
	// Precision is the target width of the refined root bracket, in price units.
	Precision float64
}

// DefaultOptions returns the default scan options.
func DefaultOptions() Options {
	return Options{Samples: DefaultSamples, Precision: DefaultPrecision}
}

func (o Options) normalized() Options {
	if o.Samples <= 0 {
		o.Samples = DefaultSamples
	}
	if !(o.Precision > 0) {
		o.Precision = DefaultPrecision
	}
	return o
}

// FindBreakevens returns the ascending roots of fn inside domain.
//
// fn is sampled at Samples+1 evenly spaced prices. Each adjacent pair with
// opposite signs is refined by bisection. A sample that is exactly zero is
// reported as-is, once, even when the payoff only touches zero there. A run
// of several zero samples yields one root when the sign differs on either
// side, and one root at its inner boundary when the run touches an edge of
// the domain. Roots closer than Precision are merged.
// No sign change is a valid empty result.
func FindBreakevens(fn func(float64) float64, domain models.PriceDomain, opts Options) ([]float64, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	n := opts.Samples

	xs := make([]float64, n+1)
	ys := make([]float64, n+1)
	step := domain.Width() / float64(n)
	for i := 0; i <= n; i++ {
		xs[i] = domain.Low + float64(i)*step
		if i == n {
			xs[i] = domain.High
		}
		ys[i] = fn(xs[i])
		if math.IsNaN(ys[i]) {
			return nil, apperrors.NewValidationError("payoff", xs[i], "payoff is NaN")
		}
	}

	var roots []float64
	last := -1 // index of the last non-zero sample
	for i := 0; i <= n; i++ {
		si := sign(ys[i])
		if si == 0 {
			continue
		}
		switch {
		case last < 0 && i > 0:
			// Zero run touching the lower edge.
			roots = append(roots, edgeRoot(fn, xs, ys, i-1, i, opts.Precision))
		case last >= 0 && sign(ys[last]) != si:
			if last == i-1 {
				roots = append(roots, bisect(fn, xs[last], xs[i], opts.Precision))
			} else {
				roots = append(roots, edgeRoot(fn, xs, ys, last, last+1, opts.Precision))
			}
		case last == i-2:
			// Payoff touches zero at one sample and keeps its sign.
			roots = append(roots, xs[i-1])
		}
		last = i
	}
	if last >= 0 && last < n {
		// Zero run touching the upper edge.
		roots = append(roots, edgeRoot(fn, xs, ys, last, last+1, opts.Precision))
	}

	return dedupe(roots, opts.Precision), nil
}

// edgeRoot resolves the boundary between a non-zero sample and an adjacent
// zero sample. A lone zero sample is reported exactly; otherwise the point
// where fn leaves zero is refined by bisection.
func edgeRoot(fn func(float64) float64, xs, ys []float64, a, b int, precision float64) float64 {
	zero, nonzero := a, b
	if ys[a] != 0 {
		zero, nonzero = b, a
	}
	if isLoneZero(ys, zero) {
		return xs[zero]
	}
	lo, hi := xs[zero], xs[nonzero]
	for k := 0; k < maxBisectSteps && math.Abs(hi-lo) > precision; k++ {
		mid := 0.5 * (lo + hi)
		if fn(mid) == 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

func isLoneZero(ys []float64, i int) bool {
	left := i == 0 || ys[i-1] != 0
	right := i == len(ys)-1 || ys[i+1] != 0
	return left && right
}

// bisect refines a bracket [lo, hi] whose endpoints have opposite signs.
func bisect(fn func(float64) float64, lo, hi, precision float64) float64 {
	flo := fn(lo)
	for k := 0; k < maxBisectSteps && hi-lo > precision; k++ {
		mid := 0.5 * (lo + hi)
		fm := fn(mid)
		if fm == 0 {
			return mid
		}
		if sign(fm) == sign(flo) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func dedupe(roots []float64, precision float64) []float64 {
	out := make([]float64, 0, len(roots))
	sort.Float64s(roots)
	for _, r := range roots {
		if len(out) > 0 && r-out[len(out)-1] <= precision {
			continue
		}
		out = append(out, r)
	}
	return out
}
