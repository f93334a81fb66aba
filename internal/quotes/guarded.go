package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/resilience"
)

// GuardConfig configures a GuardedSource.
type GuardConfig struct {
	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
}

// DefaultGuardConfig returns retry and breaker defaults for quote sources.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Retry:   resilience.DefaultRetryConfig(),
		Breaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// Upstream is a quote source that can also quote the underlier.
type Upstream interface {
	Source
	SpotSource
}

// GuardedSource wraps an upstream source with retries and a circuit
// breaker. Answers such as an unlisted contract or invalid input pass
// through unchanged and do not count as source failures.
type GuardedSource struct {
	upstream Upstream
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	logger   zerolog.Logger
}

// NewGuardedSource creates a guarded source named after the upstream.
func NewGuardedSource(name string, upstream Upstream, cfg GuardConfig, logger zerolog.Logger) *GuardedSource {
	cfg.Retry.Retryable = isTransient
	cfg.Breaker.IsFailure = isTransient
	return &GuardedSource{
		upstream: upstream,
		retry:    cfg.Retry,
		breaker:  resilience.NewCircuitBreaker(name, cfg.Breaker),
		logger:   logger.With().Str("source", name).Logger(),
	}
}

// isTransient reports whether err may succeed on another attempt.
func isTransient(err error) bool {
	var ve *apperrors.ValidationError
	switch {
	case errors.Is(err, apperrors.ErrQuoteUnavailable),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.As(err, &ve),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func guard[T any](ctx context.Context, g *GuardedSource, op string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	out, err := resilience.RetryWithResult(ctx, g.retry, func(ctx context.Context) (T, error) {
		attempt++
		if attempt > 1 {
			g.logger.Debug().Str("op", op).Int("attempt", attempt).Msg("Retrying quote request")
		}
		return resilience.ExecuteWithResult(ctx, g.breaker, fn)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		g.logger.Warn().Str("op", op).Msg("Quote source circuit open")
		return out, apperrors.Wrapf(apperrors.ErrQuoteUnavailable, "%s: %v", op, err)
	}
	return out, err
}

// GetQuote implements Source.
func (g *GuardedSource) GetQuote(ctx context.Context, contract models.OptionContract) (models.OptionQuote, error) {
	return guard(ctx, g, "quote", func(ctx context.Context) (models.OptionQuote, error) {
		return g.upstream.GetQuote(ctx, contract)
	})
}

// GetChain implements Source.
func (g *GuardedSource) GetChain(ctx context.Context, symbol string, expiry time.Time) (models.OptionChain, error) {
	return guard(ctx, g, "chain", func(ctx context.Context) (models.OptionChain, error) {
		return g.upstream.GetChain(ctx, symbol, expiry)
	})
}

// GetExpiries implements Source.
func (g *GuardedSource) GetExpiries(ctx context.Context, symbol string) ([]time.Time, error) {
	return guard(ctx, g, "expiries", func(ctx context.Context) ([]time.Time, error) {
		return g.upstream.GetExpiries(ctx, symbol)
	})
}

// GetStrikes implements Source.
func (g *GuardedSource) GetStrikes(ctx context.Context, symbol string, expiry time.Time) ([]float64, error) {
	return guard(ctx, g, "strikes", func(ctx context.Context) ([]float64, error) {
		return g.upstream.GetStrikes(ctx, symbol, expiry)
	})
}

// GetSpot implements SpotSource.
func (g *GuardedSource) GetSpot(ctx context.Context, symbol string) (float64, error) {
	return guard(ctx, g, "spot", func(ctx context.Context) (float64, error) {
		return g.upstream.GetSpot(ctx, symbol)
	})
}

// Stats returns the circuit breaker statistics.
func (g *GuardedSource) Stats() resilience.CircuitBreakerStats {
	return g.breaker.Stats()
}
