// Package quotes defines the quote and volatility source used to feed the
// analyzer, a deterministic mock implementation, and helpers that turn quotes
// into market inputs.
package quotes

import (
	"context"
	"time"

	"delta-spread/internal/models"
)

// Source supplies option quotes. Implementations fail with an error wrapping
// ErrQuoteUnavailable when a contract cannot be quoted.
type Source interface {
	GetQuote(ctx context.Context, contract models.OptionContract) (models.OptionQuote, error)
	GetChain(ctx context.Context, symbol string, expiry time.Time) (models.OptionChain, error)
	GetExpiries(ctx context.Context, symbol string) ([]time.Time, error)
	GetStrikes(ctx context.Context, symbol string, expiry time.Time) ([]float64, error)
}

// SpotSource is implemented by sources that can also quote the underlier.
type SpotSource interface {
	GetSpot(ctx context.Context, symbol string) (float64, error)
}
