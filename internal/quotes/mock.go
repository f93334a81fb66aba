package quotes

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/pricing"
)

// Mock chain shape.
const (
	DefaultMockExpiries = 6
	mockStrikeCount     = 11
)

// MockConfig configures a MockSource.
type MockConfig struct {
	// Spots maps symbols to underlier prices. Unknown symbols get a
	// deterministic pseudo-random spot.
	Spots        map[string]float64
	Today        time.Time
	RiskFreeRate float64
	Expiries     int
}

// MockSource produces deterministic quotes seeded from a hash of the
// contract. Mids are priced with the Black-Scholes model at the seeded IV.
type MockSource struct {
	spots    map[string]float64
	today    time.Time
	rate     float64
	expiries int
}

// NewMockSource creates a mock source. A zero Today means the current date.
func NewMockSource(cfg MockConfig) *MockSource {
	spots := make(map[string]float64, len(cfg.Spots))
	for sym, spot := range cfg.Spots {
		spots[strings.ToUpper(sym)] = spot
	}
	today := cfg.Today
	if today.IsZero() {
		today = time.Now()
	}
	y, m, d := today.Date()
	expiries := cfg.Expiries
	if expiries <= 0 {
		expiries = DefaultMockExpiries
	}
	return &MockSource{
		spots:    spots,
		today:    time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		rate:     cfg.RiskFreeRate,
		expiries: expiries,
	}
}

// GetSpot returns the configured or seeded spot for symbol.
func (m *MockSource) GetSpot(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.spotFor(symbol), nil
}

func (m *MockSource) spotFor(symbol string) float64 {
	if spot, ok := m.spots[strings.ToUpper(symbol)]; ok && spot > 0 {
		return spot
	}
	return float64(50 + seed(strings.ToUpper(symbol))%250)
}

// GetExpiries returns weekly Friday expiries starting after today.
func (m *MockSource) GetExpiries(ctx context.Context, symbol string) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset := (int(time.Friday) - int(m.today.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	first := m.today.AddDate(0, 0, offset)
	out := make([]time.Time, m.expiries)
	for i := range out {
		out[i] = first.AddDate(0, 0, 7*i)
	}
	return out, nil
}

// GetStrikes returns strikes centered on the spot, spaced by price level.
func (m *MockSource) GetStrikes(ctx context.Context, symbol string, expiry time.Time) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spot := m.spotFor(symbol)
	step := strikeStep(spot)
	center := math.Round(spot/step) * step

	strikes := make([]float64, 0, mockStrikeCount)
	for i := 0; i < mockStrikeCount; i++ {
		k := center + float64(i-mockStrikeCount/2)*step
		if k > 0 {
			strikes = append(strikes, k)
		}
	}
	return strikes, nil
}

func strikeStep(spot float64) float64 {
	switch {
	case spot < 100:
		return 1
	case spot < 200:
		return 5
	}
	return 10
}

// GetQuote returns a deterministic quote for the contract.
func (m *MockSource) GetQuote(ctx context.Context, c models.OptionContract) (models.OptionQuote, error) {
	if err := ctx.Err(); err != nil {
		return models.OptionQuote{}, err
	}
	if !c.Kind.Valid() || !(c.Strike > 0) {
		return models.OptionQuote{}, apperrors.NewQuoteError(c.Symbol, c.Expiry.Format(models.DateLayout), c.Strike, string(c.Kind),
			apperrors.Wrap(apperrors.ErrQuoteUnavailable, "invalid contract"))
	}

	s := seed(fmt.Sprintf("%s|%s|%.2f|%s", strings.ToUpper(c.Symbol), c.Expiry.Format(models.DateLayout), c.Strike, c.Kind))
	iv := 0.1 + float64((s>>16)%200)/1000

	years := pricing.YearsBetween(m.today, c.Expiry)
	res, err := pricing.PriceAndGreeks(c.Kind, m.spotFor(c.Symbol), c.Strike, years, iv, m.rate)
	if err != nil {
		return models.OptionQuote{}, apperrors.NewQuoteError(c.Symbol, c.Expiry.Format(models.DateLayout), c.Strike, string(c.Kind), err)
	}

	mid := res.Price
	spread := math.Max(0.02, mid*(0.01+float64((s>>8)%50)/1000))
	q := models.OptionQuote{
		Symbol:      c.Symbol,
		Expiry:      c.Expiry,
		Strike:      c.Strike,
		Kind:        c.Kind,
		Bid:         cents(math.Max(mid-spread/2, 0)),
		Ask:         cents(mid + spread/2),
		Mid:         cents(mid),
		IV:          decimal.NewFromFloat(iv).Round(4).InexactFloat64(),
		LastUpdated: m.today,
	}
	return q, nil
}

// GetChain quotes both kinds at every listed strike.
func (m *MockSource) GetChain(ctx context.Context, symbol string, expiry time.Time) (models.OptionChain, error) {
	strikes, err := m.GetStrikes(ctx, symbol, expiry)
	if err != nil {
		return models.OptionChain{}, err
	}
	chain := models.OptionChain{
		Symbol:    symbol,
		SpotPrice: m.spotFor(symbol),
		Expiry:    expiry,
		Strikes:   make([]models.OptionStrike, 0, len(strikes)),
	}
	for _, k := range strikes {
		call, err := m.GetQuote(ctx, models.OptionContract{Symbol: symbol, Expiry: expiry, Strike: k, Kind: models.OptionKindCall})
		if err != nil {
			return models.OptionChain{}, err
		}
		put, err := m.GetQuote(ctx, models.OptionContract{Symbol: symbol, Expiry: expiry, Strike: k, Kind: models.OptionKindPut})
		if err != nil {
			return models.OptionChain{}, err
		}
		chain.Strikes = append(chain.Strikes, models.OptionStrike{Strike: k, Call: &call, Put: &put})
	}
	return chain, nil
}

func seed(key string) uint32 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint32(sum[:4])
}

func cents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
