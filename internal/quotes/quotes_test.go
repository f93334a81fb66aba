package quotes

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

var today = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) // Thursday

func newTestSource() *MockSource {
	return NewMockSource(MockConfig{
		Spots:        map[string]float64{"spy": 100},
		Today:        today,
		RiskFreeRate: 0.03,
	})
}

func contract(strike float64, kind models.OptionKind) models.OptionContract {
	return models.OptionContract{Symbol: "SPY", Expiry: today.AddDate(0, 0, 36), Strike: strike, Kind: kind}
}

func TestMockSource_Deterministic(t *testing.T) {
	ctx := context.Background()
	a, err := newTestSource().GetQuote(ctx, contract(100, models.OptionKindCall))
	if err != nil {
		t.Fatal(err)
	}
	b, err := newTestSource().GetQuote(ctx, contract(100, models.OptionKindCall))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("quotes differ:\n%+v\n%+v", a, b)
	}
}

func TestMockSource_ExpiriesAreWeeklyFridays(t *testing.T) {
	exps, err := newTestSource().GetExpiries(context.Background(), "SPY")
	if err != nil {
		t.Fatal(err)
	}
	if len(exps) != DefaultMockExpiries {
		t.Fatalf("got %d expiries, want %d", len(exps), DefaultMockExpiries)
	}
	if want := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC); !exps[0].Equal(want) {
		t.Errorf("first expiry = %s, want %s", exps[0].Format(models.DateLayout), want.Format(models.DateLayout))
	}
	for i, e := range exps {
		if e.Weekday() != time.Friday {
			t.Errorf("expiry %d is a %s", i, e.Weekday())
		}
	}
}

func TestMockSource_StrikesAroundSpot(t *testing.T) {
	strikes, err := newTestSource().GetStrikes(context.Background(), "SPY", today.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{75, 80, 85, 90, 95, 100, 105, 110, 115, 120, 125}
	if !reflect.DeepEqual(strikes, want) {
		t.Errorf("strikes = %v, want %v", strikes, want)
	}
}

func TestMockSource_ChainCoversBothKinds(t *testing.T) {
	chain, err := newTestSource().GetChain(context.Background(), "SPY", today.AddDate(0, 0, 8))
	if err != nil {
		t.Fatal(err)
	}
	if chain.SpotPrice != 100 || len(chain.Strikes) != 11 {
		t.Fatalf("chain spot=%.2f strikes=%d", chain.SpotPrice, len(chain.Strikes))
	}
	for _, s := range chain.Strikes {
		if s.Call == nil || s.Put == nil {
			t.Fatalf("strike %.2f missing a side", s.Strike)
		}
		if s.Call.Kind != models.OptionKindCall || s.Put.Kind != models.OptionKindPut {
			t.Errorf("strike %.2f kinds = %s/%s", s.Strike, s.Call.Kind, s.Put.Kind)
		}
	}
}

func TestMockSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestSource().GetQuote(ctx, contract(100, models.OptionKindPut)); err == nil {
		t.Error("expected context error")
	}
}

// Property: mock quotes are well-formed for any listed-looking strike.
func TestProperty_MockQuotesWellFormed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	src := newTestSource()

	properties.Property("bid <= mid <= ask and IV in [0.1, 0.3)", prop.ForAll(
		func(strike float64, call bool) bool {
			kind := models.OptionKindPut
			if call {
				kind = models.OptionKindCall
			}
			q, err := src.GetQuote(context.Background(), contract(strike, kind))
			if err != nil {
				return false
			}
			return q.Validate() == nil && q.IV >= 0.1 && q.IV < 0.3
		},
		gen.Float64Range(50, 150),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

type stubSource struct {
	*MockSource
	fail map[float64]bool
	noIV map[float64]bool
}

func (s stubSource) GetQuote(ctx context.Context, c models.OptionContract) (models.OptionQuote, error) {
	if s.fail[c.Strike] {
		return models.OptionQuote{}, apperrors.NewQuoteError(c.Symbol, c.Expiry.Format(models.DateLayout), c.Strike, string(c.Kind), nil)
	}
	q, err := s.MockSource.GetQuote(ctx, c)
	if s.noIV[c.Strike] {
		q.IV = 0
	}
	return q, err
}

func strangle() models.Strategy {
	return models.Strategy{
		Name:      "strangle",
		Underlier: models.Underlier{Symbol: "SPY", Spot: 100, Multiplier: 100},
		Legs: []models.OptionLeg{
			{Contract: contract(95, models.OptionKindPut), Side: models.OrderSideSell, Quantity: 1},
			{Contract: contract(105, models.OptionKindCall), Side: models.OrderSideSell, Quantity: 1, EntryPrice: models.Float(1.25)},
		},
	}
}

func TestResolveMarketState(t *testing.T) {
	ctx := context.Background()
	s := strangle()

	m, err := ResolveMarketState(ctx, newTestSource(), s, ResolveOptions{RiskFreeRate: 0.03, ValuationDate: today})
	if err != nil {
		t.Fatalf("ResolveMarketState: %v", err)
	}
	if len(m.Volatilities) != 2 || m.FlatVolatility != nil {
		t.Fatalf("market = %+v", m)
	}
	for i, v := range m.Volatilities {
		q, _ := newTestSource().GetQuote(ctx, s.Legs[i].Contract)
		if v != q.IV {
			t.Errorf("vol[%d] = %v, want quoted IV %v", i, v, q.IV)
		}
	}
}

func TestResolveMarketState_Unavailable(t *testing.T) {
	ctx := context.Background()
	src := stubSource{MockSource: newTestSource(), fail: map[float64]bool{105: true}}

	_, err := ResolveMarketState(ctx, src, strangle(), ResolveOptions{ValuationDate: today})
	if !apperrors.Is(err, apperrors.ErrQuoteUnavailable) {
		t.Fatalf("err = %v, want ErrQuoteUnavailable", err)
	}

	m, err := ResolveMarketState(ctx, src, strangle(), ResolveOptions{ValuationDate: today, FallbackVolatility: models.Float(0.25)})
	if err != nil {
		t.Fatalf("with fallback: %v", err)
	}
	if m.Volatilities[1] != 0.25 {
		t.Errorf("fallback vol = %v, want 0.25", m.Volatilities[1])
	}
}

func TestResolveMarketState_MissingIV(t *testing.T) {
	src := stubSource{MockSource: newTestSource(), noIV: map[float64]bool{95: true}}
	_, err := ResolveMarketState(context.Background(), src, strangle(), ResolveOptions{ValuationDate: today})
	if !apperrors.Is(err, apperrors.ErrMissingVolatility) {
		t.Fatalf("err = %v, want ErrMissingVolatility", err)
	}
}

func TestEntryPricesFromQuotes(t *testing.T) {
	s := strangle()
	filled, err := EntryPricesFromQuotes(context.Background(), newTestSource(), s)
	if err != nil {
		t.Fatal(err)
	}
	if s.Legs[0].HasEntryPrice() {
		t.Error("source strategy was mutated")
	}
	q, _ := newTestSource().GetQuote(context.Background(), s.Legs[0].Contract)
	if !filled.Legs[0].HasEntryPrice() || *filled.Legs[0].EntryPrice != q.Mid {
		t.Errorf("leg 0 entry = %v, want mid %v", filled.Legs[0].EntryPrice, q.Mid)
	}
	if *filled.Legs[1].EntryPrice != 1.25 {
		t.Errorf("existing entry price overwritten: %v", *filled.Legs[1].EntryPrice)
	}
}

// barrierSource blocks each quote until `want` requests are in flight.
type barrierSource struct {
	*MockSource
	want    int
	mu      sync.Mutex
	waiting int
	release chan struct{}
}

func (b *barrierSource) GetQuote(ctx context.Context, c models.OptionContract) (models.OptionQuote, error) {
	b.mu.Lock()
	b.waiting++
	if b.waiting == b.want {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
		return models.OptionQuote{}, ctx.Err()
	}
	return b.MockSource.GetQuote(ctx, c)
}

func TestFetchLegQuotes_DefaultRunsOneRequestPerLeg(t *testing.T) {
	n := runtime.GOMAXPROCS(0) + 2
	s := strangle()
	s.Legs = nil
	for i := 0; i < n; i++ {
		s.Legs = append(s.Legs, models.OptionLeg{Contract: contract(80+float64(i%60), models.OptionKindCall), Side: models.OrderSideBuy, Quantity: 1})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	src := &barrierSource{MockSource: newTestSource(), want: n, release: make(chan struct{})}

	_, errs := FetchLegQuotes(ctx, src, s, 0)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("leg %d: %v", i, err)
		}
	}
}
