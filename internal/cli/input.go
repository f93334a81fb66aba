package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/logging"
	"delta-spread/internal/models"
	"delta-spread/internal/quotes"
	"delta-spread/internal/strategy"
)

// addStrategyFlags registers the flags that describe a strategy.
func addStrategyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("symbol", "s", "SPY", "Underlier symbol")
	cmd.Flags().Float64("spot", 0, "Underlier spot price (default: from quote source)")
	cmd.Flags().StringArrayP("leg", "l", nil, "Leg spec side:qty:kind:strike[@price][:expiry] (repeatable)")
	cmd.Flags().StringP("file", "f", "", "Strategy TOML file")
	cmd.Flags().StringP("template", "t", "", "Strategy template name (see 'strategy templates')")
	cmd.Flags().String("trade", "", "Saved trade ID or name")
	cmd.Flags().String("expiry", "", "Default expiry YYYY-MM-DD (default: nearest listed)")
	cmd.Flags().Float64("width", 0, "Template strike width (default: listed strike step)")
	cmd.Flags().Int("qty", 1, "Template quantity")
	cmd.Flags().Bool("same-expiry", false, "Require all legs to share one expiry")
	cmd.Flags().Bool("quote-entries", false, "Fill missing entry prices from quote mids")
}

// addMarketFlags registers the flags that override market inputs.
func addMarketFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("vol", 0, "Flat volatility for every leg, e.g. 0.25 (default: quoted IV)")
	cmd.Flags().Float64("rate", -1, "Risk-free rate (default: from config)")
	cmd.Flags().String("date", "", "Valuation date YYYY-MM-DD (default: today)")
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 30*time.Second)
}

// loadStrategy builds the strategy described by the command's flags.
func (app *App) loadStrategy(ctx context.Context, cmd *cobra.Command) (models.Strategy, error) {
	file, _ := cmd.Flags().GetString("file")
	tmpl, _ := cmd.Flags().GetString("template")
	tradeRef, _ := cmd.Flags().GetString("trade")
	legs, _ := cmd.Flags().GetStringArray("leg")

	sources := 0
	for _, set := range []bool{file != "", tmpl != "", tradeRef != "", len(legs) > 0} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return models.Strategy{}, apperrors.NewValidationError("strategy", sources, "give exactly one of --leg, --file, --template or --trade")
	}

	var (
		s   models.Strategy
		err error
	)
	switch {
	case file != "":
		s, err = strategy.LoadFile(file)
	case tradeRef != "":
		s, err = app.loadTrade(ctx, tradeRef)
	case tmpl != "":
		s, err = app.buildTemplate(ctx, cmd, tmpl)
	default:
		s, err = app.buildFromLegs(ctx, cmd, legs)
	}
	if err != nil {
		return models.Strategy{}, err
	}

	if cmd.Flags().Changed("spot") {
		spot, _ := cmd.Flags().GetFloat64("spot")
		s = s.WithUnderlier(s.Underlier.WithSpot(spot))
	}
	if sameExpiry, _ := cmd.Flags().GetBool("same-expiry"); sameExpiry {
		s.Constraints.SameExpiry = true
	}
	if err := s.Validate(); err != nil {
		return models.Strategy{}, err
	}

	if fill, _ := cmd.Flags().GetBool("quote-entries"); fill {
		s, err = quotes.EntryPricesFromQuotes(ctx, app.Source, s)
		if err != nil {
			return models.Strategy{}, fmt.Errorf("filling entry prices: %w", err)
		}
	}
	return s, nil
}

func (app *App) loadTrade(ctx context.Context, ref string) (models.Strategy, error) {
	svc, err := app.Trades()
	if err != nil {
		return models.Strategy{}, err
	}
	t, err := svc.Load(ctx, ref)
	if err != nil {
		return models.Strategy{}, err
	}
	return t.Strategy, nil
}

func (app *App) underlier(ctx context.Context, cmd *cobra.Command) (models.Underlier, error) {
	symbol, _ := cmd.Flags().GetString("symbol")
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	spot, _ := cmd.Flags().GetFloat64("spot")
	if !cmd.Flags().Changed("spot") {
		var err error
		if spot, err = app.Source.GetSpot(ctx, symbol); err != nil {
			return models.Underlier{}, fmt.Errorf("getting spot for %s: %w", symbol, err)
		}
	}
	return models.Underlier{Symbol: symbol, Spot: spot, Multiplier: 100, Currency: "USD"}, nil
}

func (app *App) defaultExpiry(ctx context.Context, cmd *cobra.Command, symbol string) (time.Time, error) {
	if text, _ := cmd.Flags().GetString("expiry"); text != "" {
		expiry, err := time.Parse(models.DateLayout, text)
		if err != nil {
			return time.Time{}, apperrors.NewValidationError("expiry", text, "expected YYYY-MM-DD")
		}
		return expiry, nil
	}
	expiries, err := app.Source.GetExpiries(ctx, symbol)
	if err != nil {
		return time.Time{}, err
	}
	if len(expiries) == 0 {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrQuoteUnavailable, "no expiries listed for %s", symbol)
	}
	return expiries[0], nil
}

func (app *App) buildFromLegs(ctx context.Context, cmd *cobra.Command, specs []string) (models.Strategy, error) {
	u, err := app.underlier(ctx, cmd)
	if err != nil {
		return models.Strategy{}, err
	}
	expiry, err := app.defaultExpiry(ctx, cmd, u.Symbol)
	if err != nil {
		return models.Strategy{}, err
	}

	app.Manager.Reset()
	for i, spec := range specs {
		leg, err := strategy.ParseLeg(u.Symbol, spec, app.Manager.ExpiryForNewLeg(expiry))
		if err != nil {
			return models.Strategy{}, fmt.Errorf("leg %d: %w", i+1, err)
		}
		if i == 0 {
			s := app.Manager.Create(u.Symbol+" custom", u, leg)
			if sameExpiry, _ := cmd.Flags().GetBool("same-expiry"); sameExpiry {
				s.Constraints.SameExpiry = true
				app.Manager.Load(s)
			}
			continue
		}
		if _, err := app.Manager.AddLeg(leg); err != nil {
			return models.Strategy{}, fmt.Errorf("leg %d: %w", i+1, err)
		}
	}

	s, ok := app.Manager.Current()
	if !ok {
		return models.Strategy{}, apperrors.ErrEmptyStrategy
	}
	return s, nil
}

func (app *App) buildTemplate(ctx context.Context, cmd *cobra.Command, name string) (models.Strategy, error) {
	t, ok := strategy.LookupTemplate(name)
	if !ok {
		return models.Strategy{}, apperrors.NewValidationError("template", name, "unknown template")
	}
	u, err := app.underlier(ctx, cmd)
	if err != nil {
		return models.Strategy{}, err
	}
	expiry, err := app.defaultExpiry(ctx, cmd, u.Symbol)
	if err != nil {
		return models.Strategy{}, err
	}

	width, _ := cmd.Flags().GetFloat64("width")
	if width <= 0 {
		width, err = app.strikeStep(ctx, u.Symbol, expiry)
		if err != nil {
			return models.Strategy{}, err
		}
	}
	qty, _ := cmd.Flags().GetInt("qty")

	return t.Build(strategy.TemplateParams{
		Underlier: u,
		Expiry:    expiry,
		Width:     width,
		Quantity:  qty,
	})
}

// strikeStep returns the spacing of listed strikes around the money.
func (app *App) strikeStep(ctx context.Context, symbol string, expiry time.Time) (float64, error) {
	strikes, err := app.Source.GetStrikes(ctx, symbol, expiry)
	if err != nil {
		return 0, err
	}
	if len(strikes) < 2 {
		return 0, apperrors.NewValidationError("width", 0, "cannot infer strike width; pass --width")
	}
	mid := len(strikes) / 2
	return strikes[mid] - strikes[mid-1], nil
}

// resolveMarket builds market inputs from quotes or the --vol override.
func (app *App) resolveMarket(ctx context.Context, cmd *cobra.Command, s models.Strategy) (models.MarketState, error) {
	valuation := app.Today
	if text, _ := cmd.Flags().GetString("date"); text != "" {
		d, err := time.Parse(models.DateLayout, text)
		if err != nil {
			return models.MarketState{}, apperrors.NewValidationError("date", text, "expected YYYY-MM-DD")
		}
		valuation = d
	}

	opts := app.Config.ResolveOptions(valuation)
	if rate, _ := cmd.Flags().GetFloat64("rate"); cmd.Flags().Changed("rate") {
		opts.RiskFreeRate = rate
	}

	if cmd.Flags().Changed("vol") {
		vol, _ := cmd.Flags().GetFloat64("vol")
		return models.MarketState{
			FlatVolatility: &vol,
			RiskFreeRate:   opts.RiskFreeRate,
			ValuationDate:  valuation,
		}, nil
	}

	start := time.Now()
	market, err := quotes.ResolveMarketState(ctx, app.Source, s, opts)
	logging.LogQuoteFetch(logging.WithSymbol(app.Logger, s.Underlier.Symbol), s.Underlier.Symbol, len(s.Legs), time.Since(start), err)
	if err != nil {
		return models.MarketState{}, err
	}
	return market, nil
}
