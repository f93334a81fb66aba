package cli

import (
	"time"

	"github.com/spf13/cobra"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/pricing"
)

// addPricingCommands adds single-option pricing commands.
func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPriceCmd(app))
}

type optionInputs struct {
	Kind   models.OptionKind `json:"kind"`
	Spot   float64           `json:"spot"`
	Strike float64           `json:"strike"`
	Years  float64           `json:"years"`
	Rate   float64           `json:"rate"`
}

func addOptionFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "call", "Option kind: call or put")
	cmd.Flags().Float64("spot", 0, "Underlier price")
	cmd.Flags().Float64("strike", 0, "Strike price")
	cmd.Flags().String("expiry", "", "Expiry date YYYY-MM-DD")
	cmd.Flags().Int("days", 30, "Calendar days to expiry (ignored with --expiry)")
	cmd.Flags().Float64("rate", -1, "Risk-free rate (default: from config)")
	cmd.MarkFlagRequired("spot")
	cmd.MarkFlagRequired("strike")
}

func (app *App) optionInputs(cmd *cobra.Command) (optionInputs, error) {
	kindText, _ := cmd.Flags().GetString("kind")
	kind, err := models.ParseOptionKind(kindText)
	if err != nil {
		return optionInputs{}, apperrors.NewValidationError("kind", kindText, err.Error())
	}
	in := optionInputs{Kind: kind, Rate: app.Config.Pricing.RiskFreeRate}
	in.Spot, _ = cmd.Flags().GetFloat64("spot")
	in.Strike, _ = cmd.Flags().GetFloat64("strike")
	if cmd.Flags().Changed("rate") {
		in.Rate, _ = cmd.Flags().GetFloat64("rate")
	}

	if text, _ := cmd.Flags().GetString("expiry"); text != "" {
		expiry, err := time.Parse(models.DateLayout, text)
		if err != nil {
			return optionInputs{}, apperrors.NewValidationError("expiry", text, "expected YYYY-MM-DD")
		}
		in.Years = pricing.YearsBetween(app.Today, expiry)
	} else {
		days, _ := cmd.Flags().GetInt("days")
		in.Years = float64(days) / pricing.DaysPerYear
	}
	return in, nil
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a single European option",
		Long: `Price a single European option with Black-Scholes and show its Greeks.

Theta is per calendar day; vega and rho are per one percentage point.`,
		Example: `  deltaspread price --kind call --spot 100 --strike 105 --vol 0.2 --days 45
  deltaspread price --kind put --spot 450 --strike 440 --vol 0.18 --expiry 2026-12-18`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := app.optionInputs(cmd)
			if err != nil {
				return err
			}
			vol, _ := cmd.Flags().GetFloat64("vol")

			res, err := pricing.PriceAndGreeks(in.Kind, in.Spot, in.Strike, in.Years, vol, in.Rate)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"inputs":     in,
					"volatility": vol,
					"price":      res.Price,
					"greeks":     res.Greeks,
				})
			}
			output.Bold("%s %s  spot %s  %.0f days", in.Kind, FormatStrike(in.Strike), FormatPrice(in.Spot), in.Years*pricing.DaysPerYear)
			output.Printf("  Price: %s\n", FormatPrice(res.Price))
			output.Printf("  %s\n", FormatGreeks(res.Greeks))
			output.Dim("  σ %s  r %s", FormatIV(vol), FormatRate(in.Rate))
			return nil
		},
	}

	addOptionFlags(cmd)
	cmd.Flags().Float64("vol", 0.2, "Volatility, e.g. 0.25")

	cmd.AddCommand(newImpliedVolCmd(app))
	return cmd
}

func newImpliedVolCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iv",
		Short: "Solve implied volatility from an option premium",
		Example: `  deltaspread price iv --kind call --spot 100 --strike 100 --premium 4.5 --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := app.optionInputs(cmd)
			if err != nil {
				return err
			}
			premium, _ := cmd.Flags().GetFloat64("premium")

			iv, err := pricing.ImpliedVolatility(in.Kind, in.Spot, in.Strike, in.Years, in.Rate, premium)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"inputs":             in,
					"premium":            premium,
					"implied_volatility": iv,
				})
			}
			output.Printf("Implied volatility: %s\n", output.BoldText(FormatIV(iv)))
			return nil
		},
	}

	addOptionFlags(cmd)
	cmd.Flags().Float64("premium", 0, "Observed option price")
	cmd.MarkFlagRequired("premium")
	return cmd
}
