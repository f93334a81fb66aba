package cli

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// addChainCommands adds option chain commands.
func addChainCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newExpiriesCmd(app))
}

func newChainCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <symbol>",
		Short: "Display an option chain",
		Long: `Display the option chain for a symbol and expiry from the quote source.

Shows bid/ask/mid and IV for calls and puts at each listed strike.`,
		Example: `  deltaspread chain SPY
  deltaspread chain QQQ --expiry 2026-10-23`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			var expiry time.Time
			if text, _ := cmd.Flags().GetString("expiry"); text != "" {
				var err error
				if expiry, err = time.Parse(models.DateLayout, text); err != nil {
					return apperrors.NewValidationError("expiry", text, "expected YYYY-MM-DD")
				}
			} else {
				expiries, err := app.Source.GetExpiries(ctx, symbol)
				if err != nil {
					return err
				}
				if len(expiries) == 0 {
					return apperrors.Wrapf(apperrors.ErrQuoteUnavailable, "no expiries listed for %s", symbol)
				}
				expiry = expiries[0]
			}

			chain, err := app.Source.GetChain(ctx, symbol, expiry)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(chain)
			}
			displayOptionChain(output, chain, app.Today)
			return nil
		},
	}

	cmd.Flags().String("expiry", "", "Expiry date YYYY-MM-DD (default: nearest)")
	return cmd
}

func displayOptionChain(output *Output, oc models.OptionChain, today time.Time) {
	if len(oc.Strikes) == 0 {
		output.Warning("Option chain is empty")
		return
	}

	output.Bold("Option Chain - %s", oc.Symbol)
	output.Printf("  Spot: %s  Expiry: %s (%s)\n\n", FormatPrice(oc.SpotPrice), FormatDate(oc.Expiry), FormatDays(today, oc.Expiry))

	// Nearest strike to spot is highlighted.
	atm := oc.Strikes[0].Strike
	for _, s := range oc.Strikes {
		if math.Abs(s.Strike-oc.SpotPrice) < math.Abs(atm-oc.SpotPrice) {
			atm = s.Strike
		}
	}

	table := NewTable(output, "Call Bid", "Call Ask", "Call IV", "Strike", "Put Bid", "Put Ask", "Put IV")
	for _, s := range oc.Strikes {
		strike := FormatStrike(s.Strike)
		if s.Strike == atm {
			strike = output.BoldText(strike)
		}
		row := []string{"-", "-", "-", strike, "-", "-", "-"}
		if s.Call != nil {
			row[0], row[1], row[2] = FormatPrice(s.Call.Bid), FormatPrice(s.Call.Ask), FormatIV(s.Call.IV)
		}
		if s.Put != nil {
			row[4], row[5], row[6] = FormatPrice(s.Put.Bid), FormatPrice(s.Put.Ask), FormatIV(s.Put.IV)
		}
		table.AddRow(row...)
	}
	table.Render()
}

func newExpiriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expiries <symbol>",
		Short: "List expiries and strikes for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			expiries, err := app.Source.GetExpiries(ctx, symbol)
			if err != nil {
				return err
			}

			type entry struct {
				Expiry  string    `json:"expiry"`
				Strikes []float64 `json:"strikes"`
			}
			out := make([]entry, 0, len(expiries))
			for _, e := range expiries {
				strikes, err := app.Source.GetStrikes(ctx, symbol, e)
				if err != nil {
					return err
				}
				out = append(out, entry{Expiry: FormatDate(e), Strikes: strikes})
			}

			if output.IsJSON() {
				return output.JSON(out)
			}
			spot, err := app.Source.GetSpot(ctx, symbol)
			if err != nil {
				return err
			}
			output.Bold("%s @ %s", symbol, FormatPrice(spot))
			for _, e := range out {
				if len(e.Strikes) == 0 {
					output.Printf("  %s  no strikes\n", e.Expiry)
					continue
				}
				lo, hi := e.Strikes[0], e.Strikes[len(e.Strikes)-1]
				output.Printf("  %s  %d strikes %s - %s\n", e.Expiry, len(e.Strikes), FormatStrike(lo), FormatStrike(hi))
			}
			return nil
		},
	}
}
