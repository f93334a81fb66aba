package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"delta-spread/internal/aggregation"
	"delta-spread/internal/logging"
	"delta-spread/internal/models"
	"delta-spread/internal/presenter"
	"delta-spread/internal/pricing"
	"delta-spread/internal/strategy"
)

// addAnalysisCommands adds strategy analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newPayoffCmd(app))
}

// analysisResult is the JSON form of an analysis.
type analysisResult struct {
	Strategy       models.Strategy        `json:"strategy"`
	Market         models.MarketState     `json:"market"`
	Legs           []models.PricedLeg     `json:"legs"`
	Metrics        models.StrategyMetrics `json:"metrics"`
	MarginEstimate float64                `json:"margin_estimate"`
	SavedAs        string                 `json:"saved_as,omitempty"`
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a multi-leg strategy",
		Long: `Analyze a multi-leg options strategy.

Shows net debit/credit, max profit and loss, breakevens at expiration,
portfolio Greeks, probability of profit and a margin estimate.`,
		Example: `  deltaspread analyze -s SPY -l buy:1:call:450 -l sell:1:call:460
  deltaspread analyze --template iron_condor --symbol QQQ --width 5
  deltaspread analyze --file condor.toml --vol 0.22
  deltaspread analyze --trade "SPY condor" --date 2026-11-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			s, err := app.loadStrategy(ctx, cmd)
			if err != nil {
				return err
			}
			market, err := app.resolveMarket(ctx, cmd, s)
			if err != nil {
				return err
			}

			legs, err := pricing.PriceStrategy(s, market)
			if err != nil {
				return err
			}
			metrics, err := app.Engine.ComputeMetrics(s, market)
			if err != nil {
				return err
			}
			logging.LogMetrics(logging.WithOperation(app.Logger, "analyze"), s, metrics)

			result := analysisResult{
				Strategy:       s,
				Market:         market,
				Legs:           legs,
				Metrics:        metrics,
				MarginEstimate: aggregation.EstimateMargin(s, metrics),
			}

			if name, _ := cmd.Flags().GetString("save"); name != "" {
				svc, err := app.Trades()
				if err != nil {
					return err
				}
				notes, _ := cmd.Flags().GetString("notes")
				if result.SavedAs, err = svc.Save(ctx, s, name, notes); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			displayAnalysis(output, result)
			if result.SavedAs != "" {
				output.Success("✓ Saved as trade %s", result.SavedAs)
			}
			return nil
		},
	}

	addStrategyFlags(cmd)
	addMarketFlags(cmd)
	cmd.Flags().String("save", "", "Save the strategy as a named trade")
	cmd.Flags().String("notes", "", "Notes to store with --save")

	return cmd
}

func displayAnalysis(output *Output, r analysisResult) {
	s, m := r.Strategy, r.Metrics
	output.Bold("%s  %s @ %s", s.Name, s.Underlier.Symbol, FormatPrice(s.Underlier.Spot))
	output.Dim("Valuation %s  rate %s  x%d", FormatDate(r.Market.ValuationDate), FormatRate(r.Market.RiskFreeRate), s.Underlier.Multiplier)
	output.Println()

	table := NewTable(output, "#", "Leg", "Expiry", "DTE", "IV", "Premium", "Theo", "Delta")
	for i, pl := range r.Legs {
		premium := "-"
		if pl.Leg.EntryPrice != nil {
			premium = FormatPrice(*pl.Leg.EntryPrice)
		}
		table.AddRow(
			fmt.Sprintf("%d", i+1),
			FormatLegSide(pl.Leg),
			FormatDate(pl.Leg.Contract.Expiry),
			FormatDays(r.Market.ValuationDate, pl.Leg.Contract.Expiry),
			FormatIV(pl.Volatility),
			premium,
			FormatPrice(pl.UnitPrice),
			fmt.Sprintf("%.2f", pl.SignedGreeks.Delta),
		)
	}
	table.Render()
	output.Println()

	panel := presenter.PrepareMetrics(m)
	output.Box("Metrics", []string{
		"Net:          " + output.PnL(m.NetDebitCredit, FormatNet(m.NetDebitCredit)),
		"Max profit:   " + boundPnL(output, m.MaxProfit, 1, panel.MaxProfitText),
		"Max loss:     " + boundPnL(output, m.MaxLoss, -1, panel.MaxLossText),
		"Breakevens:   " + panel.BreakevensText,
		"P(profit):    " + panel.PopText,
		"Margin est.:  " + FormatMoney(r.MarginEstimate),
	})
	output.Println()
	output.Printf("  %s\n", FormatGreeks(m.Greeks))
	output.Dim("  Domain %s - %s  σ %s  T %.3fy", FormatPrice(m.Domain.Low), FormatPrice(m.Domain.High),
		FormatIV(m.Volatility), m.YearsToExpiry)
	output.Println()

	for _, leg := range s.Legs {
		output.Dim("  %s", strategy.FormatLeg(leg))
	}
}

// boundPnL colors a max profit or loss by its sign. Unbounded values take the
// sign of the tail they describe.
func boundPnL(output *Output, b models.Bound, tail float64, text string) string {
	if b.Unbounded {
		return output.PnL(tail, text)
	}
	return output.PnL(b.Value, text)
}
