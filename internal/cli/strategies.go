package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"delta-spread/internal/strategy"
)

// addStrategyCommands adds template and strategy file commands.
func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Strategy templates and files",
	}
	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newBuildCmd(app))
	rootCmd.AddCommand(cmd)
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List strategy templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			templates := strategy.Templates()

			if output.IsJSON() {
				type entry struct {
					Name        string `json:"name"`
					Description string `json:"description"`
					Legs        int    `json:"legs"`
				}
				out := make([]entry, len(templates))
				for i, t := range templates {
					out[i] = entry{Name: t.Name, Description: t.Description, Legs: t.Legs()}
				}
				return output.JSON(out)
			}

			table := NewTable(output, "Template", "Legs", "Description")
			for _, t := range templates {
				table.AddRow(t.Name, fmt.Sprintf("%d", t.Legs()), t.Description)
			}
			table.Render()
			return nil
		},
	}
}

func newBuildCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a strategy and print or save it as TOML",
		Long: `Build a strategy from a template or leg specs and print its legs.
With --out the strategy is written as a TOML file that --file accepts.`,
		Example: `  deltaspread strategy build --template iron_condor --symbol SPY --out condor.toml
  deltaspread strategy build -l buy:1:call:100 -l sell:1:call:105 --quote-entries`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			s, err := app.loadStrategy(ctx, cmd)
			if err != nil {
				return err
			}

			if path, _ := cmd.Flags().GetString("out"); path != "" {
				if err := strategy.SaveFile(path, s); err != nil {
					return err
				}
				if !output.IsJSON() {
					output.Success("✓ Wrote %s", path)
				}
			}

			if output.IsJSON() {
				return output.JSON(s)
			}
			output.Bold("%s  %s @ %s", s.Name, s.Underlier.Symbol, FormatPrice(s.Underlier.Spot))
			for _, leg := range s.Legs {
				output.Printf("  %s\n", strategy.FormatLeg(leg))
			}
			return nil
		},
	}

	addStrategyFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "Write the strategy to a TOML file")
	return cmd
}
