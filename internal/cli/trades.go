package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/quotes"
	"delta-spread/internal/strategy"
)

// addTradeCommands adds saved-trade commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Manage saved trades",
		Long:  "Save, list, show, edit and delete strategies stored in the local trade database.",
	}

	cmd.AddCommand(newTradesListCmd(app))
	cmd.AddCommand(newTradesShowCmd(app))
	cmd.AddCommand(newTradesSaveCmd(app))
	cmd.AddCommand(newTradesEditCmd(app))
	cmd.AddCommand(newTradesDeleteCmd(app))

	rootCmd.AddCommand(cmd)
}

func newTradesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			svc, err := app.Trades()
			if err != nil {
				return err
			}
			symbol, _ := cmd.Flags().GetString("symbol")
			list, err := svc.List(ctx, symbol)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(list)
			}
			if len(list) == 0 {
				output.Dim("No saved trades")
				return nil
			}
			table := NewTable(output, "Name", "Symbol", "Legs", "Updated", "ID", "Notes")
			for _, t := range list {
				table.AddRow(t.Name, t.Symbol, strconv.Itoa(t.LegCount),
					t.UpdatedAt.Local().Format("2006-01-02 15:04"), t.ID[:8], TruncateString(t.Notes, 30))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringP("symbol", "s", "", "Only trades on this underlier")
	return cmd
}

func newTradesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a saved trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			svc, err := app.Trades()
			if err != nil {
				return err
			}
			t, err := svc.Load(ctx, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(t)
			}
			output.Bold("%s", t.Name)
			output.Dim("ID %s  created %s  updated %s", t.ID,
				t.CreatedAt.Local().Format(time.DateTime), t.UpdatedAt.Local().Format(time.DateTime))
			output.Printf("  %s @ %s x%d\n", t.Strategy.Underlier.Symbol, FormatPrice(t.Strategy.Underlier.Spot), t.Strategy.Underlier.Multiplier)
			for i, leg := range t.Strategy.Legs {
				output.Printf("  %d. %s\n", i+1, strategy.FormatLeg(leg))
			}
			if t.Notes != "" {
				output.Println()
				output.Println(t.Notes)
			}
			return nil
		},
	}
}

func newTradesSaveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a strategy as a named trade",
		Example: `  deltaspread trades save "SPY condor" --template iron_condor --quote-entries
  deltaspread trades save bullish -l buy:1:call:450@5.20 -l sell:1:call:460@2.10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			s, err := app.loadStrategy(ctx, cmd)
			if err != nil {
				return err
			}
			svc, err := app.Trades()
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")
			id, err := svc.Save(ctx, s, args[0], notes)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"id": id, "name": strings.TrimSpace(args[0])})
			}
			output.Success("✓ Saved trade %q (%s)", strings.TrimSpace(args[0]), id)
			return nil
		},
	}
	addStrategyFlags(cmd)
	cmd.Flags().String("notes", "", "Notes to store with the trade")
	return cmd
}

func newTradesEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Edit the legs of a saved trade",
		Long: `Edit the legs of a saved trade. Legs are numbered from 1 as shown by
'trades show'. A leg whose strike, kind or expiry changes loses its entry
price; use --quote-entries to refill it from quotes.`,
		Example: `  deltaspread trades edit "SPY condor" --strike 2=440 --strike 3=470
  deltaspread trades edit bullish --remove-leg 2 --add-leg sell:1:call:465
  deltaspread trades edit bullish --kind 1=put --quote-entries`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			svc, err := app.Trades()
			if err != nil {
				return err
			}
			t, err := svc.Load(ctx, args[0])
			if err != nil {
				return err
			}

			s, err := app.editStrategy(cmd, t.Strategy)
			if err != nil {
				return err
			}
			if fill, _ := cmd.Flags().GetBool("quote-entries"); fill {
				if s, err = quotes.EntryPricesFromQuotes(ctx, app.Source, s); err != nil {
					return err
				}
			}
			if err := s.Validate(); err != nil {
				return err
			}

			notes := t.Notes
			if cmd.Flags().Changed("notes") {
				notes, _ = cmd.Flags().GetString("notes")
			}
			if err := svc.Update(ctx, t.ID, s, notes); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(s)
			}
			output.Success("✓ Updated trade %q", t.Name)
			for i, leg := range s.Legs {
				output.Printf("  %d. %s\n", i+1, strategy.FormatLeg(leg))
			}
			return nil
		},
	}

	cmd.Flags().StringArray("strike", nil, "Move leg N to a strike, N=STRIKE (repeatable)")
	cmd.Flags().StringArray("kind", nil, "Switch leg N to call or put, N=KIND (repeatable)")
	cmd.Flags().StringArray("set-expiry", nil, "Move leg N to an expiry, N=YYYY-MM-DD (repeatable)")
	cmd.Flags().IntSlice("remove-leg", nil, "Remove leg N (repeatable)")
	cmd.Flags().StringArray("add-leg", nil, "Append a leg spec side:qty:kind:strike[@price][:expiry]")
	cmd.Flags().Bool("quote-entries", false, "Fill missing entry prices from quote mids")
	cmd.Flags().String("notes", "", "Replace the trade notes")
	return cmd
}

// editStrategy applies the edit flags through the strategy manager.
func (app *App) editStrategy(cmd *cobra.Command, s models.Strategy) (models.Strategy, error) {
	app.Manager.Load(s)

	edits := []struct {
		flag  string
		apply func(i int, value string) error
	}{
		{"strike", func(i int, value string) error {
			strike, err := strconv.ParseFloat(value, 64)
			if err != nil || strike <= 0 {
				return apperrors.NewValidationError("strike", value, "must be a positive number")
			}
			_, err = app.Manager.UpdateLegStrike(i, strike, nil)
			return err
		}},
		{"kind", func(i int, value string) error {
			kind, err := models.ParseOptionKind(value)
			if err != nil {
				return apperrors.NewValidationError("kind", value, err.Error())
			}
			_, err = app.Manager.UpdateLegKind(i, kind, nil)
			return err
		}},
		{"set-expiry", func(i int, value string) error {
			expiry, err := time.Parse(models.DateLayout, value)
			if err != nil {
				return apperrors.NewValidationError("expiry", value, "expected YYYY-MM-DD")
			}
			_, err = app.Manager.UpdateLegExpiry(i, expiry, nil)
			return err
		}},
	}
	for _, e := range edits {
		values, _ := cmd.Flags().GetStringArray(e.flag)
		for _, v := range values {
			i, value, err := parseLegAssignment(v)
			if err != nil {
				return models.Strategy{}, err
			}
			if err := e.apply(i, value); err != nil {
				return models.Strategy{}, fmt.Errorf("--%s %s: %w", e.flag, v, err)
			}
		}
	}

	removals, _ := cmd.Flags().GetIntSlice("remove-leg")
	sort.Sort(sort.Reverse(sort.IntSlice(removals)))
	for _, n := range removals {
		if _, ok, err := app.Manager.RemoveLeg(n - 1); err != nil {
			return models.Strategy{}, fmt.Errorf("--remove-leg %d: %w", n, err)
		} else if !ok {
			return models.Strategy{}, apperrors.Wrap(apperrors.ErrEmptyStrategy, "cannot remove every leg")
		}
	}

	adds, _ := cmd.Flags().GetStringArray("add-leg")
	for _, spec := range adds {
		var fallback time.Time
		if cur, ok := app.Manager.Current(); ok && len(cur.Legs) > 0 {
			fallback = cur.Legs[len(cur.Legs)-1].Contract.Expiry
		}
		leg, err := strategy.ParseLeg(s.Underlier.Symbol, spec, app.Manager.ExpiryForNewLeg(fallback))
		if err != nil {
			return models.Strategy{}, err
		}
		if _, err := app.Manager.AddLeg(leg); err != nil {
			return models.Strategy{}, err
		}
	}

	out, ok := app.Manager.Current()
	if !ok {
		return models.Strategy{}, apperrors.ErrNoStrategy
	}
	return out, nil
}

// parseLegAssignment parses "N=VALUE" with a 1-based leg number.
func parseLegAssignment(v string) (int, string, error) {
	n, value, ok := strings.Cut(v, "=")
	if !ok {
		return 0, "", apperrors.NewValidationError("edit", v, "expected N=VALUE")
	}
	i, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil || i < 1 {
		return 0, "", apperrors.NewValidationError("leg", n, "must be a leg number starting at 1")
	}
	return i - 1, strings.TrimSpace(value), nil
}

func newTradesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a saved trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			svc, err := app.Trades()
			if err != nil {
				return err
			}
			if err := svc.Delete(ctx, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"deleted": true})
			}
			output.Success("✓ Deleted trade %q", args[0])
			return nil
		},
	}
}
