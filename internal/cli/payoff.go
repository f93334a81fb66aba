package cli

import (
	"math"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/presenter"
)

func newPayoffCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payoff",
		Short: "Draw the payoff curve of a strategy",
		Long: `Draw the payoff curve of a strategy at expiration (default) or on the
valuation date, and optionally export the samples as CSV.`,
		Example: `  deltaspread payoff --template straddle
  deltaspread payoff -l buy:1:put:95 -l sell:1:put:90 --now
  deltaspread payoff --file condor.toml --csv curve.csv --samples 500`,
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

			domain, err := app.Engine.DefaultDomain(s, market)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("low") {
				domain.Low, _ = cmd.Flags().GetFloat64("low")
			}
			if cmd.Flags().Changed("high") {
				domain.High, _ = cmd.Flags().GetFloat64("high")
			}

			now, _ := cmd.Flags().GetBool("now")
			samples, _ := cmd.Flags().GetInt("samples")
			curve, err := app.Engine.ComputeCurve(s, market, domain, samples, !now)
			if err != nil {
				return err
			}

			if path, _ := cmd.Flags().GetString("csv"); path != "" {
				if err := writeCurveCSV(path, curve.Points, output); err != nil {
					return err
				}
				if path == "-" {
					return nil
				}
			}

			if output.IsJSON() {
				return output.JSON(curve)
			}

			rows, _ := cmd.Flags().GetInt("rows")
			cols, _ := cmd.Flags().GetInt("cols")
			chartCurve, err := app.Engine.ComputeCurve(s, market, domain, cols, !now)
			if err != nil {
				return err
			}
			chart := presenter.PrepareChart(chartCurve, s.Strikes(), s.Underlier.Spot)

			title := "at expiration"
			if now {
				title = "on " + FormatDate(market.ValuationDate)
			}
			output.Bold("%s payoff %s", s.Name, title)
			for _, line := range RenderChart(chart, rows) {
				output.Println(line)
			}
			return nil
		},
	}

	addStrategyFlags(cmd)
	addMarketFlags(cmd)
	cmd.Flags().Bool("now", false, "Value the curve on the valuation date instead of at expiration")
	cmd.Flags().Int("samples", 0, "Curve samples for CSV/JSON output (default: from config)")
	cmd.Flags().Float64("low", 0, "Lowest underlier price (default: derived domain)")
	cmd.Flags().Float64("high", 0, "Highest underlier price (default: derived domain)")
	cmd.Flags().String("csv", "", "Write curve samples as CSV to a file, or - for stdout")
	cmd.Flags().Int("rows", 20, "Chart height in rows")
	cmd.Flags().Int("cols", 72, "Chart width in columns")

	return cmd
}

func writeCurveCSV(path string, points []models.CurvePoint, output *Output) error {
	if path == "-" {
		return gocsv.Marshal(&points, output.writer)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewDataError("csv", path, "failed to create file", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&points, f); err != nil {
		return apperrors.NewDataError("csv", path, "failed to write curve", err)
	}
	output.Success("✓ Wrote %d points to %s", len(points), path)
	return nil
}

// RenderChart draws chart data as text, one string per row plus an x-axis
// line. Each column is one sample; '*' marks the curve, '-' the zero line,
// '|' strikes and ':' the current price.
func RenderChart(cd presenter.ChartData, rows int) []string {
	if rows < 3 {
		rows = 3
	}
	cols := len(cd.Prices)
	if cols == 0 {
		return []string{"(no data)"}
	}

	yMin, yMax := math.Min(cd.YMin, 0), math.Max(cd.YMax, 0)
	if yMax == yMin {
		yMax, yMin = yMin+1, yMin-1
	}
	rowOf := func(v float64) int {
		r := int(math.Round((yMax - v) / (yMax - yMin) * float64(rows-1)))
		return max(0, min(rows-1, r))
	}
	span := cd.Prices[cols-1] - cd.Prices[0]
	colOf := func(price float64) int {
		if span <= 0 {
			return 0
		}
		return int(math.Round((price - cd.Prices[0]) / span * float64(cols-1)))
	}

	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", cols))
	}
	zero := rowOf(0)
	for c := range grid[zero] {
		grid[zero][c] = '-'
	}
	for _, k := range cd.StrikeLines {
		if c := colOf(k); c >= 0 && c < cols {
			for r := range grid {
				if grid[r][c] == ' ' {
					grid[r][c] = '|'
				}
			}
		}
	}
	if c := colOf(cd.CurrentPrice); c >= 0 && c < cols {
		for r := range grid {
			if grid[r][c] == ' ' || grid[r][c] == '|' {
				grid[r][c] = ':'
			}
		}
	}
	for c, pnl := range cd.PnLs {
		grid[rowOf(pnl)][c] = '*'
	}

	labelWidth := max(len(FormatPrice(yMax)), len(FormatPrice(yMin)))
	lines := make([]string, 0, rows+1)
	for r, row := range grid {
		label := ""
		switch r {
		case 0:
			label = FormatPrice(yMax)
		case zero:
			label = "0"
		case rows - 1:
			label = FormatPrice(yMin)
		}
		lines = append(lines, PadLeft(label, labelWidth)+" "+string(row))
	}

	left, right := FormatPrice(cd.Prices[0]), FormatPrice(cd.Prices[cols-1])
	gap := max(1, cols-len(left)-len(right))
	lines = append(lines, strings.Repeat(" ", labelWidth+1)+left+strings.Repeat(" ", gap)+right)
	return lines
}
