// Package presenter turns metrics and curves into display-ready values.
package presenter

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"delta-spread/internal/models"
)

// ChartPaddingRatio is the share of the price range added on each side of the x axis.
const ChartPaddingRatio = 0.02

// Unlimited is shown for unbounded profit or loss.
const Unlimited = "Unlimited"

// PanelMetrics holds the formatted metrics panel.
type PanelMetrics struct {
	NetText        string
	MaxProfitText  string
	MaxLossText    string
	BreakevensText string
	PopText        string
}

// ChartData is a payoff curve plus axis bounds and markers.
type ChartData struct {
	Prices       []float64
	PnLs         []float64
	XMin         float64
	XMax         float64
	YMin         float64
	YMax         float64
	StrikeLines  []float64
	CurrentPrice float64
}

// PrepareMetrics formats metrics for display. All money values are signed;
// net is positive for a credit and max loss is negative when money is at risk.
func PrepareMetrics(m models.StrategyMetrics) PanelMetrics {
	return PanelMetrics{
		NetText:        Money(m.NetDebitCredit),
		MaxProfitText:  boundText(m.MaxProfit),
		MaxLossText:    boundText(m.MaxLoss),
		BreakevensText: BreakevensText(m.Breakevens),
		PopText:        Percent(m.ProbabilityOfProfit),
	}
}

// PrepareChart computes axis bounds for a curve. An empty curve gets
// default bounds of [0, 1] x [-1, 1].
func PrepareChart(curve models.PayoffCurve, strikeLines []float64, currentPrice float64) ChartData {
	cd := ChartData{
		Prices:       make([]float64, len(curve.Points)),
		PnLs:         make([]float64, len(curve.Points)),
		StrikeLines:  append([]float64{}, strikeLines...),
		CurrentPrice: currentPrice,
	}
	if len(curve.Points) == 0 {
		cd.XMin, cd.XMax, cd.YMin, cd.YMax = 0, 1, -1, 1
		return cd
	}

	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, p := range curve.Points {
		cd.Prices[i] = p.Price
		cd.PnLs[i] = p.PnL
		xMin = math.Min(xMin, p.Price)
		xMax = math.Max(xMax, p.Price)
		yMin = math.Min(yMin, p.PnL)
		yMax = math.Max(yMax, p.PnL)
	}

	pad := ChartPaddingRatio * (xMax - xMin)
	cd.XMin = xMin - pad
	cd.XMax = xMax + pad
	cd.YMin = yMin
	cd.YMax = yMax
	return cd
}

// BreakevensText renders breakevens as "-", a single price, or a range.
func BreakevensText(bes []float64) string {
	switch len(bes) {
	case 0:
		return "-"
	case 1:
		return Number(bes[0])
	}
	lo, hi := bes[0], bes[0]
	for _, b := range bes[1:] {
		lo = math.Min(lo, b)
		hi = math.Max(hi, b)
	}
	return "Between " + Number(lo) + " - " + Number(hi)
}

// Money formats v as "$1,234.50", with a leading minus for negatives.
func Money(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + Number(d.Abs().InexactFloat64())
	}
	return "$" + Number(d.InexactFloat64())
}

// Number formats v with two decimals and thousands separators.
func Number(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// Percent formats a probability in [0,1] as "42.5%".
func Percent(p float64) string {
	return decimal.NewFromFloat(p * 100).StringFixed(1) + "%"
}

func boundText(b models.Bound) string {
	if b.Unbounded {
		return Unlimited
	}
	return Money(b.Value)
}
