package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"delta-spread/internal/models"
	"delta-spread/internal/presenter"
)

// FormatMoney formats an amount as "$1,234.50".
func FormatMoney(amount float64) string {
	return presenter.Money(amount)
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := presenter.Money(pnl)
	if decimal.NewFromFloat(pnl).Round(2).IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatNet labels a net amount as a credit or debit.
func FormatNet(net float64) string {
	d := decimal.NewFromFloat(net).Round(2)
	switch {
	case d.IsPositive():
		return presenter.Money(net) + " credit"
	case d.IsNegative():
		return presenter.Money(-net) + " debit"
	}
	return presenter.Money(0)
}

// FormatPrice formats a per-share price with two decimals.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// FormatStrike formats a strike without trailing zeros.
func FormatStrike(strike float64) string {
	return decimal.NewFromFloat(strike).Round(4).String()
}

// FormatIV formats implied volatility as a percentage.
func FormatIV(iv float64) string {
	return decimal.NewFromFloat(iv*100).StringFixed(2) + "%"
}

// FormatRate formats an interest rate as a percentage.
func FormatRate(rate float64) string {
	return decimal.NewFromFloat(rate*100).StringFixed(2) + "%"
}

// FormatGreeks formats option Greeks.
func FormatGreeks(g models.OptionGreeks) string {
	return fmt.Sprintf("Δ: %.4f  Γ: %.4f  Θ: %.4f  ν: %.4f  ρ: %.4f", g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho)
}

// FormatBound formats a max profit/loss bound.
func FormatBound(b models.Bound) string {
	if b.Unbounded {
		return presenter.Unlimited
	}
	return presenter.Money(b.Value)
}

// FormatDate formats an expiry date.
func FormatDate(t time.Time) string {
	return t.Format(models.DateLayout)
}

// FormatDays formats a day count until expiry.
func FormatDays(from, to time.Time) string {
	days := int(to.Sub(from).Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// FormatLegSide renders a leg as "+2 CALL 105" or "-1 PUT 95".
func FormatLegSide(leg models.OptionLeg) string {
	sign := "+"
	if leg.Side == models.OrderSideSell {
		sign = "-"
	}
	return fmt.Sprintf("%s%d %s %s", sign, leg.Quantity, leg.Contract.Kind, FormatStrike(leg.Contract.Strike))
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// PadRight pads a string to the right.
func PadRight(s string, length int) string {
	if n := visibleLen(s); n < length {
		return s + strings.Repeat(" ", length-n)
	}
	return s
}

// PadLeft pads a string to the left.
func PadLeft(s string, length int) string {
	if n := visibleLen(s); n < length {
		return strings.Repeat(" ", length-n) + s
	}
	return s
}
