package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// ParseLeg parses a leg specification of the form
//
//	side:qty:kind:strike[@price][:expiry]
//
// e.g. "buy:1:call:100@2.50:2026-11-20". The expiry defaults to
// defaultExpiry when omitted.
func ParseLeg(symbol, spec string, defaultExpiry time.Time) (models.OptionLeg, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) != 4 && len(parts) != 5 {
		return models.OptionLeg{}, apperrors.NewValidationError("leg", spec, "expected side:qty:kind:strike[@price][:expiry]")
	}

	side, err := models.ParseOrderSide(parts[0])
	if err != nil {
		return models.OptionLeg{}, apperrors.NewValidationError("side", parts[0], err.Error())
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || qty <= 0 {
		return models.OptionLeg{}, apperrors.NewValidationError("quantity", parts[1], "must be a positive integer")
	}
	kind, err := models.ParseOptionKind(parts[2])
	if err != nil {
		return models.OptionLeg{}, apperrors.NewValidationError("kind", parts[2], err.Error())
	}

	strikeText, priceText, hasPrice := strings.Cut(parts[3], "@")
	strike, err := strconv.ParseFloat(strings.TrimSpace(strikeText), 64)
	if err != nil || strike <= 0 {
		return models.OptionLeg{}, apperrors.NewValidationError("strike", strikeText, "must be a positive number")
	}

	leg := models.OptionLeg{
		Contract: models.OptionContract{
			Symbol: strings.ToUpper(symbol),
			Expiry: defaultExpiry,
			Strike: strike,
			Kind:   kind,
		},
		Side:     side,
		Quantity: qty,
	}

	if hasPrice {
		price, err := strconv.ParseFloat(strings.TrimSpace(priceText), 64)
		if err != nil || price < 0 {
			return models.OptionLeg{}, apperrors.NewValidationError("entry_price", priceText, "must be a non-negative number")
		}
		leg.EntryPrice = models.Float(price)
	}

	if len(parts) == 5 {
		expiry, err := time.Parse(models.DateLayout, strings.TrimSpace(parts[4]))
		if err != nil {
			return models.OptionLeg{}, apperrors.NewValidationError("expiry", parts[4], "expected YYYY-MM-DD")
		}
		leg.Contract.Expiry = expiry
	}
	if leg.Contract.Expiry.IsZero() {
		return models.OptionLeg{}, apperrors.NewValidationError("expiry", spec, "no expiry given and no default available")
	}
	return leg, nil
}

// FormatLeg renders a leg in the form accepted by ParseLeg.
func FormatLeg(leg models.OptionLeg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%s:%s", strings.ToLower(string(leg.Side)), leg.Quantity,
		strings.ToLower(string(leg.Contract.Kind)), strconv.FormatFloat(leg.Contract.Strike, 'f', -1, 64))
	if leg.EntryPrice != nil {
		fmt.Fprintf(&b, "@%s", strconv.FormatFloat(*leg.EntryPrice, 'f', -1, 64))
	}
	fmt.Fprintf(&b, ":%s", leg.Contract.Expiry.Format(models.DateLayout))
	return b.String()
}
