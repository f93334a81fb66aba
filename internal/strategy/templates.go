package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// TemplateParams positions a template on the chain.
type TemplateParams struct {
	Underlier models.Underlier
	Expiry    time.Time
	// Width is the distance between adjacent strikes in the template.
	Width    float64
	Quantity int
}

// Template is a named multi-leg structure expressed in strike offsets from
// the at-the-money strike.
type Template struct {
	Name        string
	Description string
	legs        []templateLeg
}

type templateLeg struct {
	side   models.OrderSide
	kind   models.OptionKind
	offset int // in multiples of Width
	ratio  int
}

func tl(side models.OrderSide, kind models.OptionKind, offset, ratio int) templateLeg {
	return templateLeg{side: side, kind: kind, offset: offset, ratio: ratio}
}

const (
	buy  = models.OrderSideBuy
	sell = models.OrderSideSell
	call = models.OptionKindCall
	put  = models.OptionKindPut
)

var templates = map[string]Template{
	"long_call":  {Name: "long_call", Description: "Buy an at-the-money call", legs: []templateLeg{tl(buy, call, 0, 1)}},
	"short_call": {Name: "short_call", Description: "Sell an at-the-money call", legs: []templateLeg{tl(sell, call, 0, 1)}},
	"long_put":   {Name: "long_put", Description: "Buy an at-the-money put", legs: []templateLeg{tl(buy, put, 0, 1)}},
	"short_put":  {Name: "short_put", Description: "Sell an at-the-money put", legs: []templateLeg{tl(sell, put, 0, 1)}},
	"straddle": {Name: "straddle", Description: "Buy an at-the-money call and put",
		legs: []templateLeg{tl(buy, put, 0, 1), tl(buy, call, 0, 1)}},
	"strangle": {Name: "strangle", Description: "Buy an out-of-the-money put and call",
		legs: []templateLeg{tl(buy, put, -1, 1), tl(buy, call, 1, 1)}},
	"bull_call_spread": {Name: "bull_call_spread", Description: "Buy the ATM call, sell the next call up",
		legs: []templateLeg{tl(buy, call, 0, 1), tl(sell, call, 1, 1)}},
	"bear_put_spread": {Name: "bear_put_spread", Description: "Buy the ATM put, sell the next put down",
		legs: []templateLeg{tl(sell, put, -1, 1), tl(buy, put, 0, 1)}},
	"bull_put_spread": {Name: "bull_put_spread", Description: "Sell the ATM put, buy the next put down for a credit",
		legs: []templateLeg{tl(buy, put, -1, 1), tl(sell, put, 0, 1)}},
	"bear_call_spread": {Name: "bear_call_spread", Description: "Sell the ATM call, buy the next call up for a credit",
		legs: []templateLeg{tl(sell, call, 0, 1), tl(buy, call, 1, 1)}},
	"iron_condor": {Name: "iron_condor", Description: "Short strangle with long wings one strike further out",
		legs: []templateLeg{tl(buy, put, -2, 1), tl(sell, put, -1, 1), tl(sell, call, 1, 1), tl(buy, call, 2, 1)}},
	"butterfly": {Name: "butterfly", Description: "Long call butterfly centered at the money",
		legs: []templateLeg{tl(buy, call, -1, 1), tl(sell, call, 0, 2), tl(buy, call, 1, 1)}},
}

// Templates returns all templates sorted by name.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupTemplate finds a template by name. Dashes and case are ignored.
func LookupTemplate(name string) (Template, bool) {
	t, ok := templates[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")]
	return t, ok
}

// Legs returns the number of legs the template builds.
func (t Template) Legs() int {
	return len(t.legs)
}

// Build creates a strategy from the template. Strikes are placed at
// multiples of Width around the strike nearest the spot.
func (t Template) Build(p TemplateParams) (models.Strategy, error) {
	if !(p.Width > 0) {
		return models.Strategy{}, apperrors.NewValidationError("width", p.Width, "must be positive")
	}
	if !(p.Underlier.Spot > 0) {
		return models.Strategy{}, apperrors.NewValidationError("spot", p.Underlier.Spot, "must be positive")
	}
	qty := p.Quantity
	if qty <= 0 {
		qty = 1
	}

	atm := math.Round(p.Underlier.Spot/p.Width) * p.Width
	legs := make([]models.OptionLeg, 0, len(t.legs))
	for _, l := range t.legs {
		strike := atm + float64(l.offset)*p.Width
		if strike <= 0 {
			return models.Strategy{}, apperrors.NewValidationError("strike", strike,
				fmt.Sprintf("%s needs strikes below zero at width %.2f", t.Name, p.Width))
		}
		legs = append(legs, models.OptionLeg{
			Contract: models.OptionContract{
				Symbol: p.Underlier.Symbol,
				Expiry: p.Expiry,
				Strike: strike,
				Kind:   l.kind,
			},
			Side:     l.side,
			Quantity: qty * l.ratio,
		})
	}

	return models.Strategy{
		Name:        t.Name,
		Underlier:   p.Underlier,
		Legs:        legs,
		CreatedAt:   time.Now(),
		Tags:        []string{"template"},
		Constraints: models.StrategyConstraints{SameExpiry: true},
	}, nil
}
