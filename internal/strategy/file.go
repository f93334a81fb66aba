package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// File is the on-disk TOML form of a strategy.
type File struct {
	Name        string    `mapstructure:"name"`
	Symbol      string    `mapstructure:"symbol"`
	Spot        float64   `mapstructure:"spot"`
	Multiplier  int       `mapstructure:"multiplier"`
	Currency    string    `mapstructure:"currency"`
	SameExpiry  bool      `mapstructure:"same_expiry"`
	MaxShortQty int       `mapstructure:"max_short_qty"`
	Tags        []string  `mapstructure:"tags"`
	Legs        []FileLeg `mapstructure:"legs"`
}

// FileLeg is one [[legs]] table.
type FileLeg struct {
	Side       string   `mapstructure:"side"`
	Kind       string   `mapstructure:"kind"`
	Strike     float64  `mapstructure:"strike"`
	Quantity   int      `mapstructure:"quantity"`
	Expiry     string   `mapstructure:"expiry"`
	EntryPrice *float64 `mapstructure:"entry_price"`
	Notes      string   `mapstructure:"notes"`
}

// LoadFile reads a strategy from a TOML file. The strategy is validated
// before it is returned.
func LoadFile(path string) (models.Strategy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("multiplier", 100)
	v.SetDefault("currency", "USD")

	if err := v.ReadInConfig(); err != nil {
		return models.Strategy{}, fmt.Errorf("failed to read strategy file %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return models.Strategy{}, fmt.Errorf("failed to parse strategy file %s: %w", path, err)
	}

	s, err := f.Strategy()
	if err != nil {
		return models.Strategy{}, fmt.Errorf("strategy file %s: %w", path, err)
	}
	return s, nil
}

// Strategy converts the file form into a validated strategy.
func (f File) Strategy() (models.Strategy, error) {
	symbol := strings.ToUpper(strings.TrimSpace(f.Symbol))
	s := models.Strategy{
		Name: f.Name,
		Underlier: models.Underlier{
			Symbol:     symbol,
			Spot:       f.Spot,
			Multiplier: f.Multiplier,
			Currency:   f.Currency,
		},
		Legs:      make([]models.OptionLeg, 0, len(f.Legs)),
		CreatedAt: time.Now(),
		Tags:      f.Tags,
		Constraints: models.StrategyConstraints{
			SameExpiry:       f.SameExpiry,
			MaxTotalShortQty: f.MaxShortQty,
		},
	}

	for i, fl := range f.Legs {
		side, err := models.ParseOrderSide(fl.Side)
		if err != nil {
			return models.Strategy{}, apperrors.NewValidationError(fmt.Sprintf("legs[%d].side", i), fl.Side, err.Error())
		}
		kind, err := models.ParseOptionKind(fl.Kind)
		if err != nil {
			return models.Strategy{}, apperrors.NewValidationError(fmt.Sprintf("legs[%d].kind", i), fl.Kind, err.Error())
		}
		expiry, err := time.Parse(models.DateLayout, strings.TrimSpace(fl.Expiry))
		if err != nil {
			return models.Strategy{}, apperrors.NewValidationError(fmt.Sprintf("legs[%d].expiry", i), fl.Expiry, "expected YYYY-MM-DD")
		}
		qty := fl.Quantity
		if qty == 0 {
			qty = 1
		}
		s.Legs = append(s.Legs, models.OptionLeg{
			Contract: models.OptionContract{
				Symbol: symbol,
				Expiry: expiry,
				Strike: fl.Strike,
				Kind:   kind,
			},
			Side:       side,
			Quantity:   qty,
			EntryPrice: fl.EntryPrice,
			Notes:      fl.Notes,
		})
	}

	if err := s.Validate(); err != nil {
		return models.Strategy{}, err
	}
	return s, nil
}

// ToFile converts a strategy into its file form.
func ToFile(s models.Strategy) File {
	f := File{
		Name:        s.Name,
		Symbol:      s.Underlier.Symbol,
		Spot:        s.Underlier.Spot,
		Multiplier:  s.Underlier.Multiplier,
		Currency:    s.Underlier.Currency,
		SameExpiry:  s.Constraints.SameExpiry,
		MaxShortQty: s.Constraints.MaxTotalShortQty,
		Tags:        s.Tags,
		Legs:        make([]FileLeg, len(s.Legs)),
	}
	for i, leg := range s.Legs {
		f.Legs[i] = FileLeg{
			Side:       string(leg.Side),
			Kind:       string(leg.Contract.Kind),
			Strike:     leg.Contract.Strike,
			Quantity:   leg.Quantity,
			Expiry:     leg.Contract.Expiry.Format(models.DateLayout),
			EntryPrice: leg.EntryPrice,
			Notes:      leg.Notes,
		}
	}
	return f
}

// SaveFile writes a strategy as TOML, in the layout LoadFile reads.
func SaveFile(path string, s models.Strategy) error {
	f := ToFile(s)
	v := viper.New()
	v.SetConfigType("toml")
	v.Set("name", f.Name)
	v.Set("symbol", f.Symbol)
	v.Set("spot", f.Spot)
	v.Set("multiplier", f.Multiplier)
	v.Set("currency", f.Currency)
	v.Set("same_expiry", f.SameExpiry)
	v.Set("max_short_qty", f.MaxShortQty)
	if len(f.Tags) > 0 {
		v.Set("tags", f.Tags)
	}

	legs := make([]map[string]interface{}, len(f.Legs))
	for i, fl := range f.Legs {
		leg := map[string]interface{}{
			"side":     strings.ToLower(fl.Side),
			"kind":     strings.ToLower(fl.Kind),
			"strike":   fl.Strike,
			"quantity": fl.Quantity,
			"expiry":   fl.Expiry,
		}
		if fl.EntryPrice != nil {
			leg["entry_price"] = *fl.EntryPrice
		}
		if fl.Notes != "" {
			leg["notes"] = fl.Notes
		}
		legs[i] = leg
	}
	v.Set("legs", legs)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write strategy file %s: %w", path, err)
	}
	return nil
}
