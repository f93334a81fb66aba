package strategy

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

var expiry = time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)

func spy() models.Underlier {
	return models.Underlier{Symbol: "SPY", Spot: 100, Multiplier: 100, Currency: "USD"}
}

func mustLeg(t *testing.T, spec string) models.OptionLeg {
	t.Helper()
	leg, err := ParseLeg("SPY", spec, expiry)
	if err != nil {
		t.Fatalf("ParseLeg(%q): %v", spec, err)
	}
	return leg
}

func TestManager_EditsDeriveNewStrategies(t *testing.T) {
	m := NewManager(zerolog.Nop())

	first := m.Create("test", spy(), mustLeg(t, "buy:1:call:100@2.5"))
	second, err := m.AddLeg(mustLeg(t, "sell:1:call:110@0.8"))
	if err != nil {
		t.Fatalf("AddLeg: %v", err)
	}
	third, err := m.UpdateLegStrike(1, 105, models.Float(1.4))
	if err != nil {
		t.Fatalf("UpdateLegStrike: %v", err)
	}

	if len(first.Legs) != 1 {
		t.Errorf("first strategy changed: %d legs", len(first.Legs))
	}
	if second.Legs[1].Contract.Strike != 110 || *second.Legs[1].EntryPrice != 0.8 {
		t.Errorf("second strategy changed: %+v", second.Legs[1])
	}
	if third.Legs[1].Contract.Strike != 105 || *third.Legs[1].EntryPrice != 1.4 {
		t.Errorf("third leg = %+v", third.Legs[1])
	}

	current, ok := m.Current()
	if !ok || !reflect.DeepEqual(current, third) {
		t.Errorf("current = %+v, want %+v", current, third)
	}

	// Mutating a returned value must not leak into the manager.
	third.Legs[0].Quantity = 99
	current, _ = m.Current()
	if current.Legs[0].Quantity != 1 {
		t.Error("manager state shares slices with returned strategy")
	}
}

func TestManager_UpdateKindAndExpiry(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.Create("test", spy(), mustLeg(t, "buy:1:call:100@2.5"))

	s, err := m.UpdateLegKind(0, models.OptionKindPut, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Legs[0].Contract.Kind != models.OptionKindPut || s.Legs[0].HasEntryPrice() {
		t.Errorf("leg = %+v, want put without entry price", s.Legs[0])
	}

	later := expiry.AddDate(0, 1, 0)
	s, err = m.UpdateLegExpiry(0, later, models.Float(3.1))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Legs[0].Contract.Expiry.Equal(later) || *s.Legs[0].EntryPrice != 3.1 {
		t.Errorf("leg = %+v", s.Legs[0])
	}
}

func TestManager_RemoveLastLegClears(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.Create("test", spy(), mustLeg(t, "buy:1:put:95"))
	if _, err := m.AddLeg(mustLeg(t, "sell:1:put:90")); err != nil {
		t.Fatal(err)
	}

	s, ok, err := m.RemoveLeg(0)
	if err != nil || !ok {
		t.Fatalf("RemoveLeg(0) = ok %v err %v", ok, err)
	}
	if len(s.Legs) != 1 || s.Legs[0].Contract.Strike != 90 {
		t.Errorf("remaining legs = %+v", s.Legs)
	}

	_, ok, err = m.RemoveLeg(0)
	if err != nil || ok {
		t.Fatalf("RemoveLeg(last) = ok %v err %v, want cleared", ok, err)
	}
	if _, exists := m.Current(); exists {
		t.Error("strategy should be cleared")
	}
}

func TestManager_Errors(t *testing.T) {
	m := NewManager(zerolog.Nop())

	if _, err := m.AddLeg(mustLeg(t, "buy:1:call:100")); !apperrors.Is(err, apperrors.ErrNoStrategy) {
		t.Errorf("AddLeg without strategy: %v", err)
	}
	m.Create("test", spy(), mustLeg(t, "buy:1:call:100"))
	if _, _, err := m.RemoveLeg(3); !apperrors.Is(err, apperrors.ErrLegIndex) {
		t.Errorf("RemoveLeg(3): %v", err)
	}
	if _, err := m.UpdateLegStrike(-1, 100, nil); !apperrors.Is(err, apperrors.ErrLegIndex) {
		t.Errorf("UpdateLegStrike(-1): %v", err)
	}
	m.Reset()
	if _, err := m.Preview(0, 100, nil); !apperrors.Is(err, apperrors.ErrNoStrategy) {
		t.Errorf("Preview after reset: %v", err)
	}
}

func TestManager_PreviewLeavesStateAlone(t *testing.T) {
	m := NewManager(zerolog.Nop())
	created := m.Create("test", spy(), mustLeg(t, "buy:1:call:100@2.5"))

	preview, err := m.Preview(0, 120, models.Float(0.3))
	if err != nil {
		t.Fatal(err)
	}
	if preview.Legs[0].Contract.Strike != 120 {
		t.Errorf("preview strike = %.2f", preview.Legs[0].Contract.Strike)
	}
	current, _ := m.Current()
	if !reflect.DeepEqual(current, created) {
		t.Error("preview modified the current strategy")
	}
}

func TestManager_ExpiryForNewLeg(t *testing.T) {
	m := NewManager(zerolog.Nop())
	selected := expiry.AddDate(0, 0, 14)
	if got := m.ExpiryForNewLeg(selected); !got.Equal(selected) {
		t.Errorf("empty manager: got %v", got)
	}

	s := models.Strategy{
		Name:        "condor",
		Underlier:   spy(),
		Legs:        []models.OptionLeg{mustLeg(t, "sell:1:put:95")},
		Constraints: models.StrategyConstraints{SameExpiry: true},
	}
	m.Load(s)
	if got := m.ExpiryForNewLeg(selected); !got.Equal(expiry) {
		t.Errorf("same-expiry strategy: got %v, want %v", got, expiry)
	}
}

func TestTemplates_Build(t *testing.T) {
	tests := []struct {
		name    string
		strikes []float64
		sides   []models.OrderSide
		qty     []int
	}{
		{"long_call", []float64{100}, []models.OrderSide{buy}, []int{1}},
		{"straddle", []float64{100, 100}, []models.OrderSide{buy, buy}, []int{1, 1}},
		{"bull_put_spread", []float64{95, 100}, []models.OrderSide{buy, sell}, []int{1, 1}},
		{"iron_condor", []float64{90, 95, 105, 110}, []models.OrderSide{buy, sell, sell, buy}, []int{1, 1, 1, 1}},
		{"butterfly", []float64{95, 100, 105}, []models.OrderSide{buy, sell, buy}, []int{1, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, ok := LookupTemplate(tt.name)
			if !ok {
				t.Fatalf("template %s not found", tt.name)
			}
			underlier := spy()
			underlier.Spot = 101.3
			s, err := tmpl.Build(TemplateParams{Underlier: underlier, Expiry: expiry, Width: 5})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if err := s.Validate(); err != nil {
				t.Fatalf("built strategy invalid: %v", err)
			}
			if len(s.Legs) != len(tt.strikes) {
				t.Fatalf("legs = %d, want %d", len(s.Legs), len(tt.strikes))
			}
			for i, leg := range s.Legs {
				if leg.Contract.Strike != tt.strikes[i] || leg.Side != tt.sides[i] || leg.Quantity != tt.qty[i] {
					t.Errorf("leg %d = %s %d %.2f", i, leg.Side, leg.Quantity, leg.Contract.Strike)
				}
			}
		})
	}
}

func TestTemplates_Lookup(t *testing.T) {
	if _, ok := LookupTemplate("Iron-Condor"); !ok {
		t.Error("lookup should ignore case and dashes")
	}
	if _, ok := LookupTemplate("jade_lizard"); ok {
		t.Error("unexpected template")
	}
	if n := len(Templates()); n != 12 {
		t.Errorf("templates = %d, want 12", n)
	}
	tmpl, _ := LookupTemplate("iron_condor")
	if _, err := tmpl.Build(TemplateParams{Underlier: spy(), Expiry: expiry, Width: 50}); err == nil {
		t.Error("expected error when wings fall below zero")
	}
}

func TestParseLeg(t *testing.T) {
	leg := mustLeg(t, "SELL:2:pe:95.5@1.25:2026-12-18")
	if leg.Side != models.OrderSideSell || leg.Quantity != 2 || leg.Contract.Kind != models.OptionKindPut {
		t.Errorf("leg = %+v", leg)
	}
	if leg.Contract.Strike != 95.5 || *leg.EntryPrice != 1.25 {
		t.Errorf("strike/price = %.2f/%v", leg.Contract.Strike, *leg.EntryPrice)
	}
	if leg.Contract.Expiry.Format(models.DateLayout) != "2026-12-18" {
		t.Errorf("expiry = %v", leg.Contract.Expiry)
	}

	if got := FormatLeg(leg); got != "sell:2:put:95.5@1.25:2026-12-18" {
		t.Errorf("FormatLeg = %q", got)
	}

	invalid := []string{
		"",
		"buy:1:call",
		"hold:1:call:100",
		"buy:0:call:100",
		"buy:1:straddle:100",
		"buy:1:call:-5",
		"buy:1:call:100@abc",
		"buy:1:call:100:tomorrow",
	}
	for _, spec := range invalid {
		if _, err := ParseLeg("SPY", spec, expiry); !apperrors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("ParseLeg(%q) err = %v, want ErrInvalidInput", spec, err)
		}
	}

	if _, err := ParseLeg("SPY", "buy:1:call:100", time.Time{}); err == nil {
		t.Error("expected error without any expiry")
	}
}

const condorFile = `
name = "March condor"
symbol = "spy"
spot = 100
multiplier = 100
same_expiry = true
tags = ["income"]

[[legs]]
side = "buy"
kind = "put"
strike = 90
expiry = "2026-11-20"
entry_price = 0.5

[[legs]]
side = "sell"
kind = "put"
strike = 95
expiry = "2026-11-20"
entry_price = 1.5

[[legs]]
side = "sell"
kind = "call"
strike = 105
expiry = "2026-11-20"
entry_price = 1.5

[[legs]]
side = "buy"
kind = "call"
strike = 110
quantity = 1
expiry = "2026-11-20"
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "condor.toml")
	if err := os.WriteFile(path, []byte(condorFile), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Name != "March condor" || s.Underlier.Symbol != "SPY" || s.Underlier.Currency != "USD" {
		t.Errorf("header = %+v", s)
	}
	if len(s.Legs) != 4 || !s.Constraints.SameExpiry {
		t.Fatalf("legs = %d, same_expiry = %v", len(s.Legs), s.Constraints.SameExpiry)
	}
	if s.Legs[3].HasEntryPrice() {
		t.Error("leg without entry_price should have none")
	}
	if *s.Legs[1].EntryPrice != 1.5 || s.Legs[1].Side != models.OrderSideSell {
		t.Errorf("leg 1 = %+v", s.Legs[1])
	}
}

func TestSaveFile_RoundTrip(t *testing.T) {
	tmpl, _ := LookupTemplate("bear_call_spread")
	s, err := tmpl.Build(TemplateParams{Underlier: spy(), Expiry: expiry, Width: 5})
	if err != nil {
		t.Fatal(err)
	}
	s = s.WithLeg(0, s.Legs[0].WithEntryPrice(2.1))

	path := filepath.Join(t.TempDir(), "spread.toml")
	if err := SaveFile(path, s); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(loaded.Legs, s.Legs) {
		t.Errorf("legs differ:\n%+v\n%+v", loaded.Legs, s.Legs)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	content := "name = \"bad\"\nsymbol = \"SPY\"\nspot = 100\n\n[[legs]]\nside = \"buy\"\nkind = \"call\"\nstrike = 100\nexpiry = \"20-11-2026\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
