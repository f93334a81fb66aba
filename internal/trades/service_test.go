package trades

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
	"delta-spread/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "trades.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewService(repo, zerolog.Nop())
}

func longCall() models.Strategy {
	return models.Strategy{
		Underlier: models.Underlier{Symbol: "SPY", Spot: 100, Multiplier: 100, Currency: "USD"},
		Legs: []models.OptionLeg{{
			Contract: models.OptionContract{
				Symbol: "SPY",
				Expiry: time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC),
				Strike: 100,
				Kind:   models.OptionKindCall,
			},
			Side:       models.OrderSideBuy,
			Quantity:   1,
			EntryPrice: models.Float(2.5),
		}},
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"trimmed", "  my trade  ", "my trade", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"max length", strings.Repeat("a", MaxNameLength), strings.Repeat("a", MaxNameLength), false},
		{"too long", strings.Repeat("a", MaxNameLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSaveRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Save(ctx, longCall(), "  ", ""); err == nil {
		t.Error("expected error for blank name")
	}
	if _, err := svc.Save(ctx, models.Strategy{}, "empty", ""); !errors.Is(err, apperrors.ErrEmptyStrategy) {
		t.Errorf("expected ErrEmptyStrategy, got %v", err)
	}

	if _, err := svc.Save(ctx, longCall(), " bullish ", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := svc.Save(ctx, longCall(), "bullish", ""); !errors.Is(err, apperrors.ErrDuplicateTradeName) {
		t.Errorf("expected ErrDuplicateTradeName, got %v", err)
	}

	exists, err := svc.NameExists(ctx, " bullish")
	if err != nil || !exists {
		t.Errorf("NameExists = %v, %v", exists, err)
	}
}

func TestLoadByIDOrName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id, err := svc.Save(ctx, longCall(), "lc", "note")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	byID, err := svc.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load by id: %v", err)
	}
	byName, err := svc.Load(ctx, "lc")
	if err != nil {
		t.Fatalf("Load by name: %v", err)
	}
	if byID.ID != byName.ID || byName.Notes != "note" {
		t.Errorf("loaded %+v and %+v", byID, byName)
	}

	if _, err := svc.Load(ctx, "nope"); !errors.Is(err, apperrors.ErrTradeNotFound) {
		t.Errorf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestUpdateRequiresLegs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id, err := svc.Save(ctx, longCall(), "lc", "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := svc.Update(ctx, id, models.Strategy{}, ""); !errors.Is(err, apperrors.ErrEmptyStrategy) {
		t.Errorf("expected ErrEmptyStrategy, got %v", err)
	}
	if err := svc.Update(ctx, id, longCall(), "updated"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := svc.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Notes != "updated" {
		t.Errorf("notes = %q", got.Notes)
	}
}

func TestDeleteAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Save(ctx, longCall(), "one", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := svc.Save(ctx, longCall(), "two", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := svc.Delete(ctx, "one"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "two" {
		t.Errorf("List = %+v", list)
	}

	list, err = svc.List(ctx, "QQQ")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List(QQQ) = %+v", list)
	}
}
