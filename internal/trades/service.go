// Package trades applies naming and content rules on top of the trade store.
package trades

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/logging"
	"delta-spread/internal/models"
	"delta-spread/internal/store"
)

// MaxNameLength is the longest accepted trade name, in characters.
const MaxNameLength = 100

// Service manages saved trades.
type Service struct {
	repo   store.TradeStore
	logger zerolog.Logger
}

// NewService creates a trade service over repo.
func NewService(repo store.TradeStore, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "trades").Logger()}
}

// Save stores s under name and returns the new trade ID.
func (s *Service) Save(ctx context.Context, st models.Strategy, name, notes string) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}
	if len(st.Legs) == 0 {
		return "", apperrors.ErrEmptyStrategy
	}

	exists, err := s.repo.NameExists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists {
		return "", apperrors.Wrapf(apperrors.ErrDuplicateTradeName, "%q", name)
	}

	id, err := s.repo.Save(ctx, st, name, strings.TrimSpace(notes))
	if err != nil {
		return "", err
	}
	logging.LogTrade(s.logger, "saved", id, name, len(st.Legs))
	return id, nil
}

// Update replaces the contents of an existing trade.
func (s *Service) Update(ctx context.Context, id string, st models.Strategy, notes string) error {
	if len(st.Legs) == 0 {
		return apperrors.ErrEmptyStrategy
	}
	if err := s.repo.Update(ctx, id, st, strings.TrimSpace(notes)); err != nil {
		return err
	}
	logging.LogTrade(s.logger, "updated", id, st.Name, len(st.Legs))
	return nil
}

// Load returns a saved trade by ID, or by name when no trade has that ID.
func (s *Service) Load(ctx context.Context, ref string) (*store.SavedTrade, error) {
	ref = strings.TrimSpace(ref)
	t, err := s.repo.GetByID(ctx, ref)
	if errors.Is(err, apperrors.ErrTradeNotFound) {
		t, err = s.repo.GetByName(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrTradeNotFound) {
			s.logger.Warn().Str("ref", ref).Msg("Trade not found")
		}
		return nil, err
	}

	s.logger.Debug().Str("name", t.Name).Int("legs", len(t.Strategy.Legs)).Msg("Loaded trade")
	return t, nil
}

// Delete removes a saved trade by ID or name.
func (s *Service) Delete(ctx context.Context, ref string) error {
	t, err := s.Load(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		return err
	}
	logging.LogTrade(s.logger, "deleted", t.ID, t.Name, len(t.Strategy.Legs))
	return nil
}

// List returns all saved trades, most recent first. A non-empty symbol
// restricts the list to that underlier.
func (s *Service) List(ctx context.Context, symbol string) ([]store.TradeSummary, error) {
	if symbol = strings.TrimSpace(symbol); symbol != "" {
		return s.repo.ListBySymbol(ctx, symbol)
	}
	return s.repo.List(ctx)
}

// NameExists reports whether name is already taken.
func (s *Service) NameExists(ctx context.Context, name string) (bool, error) {
	return s.repo.NameExists(ctx, strings.TrimSpace(name))
}

// ValidateName trims name and checks it is non-empty and not too long.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("name", name, "trade name cannot be empty")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", apperrors.NewValidationError("name", name, "trade name must be 100 characters or less")
	}
	return name, nil
}
