// Package strategy manages the strategy being edited, builds strategies from
// templates and parses leg specifications and strategy files.
package strategy

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "delta-spread/internal/errors"
	"delta-spread/internal/models"
)

// Manager holds the strategy under construction. Every edit derives a new
// Strategy value; strategies previously returned are never modified.
type Manager struct {
	mu      sync.RWMutex
	current *models.Strategy
	logger  zerolog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Current returns the current strategy, if any.
func (m *Manager) Current() (models.Strategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.Strategy{}, false
	}
	return m.current.Clone(), true
}

// Load replaces the current strategy.
func (m *Manager) Load(s models.Strategy) models.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(s)
}

// Create starts a new strategy with one leg.
func (m *Manager) Create(name string, underlier models.Underlier, leg models.OptionLeg) models.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.set(models.Strategy{
		Name:      name,
		Underlier: underlier,
		Legs:      []models.OptionLeg{leg},
		CreatedAt: time.Now(),
	})
	m.logger.Info().
		Str("strategy", name).
		Str("side", string(leg.Side)).
		Str("kind", string(leg.Contract.Kind)).
		Float64("strike", leg.Contract.Strike).
		Msg("Created strategy")
	return s
}

// AddLeg appends a leg to the current strategy.
func (m *Manager) AddLeg(leg models.OptionLeg) (models.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return models.Strategy{}, apperrors.Wrap(apperrors.ErrNoStrategy, "add leg")
	}
	s := m.set(m.current.WithAddedLeg(leg))
	m.logger.Info().
		Str("side", string(leg.Side)).
		Str("kind", string(leg.Contract.Kind)).
		Float64("strike", leg.Contract.Strike).
		Msg("Added leg")
	return s, nil
}

// RemoveLeg removes the leg at index i. Removing the last leg clears the
// strategy, reported by ok == false.
func (m *Manager) RemoveLeg(i int) (s models.Strategy, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex(i); err != nil {
		return models.Strategy{}, false, err
	}
	if len(m.current.Legs) == 1 {
		m.current = nil
		m.logger.Info().Msg("Removed last leg, strategy cleared")
		return models.Strategy{}, false, nil
	}
	s = m.set(m.current.WithoutLeg(i))
	m.logger.Info().Int("leg", i).Msg("Removed leg")
	return s, true, nil
}

// UpdateLegKind switches leg i between call and put with a new entry price.
func (m *Manager) UpdateLegKind(i int, kind models.OptionKind, entry *float64) (models.Strategy, error) {
	return m.update(i, entry, func(c *models.OptionContract) { c.Kind = kind }, "kind", string(kind))
}

// UpdateLegStrike moves leg i to a new strike with a new entry price.
func (m *Manager) UpdateLegStrike(i int, strike float64, entry *float64) (models.Strategy, error) {
	return m.update(i, entry, func(c *models.OptionContract) { c.Strike = strike }, "strike", strike)
}

// UpdateLegExpiry moves leg i to a new expiry with a new entry price.
func (m *Manager) UpdateLegExpiry(i int, expiry time.Time, entry *float64) (models.Strategy, error) {
	return m.update(i, entry, func(c *models.OptionContract) { c.Expiry = expiry }, "expiry", expiry.Format(models.DateLayout))
}

func (m *Manager) update(i int, entry *float64, edit func(*models.OptionContract), field string, value interface{}) (models.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndex(i); err != nil {
		return models.Strategy{}, err
	}
	s := m.set(m.current.WithLeg(i, editLeg(m.current.Legs[i], entry, edit)))
	m.logger.Info().Int("leg", i).Interface(field, value).Msg("Updated leg")
	return s, nil
}

// Preview returns the current strategy with leg i moved to strike, without
// changing the manager's state.
func (m *Manager) Preview(i int, strike float64, entry *float64) (models.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkIndex(i); err != nil {
		return models.Strategy{}, err
	}
	return m.current.WithLeg(i, editLeg(m.current.Legs[i], entry, func(c *models.OptionContract) { c.Strike = strike })), nil
}

// ExpiryForNewLeg returns the expiry a new leg should use: the first leg's
// expiry when the strategy requires uniform expiries, otherwise selected.
func (m *Manager) ExpiryForNewLeg(selected time.Time) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current != nil && m.current.Constraints.SameExpiry && len(m.current.Legs) > 0 {
		return m.current.Legs[0].Contract.Expiry
	}
	return selected
}

// Reset clears the current strategy.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.logger.Info().Msg("Strategy reset")
}

// set stores a private copy and returns another copy to the caller.
func (m *Manager) set(s models.Strategy) models.Strategy {
	stored := s.Clone()
	m.current = &stored
	return stored.Clone()
}

func (m *Manager) checkIndex(i int) error {
	if m.current == nil {
		return apperrors.ErrNoStrategy
	}
	if i < 0 || i >= len(m.current.Legs) {
		return apperrors.Wrapf(apperrors.ErrLegIndex, "index %d with %d legs", i, len(m.current.Legs))
	}
	return nil
}

func editLeg(leg models.OptionLeg, entry *float64, edit func(*models.OptionContract)) models.OptionLeg {
	edit(&leg.Contract)
	if entry != nil {
		return leg.WithEntryPrice(*entry)
	}
	return leg.WithoutEntryPrice()
}
