// Package store provides persistence for saved trades.
package store

import (
	"context"
	"time"

	"delta-spread/internal/models"
)

// TradeStore persists strategies as named trades.
type TradeStore interface {
	Save(ctx context.Context, s models.Strategy, name, notes string) (string, error)
	Update(ctx context.Context, id string, s models.Strategy, notes string) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*SavedTrade, error)
	GetByName(ctx context.Context, name string) (*SavedTrade, error)
	List(ctx context.Context) ([]TradeSummary, error)
	ListBySymbol(ctx context.Context, symbol string) ([]TradeSummary, error)
	NameExists(ctx context.Context, name string) (bool, error)

	// Lifecycle
	Close() error
}

// SavedTrade is a stored strategy with its metadata.
type SavedTrade struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Notes     string          `json:"notes,omitempty"`
	Strategy  models.Strategy `json:"strategy"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TradeSummary is the list view of a saved trade.
type TradeSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	LegCount  int       `json:"leg_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes,omitempty"`
}
