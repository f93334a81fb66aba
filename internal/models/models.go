// Package models provides domain models for the strategy analyzer.
package models

import (
	"fmt"
	"strings"
)

// OrderSide represents the side of a position.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Valid reports whether s is a known side.
func (s OrderSide) Valid() bool {
	switch s {
	case OrderSideBuy, OrderSideSell:
		return true
	}
	return false
}

// Sign returns +1 for BUY and -1 for SELL. Unknown sides return 0.
func (s OrderSide) Sign() float64 {
	switch s {
	case OrderSideBuy:
		return 1
	case OrderSideSell:
		return -1
	}
	return 0
}

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// ParseOrderSide parses BUY/SELL (also B/S, LONG/SHORT), case-insensitive.
func ParseOrderSide(s string) (OrderSide, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "LONG":
		return OrderSideBuy, nil
	case "SELL", "S", "SHORT":
		return OrderSideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// OptionKind represents the option type.
type OptionKind string

const (
	OptionKindCall OptionKind = "CALL"
	OptionKindPut  OptionKind = "PUT"
)

// Valid reports whether k is a known option kind.
func (k OptionKind) Valid() bool {
	switch k {
	case OptionKindCall, OptionKindPut:
		return true
	}
	return false
}

// Short returns the single-letter code used in option symbols.
func (k OptionKind) Short() string {
	switch k {
	case OptionKindCall:
		return "C"
	case OptionKindPut:
		return "P"
	}
	return "?"
}

// ParseOptionKind parses CALL/PUT. Exchange codes CE/PE and C/P are accepted.
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "CE", "C":
		return OptionKindCall, nil
	case "PUT", "PE", "P":
		return OptionKindPut, nil
	}
	return "", fmt.Errorf("unknown option kind %q", s)
}

// Underlier represents the underlying instrument of a strategy.
type Underlier struct {
	Symbol     string  `json:"symbol"`
	Spot       float64 `json:"spot"`
	Multiplier int     `json:"multiplier"`
	Currency   string  `json:"currency"`
}

// WithSpot returns a copy of the underlier at a new spot price.
func (u Underlier) WithSpot(spot float64) Underlier {
	u.Spot = spot
	return u
}
