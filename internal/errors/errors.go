// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrMissingVolatility  = errors.New("implied volatility not available")
	ErrQuoteUnavailable   = errors.New("quote unavailable")
	ErrEmptyStrategy      = errors.New("strategy has no legs")
	ErrNoStrategy         = errors.New("no strategy in progress")
	ErrLegIndex           = errors.New("leg index out of range")
	ErrMixedUnderliers    = errors.New("legs reference different underliers")
	ErrExpiryMismatch     = errors.New("legs do not share the same expiry")
	ErrShortQtyExceeded   = errors.New("total short quantity exceeds constraint")
	ErrNoConvergence      = errors.New("solver did not converge")
	ErrTradeNotFound      = errors.New("trade not found")
	ErrDuplicateTradeName = errors.New("trade name already exists")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDatabaseError      = errors.New("database error")
)

// DomainError reports invalid numeric inputs to the pricing model.
type DomainError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("domain error: %s (%v): %s: %v", e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("domain error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// NewDomainError creates a new DomainError.
func NewDomainError(field string, value interface{}, message string) *DomainError {
	return &DomainError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// AggregationError reports a structural problem with a strategy.
type AggregationError struct {
	Strategy string
	LegIndex int // -1 when not tied to a leg
	Reason   string
	Err      error
}

func (e *AggregationError) Error() string {
	where := e.Strategy
	if e.LegIndex >= 0 {
		where = fmt.Sprintf("%s leg %d", e.Strategy, e.LegIndex)
	}
	if e.Err != nil {
		return fmt.Sprintf("aggregation error [%s]: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("aggregation error [%s]: %s", where, e.Reason)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// NewAggregationError creates a new AggregationError.
func NewAggregationError(strategy string, legIndex int, reason string, err error) *AggregationError {
	return &AggregationError{
		Strategy: strategy,
		LegIndex: legIndex,
		Reason:   reason,
		Err:      err,
	}
}

// ValidationError represents a validation error outside the pricing core.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// QuoteError represents a failure to obtain a quote for a contract.
type QuoteError struct {
	Symbol string
	Strike float64
	Kind   string
	Expiry string
	Err    error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("quote error [%s %s %.2f %s]: %v", e.Symbol, e.Expiry, e.Strike, e.Kind, e.Err)
}

func (e *QuoteError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrQuoteUnavailable
}

// NewQuoteError creates a new QuoteError.
func NewQuoteError(symbol, expiry string, strike float64, kind string, err error) *QuoteError {
	if err == nil {
		err = ErrQuoteUnavailable
	}
	return &QuoteError{
		Symbol: symbol,
		Strike: strike,
		Kind:   kind,
		Expiry: expiry,
		Err:    err,
	}
}

// DataError represents a persistence-related error.
type DataError struct {
	DataType string
	Key      string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Key, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, key, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Key:      key,
		Message:  message,
		Err:      err,
	}
}

// IsDomainError reports whether err contains a DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// IsAggregationError reports whether err contains an AggregationError.
func IsAggregationError(err error) bool {
	var ae *AggregationError
	return errors.As(err, &ae)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
