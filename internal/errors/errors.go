// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientHolding = errors.New("insufficient holding")
	ErrInvalidAction       = errors.New("invalid trade action")
	ErrNoPriceData         = errors.New("no price data available")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDataNotFound        = errors.New("data not found")
	ErrUnsupportedExchange = errors.New("unsupported exchange")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrConnectionFailed    = errors.New("connection failed")
	ErrTimeout             = errors.New("operation timed out")
)

// ExchangeError represents an error from an exchange API.
type ExchangeError struct {
	Exchange   string
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exchange error [%s %s] status %d: %s: %v", e.Exchange, e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("exchange error [%s %s] status %d: %s", e.Exchange, e.Endpoint, e.StatusCode, e.Message)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Transient reports whether the error is worth retrying. Only throttling and
// upstream availability failures qualify; other client errors fail fast.
func (e *ExchangeError) Transient() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// NewExchangeError creates a new ExchangeError.
func NewExchangeError(exchange, endpoint string, status int, message string, err error) *ExchangeError {
	return &ExchangeError{
		Exchange:   exchange,
		Endpoint:   endpoint,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

// LedgerError represents a business-rule violation inside the portfolio
// ledger. The wrapped sentinel identifies the rule.
type LedgerError struct {
	Symbol string
	Action string
	Detail string
	Err    error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger error [%s %s]: %s: %v", e.Action, e.Symbol, e.Detail, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError creates a new LedgerError.
func NewLedgerError(symbol, action, detail string, err error) *LedgerError {
	return &LedgerError{
		Symbol: symbol,
		Action: action,
		Detail: detail,
		Err:    err,
	}
}

// PersistenceError represents a store read/write failure. Writes that fail
// after an operation already succeeded in memory are logged and surfaced,
// never swallowed.
type PersistenceError struct {
	Store string
	Key   string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s] key %q: %v", e.Store, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(store, key string, err error) *PersistenceError {
	return &PersistenceError{Store: store, Key: key, Err: err}
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
