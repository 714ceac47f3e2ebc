// Package orders provides order validation and the order lifecycle manager.
package orders

import (
	"fmt"

	"kucoin-trader/internal/config"
	"kucoin-trader/internal/models"
)

// ValidationResult carries the outcome of validating one order. Errors holds
// every violation found, not just the first.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validator checks orders against the submission rules and the configured
// asset universe.
type Validator struct {
	assets config.AssetsConfig
}

// NewValidator creates a validator over the given asset universe.
func NewValidator(assets config.AssetsConfig) *Validator {
	return &Validator{assets: assets}
}

// Validate checks an order against the submission rules. Missing required
// fields fail immediately; otherwise all value violations are accumulated so
// the caller sees everything wrong with the order at once.
func (v *Validator) Validate(order *models.Order) ValidationResult {
	if order == nil {
		return ValidationResult{Errors: []string{"Order is required"}}
	}

	var missing []string
	if order.Symbol == "" {
		missing = append(missing, "Symbol is required")
	}
	if order.Type == "" {
		missing = append(missing, "Order type is required")
	}
	if order.Side == "" {
		missing = append(missing, "Order side is required")
	}
	if len(missing) > 0 {
		return ValidationResult{Errors: missing}
	}

	var errs []string
	if _, ok := v.assets.Find(order.Symbol); !ok {
		errs = append(errs, fmt.Sprintf("Asset not found: %s", order.Symbol))
	}
	switch order.Type {
	case models.OrderTypeMarket, models.OrderTypeLimit:
	default:
		errs = append(errs, fmt.Sprintf("Invalid order type: %s", order.Type))
	}
	switch order.Side {
	case models.OrderSideBuy, models.OrderSideSell:
	default:
		errs = append(errs, fmt.Sprintf("Invalid order side: %s", order.Side))
	}
	if order.Amount <= 0 {
		errs = append(errs, "Amount must be positive")
	}
	if order.Type == models.OrderTypeLimit && order.Price <= 0 {
		errs = append(errs, "Price is required for limit orders")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
