// Package models provides domain models for the trading application.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderState represents a state in the order lifecycle.
type OrderState string

const (
	OrderStateCreated             OrderState = "CREATED"
	OrderStateValidated           OrderState = "VALIDATED"
	OrderStateRejected            OrderState = "REJECTED"
	OrderStatePendingConfirmation OrderState = "PENDING_CONFIRMATION"
	OrderStateDispatched          OrderState = "DISPATCHED"
	OrderStateSuccess             OrderState = "SUCCESS"
	OrderStateFailed              OrderState = "FAILED"
)

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateRejected, OrderStateSuccess, OrderStateFailed:
		return true
	}
	return false
}

// ResultStatus is the status reported on an OrderResult.
type ResultStatus string

const (
	StatusSuccess             ResultStatus = "success"
	StatusError               ResultStatus = "error"
	StatusPendingConfirmation ResultStatus = "pending_confirmation"
)

// SignalAction is the recommendation carried by a trade signal.
type SignalAction string

const (
	SignalBuy  SignalAction = "BUY"
	SignalSell SignalAction = "SELL"
	SignalHold SignalAction = "HOLD"
	SignalNone SignalAction = "NONE"
)

// Confidence is the qualitative confidence level of a signal.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Signal is an external trade recommendation that seeds order creation.
type Signal struct {
	Symbol     string       `json:"symbol"`
	Action     SignalAction `json:"action"`
	Confidence Confidence   `json:"confidence"`
	// Allocation overrides the confidence-derived allocation when > 0.
	Allocation float64   `json:"allocation_percentage,omitempty"`
	AnalysisID string    `json:"analysis_id,omitempty"`
	Date       time.Time `json:"date,omitempty"`
}

// Order is an outbound trade order. Fields other than Status are immutable
// after creation.
type Order struct {
	Symbol string    `json:"symbol"`
	Type   OrderType `json:"type"`
	Side   OrderSide `json:"side"`
	// Amount is the USD notional of the order.
	Amount float64 `json:"amount"`
	// Price is required for limit orders and ignored for market orders.
	Price      float64    `json:"price,omitempty"`
	Exchange   string     `json:"exchange,omitempty"`
	Status     OrderState `json:"status,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	AnalysisID string     `json:"analysis_id,omitempty"`
	CreatedAt  time.Time  `json:"timestamp"`
}

// OrderResult is the outcome of a single order submission attempt.
type OrderResult struct {
	OrderID  string       `json:"order_id,omitempty"`
	Symbol   string       `json:"symbol"`
	Type     OrderType    `json:"type"`
	Side     OrderSide    `json:"side"`
	Amount   float64      `json:"amount"`
	Price    float64      `json:"price,omitempty"`
	Status   ResultStatus `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Errors   []string     `json:"errors,omitempty"`
	Exchange string       `json:"exchange,omitempty"`
	// Response is the raw payload returned by the exchange adapter.
	Response map[string]interface{} `json:"response,omitempty"`
	// Order echoes the submitted order on pending_confirmation results so the
	// caller can re-submit it with the confirmation resolved.
	Order     *Order    `json:"order,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CancellationRecord is the persisted outcome of a cancel request.
type CancellationRecord struct {
	OrderID      string       `json:"order_id,omitempty"`
	Symbol       string       `json:"symbol,omitempty"`
	CancelledIDs []string     `json:"cancelled_ids,omitempty"`
	Exchange     string       `json:"exchange,omitempty"`
	Status       ResultStatus `json:"status"`
	Reason       string       `json:"reason,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// PriceQuote is a point-in-time price observation for one symbol.
type PriceQuote struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	Change24hPercent float64   `json:"change_24h_percent"`
	Volume24h        float64   `json:"volume_24h,omitempty"`
	Source           string    `json:"source,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Balance is an account balance as reported by an exchange adapter.
type Balance struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Hold      float64 `json:"hold"`
}
