// Package exchange provides exchange gateway interfaces and implementations.
package exchange

import (
	"context"

	"kucoin-trader/internal/models"
)

// Gateway defines the capability set of an exchange adapter. Two variants
// exist: the live KuCoin adapter and the simulated adapter. The variant is
// selected once at construction time from configuration; a live failure is
// surfaced, never silently replaced by a simulated fill.
type Gateway interface {
	// Name returns the venue identifier, e.g. "kucoin".
	Name() string

	// PlaceMarketOrder places a market order. Buys are funded in quote
	// currency (USD notional); sells specify the asset size.
	PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (*PlacedOrder, error)

	// PlaceLimitOrder places a limit order for the given size at the given price.
	PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (*PlacedOrder, error)

	// CancelOrder cancels one order by id, returning the cancelled ids.
	CancelOrder(ctx context.Context, orderID string) ([]string, error)

	// CancelAllOrders cancels all open orders, optionally scoped to one
	// trading pair (empty pair means all).
	CancelAllOrders(ctx context.Context, pair string) ([]string, error)

	// GetAccountBalance returns balances, optionally filtered by currency.
	GetAccountBalance(ctx context.Context, currency string) ([]models.Balance, error)

	// GetCurrentPrice returns the latest quote for a trading pair.
	GetCurrentPrice(ctx context.Context, pair string) (*models.PriceQuote, error)
}

// MarketOrderRequest holds parameters for a market order.
type MarketOrderRequest struct {
	Pair string
	Side models.OrderSide
	// Funds is the quote-currency notional, used for buys.
	Funds float64
	// Size is the asset quantity, used for sells.
	Size float64
}

// LimitOrderRequest holds parameters for a limit order.
type LimitOrderRequest struct {
	Pair  string
	Side  models.OrderSide
	Price float64
	Size  float64
}

// PlacedOrder is the venue's acknowledgement of an accepted order.
type PlacedOrder struct {
	OrderID  string
	Response map[string]interface{}
}
