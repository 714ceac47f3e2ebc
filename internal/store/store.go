// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"kucoin-trader/internal/models"
)

// DefaultPortfolioID identifies the single portfolio document in
// single-portfolio deployments.
const DefaultPortfolioID = "default"

// LedgerStore persists portfolio documents, one per portfolio id.
type LedgerStore interface {
	// SavePortfolio writes the full portfolio document, replacing any
	// previous revision.
	SavePortfolio(ctx context.Context, id string, state *models.PortfolioState) error

	// LoadPortfolio reads the portfolio document. Returns ErrDataNotFound
	// when no document exists for the id.
	LoadPortfolio(ctx context.Context, id string) (*models.PortfolioState, error)
}

// OrderStore persists order results and cancellation records, addressable by
// (order id, date) and queryable by time range.
type OrderStore interface {
	// SaveOrderResult writes one terminal submission result.
	SaveOrderResult(ctx context.Context, result *models.OrderResult) error

	// GetOrderResult returns the most recent result for an order id.
	// Returns ErrOrderNotFound when the id is unknown.
	GetOrderResult(ctx context.Context, orderID string) (*models.OrderResult, error)

	// GetOrderHistory returns results with a timestamp at or after since,
	// newest first. Results whose timestamp is missing are included rather
	// than dropped.
	GetOrderHistory(ctx context.Context, since time.Time) ([]models.OrderResult, error)

	// SaveCancellation writes one cancellation record.
	SaveCancellation(ctx context.Context, record *models.CancellationRecord) error
}

// Store combines both persistence roles; the SQLite and in-memory
// implementations provide both.
type Store interface {
	LedgerStore
	OrderStore
	Close() error
}
