package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/models"
)

// MemoryStore implements Store in memory. It backs tests and offline runs.
// Documents round-trip through JSON so in-memory behavior matches the SQLite
// implementation.
type MemoryStore struct {
	portfolios    map[string][]byte
	orders        map[string][]models.OrderResult
	cancellations []models.CancellationRecord
	mu            sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: make(map[string][]byte),
		orders:     make(map[string][]models.OrderResult),
	}
}

// SavePortfolio stores a deep copy of the portfolio document.
func (m *MemoryStore) SavePortfolio(ctx context.Context, id string, state *models.PortfolioState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return errors.NewPersistenceError("portfolios", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[id] = doc
	return nil
}

// LoadPortfolio returns the stored portfolio document.
func (m *MemoryStore) LoadPortfolio(ctx context.Context, id string) (*models.PortfolioState, error) {
	m.mu.RLock()
	doc, ok := m.portfolios[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrDataNotFound, "portfolio %s", id)
	}
	var state models.PortfolioState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, errors.NewPersistenceError("portfolios", id, err)
	}
	if state.Holdings == nil {
		state.Holdings = make(map[string]*models.Holding)
	}
	return &state, nil
}

// SaveOrderResult stores one submission result.
func (m *MemoryStore) SaveOrderResult(ctx context.Context, result *models.OrderResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[result.OrderID] = append(m.orders[result.OrderID], *result)
	return nil
}

// GetOrderResult returns the most recent result for an order id.
func (m *MemoryStore) GetOrderResult(ctx context.Context, orderID string) (*models.OrderResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results, ok := m.orders[orderID]
	if !ok || len(results) == 0 {
		return nil, errors.Wrapf(errors.ErrOrderNotFound, "order %s", orderID)
	}
	result := results[len(results)-1]
	return &result, nil
}

// GetOrderHistory returns results since the given time, newest first.
// Results with a zero timestamp are included rather than dropped.
func (m *MemoryStore) GetOrderHistory(ctx context.Context, since time.Time) ([]models.OrderResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []models.OrderResult
	for _, list := range m.orders {
		for _, r := range list {
			if r.Timestamp.IsZero() || !r.Timestamp.Before(since) {
				results = append(results, r)
			}
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	return results, nil
}

// SaveCancellation stores one cancellation record.
func (m *MemoryStore) SaveCancellation(ctx context.Context, record *models.CancellationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations = append(m.cancellations, *record)
	return nil
}

// Cancellations returns all stored cancellation records.
func (m *MemoryStore) Cancellations() []models.CancellationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CancellationRecord, len(m.cancellations))
	copy(out, m.cancellations)
	return out
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
