package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/models"
)

// SimGateway implements Gateway with deterministic simulated fills. It is
// selected explicitly through configuration for test and offline use; it is
// never an implicit fallback for a failed live call.
type SimGateway struct {
	prices   map[string]float64
	balances map[string]float64
	open     map[string]*simOrder
	counter  int
	latency  time.Duration
	mu       sync.Mutex
}

type simOrder struct {
	id    string
	pair  string
	side  models.OrderSide
	price float64
	size  float64
}

// SimConfig holds construction parameters for the simulated adapter.
type SimConfig struct {
	// InitialFunds is the starting USDT balance.
	InitialFunds float64
	// Prices seeds the price table, keyed by trading pair.
	Prices map[string]float64
	// Latency is the simulated per-call delay.
	Latency time.Duration
}

// NewSimGateway creates a new simulated gateway.
func NewSimGateway(cfg SimConfig) *SimGateway {
	funds := cfg.InitialFunds
	if funds == 0 {
		funds = 10000
	}
	prices := make(map[string]float64, len(cfg.Prices))
	for pair, price := range cfg.Prices {
		prices[pair] = price
	}
	return &SimGateway{
		prices:   prices,
		balances: map[string]float64{"USDT": funds},
		open:     make(map[string]*simOrder),
		latency:  cfg.Latency,
	}
}

// Name returns the venue identifier.
func (s *SimGateway) Name() string {
	return "sim"
}

// SetPrice sets the simulated price for a trading pair.
func (s *SimGateway) SetPrice(pair string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[pair] = price
}

func (s *SimGateway) sleep(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.latency):
		return nil
	}
}

func (s *SimGateway) nextID() string {
	s.counter++
	return fmt.Sprintf("sim-order-%d", s.counter)
}

func splitPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "-", 2)
	if len(parts) != 2 {
		return pair, "USDT"
	}
	return parts[0], parts[1]
}

// PlaceMarketOrder fills a market order immediately at the table price.
func (s *SimGateway) PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (*PlacedOrder, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[req.Pair]
	if !ok || price <= 0 {
		return nil, errors.Wrapf(errors.ErrNoPriceData, "pair %s", req.Pair)
	}
	base, quote := splitPair(req.Pair)

	var size, funds float64
	switch req.Side {
	case models.OrderSideBuy:
		funds = req.Funds
		size = funds / price
		if s.balances[quote] < funds {
			return nil, errors.Wrapf(errors.ErrInsufficientFunds,
				"need %.2f %s, have %.2f", funds, quote, s.balances[quote])
		}
		s.balances[quote] -= funds
		s.balances[base] += size
	case models.OrderSideSell:
		size = req.Size
		funds = size * price
		if s.balances[base] < size {
			return nil, errors.Wrapf(errors.ErrInsufficientHolding,
				"need %v %s, have %v", size, base, s.balances[base])
		}
		s.balances[base] -= size
		s.balances[quote] += funds
	default:
		return nil, errors.Wrapf(errors.ErrInvalidAction, "side %q", req.Side)
	}

	id := s.nextID()
	return &PlacedOrder{
		OrderID: id,
		Response: map[string]interface{}{
			"orderId":   id,
			"symbol":    req.Pair,
			"side":      string(req.Side),
			"type":      "market",
			"dealPrice": price,
			"dealSize":  size,
			"dealFunds": funds,
		},
	}, nil
}

// PlaceLimitOrder fills a marketable limit order at the limit price and rests
// a non-marketable one as open.
func (s *SimGateway) PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (*PlacedOrder, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Price <= 0 || req.Size <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidAction,
			"limit order requires positive price and size")
	}
	market, ok := s.prices[req.Pair]
	if !ok || market <= 0 {
		return nil, errors.Wrapf(errors.ErrNoPriceData, "pair %s", req.Pair)
	}
	base, quote := splitPair(req.Pair)

	marketable := (req.Side == models.OrderSideBuy && market <= req.Price) ||
		(req.Side == models.OrderSideSell && market >= req.Price)

	id := s.nextID()
	status := "open"
	if marketable {
		funds := req.Price * req.Size
		switch req.Side {
		case models.OrderSideBuy:
			if s.balances[quote] < funds {
				return nil, errors.Wrapf(errors.ErrInsufficientFunds,
					"need %.2f %s, have %.2f", funds, quote, s.balances[quote])
			}
			s.balances[quote] -= funds
			s.balances[base] += req.Size
		case models.OrderSideSell:
			if s.balances[base] < req.Size {
				return nil, errors.Wrapf(errors.ErrInsufficientHolding,
					"need %v %s, have %v", req.Size, base, s.balances[base])
			}
			s.balances[base] -= req.Size
			s.balances[quote] += funds
		}
		status = "done"
	} else {
		s.open[id] = &simOrder{
			id:    id,
			pair:  req.Pair,
			side:  req.Side,
			price: req.Price,
			size:  req.Size,
		}
	}

	return &PlacedOrder{
		OrderID: id,
		Response: map[string]interface{}{
			"orderId": id,
			"symbol":  req.Pair,
			"side":    string(req.Side),
			"type":    "limit",
			"price":   req.Price,
			"size":    req.Size,
			"status":  status,
		},
	}, nil
}

// CancelOrder cancels one open order.
func (s *SimGateway) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[orderID]; !ok {
		return nil, errors.Wrapf(errors.ErrOrderNotFound, "order %s", orderID)
	}
	delete(s.open, orderID)
	return []string{orderID}, nil
}

// CancelAllOrders cancels all open orders, optionally for one pair.
func (s *SimGateway) CancelAllOrders(ctx context.Context, pair string) ([]string, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var cancelled []string
	for id, order := range s.open {
		if pair != "" && order.pair != pair {
			continue
		}
		cancelled = append(cancelled, id)
		delete(s.open, id)
	}
	return cancelled, nil
}

// GetAccountBalance returns simulated balances.
func (s *SimGateway) GetAccountBalance(ctx context.Context, currency string) ([]models.Balance, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var balances []models.Balance
	for cur, available := range s.balances {
		if currency != "" && cur != currency {
			continue
		}
		balances = append(balances, models.Balance{Currency: cur, Available: available})
	}
	return balances, nil
}

// GetCurrentPrice returns the table price for a pair.
func (s *SimGateway) GetCurrentPrice(ctx context.Context, pair string) (*models.PriceQuote, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[pair]
	if !ok || price <= 0 {
		return nil, errors.Wrapf(errors.ErrNoPriceData, "pair %s", pair)
	}
	return &models.PriceQuote{
		Symbol:    pair,
		Price:     price,
		Source:    "sim",
		Timestamp: time.Now(),
	}, nil
}

// OpenOrders returns the number of resting limit orders.
func (s *SimGateway) OpenOrders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Ensure SimGateway implements Gateway
var _ Gateway = (*SimGateway)(nil)
