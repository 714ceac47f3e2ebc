package models

import (
	"time"
)

// TradeAction is the direction of a recorded trade.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// Holding is one asset position inside a portfolio. A holding is removed from
// the portfolio when its quantity reaches exactly zero.
type Holding struct {
	Symbol            string    `json:"symbol"`
	Quantity          float64   `json:"quantity"`
	CostBasis         float64   `json:"cost_basis"`
	AveragePrice      float64   `json:"average_price"`
	CurrentPrice      float64   `json:"current_price"`
	CurrentValue      float64   `json:"current_value"`
	ProfitLoss        float64   `json:"profit_loss"`
	ProfitLossPercent float64   `json:"profit_loss_percent"`
	Allocation        float64   `json:"allocation"`
	FirstAcquiredAt   time.Time `json:"first_purchased"`
	LastUpdatedAt     time.Time `json:"last_updated"`
}

// TradeRecord is one executed trade. Records are append-only and kept in
// chronological insertion order.
type TradeRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	Symbol    string      `json:"symbol"`
	Action    TradeAction `json:"action"`
	Quantity  float64     `json:"quantity"`
	Price     float64     `json:"price"`
	Value     float64     `json:"value"`
}

// SnapshotPosition is the reduced per-symbol view stored in a snapshot.
type SnapshotPosition struct {
	Quantity     float64 `json:"quantity"`
	CurrentValue float64 `json:"current_value"`
	Allocation   float64 `json:"allocation"`
}

// Snapshot is a point-in-time record of portfolio valuation, appended to the
// history for audit and trend purposes.
type Snapshot struct {
	Date       time.Time                   `json:"date"`
	TotalValue float64                     `json:"total_value"`
	Cash       float64                     `json:"cash"`
	Holdings   map[string]SnapshotPosition `json:"holdings"`
}

// PortfolioState is the full persisted state of one portfolio.
//
// Invariant: TotalValue == Cash + sum of holdings' CurrentValue after every
// mutating operation.
type PortfolioState struct {
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	InitialCapital float64             `json:"initial_capital"`
	Cash           float64             `json:"cash"`
	TotalValue     float64             `json:"total_value"`
	Holdings       map[string]*Holding `json:"holdings"`
	Trades         []TradeRecord       `json:"trades"`
	History        []Snapshot          `json:"history"`
}

// Clone returns a deep copy of the state. The ledger mutates a clone and
// swaps it in only after the whole operation succeeds.
func (p *PortfolioState) Clone() *PortfolioState {
	c := *p
	c.Holdings = make(map[string]*Holding, len(p.Holdings))
	for sym, h := range p.Holdings {
		hc := *h
		c.Holdings[sym] = &hc
	}
	c.Trades = make([]TradeRecord, len(p.Trades))
	copy(c.Trades, p.Trades)
	c.History = make([]Snapshot, len(p.History))
	for i, s := range p.History {
		sc := s
		sc.Holdings = make(map[string]SnapshotPosition, len(s.Holdings))
		for sym, pos := range s.Holdings {
			sc.Holdings[sym] = pos
		}
		c.History[i] = sc
	}
	return &c
}

// HoldingsValue returns the summed current value of all holdings.
func (p *PortfolioState) HoldingsValue() float64 {
	var total float64
	for _, h := range p.Holdings {
		total += h.CurrentValue
	}
	return total
}
