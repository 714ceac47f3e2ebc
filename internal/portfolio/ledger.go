// Package portfolio provides the portfolio ledger: cash and holdings
// accounting, trade recording, valuation and allocation.
package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/logging"
	"kucoin-trader/internal/models"
	"kucoin-trader/internal/pricing"
	"kucoin-trader/internal/store"
)

// quantityEpsilon is the threshold below which a holding quantity is treated
// as fully sold out.
const quantityEpsilon = 1e-9

// Ledger owns the portfolio state. All mutations are all-or-nothing: a trade
// either applies completely and is followed by a snapshot and a store write,
// or leaves the state untouched.
type Ledger struct {
	id     string
	state  *models.PortfolioState
	store  store.LedgerStore
	oracle pricing.Oracle
	logger zerolog.Logger
}

// NewLedger loads the portfolio from the store, or initializes a fresh one
// with the given capital when no document exists yet.
func NewLedger(ctx context.Context, initialCapital float64, st store.LedgerStore, oracle pricing.Oracle, logger zerolog.Logger) (*Ledger, error) {
	l := &Ledger{
		id:     store.DefaultPortfolioID,
		store:  st,
		oracle: oracle,
		logger: logger,
	}

	state, err := st.LoadPortfolio(ctx, l.id)
	switch {
	case err == nil:
		l.state = state
	case errors.Is(err, errors.ErrDataNotFound):
		if err := l.initialize(ctx, initialCapital); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return l, nil
}

// initialize creates a fresh portfolio with one initial snapshot.
func (l *Ledger) initialize(ctx context.Context, initialCapital float64) error {
	if initialCapital <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "initial capital must be positive, got %.2f", initialCapital)
	}
	now := time.Now()
	state := &models.PortfolioState{
		CreatedAt:      now,
		UpdatedAt:      now,
		InitialCapital: initialCapital,
		Cash:           initialCapital,
		TotalValue:     initialCapital,
		Holdings:       make(map[string]*models.Holding),
	}
	state.History = append(state.History, snapshotOf(state, now))

	if err := l.store.SavePortfolio(ctx, l.id, state); err != nil {
		return err
	}
	l.state = state
	l.logger.Info().Float64("initial_capital", initialCapital).Msg("Portfolio initialized")
	return nil
}

// State returns a deep copy of the current portfolio state.
func (l *Ledger) State() *models.PortfolioState {
	return l.state.Clone()
}

// Cash returns the available cash balance.
func (l *Ledger) Cash() float64 {
	return l.state.Cash
}

// TotalValue returns the total portfolio value including cash.
func (l *Ledger) TotalValue() float64 {
	return l.state.TotalValue
}

// UpdatePrices refreshes every holding's valuation from the oracle. Held
// symbols missing from the snapshot keep their stale valuation and are
// logged; the call fails only when the oracle itself fails.
func (l *Ledger) UpdatePrices(ctx context.Context) error {
	quotes, err := l.oracle.GetLatestPrices(ctx)
	if err != nil {
		return errors.Wrap(err, "updating prices")
	}

	next := l.state.Clone()
	l.applyQuotes(next, quotes, time.Now())

	if err := l.store.SavePortfolio(ctx, l.id, next); err != nil {
		l.state = next
		return err
	}
	l.state = next
	return nil
}

// applyQuotes marks holdings to the given quotes and recomputes totals and
// allocations.
func (l *Ledger) applyQuotes(state *models.PortfolioState, quotes map[string]*models.PriceQuote, now time.Time) {
	for symbol, holding := range state.Holdings {
		quote, ok := quotes[symbol]
		if !ok || quote.Price <= 0 {
			l.logger.Warn().Str("symbol", symbol).Msg("No price data, keeping stale valuation")
			continue
		}
		holding.CurrentPrice = quote.Price
		holding.CurrentValue = holding.Quantity * quote.Price
		holding.ProfitLoss = holding.CurrentValue - holding.CostBasis
		if holding.CostBasis > 0 {
			holding.ProfitLossPercent = holding.ProfitLoss / holding.CostBasis * 100
		}
		holding.LastUpdatedAt = now
	}
	recomputeTotals(state)
	state.UpdatedAt = now
}

// recomputeTotals restores the conservation invariant
// total_value == cash + sum(current_value) and refreshes allocations.
func recomputeTotals(state *models.PortfolioState) {
	state.TotalValue = state.Cash + state.HoldingsValue()
	for _, holding := range state.Holdings {
		if state.TotalValue > 0 {
			holding.Allocation = holding.CurrentValue / state.TotalValue
		} else {
			holding.Allocation = 0
		}
	}
}

// RecordTrade applies one executed trade. It returns the realized profit or
// loss (zero for buys). On a business-rule violation the state is unchanged
// and a LedgerError wrapping the rule sentinel is returned. A store write
// failure after the trade applied returns a PersistenceError while keeping
// the in-memory state.
func (l *Ledger) RecordTrade(ctx context.Context, symbol string, action models.TradeAction, quantity, price float64, timestamp time.Time) (float64, error) {
	if quantity <= 0 || price <= 0 {
		return 0, errors.NewLedgerError(symbol, string(action), "quantity and price must be positive", errors.ErrInvalidAction)
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	tradeValue := quantity * price

	next := l.state.Clone()
	var realized float64

	switch action {
	case models.TradeActionBuy:
		if tradeValue > next.Cash {
			return 0, errors.NewLedgerError(symbol, string(action), "trade value exceeds available cash", errors.ErrInsufficientFunds)
		}
		next.Cash -= tradeValue
		holding, ok := next.Holdings[symbol]
		if !ok {
			next.Holdings[symbol] = &models.Holding{
				Symbol:          symbol,
				Quantity:        quantity,
				CostBasis:       tradeValue,
				AveragePrice:    price,
				CurrentPrice:    price,
				CurrentValue:    tradeValue,
				FirstAcquiredAt: timestamp,
				LastUpdatedAt:   timestamp,
			}
		} else {
			newQuantity := holding.Quantity + quantity
			newCostBasis := holding.CostBasis + tradeValue
			holding.Quantity = newQuantity
			holding.CostBasis = newCostBasis
			holding.AveragePrice = newCostBasis / newQuantity
			holding.CurrentPrice = price
			holding.CurrentValue = newQuantity * price
			holding.LastUpdatedAt = timestamp
		}

	case models.TradeActionSell:
		holding, ok := next.Holdings[symbol]
		if !ok {
			return 0, errors.NewLedgerError(symbol, string(action), "symbol not held", errors.ErrInsufficientHolding)
		}
		if quantity > holding.Quantity {
			return 0, errors.NewLedgerError(symbol, string(action), "sell quantity exceeds held quantity", errors.ErrInsufficientHolding)
		}
		realized = (price - holding.AveragePrice) * quantity
		next.Cash += tradeValue

		newQuantity := holding.Quantity - quantity
		if newQuantity < quantityEpsilon {
			delete(next.Holdings, symbol)
		} else {
			soldBasis := holding.AveragePrice * quantity
			holding.Quantity = newQuantity
			holding.CostBasis -= soldBasis
			holding.CurrentPrice = price
			holding.CurrentValue = newQuantity * price
			holding.LastUpdatedAt = timestamp
		}

	default:
		return 0, errors.NewLedgerError(symbol, string(action), "action must be buy or sell", errors.ErrInvalidAction)
	}

	next.Trades = append(next.Trades, models.TradeRecord{
		Timestamp: timestamp,
		Symbol:    symbol,
		Action:    action,
		Quantity:  quantity,
		Price:     price,
		Value:     tradeValue,
	})

	// Refresh valuation before snapshotting. A failing oracle does not undo
	// the trade; the trade price already keeps the state consistent.
	if quotes, err := l.oracle.GetLatestPrices(ctx); err == nil {
		l.applyQuotes(next, quotes, timestamp)
	} else {
		l.logger.Warn().Err(err).Msg("Price refresh after trade failed, using trade-price valuation")
		recomputeTotals(next)
		next.UpdatedAt = timestamp
	}

	next.History = append(next.History, snapshotOf(next, timestamp))

	l.state = next
	logging.LogTrade(l.logger, symbol, string(action), quantity, price)

	if err := l.store.SavePortfolio(ctx, l.id, next); err != nil {
		l.logger.Error().Err(err).Msg("Portfolio save failed, trade applied in memory only")
		return realized, err
	}
	return realized, nil
}

// snapshotOf builds the reduced audit snapshot of a state.
func snapshotOf(state *models.PortfolioState, date time.Time) models.Snapshot {
	snapshot := models.Snapshot{
		Date:       date,
		TotalValue: state.TotalValue,
		Cash:       state.Cash,
		Holdings:   make(map[string]models.SnapshotPosition, len(state.Holdings)),
	}
	for symbol, holding := range state.Holdings {
		snapshot.Holdings[symbol] = models.SnapshotPosition{
			Quantity:     holding.Quantity,
			CurrentValue: holding.CurrentValue,
			Allocation:   holding.Allocation,
		}
	}
	return snapshot
}

// Allocation returns the fraction of total value held in one symbol, or in
// cash for the "cash" pseudo-symbol. Unknown symbols return 0.
func (l *Ledger) Allocation(symbol string) float64 {
	if l.state.TotalValue <= 0 {
		return 0
	}
	if symbol == "cash" {
		return l.state.Cash / l.state.TotalValue
	}
	holding, ok := l.state.Holdings[symbol]
	if !ok {
		return 0
	}
	return holding.Allocation
}

// AssetSummary is the per-asset view in a portfolio summary.
type AssetSummary struct {
	Symbol            string  `json:"symbol"`
	Quantity          float64 `json:"quantity"`
	CurrentPrice      float64 `json:"current_price"`
	CurrentValue      float64 `json:"current_value"`
	Allocation        float64 `json:"allocation"`
	ProfitLoss        float64 `json:"profit_loss"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
}

// Summary is a read-only view of the portfolio.
type Summary struct {
	UpdatedAt              time.Time      `json:"updated_at"`
	TotalValue             float64        `json:"total_value"`
	InitialCapital         float64        `json:"initial_capital"`
	Cash                   float64        `json:"cash"`
	CashAllocation         float64        `json:"cash_allocation"`
	InvestedValue          float64        `json:"invested_value"`
	TotalProfitLoss        float64        `json:"total_profit_loss"`
	TotalProfitLossPercent float64        `json:"total_profit_loss_percent"`
	AssetCount             int            `json:"asset_count"`
	Assets                 []AssetSummary `json:"assets"`
}

// Summary refreshes valuation and returns the portfolio summary with assets
// sorted by allocation descending.
func (l *Ledger) Summary(ctx context.Context) (*Summary, error) {
	if err := l.UpdatePrices(ctx); err != nil {
		return nil, err
	}

	state := l.state
	summary := &Summary{
		UpdatedAt:      state.UpdatedAt,
		TotalValue:     state.TotalValue,
		InitialCapital: state.InitialCapital,
		Cash:           state.Cash,
		CashAllocation: l.Allocation("cash"),
		InvestedValue:  state.TotalValue - state.Cash,
		AssetCount:     len(state.Holdings),
	}
	summary.TotalProfitLoss = state.TotalValue - state.InitialCapital
	if state.InitialCapital > 0 {
		summary.TotalProfitLossPercent = summary.TotalProfitLoss / state.InitialCapital * 100
	}

	for _, holding := range state.Holdings {
		summary.Assets = append(summary.Assets, AssetSummary{
			Symbol:            holding.Symbol,
			Quantity:          holding.Quantity,
			CurrentPrice:      holding.CurrentPrice,
			CurrentValue:      holding.CurrentValue,
			Allocation:        holding.Allocation,
			ProfitLoss:        holding.ProfitLoss,
			ProfitLossPercent: holding.ProfitLossPercent,
		})
	}
	sort.Slice(summary.Assets, func(i, j int) bool {
		return summary.Assets[i].Allocation > summary.Assets[j].Allocation
	})

	return summary, nil
}

// Rebalance actions.
const (
	RebalanceReduce = "REDUCE"
	RebalanceDeploy = "DEPLOY"
)

// RebalanceAction is one advisory rebalancing step. It never mutates state
// or places orders.
type RebalanceAction struct {
	Symbol            string  `json:"symbol"`
	Action            string  `json:"action"`
	CurrentAllocation float64 `json:"current_allocation"`
	TargetAllocation  float64 `json:"target_allocation"`
	ValueToAdjust     float64 `json:"value_to_adjust"`
}

// RebalanceRecommendations flags holdings above maxAllocation and cash above
// maxCashAllocation.
func (l *Ledger) RebalanceRecommendations(maxAllocation, maxCashAllocation float64) []RebalanceAction {
	state := l.state
	var actions []RebalanceAction

	symbols := make([]string, 0, len(state.Holdings))
	for symbol := range state.Holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		holding := state.Holdings[symbol]
		if holding.Allocation > maxAllocation {
			excess := holding.Allocation - maxAllocation
			actions = append(actions, RebalanceAction{
				Symbol:            symbol,
				Action:            RebalanceReduce,
				CurrentAllocation: holding.Allocation,
				TargetAllocation:  maxAllocation,
				ValueToAdjust:     excess * state.TotalValue,
			})
		}
	}

	cashAllocation := l.Allocation("cash")
	if cashAllocation > maxCashAllocation {
		actions = append(actions, RebalanceAction{
			Symbol:            "cash",
			Action:            RebalanceDeploy,
			CurrentAllocation: cashAllocation,
			TargetAllocation:  maxCashAllocation,
			ValueToAdjust:     (cashAllocation - maxCashAllocation) * state.TotalValue,
		})
	}

	return actions
}

// CheckInvariant verifies total_value == cash + sum(current_value) within a
// floating-point epsilon.
func (l *Ledger) CheckInvariant() bool {
	return math.Abs(l.state.TotalValue-(l.state.Cash+l.state.HoldingsValue())) < 1e-6
}
