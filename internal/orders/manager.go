package orders

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kucoin-trader/internal/config"
	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/exchange"
	"kucoin-trader/internal/logging"
	"kucoin-trader/internal/models"
	"kucoin-trader/internal/pricing"
	"kucoin-trader/internal/store"
)

// Confidence-derived allocation fractions of the configured maximum.
const (
	mediumConfidenceFactor = 0.6
	lowConfidenceFactor    = 0.3
)

// Manager drives orders through their lifecycle: validation, the optional
// confirmation gate, dispatch to the venue adapter and result persistence.
// Validation rejections and pending-confirmation results are returned to the
// caller but never persisted; only dispatched outcomes reach the store.
type Manager struct {
	system    config.SystemConfig
	assets    config.AssetsConfig
	validator *Validator
	gateways  map[string]exchange.Gateway
	store     store.OrderStore
	oracle    pricing.Oracle
	logger    zerolog.Logger
}

// NewManager creates an order manager. Gateways are registered per venue name
// before submission.
func NewManager(cfg *config.Config, st store.OrderStore, oracle pricing.Oracle, logger zerolog.Logger) *Manager {
	return &Manager{
		system:    cfg.System,
		assets:    cfg.Assets,
		validator: NewValidator(cfg.Assets),
		gateways:  make(map[string]exchange.Gateway),
		store:     st,
		oracle:    oracle,
		logger:    logger,
	}
}

// RegisterGateway registers the adapter serving one venue name.
func (m *Manager) RegisterGateway(name string, gw exchange.Gateway) {
	m.gateways[strings.ToLower(name)] = gw
}

// CreateOrderFromSignal turns a trade signal into a market order. It returns
// nil for HOLD and NONE actions and for symbols outside the configured asset
// universe. The order amount is the signal allocation (or its confidence
// default) applied to the reference portfolio size.
func (m *Manager) CreateOrderFromSignal(signal *models.Signal) *models.Order {
	if signal == nil {
		return nil
	}
	var side models.OrderSide
	switch signal.Action {
	case models.SignalBuy:
		side = models.OrderSideBuy
	case models.SignalSell:
		side = models.OrderSideSell
	default:
		return nil
	}

	asset, ok := m.assets.Find(signal.Symbol)
	if !ok {
		m.logger.Warn().Str("symbol", signal.Symbol).Msg("Signal for unknown symbol ignored")
		return nil
	}

	allocation := signal.Allocation
	if allocation <= 0 {
		allocation = m.allocationFor(signal.Confidence)
	}

	return &models.Order{
		Symbol:     signal.Symbol,
		Type:       models.OrderTypeMarket,
		Side:       side,
		Amount:     allocation * m.system.ReferencePortfolioSize,
		Exchange:   asset.Exchange,
		Status:     models.OrderStateCreated,
		AnalysisID: signal.AnalysisID,
		CreatedAt:  time.Now(),
	}
}

func (m *Manager) allocationFor(confidence models.Confidence) float64 {
	max := m.system.MaxAllocationPerAsset
	switch confidence {
	case models.ConfidenceHigh:
		return max
	case models.ConfidenceMedium:
		return max * mediumConfidenceFactor
	default:
		return max * lowConfidenceFactor
	}
}

// SubmitOrder runs one order through the lifecycle under the globally
// configured confirmation requirement. When the gate applies, the order stops
// there and a pending_confirmation result is returned with the order echoed;
// nothing is dispatched or persisted.
//
// The returned error is non-nil only for persistence failures; business
// rejections and venue failures are reported on the result itself.
func (m *Manager) SubmitOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	return m.submit(ctx, order, nil)
}

// SubmitOrderWithConfirmation submits an order with the confirmation
// requirement overridden for this order alone: true forces the gate even when
// the global setting disables it, false bypasses it.
func (m *Manager) SubmitOrderWithConfirmation(ctx context.Context, order *models.Order, confirm bool) (*models.OrderResult, error) {
	return m.submit(ctx, order, &confirm)
}

// SubmitConfirmedOrder submits an order whose confirmation has been resolved
// by the caller, bypassing the gate.
func (m *Manager) SubmitConfirmedOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	confirm := false
	return m.submit(ctx, order, &confirm)
}

func (m *Manager) submit(ctx context.Context, order *models.Order, confirm *bool) (*models.OrderResult, error) {
	if order == nil {
		return &models.OrderResult{
			Status:    models.StatusError,
			Reason:    "no order provided",
			Timestamp: time.Now(),
		}, nil
	}
	if order.Status == "" {
		order.Status = models.OrderStateCreated
	}

	validation := m.validator.Validate(order)
	if !validation.Valid {
		order.Status = models.OrderStateRejected
		result := m.resultFor(order)
		result.Status = models.StatusError
		result.Reason = "validation failed"
		result.Errors = validation.Errors
		symLogger := logging.WithSymbol(m.logger, order.Symbol)
		symLogger.Warn().
			Strs("errors", validation.Errors).
			Msg("Order rejected")
		// Rejected orders never reach the venue and are not persisted.
		return result, nil
	}
	order.Status = models.OrderStateValidated

	confirmationRequired := m.system.TradeConfirmation
	if confirm != nil {
		confirmationRequired = *confirm
	}
	if confirmationRequired {
		order.Status = models.OrderStatePendingConfirmation
		result := m.resultFor(order)
		result.Status = models.StatusPendingConfirmation
		result.Reason = "trade confirmation required"
		result.Order = order
		m.logger.Info().Str("symbol", order.Symbol).Msg("Order awaiting confirmation")
		return result, nil
	}

	gateway, err := m.resolveGateway(order)
	if err != nil {
		order.Status = models.OrderStateFailed
		result := m.resultFor(order)
		result.Status = models.StatusError
		result.Reason = err.Error()
		return result, m.persist(ctx, result)
	}

	order.Status = models.OrderStateDispatched
	placed, err := m.dispatch(ctx, gateway, order)
	if err != nil {
		order.Status = models.OrderStateFailed
		result := m.resultFor(order)
		result.Status = models.StatusError
		result.Reason = err.Error()
		m.logger.Error().Err(err).Str("symbol", order.Symbol).Msg("Order dispatch failed")
		return result, m.persist(ctx, result)
	}

	order.Status = models.OrderStateSuccess
	result := m.resultFor(order)
	result.Status = models.StatusSuccess
	result.OrderID = placed.OrderID
	result.Response = placed.Response
	logging.LogOrder(m.logger, placed.OrderID, order.Symbol, string(order.Side), string(order.Status))
	return result, m.persist(ctx, result)
}

// resultFor builds the base result echoing the order's identifying fields.
func (m *Manager) resultFor(order *models.Order) *models.OrderResult {
	return &models.OrderResult{
		Symbol:    order.Symbol,
		Type:      order.Type,
		Side:      order.Side,
		Amount:    order.Amount,
		Price:     order.Price,
		Exchange:  order.Exchange,
		Timestamp: time.Now(),
	}
}

func (m *Manager) resolveGateway(order *models.Order) (exchange.Gateway, error) {
	venue := order.Exchange
	if venue == "" {
		asset, ok := m.assets.Find(order.Symbol)
		if !ok {
			return nil, errors.Wrapf(errors.ErrSymbolNotFound, "symbol %s", order.Symbol)
		}
		venue = asset.Exchange
		order.Exchange = venue
	}
	gateway, ok := m.gateways[strings.ToLower(venue)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedExchange, "exchange %s", venue)
	}
	return gateway, nil
}

// dispatch places the order on the venue. The USD amount converts to asset
// size for market sells and all limit orders; market buys pass funds through.
func (m *Manager) dispatch(ctx context.Context, gateway exchange.Gateway, order *models.Order) (*exchange.PlacedOrder, error) {
	asset, ok := m.assets.Find(order.Symbol)
	if !ok {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "symbol %s", order.Symbol)
	}

	if order.Type == models.OrderTypeLimit {
		return gateway.PlaceLimitOrder(ctx, exchange.LimitOrderRequest{
			Pair:  asset.Pair,
			Side:  order.Side,
			Price: order.Price,
			Size:  roundSize(order.Amount / order.Price),
		})
	}

	req := exchange.MarketOrderRequest{Pair: asset.Pair, Side: order.Side}
	if order.Side == models.OrderSideBuy {
		req.Funds = order.Amount
	} else {
		quote, err := m.oracle.GetCurrentPrice(ctx, order.Symbol)
		if err != nil {
			return nil, errors.Wrap(err, "sizing market sell")
		}
		req.Size = roundSize(order.Amount / quote.Price)
	}
	return gateway.PlaceMarketOrder(ctx, req)
}

// roundSize rounds an asset quantity to 8 decimal places, the finest
// increment the venue accepts.
func roundSize(size float64) float64 {
	return math.Round(size*1e8) / 1e8
}

func (m *Manager) persist(ctx context.Context, result *models.OrderResult) error {
	if err := m.store.SaveOrderResult(ctx, result); err != nil {
		m.logger.Error().Err(err).Str("order_id", result.OrderID).Msg("Order result save failed")
		return err
	}
	return nil
}

// SubmitAll submits a batch of orders, continuing past individual failures.
// One result is returned per order, in input order.
func (m *Manager) SubmitAll(ctx context.Context, orderList []*models.Order) []*models.OrderResult {
	results := make([]*models.OrderResult, 0, len(orderList))
	for _, order := range orderList {
		result, err := m.SubmitOrder(ctx, order)
		if err != nil {
			m.logger.Error().Err(err).Msg("Order result persistence failed, continuing batch")
		}
		results = append(results, result)
	}
	return results
}

// CancelOrder cancels one order by id. The order's persisted result supplies
// the venue to dispatch to; an id with no persisted result is recorded as a
// failed cancel without reaching any gateway. The outcome is recorded whether
// or not the cancel succeeds.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) (*models.CancellationRecord, error) {
	record := &models.CancellationRecord{
		OrderID:   orderID,
		Timestamp: time.Now(),
	}

	stored, err := m.store.GetOrderResult(ctx, orderID)
	if err != nil {
		record.Status = models.StatusError
		record.Reason = err.Error()
		idLogger := logging.WithOrderID(m.logger, orderID)
		idLogger.Warn().Msg("Cancel requested for unknown order")
		return record, m.persistCancellation(ctx, record)
	}
	record.Symbol = stored.Symbol
	record.Exchange = stored.Exchange

	gateway, ok := m.gateways[strings.ToLower(stored.Exchange)]
	if !ok {
		record.Status = models.StatusError
		record.Reason = errors.Wrapf(errors.ErrUnsupportedExchange, "exchange %s", stored.Exchange).Error()
		return record, m.persistCancellation(ctx, record)
	}

	cancelled, err := gateway.CancelOrder(ctx, orderID)
	if err != nil {
		record.Status = models.StatusError
		record.Reason = err.Error()
		idLogger := logging.WithOrderID(m.logger, orderID)
		idLogger.Warn().Err(err).Msg("Cancel failed")
	} else {
		record.Status = models.StatusSuccess
		record.CancelledIDs = cancelled
		idLogger := logging.WithOrderID(m.logger, orderID)
		idLogger.Info().Msg("Order cancelled")
	}
	return record, m.persistCancellation(ctx, record)
}

// CancelAllOrders cancels every open order on the venue, optionally scoped to
// one asset symbol.
func (m *Manager) CancelAllOrders(ctx context.Context, venue, symbol string) (*models.CancellationRecord, error) {
	record := &models.CancellationRecord{
		Symbol:    symbol,
		Exchange:  venue,
		Timestamp: time.Now(),
	}

	gateway, ok := m.gateways[strings.ToLower(venue)]
	if !ok {
		record.Status = models.StatusError
		record.Reason = errors.Wrapf(errors.ErrUnsupportedExchange, "exchange %s", venue).Error()
		return record, m.persistCancellation(ctx, record)
	}

	pair := ""
	if symbol != "" {
		asset, ok := m.assets.Find(symbol)
		if !ok {
			record.Status = models.StatusError
			record.Reason = errors.Wrapf(errors.ErrSymbolNotFound, "symbol %s", symbol).Error()
			return record, m.persistCancellation(ctx, record)
		}
		pair = asset.Pair
	}

	cancelled, err := gateway.CancelAllOrders(ctx, pair)
	if err != nil {
		record.Status = models.StatusError
		record.Reason = err.Error()
	} else {
		record.Status = models.StatusSuccess
		record.CancelledIDs = cancelled
	}
	return record, m.persistCancellation(ctx, record)
}

func (m *Manager) persistCancellation(ctx context.Context, record *models.CancellationRecord) error {
	if err := m.store.SaveCancellation(ctx, record); err != nil {
		m.logger.Error().Err(err).Str("order_id", record.OrderID).Msg("Cancellation save failed")
		return err
	}
	return nil
}

// GetOrderResult returns the most recent persisted result for an order id.
func (m *Manager) GetOrderResult(ctx context.Context, orderID string) (*models.OrderResult, error) {
	return m.store.GetOrderResult(ctx, orderID)
}

// GetOrderHistory returns persisted results from the last daysBack days,
// newest first. Results with a missing timestamp are included.
func (m *Manager) GetOrderHistory(ctx context.Context, daysBack int) ([]models.OrderResult, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	since := time.Now().AddDate(0, 0, -daysBack)
	return m.store.GetOrderHistory(ctx, since)
}
