package orders

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kucoin-trader/internal/config"
	errs "kucoin-trader/internal/errors"
	"kucoin-trader/internal/exchange"
	"kucoin-trader/internal/models"
	"kucoin-trader/internal/pricing"
	"kucoin-trader/internal/store"
)

func testConfig(confirmation bool) *config.Config {
	return &config.Config{
		System: config.SystemConfig{
			Mode:                   config.ModeSimulated,
			TradeConfirmation:      confirmation,
			MaxAllocationPerAsset:  0.20,
			ReferencePortfolioSize: 1000,
		},
		Assets: config.AssetsConfig{
			Crypto: []config.Asset{
				{Symbol: "BTC", Name: "Bitcoin", Exchange: "kucoin", Pair: "BTC-USDT"},
				{Symbol: "ETH", Name: "Ethereum", Exchange: "kucoin", Pair: "ETH-USDT"},
				{Symbol: "XMR", Name: "Monero", Exchange: "kraken", Pair: "XMR-USDT"},
			},
		},
	}
}

func newTestManager(t *testing.T, confirmation bool) (*Manager, *exchange.SimGateway, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	oracle := pricing.NewStaticOracle(map[string]float64{"BTC": 50000, "ETH": 2000})
	gw := exchange.NewSimGateway(exchange.SimConfig{
		InitialFunds: 10000,
		Prices:       map[string]float64{"BTC-USDT": 50000, "ETH-USDT": 2000},
	})
	manager := NewManager(testConfig(confirmation), st, oracle, zerolog.Nop())
	manager.RegisterGateway("kucoin", gw)
	return manager, gw, st
}

func TestSubmitMarketBuy(t *testing.T) {
	manager, _, st := newTestManager(t, false)
	ctx := context.Background()

	order := &models.Order{
		Symbol: "BTC",
		Type:   models.OrderTypeMarket,
		Side:   models.OrderSideBuy,
		Amount: 100,
	}
	result, err := manager.SubmitOrder(ctx, order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Reason)
	}
	if result.OrderID == "" {
		t.Error("expected order id on success")
	}
	if order.Status != models.OrderStateSuccess {
		t.Errorf("expected order state SUCCESS, got %s", order.Status)
	}

	// Terminal results are persisted and retrievable by id.
	stored, err := st.GetOrderResult(ctx, result.OrderID)
	if err != nil {
		t.Fatalf("GetOrderResult: %v", err)
	}
	if stored.Symbol != "BTC" || stored.Status != models.StatusSuccess {
		t.Errorf("unexpected stored result: %+v", stored)
	}
}

func TestSubmitMarketSellConvertsUSDToSize(t *testing.T) {
	manager, gw, _ := newTestManager(t, false)
	ctx := context.Background()

	buy := &models.Order{Symbol: "BTC", Type: models.OrderTypeMarket, Side: models.OrderSideBuy, Amount: 200}
	if result, _ := manager.SubmitOrder(ctx, buy); result.Status != models.StatusSuccess {
		t.Fatalf("buy failed: %s", result.Reason)
	}

	gw.SetPrice("BTC-USDT", 40000)
	sell := &models.Order{Symbol: "BTC", Type: models.OrderTypeMarket, Side: models.OrderSideSell, Amount: 100}
	result, err := manager.SubmitOrder(ctx, sell)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Reason)
	}

	// 100 USD at the 50000 oracle price rounds to 0.002 BTC.
	size, ok := result.Response["dealSize"].(float64)
	if !ok {
		t.Fatalf("expected dealSize in response, got %v", result.Response)
	}
	if math.Abs(size-0.002) > 1e-9 {
		t.Errorf("expected size 0.002, got %v", size)
	}
}

func TestSubmitLimitOrderSizesFromLimitPrice(t *testing.T) {
	manager, gw, _ := newTestManager(t, false)
	ctx := context.Background()

	order := &models.Order{
		Symbol: "BTC",
		Type:   models.OrderTypeLimit,
		Side:   models.OrderSideBuy,
		Amount: 100,
		Price:  30000,
	}
	result, err := manager.SubmitOrder(ctx, order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Reason)
	}

	// 100 / 30000 rounded to 8 decimal places.
	size, _ := result.Response["size"].(float64)
	if math.Abs(size-0.00333333) > 1e-9 {
		t.Errorf("expected size 0.00333333, got %v", size)
	}
	// Non-marketable below spot, so it rests open.
	if gw.OpenOrders() != 1 {
		t.Errorf("expected 1 resting order, got %d", gw.OpenOrders())
	}
}

func TestSubmitRejectsInvalidOrder(t *testing.T) {
	manager, _, st := newTestManager(t, false)
	ctx := context.Background()

	order := &models.Order{
		Symbol: "BTC",
		Type:   models.OrderTypeLimit,
		Side:   models.OrderSideBuy,
		Amount: 100,
	}
	result, err := manager.SubmitOrder(ctx, order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if order.Status != models.OrderStateRejected {
		t.Errorf("expected order state REJECTED, got %s", order.Status)
	}
	found := false
	for _, msg := range result.Errors {
		if msg == "Price is required for limit orders" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected price-required error, got %v", result.Errors)
	}

	// Rejected orders never reach the venue or the store.
	history, err := st.GetOrderHistory(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetOrderHistory: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rejected result persisted: got %d results", len(history))
	}
}

func TestSubmitConfirmationOverrideForcesGate(t *testing.T) {
	manager, gw, _ := newTestManager(t, false)
	ctx := context.Background()

	// Global confirmation is off, but the per-order override forces the gate.
	order := &models.Order{
		Symbol: "BTC",
		Type:   models.OrderTypeMarket,
		Side:   models.OrderSideBuy,
		Amount: 100,
	}
	result, err := manager.SubmitOrderWithConfirmation(ctx, order, true)
	if err != nil {
		t.Fatalf("SubmitOrderWithConfirmation: %v", err)
	}
	if result.Status != models.StatusPendingConfirmation {
		t.Fatalf("expected pending_confirmation, got %s", result.Status)
	}
	balances, _ := gw.GetAccountBalance(ctx, "USDT")
	if len(balances) != 1 || balances[0].Available != 10000 {
		t.Error("gateway balance changed despite forced confirmation gate")
	}
}

func TestSubmitConfirmationGate(t *testing.T) {
	manager, gw, st := newTestManager(t, true)
	ctx := context.Background()

	order := &models.Order{
		Symbol: "BTC",
		Type:   models.OrderTypeMarket,
		Side:   models.OrderSideBuy,
		Amount: 100,
	}
	result, err := manager.SubmitOrder(ctx, order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != models.StatusPendingConfirmation {
		t.Fatalf("expected pending_confirmation, got %s", result.Status)
	}
	if result.Order == nil || result.Order.Symbol != "BTC" {
		t.Error("expected order echoed on pending result")
	}
	if order.Status != models.OrderStatePendingConfirmation {
		t.Errorf("expected PENDING_CONFIRMATION state, got %s", order.Status)
	}

	// Nothing dispatched, nothing persisted.
	balances, _ := gw.GetAccountBalance(ctx, "USDT")
	if len(balances) != 1 || balances[0].Available != 10000 {
		t.Error("gateway balance changed before confirmation")
	}
	history, _ := st.GetOrderHistory(ctx, time.Now().Add(-time.Hour))
	if len(history) != 0 {
		t.Errorf("pending result persisted: %d results", len(history))
	}

	// Resubmitting with the confirmation resolved dispatches normally.
	confirmed, err := manager.SubmitConfirmedOrder(ctx, result.Order)
	if err != nil {
		t.Fatalf("SubmitConfirmedOrder: %v", err)
	}
	if confirmed.Status != models.StatusSuccess {
		t.Fatalf("expected success after confirmation, got %s (%s)", confirmed.Status, confirmed.Reason)
	}
}

func TestSubmitFailureSurfacesWithoutFallback(t *testing.T) {
	manager, gw, st := newTestManager(t, false)
	ctx := context.Background()

	// More than the simulated account holds.
	order := &models.Order{
		Symbol: "BTC",
		Type:   models.OrderTypeMarket,
		Side:   models.OrderSideBuy,
		Amount: 50000,
	}
	result, err := manager.SubmitOrder(ctx, order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if order.Status != models.OrderStateFailed {
		t.Errorf("expected FAILED state, got %s", order.Status)
	}
	if result.OrderID != "" {
		t.Error("failed submission must not carry a venue order id")
	}
	if gw.OpenOrders() != 0 {
		t.Error("failed order left a resting order behind")
	}

	history, _ := st.GetOrderHistory(ctx, time.Now().Add(-time.Hour))
	if len(history) != 1 {
		t.Errorf("expected failure persisted, got %d results", len(history))
	}
}

func TestSubmitUnsupportedExchange(t *testing.T) {
	manager, _, _ := newTestManager(t, false)

	order := &models.Order{
		Symbol: "XMR",
		Type:   models.OrderTypeMarket,
		Side:   models.OrderSideBuy,
		Amount: 100,
	}
	result, err := manager.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if result.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Reason, "unsupported exchange") {
		t.Errorf("expected unsupported exchange reason, got %q", result.Reason)
	}
}

func TestSubmitAllContinuesPastFailures(t *testing.T) {
	manager, _, _ := newTestManager(t, false)

	batch := []*models.Order{
		{Symbol: "BTC", Type: models.OrderTypeMarket, Side: models.OrderSideBuy, Amount: 100},
		{Symbol: "BTC", Type: models.OrderTypeLimit, Side: models.OrderSideBuy, Amount: 100}, // no price
		{Symbol: "ETH", Type: models.OrderTypeMarket, Side: models.OrderSideBuy, Amount: 50},
	}
	results := manager.SubmitAll(context.Background(), batch)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Status != models.StatusSuccess {
		t.Errorf("order 0: expected success, got %s", results[0].Status)
	}
	if results[1].Status != models.StatusError {
		t.Errorf("order 1: expected error, got %s", results[1].Status)
	}
	if results[2].Status != models.StatusSuccess {
		t.Errorf("order 2: expected success, got %s", results[2].Status)
	}
}

func TestCreateOrderFromSignal(t *testing.T) {
	manager, _, _ := newTestManager(t, false)

	tests := []struct {
		name       string
		signal     *models.Signal
		wantNil    bool
		wantSide   models.OrderSide
		wantAmount float64
	}{
		{
			name:       "high confidence buy",
			signal:     &models.Signal{Symbol: "BTC", Action: models.SignalBuy, Confidence: models.ConfidenceHigh},
			wantSide:   models.OrderSideBuy,
			wantAmount: 200, // 0.20 * 1000
		},
		{
			name:       "medium confidence sell",
			signal:     &models.Signal{Symbol: "ETH", Action: models.SignalSell, Confidence: models.ConfidenceMedium},
			wantSide:   models.OrderSideSell,
			wantAmount: 120, // 0.6 * 0.20 * 1000
		},
		{
			name:       "low confidence buy",
			signal:     &models.Signal{Symbol: "BTC", Action: models.SignalBuy, Confidence: models.ConfidenceLow},
			wantSide:   models.OrderSideBuy,
			wantAmount: 60, // 0.3 * 0.20 * 1000
		},
		{
			name:       "explicit allocation wins",
			signal:     &models.Signal{Symbol: "BTC", Action: models.SignalBuy, Confidence: models.ConfidenceLow, Allocation: 0.10},
			wantSide:   models.OrderSideBuy,
			wantAmount: 100,
		},
		{
			name:    "hold produces no order",
			signal:  &models.Signal{Symbol: "BTC", Action: models.SignalHold, Confidence: models.ConfidenceHigh},
			wantNil: true,
		},
		{
			name:    "none produces no order",
			signal:  &models.Signal{Symbol: "BTC", Action: models.SignalNone},
			wantNil: true,
		},
		{
			name:    "unknown symbol produces no order",
			signal:  &models.Signal{Symbol: "DOGE", Action: models.SignalBuy, Confidence: models.ConfidenceHigh},
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := manager.CreateOrderFromSignal(tt.signal)
			if tt.wantNil {
				if order != nil {
					t.Fatalf("expected no order, got %+v", order)
				}
				return
			}
			if order == nil {
				t.Fatal("expected an order")
			}
			if order.Side != tt.wantSide {
				t.Errorf("expected side %s, got %s", tt.wantSide, order.Side)
			}
			if math.Abs(order.Amount-tt.wantAmount) > 1e-9 {
				t.Errorf("expected amount %f, got %f", tt.wantAmount, order.Amount)
			}
			if order.Type != models.OrderTypeMarket {
				t.Errorf("expected market order, got %s", order.Type)
			}
			if order.Status != models.OrderStateCreated {
				t.Errorf("expected CREATED state, got %s", order.Status)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	manager, _, st := newTestManager(t, false)
	ctx := context.Background()

	// Rest a non-marketable limit order, then cancel it.
	order := &models.Order{
		Symbol: "BTC",
		Type:   models.OrderTypeLimit,
		Side:   models.OrderSideBuy,
		Amount: 100,
		Price:  30000,
	}
	result, _ := manager.SubmitOrder(ctx, order)
	if result.Status != models.StatusSuccess {
		t.Fatalf("limit order failed: %s", result.Reason)
	}

	record, err := manager.CancelOrder(ctx, result.OrderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if record.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", record.Status, record.Reason)
	}
	if len(record.CancelledIDs) != 1 || record.CancelledIDs[0] != result.OrderID {
		t.Errorf("unexpected cancelled ids: %v", record.CancelledIDs)
	}
	if len(st.Cancellations()) != 1 {
		t.Errorf("expected 1 cancellation record, got %d", len(st.Cancellations()))
	}
}

// trackingGateway counts cancel dispatches so tests can assert a venue was
// never reached.
type trackingGateway struct {
	*exchange.SimGateway
	cancelCalls int
}

func (g *trackingGateway) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	g.cancelCalls++
	return nil, errs.NewExchangeError("kucoin", "/api/v1/orders", 400, "order does not exist", nil)
}

func TestCancelUnknownOrderRecordsFailure(t *testing.T) {
	manager, gw, st := newTestManager(t, false)
	tracking := &trackingGateway{SimGateway: gw}
	manager.RegisterGateway("kucoin", tracking)

	record, err := manager.CancelOrder(context.Background(), "no-such-order")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if record.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", record.Status)
	}
	if !strings.Contains(record.Reason, "not found") {
		t.Errorf("expected not-found reason, got %q", record.Reason)
	}
	// An id with no stored result never reaches a venue.
	if tracking.cancelCalls != 0 {
		t.Errorf("expected no venue dispatch, got %d cancel calls", tracking.cancelCalls)
	}
	// Failed cancels are recorded too.
	if len(st.Cancellations()) != 1 {
		t.Errorf("expected 1 cancellation record, got %d", len(st.Cancellations()))
	}
}

func TestCancelOrderResolvesVenueFromStoredResult(t *testing.T) {
	manager, _, st := newTestManager(t, false)
	ctx := context.Background()

	// A stored result on a venue with no registered gateway.
	if err := st.SaveOrderResult(ctx, &models.OrderResult{
		OrderID:   "kraken-1",
		Symbol:    "XMR",
		Exchange:  "kraken",
		Status:    models.StatusSuccess,
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("SaveOrderResult: %v", err)
	}

	record, err := manager.CancelOrder(ctx, "kraken-1")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if record.Exchange != "kraken" || record.Symbol != "XMR" {
		t.Errorf("expected venue and symbol from the stored result, got %+v", record)
	}
	if record.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", record.Status)
	}
	if !strings.Contains(record.Reason, "unsupported exchange") {
		t.Errorf("expected unsupported exchange reason, got %q", record.Reason)
	}
}

func TestCancelAllOrdersScopedToSymbol(t *testing.T) {
	manager, gw, _ := newTestManager(t, false)
	ctx := context.Background()

	for _, order := range []*models.Order{
		{Symbol: "BTC", Type: models.OrderTypeLimit, Side: models.OrderSideBuy, Amount: 100, Price: 30000},
		{Symbol: "ETH", Type: models.OrderTypeLimit, Side: models.OrderSideBuy, Amount: 100, Price: 1000},
	} {
		if result, _ := manager.SubmitOrder(ctx, order); result.Status != models.StatusSuccess {
			t.Fatalf("limit order failed: %s", result.Reason)
		}
	}

	record, err := manager.CancelAllOrders(ctx, "kucoin", "BTC")
	if err != nil {
		t.Fatalf("CancelAllOrders: %v", err)
	}
	if record.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", record.Status)
	}
	if len(record.CancelledIDs) != 1 {
		t.Errorf("expected 1 cancelled id, got %v", record.CancelledIDs)
	}
	if gw.OpenOrders() != 1 {
		t.Errorf("expected ETH order still open, got %d open", gw.OpenOrders())
	}
}

func TestGetOrderHistoryIncludesTimestamplessResults(t *testing.T) {
	manager, _, st := newTestManager(t, false)
	ctx := context.Background()

	// One normal result and one legacy record with no timestamp.
	if result, _ := manager.SubmitOrder(ctx, &models.Order{
		Symbol: "BTC", Type: models.OrderTypeMarket, Side: models.OrderSideBuy, Amount: 100,
	}); result.Status != models.StatusSuccess {
		t.Fatalf("buy failed: %s", result.Reason)
	}
	if err := st.SaveOrderResult(ctx, &models.OrderResult{
		OrderID: "legacy-1",
		Symbol:  "ETH",
		Status:  models.StatusSuccess,
	}); err != nil {
		t.Fatalf("SaveOrderResult: %v", err)
	}

	history, err := manager.GetOrderHistory(ctx, 7)
	if err != nil {
		t.Fatalf("GetOrderHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 results including the timestampless one, got %d", len(history))
	}
}
