package exchange

import (
	"context"
	"math"
	"testing"

	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/models"
)

func newTestGateway() *SimGateway {
	return NewSimGateway(SimConfig{
		InitialFunds: 10000,
		Prices:       map[string]float64{"BTC-USDT": 50000, "ETH-USDT": 2000},
	})
}

func usdtBalance(t *testing.T, gw *SimGateway) float64 {
	t.Helper()
	balances, err := gw.GetAccountBalance(context.Background(), "USDT")
	if err != nil {
		t.Fatalf("GetAccountBalance: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected 1 USDT balance, got %d", len(balances))
	}
	return balances[0].Available
}

func TestSimMarketBuy(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	placed, err := gw.PlaceMarketOrder(ctx, MarketOrderRequest{
		Pair:  "BTC-USDT",
		Side:  models.OrderSideBuy,
		Funds: 500,
	})
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}
	if placed.OrderID == "" {
		t.Error("expected order id")
	}
	if got := usdtBalance(t, gw); got != 9500 {
		t.Errorf("expected 9500 USDT, got %f", got)
	}

	size, _ := placed.Response["dealSize"].(float64)
	if math.Abs(size-0.01) > 1e-9 {
		t.Errorf("expected 0.01 BTC filled, got %v", size)
	}
}

func TestSimMarketSellRequiresHolding(t *testing.T) {
	gw := newTestGateway()
	_, err := gw.PlaceMarketOrder(context.Background(), MarketOrderRequest{
		Pair: "BTC-USDT",
		Side: models.OrderSideSell,
		Size: 1,
	})
	if !errors.Is(err, errors.ErrInsufficientHolding) {
		t.Fatalf("expected ErrInsufficientHolding, got %v", err)
	}
}

func TestSimMarketBuyInsufficientFunds(t *testing.T) {
	gw := newTestGateway()
	_, err := gw.PlaceMarketOrder(context.Background(), MarketOrderRequest{
		Pair:  "BTC-USDT",
		Side:  models.OrderSideBuy,
		Funds: 50000,
	})
	if !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := usdtBalance(t, gw); got != 10000 {
		t.Errorf("balance changed on rejected order: %f", got)
	}
}

func TestSimUnknownPair(t *testing.T) {
	gw := newTestGateway()
	_, err := gw.PlaceMarketOrder(context.Background(), MarketOrderRequest{
		Pair:  "DOGE-USDT",
		Side:  models.OrderSideBuy,
		Funds: 10,
	})
	if !errors.Is(err, errors.ErrNoPriceData) {
		t.Fatalf("expected ErrNoPriceData, got %v", err)
	}
}

func TestSimLimitOrderMarketability(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	// Buy limit above spot fills immediately.
	marketable, err := gw.PlaceLimitOrder(ctx, LimitOrderRequest{
		Pair:  "BTC-USDT",
		Side:  models.OrderSideBuy,
		Price: 55000,
		Size:  0.01,
	})
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if status, _ := marketable.Response["status"].(string); status != "done" {
		t.Errorf("expected done, got %v", status)
	}

	// Buy limit below spot rests.
	resting, err := gw.PlaceLimitOrder(ctx, LimitOrderRequest{
		Pair:  "BTC-USDT",
		Side:  models.OrderSideBuy,
		Price: 40000,
		Size:  0.01,
	})
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if status, _ := resting.Response["status"].(string); status != "open" {
		t.Errorf("expected open, got %v", status)
	}
	if gw.OpenOrders() != 1 {
		t.Errorf("expected 1 open order, got %d", gw.OpenOrders())
	}
}

func TestSimCancelOrder(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	resting, err := gw.PlaceLimitOrder(ctx, LimitOrderRequest{
		Pair:  "BTC-USDT",
		Side:  models.OrderSideBuy,
		Price: 40000,
		Size:  0.01,
	})
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}

	cancelled, err := gw.CancelOrder(ctx, resting.OrderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0] != resting.OrderID {
		t.Errorf("unexpected cancelled ids: %v", cancelled)
	}

	if _, err := gw.CancelOrder(ctx, resting.OrderID); !errors.Is(err, errors.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound on second cancel, got %v", err)
	}
}

func TestSimCancelAllOrdersScopedToPair(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	for _, req := range []LimitOrderRequest{
		{Pair: "BTC-USDT", Side: models.OrderSideBuy, Price: 40000, Size: 0.01},
		{Pair: "ETH-USDT", Side: models.OrderSideBuy, Price: 1500, Size: 0.1},
	} {
		if _, err := gw.PlaceLimitOrder(ctx, req); err != nil {
			t.Fatalf("PlaceLimitOrder: %v", err)
		}
	}

	cancelled, err := gw.CancelAllOrders(ctx, "BTC-USDT")
	if err != nil {
		t.Fatalf("CancelAllOrders: %v", err)
	}
	if len(cancelled) != 1 {
		t.Errorf("expected 1 cancelled, got %d", len(cancelled))
	}
	if gw.OpenOrders() != 1 {
		t.Errorf("expected ETH order still open, got %d", gw.OpenOrders())
	}

	cancelled, err = gw.CancelAllOrders(ctx, "")
	if err != nil {
		t.Fatalf("CancelAllOrders: %v", err)
	}
	if len(cancelled) != 1 || gw.OpenOrders() != 0 {
		t.Errorf("expected remaining order cancelled, got %v, %d open", cancelled, gw.OpenOrders())
	}
}

func TestSimGetCurrentPrice(t *testing.T) {
	gw := newTestGateway()
	quote, err := gw.GetCurrentPrice(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if quote.Price != 50000 {
		t.Errorf("expected 50000, got %f", quote.Price)
	}

	gw.SetPrice("BTC-USDT", 51000)
	quote, err = gw.GetCurrentPrice(context.Background(), "BTC-USDT")
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if quote.Price != 51000 {
		t.Errorf("expected updated price 51000, got %f", quote.Price)
	}
}

func TestSimRoundTripPreservesFunds(t *testing.T) {
	gw := newTestGateway()
	ctx := context.Background()

	if _, err := gw.PlaceMarketOrder(ctx, MarketOrderRequest{
		Pair: "BTC-USDT", Side: models.OrderSideBuy, Funds: 1000,
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := gw.PlaceMarketOrder(ctx, MarketOrderRequest{
		Pair: "BTC-USDT", Side: models.OrderSideSell, Size: 0.02,
	}); err != nil {
		t.Fatalf("sell: %v", err)
	}

	// Buy and sell at the same price; the fee-free sim restores the balance.
	if got := usdtBalance(t, gw); math.Abs(got-10000) > 1e-6 {
		t.Errorf("expected 10000 after round trip, got %f", got)
	}
}
