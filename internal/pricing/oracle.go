// Package pricing provides price oracle interfaces and implementations.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kucoin-trader/internal/config"
	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/exchange"
	"kucoin-trader/internal/models"
)

// Oracle supplies current prices for configured assets.
type Oracle interface {
	// GetCurrentPrice returns the latest quote for one asset symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (*models.PriceQuote, error)

	// GetLatestPrices returns the latest quote per symbol for the whole
	// asset universe. Individual fetch failures are skipped; the call fails
	// only when no symbol could be priced.
	GetLatestPrices(ctx context.Context) (map[string]*models.PriceQuote, error)
}

// GatewayOracle resolves prices through an exchange gateway using the
// configured asset universe for symbol-to-pair mapping.
type GatewayOracle struct {
	gateway exchange.Gateway
	assets  config.AssetsConfig
	logger  zerolog.Logger
}

// NewGatewayOracle creates an oracle backed by an exchange gateway.
func NewGatewayOracle(gw exchange.Gateway, assets config.AssetsConfig, logger zerolog.Logger) *GatewayOracle {
	return &GatewayOracle{
		gateway: gw,
		assets:  assets,
		logger:  logger,
	}
}

// GetCurrentPrice returns the latest quote for one symbol.
func (o *GatewayOracle) GetCurrentPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	asset, ok := o.assets.Find(symbol)
	if !ok {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "symbol %s", symbol)
	}
	quote, err := o.gateway.GetCurrentPrice(ctx, asset.Pair)
	if err != nil {
		return nil, err
	}
	// Report the asset symbol, not the venue pair.
	quote.Symbol = symbol
	return quote, nil
}

// GetLatestPrices fetches quotes for every configured crypto asset.
func (o *GatewayOracle) GetLatestPrices(ctx context.Context) (map[string]*models.PriceQuote, error) {
	quotes := make(map[string]*models.PriceQuote)
	var lastErr error

	for _, asset := range o.assets.Crypto {
		quote, err := o.gateway.GetCurrentPrice(ctx, asset.Pair)
		if err != nil {
			lastErr = err
			o.logger.Warn().Err(err).Str("symbol", asset.Symbol).Msg("Price fetch failed")
			continue
		}
		quote.Symbol = asset.Symbol
		quotes[asset.Symbol] = quote
	}

	if len(quotes) == 0 {
		if lastErr != nil {
			return nil, errors.Wrap(lastErr, "fetching latest prices")
		}
		return nil, errors.ErrNoPriceData
	}
	return quotes, nil
}

// StaticOracle serves a fixed price table. It backs tests and offline runs.
type StaticOracle struct {
	quotes map[string]*models.PriceQuote
	mu     sync.RWMutex
}

// NewStaticOracle creates an oracle from a symbol-to-price table.
func NewStaticOracle(prices map[string]float64) *StaticOracle {
	quotes := make(map[string]*models.PriceQuote, len(prices))
	for symbol, price := range prices {
		quotes[symbol] = &models.PriceQuote{
			Symbol:    symbol,
			Price:     price,
			Source:    "static",
			Timestamp: time.Now(),
		}
	}
	return &StaticOracle{quotes: quotes}
}

// SetPrice updates the table price for a symbol.
func (o *StaticOracle) SetPrice(symbol string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[symbol] = &models.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Source:    "static",
		Timestamp: time.Now(),
	}
}

// Remove deletes a symbol from the table.
func (o *StaticOracle) Remove(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.quotes, symbol)
}

// GetCurrentPrice returns the table quote for one symbol.
func (o *StaticOracle) GetCurrentPrice(ctx context.Context, symbol string) (*models.PriceQuote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	quote, ok := o.quotes[symbol]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNoPriceData, "symbol %s", symbol)
	}
	q := *quote
	return &q, nil
}

// GetLatestPrices returns the whole table.
func (o *StaticOracle) GetLatestPrices(ctx context.Context) (map[string]*models.PriceQuote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.quotes) == 0 {
		return nil, errors.ErrNoPriceData
	}
	quotes := make(map[string]*models.PriceQuote, len(o.quotes))
	for symbol, quote := range o.quotes {
		q := *quote
		quotes[symbol] = &q
	}
	return quotes, nil
}

var (
	_ Oracle = (*GatewayOracle)(nil)
	_ Oracle = (*StaticOracle)(nil)
)
