package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"kucoin-trader/internal/errors"
	"kucoin-trader/internal/models"
	"kucoin-trader/pkg/utils"
)

const (
	kucoinBaseURL        = "https://api.kucoin.com"
	kucoinSandboxBaseURL = "https://openapi-sandbox.kucoin.com"
)

// KuCoinGateway implements Gateway against the KuCoin REST API. Transient
// failures (HTTP 429/500/502/503/504) are retried up to three times with
// exponential backoff; calls to the same endpoint are rate limited to the
// configured ceiling.
type KuCoinGateway struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string
	client     *http.Client
	limiter    *utils.RateLimiter
	retry      utils.RetryConfig
	logger     zerolog.Logger
}

// KuCoinConfig holds construction parameters for the live adapter.
type KuCoinConfig struct {
	APIKey         string
	APISecret      string
	APIPassphrase  string
	SandboxMode    bool
	CallsPerMinute int
	Timeout        time.Duration
	Logger         zerolog.Logger
}

// NewKuCoinGateway creates a new live KuCoin gateway.
func NewKuCoinGateway(cfg KuCoinConfig) *KuCoinGateway {
	baseURL := kucoinBaseURL
	if cfg.SandboxMode {
		baseURL = kucoinSandboxBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	retry := utils.DefaultRetryConfig()
	retry.Retryable = func(err error) bool {
		var exErr *errors.ExchangeError
		if errors.As(err, &exErr) {
			return exErr.Transient()
		}
		// Connection-level failures are retried as well.
		return !errors.Is(err, context.Canceled)
	}

	return &KuCoinGateway{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		passphrase: cfg.APIPassphrase,
		client:     &http.Client{Timeout: timeout},
		limiter:    utils.NewRateLimiter(cfg.CallsPerMinute),
		retry:      retry,
		logger:     cfg.Logger,
	}
}

// Name returns the venue identifier.
func (k *KuCoinGateway) Name() string {
	return "kucoin"
}

// kucoinEnvelope is the common KuCoin response wrapper.
type kucoinEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// PlaceMarketOrder places a market order.
func (k *KuCoinGateway) PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (*PlacedOrder, error) {
	body := map[string]interface{}{
		"clientOid": strconv.FormatInt(time.Now().UnixNano(), 10),
		"symbol":    req.Pair,
		"side":      string(req.Side),
		"type":      "market",
	}
	switch req.Side {
	case models.OrderSideBuy:
		body["funds"] = formatAmount(req.Funds)
	case models.OrderSideSell:
		body["size"] = formatAmount(req.Size)
	}
	return k.placeOrder(ctx, body)
}

// PlaceLimitOrder places a limit order.
func (k *KuCoinGateway) PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (*PlacedOrder, error) {
	body := map[string]interface{}{
		"clientOid": strconv.FormatInt(time.Now().UnixNano(), 10),
		"symbol":    req.Pair,
		"side":      string(req.Side),
		"type":      "limit",
		"price":     formatAmount(req.Price),
		"size":      formatAmount(req.Size),
	}
	return k.placeOrder(ctx, body)
}

func (k *KuCoinGateway) placeOrder(ctx context.Context, body map[string]interface{}) (*PlacedOrder, error) {
	data, err := k.call(ctx, http.MethodPost, "/api/v1/orders", body)
	if err != nil {
		return nil, err
	}
	var resp struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.NewExchangeError("kucoin", "/api/v1/orders", 0, "decoding order response", err)
	}

	var payload map[string]interface{}
	_ = json.Unmarshal(data, &payload)

	k.logger.Info().Str("order_id", resp.OrderID).Msg("KuCoin order accepted")
	return &PlacedOrder{OrderID: resp.OrderID, Response: payload}, nil
}

// CancelOrder cancels one order by id.
func (k *KuCoinGateway) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	data, err := k.call(ctx, http.MethodDelete, "/api/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	return decodeCancelledIDs(data)
}

// CancelAllOrders cancels all open orders, optionally for one pair.
func (k *KuCoinGateway) CancelAllOrders(ctx context.Context, pair string) ([]string, error) {
	endpoint := "/api/v1/orders"
	if pair != "" {
		endpoint += "?symbol=" + pair
	}
	data, err := k.call(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeCancelledIDs(data)
}

func decodeCancelledIDs(data []byte) ([]string, error) {
	var resp struct {
		CancelledOrderIDs []string `json:"cancelledOrderIds"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.NewExchangeError("kucoin", "/api/v1/orders", 0, "decoding cancel response", err)
	}
	return resp.CancelledOrderIDs, nil
}

// GetAccountBalance returns trade-account balances.
func (k *KuCoinGateway) GetAccountBalance(ctx context.Context, currency string) ([]models.Balance, error) {
	endpoint := "/api/v1/accounts?type=trade"
	if currency != "" {
		endpoint += "&currency=" + currency
	}
	data, err := k.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var accounts []struct {
		Currency  string `json:"currency"`
		Available string `json:"available"`
		Holds     string `json:"holds"`
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, errors.NewExchangeError("kucoin", endpoint, 0, "decoding accounts response", err)
	}
	balances := make([]models.Balance, 0, len(accounts))
	for _, a := range accounts {
		available, _ := strconv.ParseFloat(a.Available, 64)
		hold, _ := strconv.ParseFloat(a.Holds, 64)
		balances = append(balances, models.Balance{
			Currency:  a.Currency,
			Available: available,
			Hold:      hold,
		})
	}
	return balances, nil
}

// GetCurrentPrice returns the latest quote, including the 24h change.
func (k *KuCoinGateway) GetCurrentPrice(ctx context.Context, pair string) (*models.PriceQuote, error) {
	endpoint := "/api/v1/market/stats?symbol=" + pair
	data, err := k.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var stats struct {
		Symbol     string `json:"symbol"`
		Last       string `json:"last"`
		ChangeRate string `json:"changeRate"`
		VolValue   string `json:"volValue"`
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, errors.NewExchangeError("kucoin", endpoint, 0, "decoding market stats", err)
	}
	price, err := strconv.ParseFloat(stats.Last, 64)
	if err != nil || price <= 0 {
		return nil, errors.Wrapf(errors.ErrNoPriceData, "pair %s", pair)
	}
	changeRate, _ := strconv.ParseFloat(stats.ChangeRate, 64)
	volume, _ := strconv.ParseFloat(stats.VolValue, 64)

	return &models.PriceQuote{
		Symbol:           pair,
		Price:            price,
		Change24hPercent: changeRate * 100,
		Volume24h:        volume,
		Source:           "kucoin",
		Timestamp:        time.Now(),
	}, nil
}

// call performs one signed, rate-limited, retried API call and returns the
// data portion of the response envelope.
func (k *KuCoinGateway) call(ctx context.Context, method, endpoint string, body map[string]interface{}) (json.RawMessage, error) {
	return utils.RetryWithResult(ctx, k.retry, func() (json.RawMessage, error) {
		if err := k.limiter.Wait(ctx, method+" "+endpoint); err != nil {
			return nil, err
		}
		return k.doRequest(ctx, method, endpoint, body)
	})
}

func (k *KuCoinGateway) doRequest(ctx context.Context, method, endpoint string, body map[string]interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	k.sign(req, method, endpoint, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, errors.NewExchangeError("kucoin", endpoint, 0, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewExchangeError("kucoin", endpoint, resp.StatusCode, "reading response", err)
	}

	k.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("KuCoin API call")

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExchangeError("kucoin", endpoint, resp.StatusCode, string(respBody), nil)
	}

	var envelope kucoinEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, errors.NewExchangeError("kucoin", endpoint, resp.StatusCode, "decoding envelope", err)
	}
	// KuCoin signals success with code 200000 inside a 200 response.
	if envelope.Code != "200000" {
		return nil, errors.NewExchangeError("kucoin", endpoint, resp.StatusCode,
			fmt.Sprintf("api code %s: %s", envelope.Code, envelope.Msg), nil)
	}

	return envelope.Data, nil
}

// sign applies the KC-API v2 request signature headers.
func (k *KuCoinGateway) sign(req *http.Request, method, endpoint string, payload []byte) {
	if k.apiKey == "" {
		return
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := timestamp + method + endpoint + string(payload)

	req.Header.Set("KC-API-KEY", k.apiKey)
	req.Header.Set("KC-API-SIGN", hmacSign(k.apiSecret, message))
	req.Header.Set("KC-API-TIMESTAMP", timestamp)
	req.Header.Set("KC-API-PASSPHRASE", hmacSign(k.apiSecret, k.passphrase))
	req.Header.Set("KC-API-KEY-VERSION", "2")
}

func hmacSign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Ensure KuCoinGateway implements Gateway
var _ Gateway = (*KuCoinGateway)(nil)
