// Package analysis turns market context into trade signals via an
// OpenAI-compatible chat API.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"kucoin-trader/internal/config"
	"kucoin-trader/internal/models"
)

// SignalSource produces a trade signal for one asset symbol.
type SignalSource interface {
	GetSignal(ctx context.Context, symbol string, quote *models.PriceQuote) (*models.Signal, error)
}

const systemPrompt = `You are a cryptocurrency trading analyst. Given a market snapshot,
respond with a single JSON object and nothing else:
{"symbol": "<symbol>", "action": "BUY"|"SELL"|"HOLD", "confidence": "HIGH"|"MEDIUM"|"LOW", "reasoning": "<one sentence>"}`

// LLMSignalSource generates signals through a chat completion model. Any
// OpenAI-compatible endpoint works; the base URL comes from configuration so
// DeepSeek can serve as a drop-in backend.
type LLMSignalSource struct {
	client *openai.Client
	model  string
}

// NewLLMSignalSource creates a signal source from DeepSeek API settings.
func NewLLMSignalSource(cfg config.DeepSeekConfig) *LLMSignalSource {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &LLMSignalSource{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

// GetSignal asks the model for a recommendation on one symbol.
func (s *LLMSignalSource) GetSignal(ctx context.Context, symbol string, quote *models.PriceQuote) (*models.Signal, error) {
	userPrompt := fmt.Sprintf("Symbol: %s\nPrice: %.8f USD\n24h change: %.2f%%\nTimestamp: %s",
		symbol, quote.Price, quote.Change24hPercent, quote.Timestamp.Format(time.RFC3339))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	signal, err := ParseSignal(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if signal.Symbol == "" {
		signal.Symbol = symbol
	}
	signal.Date = time.Now()
	return signal, nil
}

// ParseSignal extracts a signal from a model reply. Replies wrapped in
// markdown code fences are unwrapped first.
func ParseSignal(reply string) (*models.Signal, error) {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var raw struct {
		Symbol     string  `json:"symbol"`
		Action     string  `json:"action"`
		Confidence string  `json:"confidence"`
		Allocation float64 `json:"allocation_percentage"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unparsable signal reply: %w", err)
	}

	signal := &models.Signal{
		Symbol:     raw.Symbol,
		Allocation: raw.Allocation,
	}

	switch strings.ToUpper(raw.Action) {
	case string(models.SignalBuy):
		signal.Action = models.SignalBuy
	case string(models.SignalSell):
		signal.Action = models.SignalSell
	case string(models.SignalHold):
		signal.Action = models.SignalHold
	default:
		signal.Action = models.SignalNone
	}

	switch strings.ToUpper(raw.Confidence) {
	case string(models.ConfidenceHigh):
		signal.Confidence = models.ConfidenceHigh
	case string(models.ConfidenceMedium):
		signal.Confidence = models.ConfidenceMedium
	default:
		signal.Confidence = models.ConfidenceLow
	}

	return signal, nil
}

var _ SignalSource = (*LLMSignalSource)(nil)
