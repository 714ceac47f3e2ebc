// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Trading modes. The execution adapter is selected once at startup from this
// value; a live-adapter failure never falls back to the simulated one.
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

// Config holds all application configuration.
type Config struct {
	System    SystemConfig    `mapstructure:"system"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	APIs      APIConfig       `mapstructure:"apis"`
	Assets    AssetsConfig    `mapstructure:"-"` // Loaded separately from assets.yaml
}

// SystemConfig holds order-handling configuration.
type SystemConfig struct {
	// Mode selects the exchange adapter: "live" or "simulated".
	Mode string `mapstructure:"mode"`
	// TradeConfirmation gates order dispatch behind explicit approval.
	TradeConfirmation     bool    `mapstructure:"trade_confirmation"`
	MaxAllocationPerAsset float64 `mapstructure:"max_allocation_per_asset"`
	// ReferencePortfolioSize is the USD base used to size signal-derived orders.
	ReferencePortfolioSize float64 `mapstructure:"reference_portfolio_size"`
}

// PortfolioConfig holds portfolio constraints.
type PortfolioConfig struct {
	InitialCapital        float64 `mapstructure:"initial_capital"`
	MaxAllocationPerAsset float64 `mapstructure:"max_allocation_per_asset"`
	MinAllocationPerAsset float64 `mapstructure:"min_allocation_per_asset"`
	MaxCashAllocation     float64 `mapstructure:"max_cash_allocation"`
	RiskTolerance         string  `mapstructure:"risk_tolerance"`
}

// APIConfig holds external API settings and credentials. Credentials come
// from secrets.yaml overlaid on settings.yaml, then environment variables.
type APIConfig struct {
	KuCoin   KuCoinConfig   `mapstructure:"kucoin"`
	DeepSeek DeepSeekConfig `mapstructure:"deepseek"`
}

// KuCoinConfig holds KuCoin API settings.
type KuCoinConfig struct {
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	APIPassphrase  string `mapstructure:"api_passphrase"`
	SandboxMode    bool   `mapstructure:"sandbox_mode"`
	CallsPerMinute int    `mapstructure:"calls_per_minute"`
}

// DeepSeekConfig holds settings for the OpenAI-compatible analysis API.
type DeepSeekConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Asset is one tradeable asset from assets.yaml.
type Asset struct {
	Symbol   string `mapstructure:"symbol" json:"symbol"`
	Name     string `mapstructure:"name" json:"name"`
	Exchange string `mapstructure:"exchange" json:"exchange"`
	// Pair is the venue trading pair, e.g. "BTC-USDT".
	Pair string `mapstructure:"pair" json:"pair"`
	// Category is filled in at load time ("crypto" or "stocks").
	Category string `mapstructure:"-" json:"category"`
}

// AssetsConfig is the tradeable universe.
type AssetsConfig struct {
	Crypto []Asset `mapstructure:"crypto"`
	Stocks []Asset `mapstructure:"stocks"`
}

// Find returns the asset for a symbol, searching crypto first then stocks.
func (a AssetsConfig) Find(symbol string) (Asset, bool) {
	for _, asset := range a.Crypto {
		if asset.Symbol == symbol {
			asset.Category = "crypto"
			return asset, true
		}
	}
	for _, asset := range a.Stocks {
		if asset.Symbol == symbol {
			asset.Category = "stocks"
			return asset, true
		}
	}
	return Asset{}, false
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/kucoin-trader"
	}
	return filepath.Join(home, ".config", "kucoin-trader")
}

// Load loads configuration from the specified directory. Settings come from
// settings.yaml, overlaid by secrets.yaml when present, then by environment
// variables. The result is resolved once and injected into components.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadSettings(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading settings.yaml: %w", err)
	}

	if err := loadAssets(configDir, &cfg.Assets); err != nil {
		return nil, fmt.Errorf("loading assets.yaml: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadSettings(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateSettings(configDir)
		}
		return err
	}

	// Secrets overlay: values in secrets.yaml take precedence over the same
	// keys in settings.yaml.
	secretsPath := filepath.Join(configDir, "secrets.yaml")
	if _, err := os.Stat(secretsPath); err == nil {
		v.SetConfigFile(secretsPath)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("merging secrets.yaml: %w", err)
		}
	}

	return v.Unmarshal(cfg)
}

func loadAssets(configDir string, assets *AssetsConfig) error {
	v := viper.New()
	v.SetConfigName("assets")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateAssets(configDir)
		}
		return err
	}

	return v.Unmarshal(assets)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KUCOIN_API_KEY"); v != "" {
		cfg.APIs.KuCoin.APIKey = v
	}
	if v := os.Getenv("KUCOIN_API_SECRET"); v != "" {
		cfg.APIs.KuCoin.APISecret = v
	}
	if v := os.Getenv("KUCOIN_API_PASSPHRASE"); v != "" {
		cfg.APIs.KuCoin.APIPassphrase = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.APIs.DeepSeek.APIKey = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.System.Mode = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.System.Mode == "" {
		cfg.System.Mode = ModeSimulated
	}
	if cfg.System.MaxAllocationPerAsset == 0 {
		cfg.System.MaxAllocationPerAsset = 0.20
	}
	if cfg.System.ReferencePortfolioSize == 0 {
		cfg.System.ReferencePortfolioSize = 1000.0
	}
	if cfg.Portfolio.InitialCapital == 0 {
		cfg.Portfolio.InitialCapital = 10000.0
	}
	if cfg.Portfolio.MaxAllocationPerAsset == 0 {
		cfg.Portfolio.MaxAllocationPerAsset = 0.15
	}
	if cfg.Portfolio.MaxCashAllocation == 0 {
		cfg.Portfolio.MaxCashAllocation = 0.30
	}
	if cfg.APIs.KuCoin.CallsPerMinute == 0 {
		cfg.APIs.KuCoin.CallsPerMinute = 60
	}
	if cfg.APIs.DeepSeek.Model == "" {
		cfg.APIs.DeepSeek.Model = "deepseek-chat"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.System.Mode)
	if mode != ModeLive && mode != ModeSimulated {
		return fmt.Errorf("invalid trading mode: %s (must be %q or %q)", c.System.Mode, ModeLive, ModeSimulated)
	}
	c.System.Mode = mode

	if c.Portfolio.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %.2f", c.Portfolio.InitialCapital)
	}
	if c.System.MaxAllocationPerAsset <= 0 || c.System.MaxAllocationPerAsset > 1 {
		return fmt.Errorf("system max_allocation_per_asset must be in (0, 1], got %.2f", c.System.MaxAllocationPerAsset)
	}
	if c.Portfolio.MaxAllocationPerAsset <= 0 || c.Portfolio.MaxAllocationPerAsset > 1 {
		return fmt.Errorf("portfolio max_allocation_per_asset must be in (0, 1], got %.2f", c.Portfolio.MaxAllocationPerAsset)
	}
	if c.Portfolio.MaxCashAllocation < 0 || c.Portfolio.MaxCashAllocation > 1 {
		return fmt.Errorf("max_cash_allocation must be in [0, 1], got %.2f", c.Portfolio.MaxCashAllocation)
	}
	if c.APIs.KuCoin.CallsPerMinute <= 0 {
		return fmt.Errorf("calls_per_minute must be positive, got %d", c.APIs.KuCoin.CallsPerMinute)
	}

	if c.System.Mode == ModeLive && c.APIs.KuCoin.APIKey == "" {
		return fmt.Errorf("live mode requires a KuCoin API key")
	}

	return nil
}

// IsSimulated returns true if the simulated exchange adapter is selected.
func (c *Config) IsSimulated() bool {
	return c.System.Mode == ModeSimulated
}
