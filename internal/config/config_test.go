package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

const testSettings = `
system:
  mode: simulated
  trade_confirmation: true
portfolio:
  initial_capital: 5000.0
apis:
  kucoin:
    api_key: settings-key
    calls_per_minute: 30
`

const testAssets = `
crypto:
  - symbol: BTC
    name: Bitcoin
    exchange: kucoin
    pair: BTC-USDT
stocks: []
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "settings.yaml", testSettings)
	writeConfigFile(t, dir, "assets.yaml", testAssets)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.Mode != ModeSimulated {
		t.Errorf("expected simulated mode, got %s", cfg.System.Mode)
	}
	if !cfg.System.TradeConfirmation {
		t.Error("expected trade confirmation enabled")
	}
	if cfg.Portfolio.InitialCapital != 5000 {
		t.Errorf("expected initial capital 5000, got %f", cfg.Portfolio.InitialCapital)
	}
	if cfg.APIs.KuCoin.CallsPerMinute != 30 {
		t.Errorf("expected 30 calls/min, got %d", cfg.APIs.KuCoin.CallsPerMinute)
	}
	// Unset keys fall back to defaults.
	if cfg.System.MaxAllocationPerAsset != 0.20 {
		t.Errorf("expected default max allocation, got %f", cfg.System.MaxAllocationPerAsset)
	}
	if len(cfg.Assets.Crypto) != 1 || cfg.Assets.Crypto[0].Pair != "BTC-USDT" {
		t.Errorf("unexpected assets: %+v", cfg.Assets.Crypto)
	}
}

func TestLoadSecretsOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "settings.yaml", testSettings)
	writeConfigFile(t, dir, "assets.yaml", testAssets)
	writeConfigFile(t, dir, "secrets.yaml", `
apis:
  kucoin:
    api_key: secret-key
    api_secret: secret-secret
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// secrets.yaml wins over the same key in settings.yaml.
	if cfg.APIs.KuCoin.APIKey != "secret-key" {
		t.Errorf("expected secrets overlay, got %q", cfg.APIs.KuCoin.APIKey)
	}
	if cfg.APIs.KuCoin.APISecret != "secret-secret" {
		t.Errorf("expected secret from overlay, got %q", cfg.APIs.KuCoin.APISecret)
	}
	// Keys absent from secrets.yaml keep their settings value.
	if cfg.APIs.KuCoin.CallsPerMinute != 30 {
		t.Errorf("overlay clobbered unrelated key: %d", cfg.APIs.KuCoin.CallsPerMinute)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "settings.yaml", testSettings)
	writeConfigFile(t, dir, "assets.yaml", testAssets)

	t.Setenv("KUCOIN_API_KEY", "env-key")
	t.Setenv("TRADING_MODE", "live")
	t.Setenv("KUCOIN_API_SECRET", "env-secret")
	t.Setenv("KUCOIN_API_PASSPHRASE", "env-pass")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIs.KuCoin.APIKey != "env-key" {
		t.Errorf("expected env override, got %q", cfg.APIs.KuCoin.APIKey)
	}
	if cfg.System.Mode != ModeLive {
		t.Errorf("expected live mode from env, got %s", cfg.System.Mode)
	}
}

func TestLoadCreatesTemplatesOnFirstRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected first-run error pointing at the template")
	}
	if !strings.Contains(err.Error(), "created template") {
		t.Errorf("unexpected error: %v", err)
	}
	for _, name := range []string{"settings.yaml", "secrets.yaml"} {
		if _, statErr := os.Stat(filepath.Join(dir, name)); statErr != nil {
			t.Errorf("expected %s template created: %v", name, statErr)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			System: SystemConfig{
				Mode:                   ModeSimulated,
				MaxAllocationPerAsset:  0.2,
				ReferencePortfolioSize: 1000,
			},
			Portfolio: PortfolioConfig{
				InitialCapital:        10000,
				MaxAllocationPerAsset: 0.15,
				MaxCashAllocation:     0.3,
			},
			APIs: APIConfig{KuCoin: KuCoinConfig{CallsPerMinute: 60}},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.System.Mode = "paper" }},
		{"zero capital", func(c *Config) { c.Portfolio.InitialCapital = 0 }},
		{"allocation above 1", func(c *Config) { c.System.MaxAllocationPerAsset = 1.5 }},
		{"zero rate limit", func(c *Config) { c.APIs.KuCoin.CallsPerMinute = 0 }},
		{"live without key", func(c *Config) { c.System.Mode = ModeLive }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateNormalizesModeCase(t *testing.T) {
	cfg := &Config{
		System: SystemConfig{
			Mode:                   "Simulated",
			MaxAllocationPerAsset:  0.2,
			ReferencePortfolioSize: 1000,
		},
		Portfolio: PortfolioConfig{
			InitialCapital:        10000,
			MaxAllocationPerAsset: 0.15,
			MaxCashAllocation:     0.3,
		},
		APIs: APIConfig{KuCoin: KuCoinConfig{CallsPerMinute: 60}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.System.Mode != ModeSimulated {
		t.Errorf("expected lowercased mode, got %s", cfg.System.Mode)
	}
}

func TestAssetsFind(t *testing.T) {
	assets := AssetsConfig{
		Crypto: []Asset{{Symbol: "BTC", Pair: "BTC-USDT", Exchange: "kucoin"}},
		Stocks: []Asset{{Symbol: "AAPL", Pair: "AAPL", Exchange: "nasdaq"}},
	}

	asset, ok := assets.Find("BTC")
	if !ok || asset.Category != "crypto" {
		t.Errorf("expected crypto BTC, got %+v ok=%v", asset, ok)
	}
	asset, ok = assets.Find("AAPL")
	if !ok || asset.Category != "stocks" {
		t.Errorf("expected stocks AAPL, got %+v ok=%v", asset, ok)
	}
	if _, ok := assets.Find("DOGE"); ok {
		t.Error("expected DOGE not found")
	}
}
