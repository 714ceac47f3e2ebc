package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const settingsTemplate = `# KuCoin Trader Configuration

system:
  # Trading mode: "live" or "simulated"
  mode: simulated
  # Require explicit confirmation before orders reach the exchange
  trade_confirmation: true
  # Maximum fraction of the reference size allocated to one signal order
  max_allocation_per_asset: 0.20
  # USD base used to size signal-derived orders
  reference_portfolio_size: 1000.0

portfolio:
  initial_capital: 10000.0
  max_allocation_per_asset: 0.15
  min_allocation_per_asset: 0.01
  max_cash_allocation: 0.30
  risk_tolerance: moderate

apis:
  kucoin:
    sandbox_mode: true
    calls_per_minute: 60
  deepseek:
    base_url: https://api.deepseek.com
    model: deepseek-chat
`

const secretsTemplate = `# KuCoin Trader Secrets
# Values here override the same keys in settings.yaml.
# Keep this file out of version control.

apis:
  kucoin:
    api_key: ""
    api_secret: ""
    api_passphrase: ""
  deepseek:
    api_key: ""
`

const assetsTemplate = `# Tradeable universe

crypto:
  - symbol: BTC
    name: Bitcoin
    exchange: kucoin
    pair: BTC-USDT
  - symbol: ETH
    name: Ethereum
    exchange: kucoin
    pair: ETH-USDT
  - symbol: SOL
    name: Solana
    exchange: kucoin
    pair: SOL-USDT

stocks: []
`

func createTemplateSettings(configDir string) error {
	if err := writeTemplate(configDir, "settings.yaml", settingsTemplate); err != nil {
		return err
	}
	if err := writeTemplate(configDir, "secrets.yaml", secretsTemplate); err != nil {
		return err
	}
	return fmt.Errorf("no settings.yaml found, created template in %s", configDir)
}

func createTemplateAssets(configDir string) error {
	if err := writeTemplate(configDir, "assets.yaml", assetsTemplate); err != nil {
		return err
	}
	return fmt.Errorf("no assets.yaml found, created template in %s", configDir)
}

func writeTemplate(configDir, name, content string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
