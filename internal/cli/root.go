package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kucoin-trader/internal/analysis"
	"kucoin-trader/internal/config"
	"kucoin-trader/internal/exchange"
	"kucoin-trader/internal/logging"
	"kucoin-trader/internal/orders"
	"kucoin-trader/internal/portfolio"
	"kucoin-trader/internal/pricing"
	"kucoin-trader/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies. The exchange adapter is chosen once
// here from the configured mode; live and simulated never mix at runtime.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.Store
	Gateway exchange.Gateway
	Oracle  pricing.Oracle
	Signals analysis.SignalSource
	Manager *orders.Manager
}

// Ledger opens the portfolio ledger lazily so read-only commands that never
// touch the portfolio skip the load.
func (a *App) Ledger(ctx context.Context) (*portfolio.Ledger, error) {
	return portfolio.NewLedger(ctx, a.Config.Portfolio.InitialCapital, a.Store, a.Oracle, a.Logger)
}

// NewRootCmd creates the root command for the CLI. configDir is the directory
// holding the config files and the database; empty selects the default.
func NewRootCmd(cfg *config.Config, configDir string, logger zerolog.Logger) (*cobra.Command, error) {
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if cfg.IsSimulated() {
		app.Gateway = exchange.NewSimGateway(exchange.SimConfig{
			InitialFunds: cfg.Portfolio.InitialCapital,
		})
		logger.Debug().Msg("Simulated exchange adapter selected")
	} else {
		app.Gateway = exchange.NewKuCoinGateway(exchange.KuCoinConfig{
			APIKey:         cfg.APIs.KuCoin.APIKey,
			APISecret:      cfg.APIs.KuCoin.APISecret,
			APIPassphrase:  cfg.APIs.KuCoin.APIPassphrase,
			SandboxMode:    cfg.APIs.KuCoin.SandboxMode,
			CallsPerMinute: cfg.APIs.KuCoin.CallsPerMinute,
			Logger:         logger,
		})
		logger.Debug().Msg("Live KuCoin adapter selected")
	}

	dbPath := filepath.Join(configDir, "trader.db")
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	app.Store = dataStore

	app.Oracle = pricing.NewGatewayOracle(app.Gateway, cfg.Assets, logger)
	app.Manager = orders.NewManager(cfg, app.Store, app.Oracle, logger)
	app.Manager.RegisterGateway(app.Gateway.Name(), app.Gateway)
	// Asset files name the live venue; route it to the selected adapter.
	app.Manager.RegisterGateway("kucoin", app.Gateway)

	if cfg.APIs.DeepSeek.APIKey != "" {
		app.Signals = analysis.NewLLMSignalSource(cfg.APIs.DeepSeek)
		logger.Debug().Str("model", cfg.APIs.DeepSeek.Model).Msg("Signal source initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "KuCoin Trader - portfolio ledger and order manager",
		Long: `KuCoin Trader manages a crypto portfolio ledger and the full order
lifecycle against the KuCoin exchange.

It tracks cash, holdings and trade history, sizes orders from trade signals,
and dispatches them live or against a simulated venue depending on the
configured mode.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/kucoin-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app, configDir))
	addPortfolioCommands(rootCmd, app)
	addOrderCommands(rootCmd, app)

	return rootCmd, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("KuCoin Trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App, configDir string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redactedConfig(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": configDir})
			} else {
				output.Println(configDir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("System")
	output.Printf("  Mode:                %s\n", cfg.System.Mode)
	output.Printf("  Trade confirmation:  %v\n", cfg.System.TradeConfirmation)
	output.Printf("  Max allocation:      %.0f%%\n", cfg.System.MaxAllocationPerAsset*100)
	output.Printf("  Reference size:      %s\n", FormatUSD(cfg.System.ReferencePortfolioSize))
	output.Println()

	output.Bold("Portfolio")
	output.Printf("  Initial capital:     %s\n", FormatUSD(cfg.Portfolio.InitialCapital))
	output.Printf("  Max per asset:       %.0f%%\n", cfg.Portfolio.MaxAllocationPerAsset*100)
	output.Printf("  Max cash:            %.0f%%\n", cfg.Portfolio.MaxCashAllocation*100)
	output.Println()

	output.Bold("APIs")
	output.Printf("  KuCoin key set:      %v\n", cfg.APIs.KuCoin.APIKey != "")
	output.Printf("  KuCoin sandbox:      %v\n", cfg.APIs.KuCoin.SandboxMode)
	output.Printf("  KuCoin rate limit:   %d calls/min\n", cfg.APIs.KuCoin.CallsPerMinute)
	output.Printf("  DeepSeek key set:    %v\n", cfg.APIs.DeepSeek.APIKey != "")
	output.Printf("  DeepSeek model:      %s\n", cfg.APIs.DeepSeek.Model)
	output.Println()

	output.Bold("Assets")
	output.Printf("  Crypto universe:     %d symbols\n", len(cfg.Assets.Crypto))
}

// redactedConfig strips credentials from the config before serialization.
func redactedConfig(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"system":    cfg.System,
		"portfolio": cfg.Portfolio,
		"apis": map[string]interface{}{
			"kucoin": map[string]interface{}{
				"api_key_set":      cfg.APIs.KuCoin.APIKey != "",
				"sandbox_mode":     cfg.APIs.KuCoin.SandboxMode,
				"calls_per_minute": cfg.APIs.KuCoin.CallsPerMinute,
			},
			"deepseek": map[string]interface{}{
				"api_key_set": cfg.APIs.DeepSeek.APIKey != "",
				"model":       cfg.APIs.DeepSeek.Model,
			},
		},
		"assets": cfg.Assets,
	}
}

// configDirFromArgs extracts the --config value from raw command-line
// arguments. Configuration must load before cobra parses flags, so the flag
// is read ahead of time; cobra re-parses it later for help output.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

// Execute loads configuration, builds the command tree and runs it.
func Execute() error {
	configDir := configDirFromArgs(os.Args[1:])
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	logger := logging.NewLogger()

	rootCmd, err := NewRootCmd(cfg, configDir, logger)
	if err != nil {
		return err
	}
	return rootCmd.Execute()
}
