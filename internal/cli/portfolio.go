package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"kucoin-trader/internal/models"
)

// addPortfolioCommands adds the portfolio command group.
func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio ledger",
		Long:  "Inspect and update the portfolio ledger: cash, holdings, trades and valuation.",
	}

	cmd.AddCommand(newPortfolioSummaryCmd(app))
	cmd.AddCommand(newPortfolioAllocationCmd(app))
	cmd.AddCommand(newPortfolioTradeCmd(app))
	cmd.AddCommand(newPortfolioUpdateCmd(app))
	cmd.AddCommand(newPortfolioRebalanceCmd(app))
	cmd.AddCommand(newPortfolioHistoryCmd(app))

	rootCmd.AddCommand(cmd)
}

func newPortfolioSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show portfolio summary with current valuations",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ledger, err := app.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := ledger.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(summary)
			}

			output.Bold("Portfolio Summary")
			output.Printf("  Total value:    %s\n", FormatUSD(summary.TotalValue))
			output.Printf("  Cash:           %s (%.1f%%)\n", FormatUSD(summary.Cash), summary.CashAllocation*100)
			output.Printf("  Invested:       %s\n", FormatUSD(summary.InvestedValue))
			output.Printf("  Total P&L:      %s (%s)\n",
				output.FormatPnL(summary.TotalProfitLoss),
				output.FormatPercent(summary.TotalProfitLossPercent))
			output.Println()

			if len(summary.Assets) == 0 {
				output.Dim("No holdings")
				return nil
			}

			table := NewTable(output, "SYMBOL", "QTY", "PRICE", "VALUE", "ALLOC", "P&L")
			for _, asset := range summary.Assets {
				table.AddRow(
					asset.Symbol,
					strconv.FormatFloat(asset.Quantity, 'f', 8, 64),
					FormatUSD(asset.CurrentPrice),
					FormatUSD(asset.CurrentValue),
					fmt.Sprintf("%.1f%%", asset.Allocation*100),
					output.FormatPnL(asset.ProfitLoss),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newPortfolioAllocationCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "allocation <symbol>",
		Short: "Show the allocation of one symbol (or \"cash\")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ledger, err := app.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			allocation := ledger.Allocation(args[0])
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":     args[0],
					"allocation": allocation,
				})
			}
			output.Printf("%s: %.2f%%\n", args[0], allocation*100)
			return nil
		},
	}
}

func newPortfolioTradeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "trade <buy|sell> <symbol> <quantity> <price>",
		Short: "Record an executed trade in the ledger",
		Long: `Record an executed trade in the ledger. This is bookkeeping only; it
does not place an order on the exchange.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			action := models.TradeAction(args[0])
			quantity, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[2], err)
			}
			price, err := strconv.ParseFloat(args[3], 64)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[3], err)
			}

			ledger, err := app.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			realized, err := ledger.RecordTrade(cmd.Context(), args[1], action, quantity, price, time.Now())
			if err != nil {
				output.Error("Trade rejected: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":      args[1],
					"action":      action,
					"quantity":    quantity,
					"price":       price,
					"realized_pl": realized,
					"cash":        ledger.Cash(),
					"total_value": ledger.TotalValue(),
				})
			}
			output.Success("Recorded %s %s %s @ %s", action, args[2], args[1], FormatUSD(price))
			if action == models.TradeActionSell {
				output.Printf("  Realized P&L: %s\n", output.FormatPnL(realized))
			}
			output.Printf("  Cash: %s   Total: %s\n", FormatUSD(ledger.Cash()), FormatUSD(ledger.TotalValue()))
			return nil
		},
	}
}

func newPortfolioUpdateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh holdings against current market prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ledger, err := app.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			if err := ledger.UpdatePrices(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]float64{
					"total_value": ledger.TotalValue(),
					"cash":        ledger.Cash(),
				})
			}
			output.Success("Prices updated. Total value: %s", FormatUSD(ledger.TotalValue()))
			return nil
		},
	}
}

func newPortfolioRebalanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Show advisory rebalancing recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ledger, err := app.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			if err := ledger.UpdatePrices(cmd.Context()); err != nil {
				return err
			}

			actions := ledger.RebalanceRecommendations(
				app.Config.Portfolio.MaxAllocationPerAsset,
				app.Config.Portfolio.MaxCashAllocation,
			)
			if output.IsJSON() {
				return output.JSON(actions)
			}
			if len(actions) == 0 {
				output.Success("Portfolio within allocation limits")
				return nil
			}

			table := NewTable(output, "SYMBOL", "ACTION", "CURRENT", "TARGET", "ADJUST")
			for _, action := range actions {
				table.AddRow(
					action.Symbol,
					action.Action,
					fmt.Sprintf("%.1f%%", action.CurrentAllocation*100),
					fmt.Sprintf("%.1f%%", action.TargetAllocation*100),
					FormatUSD(action.ValueToAdjust),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newPortfolioHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show portfolio value snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			ledger, err := app.Ledger(cmd.Context())
			if err != nil {
				return err
			}
			history := ledger.State().History
			if limit > 0 && len(history) > limit {
				history = history[len(history)-limit:]
			}
			if output.IsJSON() {
				return output.JSON(history)
			}

			table := NewTable(output, "DATE", "TOTAL", "CASH", "POSITIONS")
			for _, snapshot := range history {
				table.AddRow(
					snapshot.Date.Format("2006-01-02 15:04"),
					FormatUSD(snapshot.TotalValue),
					FormatUSD(snapshot.Cash),
					strconv.Itoa(len(snapshot.Holdings)),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of snapshots to show")
	return cmd
}
