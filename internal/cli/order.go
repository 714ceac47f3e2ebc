package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kucoin-trader/internal/models"
)

// addOrderCommands adds the order command group.
func addOrderCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Order lifecycle",
		Long:  "Submit, cancel and inspect exchange orders.",
	}

	cmd.AddCommand(newOrderSubmitCmd(app))
	cmd.AddCommand(newOrderSignalCmd(app))
	cmd.AddCommand(newOrderCancelCmd(app))
	cmd.AddCommand(newOrderCancelAllCmd(app))
	cmd.AddCommand(newOrderStatusCmd(app))
	cmd.AddCommand(newOrderHistoryCmd(app))

	rootCmd.AddCommand(cmd)
}

func newOrderSubmitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <buy|sell> <symbol> <usd-amount>",
		Short: "Submit an order",
		Long: `Submit an order sized in USD. Market orders execute at the current
price; pass --price to place a limit order instead. When trade confirmation
is enabled the order is shown and dispatched only after an explicit yes.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			amount, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[2], err)
			}
			price, _ := cmd.Flags().GetFloat64("price")

			order := &models.Order{
				Symbol: args[1],
				Type:   models.OrderTypeMarket,
				Side:   models.OrderSide(args[0]),
				Amount: amount,
			}
			if price > 0 {
				order.Type = models.OrderTypeLimit
				order.Price = price
			}

			result, err := app.Manager.SubmitOrder(cmd.Context(), order)
			if err != nil {
				output.Warning("Result may not be durable: %v", err)
			}

			if result.Status == models.StatusPendingConfirmation {
				printOrderPreview(output, result.Order)
				if !askConfirmation(cmd) {
					output.Warning("Order not submitted")
					return nil
				}
				result, err = app.Manager.SubmitConfirmedOrder(cmd.Context(), result.Order)
				if err != nil {
					output.Warning("Result may not be durable: %v", err)
				}
			}

			return printOrderResult(output, result)
		},
	}
	cmd.Flags().Float64("price", 0, "limit price (omit for a market order)")
	return cmd
}

func newOrderSignalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal <symbol>",
		Short: "Generate a trade signal and submit the derived order",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Signals == nil {
				return fmt.Errorf("no signal source configured, set a DeepSeek API key")
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			quote, err := app.Oracle.GetCurrentPrice(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			signal, err := app.Signals.GetSignal(cmd.Context(), args[0], quote)
			if err != nil {
				return err
			}

			output.Info("Signal: %s %s (%s confidence)", signal.Action, signal.Symbol, signal.Confidence)

			order := app.Manager.CreateOrderFromSignal(signal)
			if order == nil {
				output.Dim("No order derived from signal")
				return nil
			}
			if dryRun {
				printOrderPreview(output, order)
				return nil
			}

			result, err := app.Manager.SubmitOrder(cmd.Context(), order)
			if err != nil {
				output.Warning("Result may not be durable: %v", err)
			}
			if result.Status == models.StatusPendingConfirmation {
				printOrderPreview(output, result.Order)
				if !askConfirmation(cmd) {
					output.Warning("Order not submitted")
					return nil
				}
				result, err = app.Manager.SubmitConfirmedOrder(cmd.Context(), result.Order)
				if err != nil {
					output.Warning("Result may not be durable: %v", err)
				}
			}
			return printOrderResult(output, result)
		},
	}
	cmd.Flags().Bool("dry-run", false, "show the derived order without submitting")
	return cmd
}

func newOrderCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel one open order",
		Long:  "Cancel an order by id. The venue comes from the order's recorded result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			record, err := app.Manager.CancelOrder(cmd.Context(), args[0])
			if err != nil {
				output.Warning("Record may not be durable: %v", err)
			}
			if output.IsJSON() {
				return output.JSON(record)
			}
			if record.Status == models.StatusSuccess {
				output.Success("Cancelled %s", args[0])
			} else {
				output.Error("Cancel failed: %s", record.Reason)
			}
			return nil
		},
	}
}

func newOrderCancelAllCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel-all",
		Short: "Cancel all open orders, optionally for one symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			venue, _ := cmd.Flags().GetString("exchange")
			symbol, _ := cmd.Flags().GetString("symbol")

			record, err := app.Manager.CancelAllOrders(cmd.Context(), venue, symbol)
			if err != nil {
				output.Warning("Record may not be durable: %v", err)
			}
			if output.IsJSON() {
				return output.JSON(record)
			}
			if record.Status == models.StatusSuccess {
				output.Success("Cancelled %d orders", len(record.CancelledIDs))
			} else {
				output.Error("Cancel failed: %s", record.Reason)
			}
			return nil
		},
	}
	cmd.Flags().String("exchange", "kucoin", "venue to cancel on")
	cmd.Flags().String("symbol", "", "limit cancellation to one asset symbol")
	return cmd
}

func newOrderStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id>",
		Short: "Show the recorded result of one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			result, err := app.Manager.GetOrderResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOrderResult(output, result)
		},
	}
}

func newOrderHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent order results",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			days, _ := cmd.Flags().GetInt("days")

			history, err := app.Manager.GetOrderHistory(cmd.Context(), days)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(history)
			}
			if len(history) == 0 {
				output.Dim("No orders in the last %d days", days)
				return nil
			}

			table := NewTable(output, "TIME", "ORDER", "SYMBOL", "SIDE", "AMOUNT", "STATUS")
			for _, result := range history {
				timestamp := "-"
				if !result.Timestamp.IsZero() {
					timestamp = result.Timestamp.Format("2006-01-02 15:04")
				}
				table.AddRow(
					timestamp,
					result.OrderID,
					result.Symbol,
					string(result.Side),
					FormatUSD(result.Amount),
					string(result.Status),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("days", 7, "days of history to show")
	return cmd
}

func printOrderPreview(output *Output, order *models.Order) {
	output.Bold("Order")
	output.Printf("  %s %s %s", strings.ToUpper(string(order.Side)), order.Symbol, FormatUSD(order.Amount))
	if order.Type == models.OrderTypeLimit {
		output.Printf(" limit @ %s", FormatUSD(order.Price))
	}
	output.Println()
}

func printOrderResult(output *Output, result *models.OrderResult) error {
	if output.IsJSON() {
		return output.JSON(result)
	}
	switch result.Status {
	case models.StatusSuccess:
		output.Success("Order placed: %s", result.OrderID)
	case models.StatusPendingConfirmation:
		output.Warning("Order awaiting confirmation")
	default:
		output.Error("Order failed: %s", result.Reason)
		for _, msg := range result.Errors {
			output.Printf("  - %s\n", msg)
		}
	}
	return nil
}

// askConfirmation prompts on stdin for an explicit yes.
func askConfirmation(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "Submit this order? [y/N]: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
