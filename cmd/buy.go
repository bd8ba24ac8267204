package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"walletkit/pkg/buy"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/parser"
	"walletkit/pkg/swap"
	"walletkit/pkg/token"
)

var (
	payWithSymbol string
	payMethod     string
)

var buyCmd = &cobra.Command{
	Use:   "buy <amount> <token>",
	Short: "Buy an exact amount of a token",
	Long: `Buy an exact amount of a token. The purchase is quoted against every
available payment option (ETH, USDC, and an optional extra funding
token) and funded from the option you pick.

Examples:
  # Buy 10 USDC, quoting ETH and USDC as funding options
  walletkit buy 10 USDC

  # Also quote DEGEN as a funding option
  walletkit buy 10 USDC --pay-with DEGEN

  # Skip the prompt and pay with ETH
  walletkit buy 10 USDC --method fromETH --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runBuy,
}

func init() {
	rootCmd.AddCommand(buyCmd)

	buyCmd.Flags().StringVar(&payWithSymbol, "pay-with", "", "Extra funding token to quote alongside ETH and USDC")
	buyCmd.Flags().StringVar(&payMethod, "method", "", "Payment option to submit with (from, fromETH, fromUSDC)")
	buyCmd.Flags().Float64Var(&maxSlippage, "slippage", 0, "Max slippage percent (0 uses the saved preference)")
	buyCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runBuy(cmd *cobra.Command, args []string) {
	amount, symbol, err := parser.ParseBuyCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	tk, err := wire(ctx, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer tk.close()
	tk.rememberComponent("buy")

	target, err := tk.resolveToken(ctx, symbol)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var payWith *token.Token
	if payWithSymbol != "" {
		payWith, err = tk.resolveToken(ctx, payWithSymbol)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	done := make(chan struct{})
	hooks := lifecycle.Hooks{
		OnStatus: func(s lifecycle.Status) {
			if !jsonOutput {
				switch s.StatusName {
				case lifecycle.StatusTransactionPending:
					fmt.Println("  Waiting for wallet approval...")
				case lifecycle.StatusTransactionApproved:
					data := s.StatusData.(*lifecycle.TransactionApproved)
					fmt.Printf("  Approved %s: %s\n", data.TransactionType, color.CyanString(data.TransactionHash))
				}
			}
		},
		OnError: func(e lifecycle.Error) {
			printError(fmt.Errorf("%s: %s", e.Code, e.Message))
			close(done)
		},
		OnSuccess: func(receipt *types.Receipt) {
			if receipt != nil {
				printSuccess(color.GreenString("Purchase confirmed in block %s", receipt.BlockNumber))
			} else {
				printSuccess(color.GreenString("Purchase confirmed"))
			}
			close(done)
		},
	}

	provider := buy.New(*target, payWith, tk.swapDeps(), swap.Config{
		MaxSlippage:   maxSlippage,
		UseAggregator: tk.cfg.UseAggregator,
	}, hooks)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}
	provider.HandleAmountChange(ctx, amount)
	options, err := awaitBuyOptions(provider)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		quotes := map[string]string{}
		for method, unit := range options {
			if unit.Err == nil && unit.Amount != "" {
				quotes[string(method)] = fmt.Sprintf("%s %s", unit.Amount, unit.Token.Symbol)
			}
		}
		out, _ := json.MarshalIndent(map[string]any{
			"token":   target.Symbol,
			"amount":  amount,
			"options": quotes,
		}, "", "  ")
		fmt.Println(string(out))
	} else {
		displayBuyOptions(amount, target, options)
	}

	method := chooseBuyMethod(options, jsonOutput)
	if method == "" {
		fmt.Println("\nPurchase cancelled.")
		os.Exit(0)
	}

	provider.HandleSubmit(ctx, method)
	<-done
}

// buyMethods is the display order for payment options.
var buyMethods = []buy.PaymentMethod{buy.PayWithToken, buy.PayWithETH, buy.PayWithUSDC}

// awaitBuyOptions polls the provider until every configured option has
// either a quoted amount or an error.
func awaitBuyOptions(provider *buy.Provider) (map[buy.PaymentMethod]swap.SwapUnit, error) {
	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for quotes")
		case <-ticker.C:
			options := map[buy.PaymentMethod]swap.SwapUnit{}
			settled := true
			for _, method := range buyMethods {
				unit, ok := provider.Option(method)
				if !ok {
					continue
				}
				if unit.Loading {
					settled = false
					break
				}
				options[method] = unit
			}
			if settled && len(options) > 0 {
				return options, nil
			}
		}
	}
}

func displayBuyOptions(amount string, target *token.Token, options map[buy.PaymentMethod]swap.SwapUnit) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     BUY QUOTE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Buying:  %s %s\n\n", amount, color.YellowString(target.Symbol))
	fmt.Println("  Payment options:")

	for _, method := range buyMethods {
		unit, ok := options[method]
		if !ok {
			continue
		}
		if unit.Err != nil {
			fmt.Printf("    %-10s %s\n", unit.Token.Symbol, color.RedString("unavailable"))
			continue
		}
		fmt.Printf("    %-10s %s %s\n", unit.Token.Symbol, unit.Amount, unit.Token.Symbol)
	}
	fmt.Println("\n" + strings.Repeat("=", 60))
}

// chooseBuyMethod resolves the payment option to submit with, from the
// --method flag or an interactive prompt. Empty means cancelled.
func chooseBuyMethod(options map[buy.PaymentMethod]swap.SwapUnit, jsonOutput bool) buy.PaymentMethod {
	if payMethod != "" {
		method := buy.PaymentMethod(payMethod)
		if _, ok := options[method]; !ok {
			printError(fmt.Errorf("unknown payment method %q", payMethod))
			os.Exit(1)
		}
		return method
	}
	if jsonOutput || noConfirm {
		// Non-interactive runs default to the first quoted option.
		for _, method := range buyMethods {
			if unit, ok := options[method]; ok && unit.Err == nil {
				return method
			}
		}
		return ""
	}

	for _, method := range buyMethods {
		unit, ok := options[method]
		if !ok || unit.Err != nil {
			continue
		}
		if confirm(fmt.Sprintf("Pay with %s %s?", unit.Amount, unit.Token.Symbol)) {
			return method
		}
	}
	return ""
}
