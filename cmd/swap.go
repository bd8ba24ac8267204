package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"walletkit/config"
	"walletkit/pkg/client"
	"walletkit/pkg/deposit"
	"walletkit/pkg/lifecycle"
	"walletkit/pkg/parser"
	"walletkit/pkg/swap"
)

var (
	crossChain    bool
	fromChain     string
	toChain       string
	recipientAddr string
	refundAddr    string
	maxSlippage   float64
	noConfirm     bool
	autoDeposit   bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Swap tokens, on-chain or across chains",
	Long: `Swap tokens. By default the swap runs on-chain through the configured
EVM wallet: the pair is quoted, the transaction is built and submitted
(batched when the wallet supports it, sequentially otherwise).

With --cross-chain the swap routes through the 1Click aggregator: you
receive a deposit address and fund it from the source chain.

Examples:
  # On-chain swap
  walletkit swap 1 ETH to USDC

  # On-chain swap with custom slippage
  walletkit swap 0.5 ETH to DEGEN --slippage 1

  # Cross-chain swap
  walletkit swap 1 SOL to USDC --cross-chain --from-chain sol --to-chain base --recipient 0x123... --refund-to <sol-addr>

  # Cross-chain with auto-deposit from the configured Solana key
  walletkit swap 1 SOL to USDC --cross-chain --recipient 0x123... --auto-deposit`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVar(&crossChain, "cross-chain", false, "Route through the 1Click cross-chain aggregator")
	swapCmd.Flags().StringVar(&fromChain, "from-chain", "", "Source blockchain (cross-chain only)")
	swapCmd.Flags().StringVar(&toChain, "to-chain", "", "Destination blockchain (cross-chain only)")
	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address (cross-chain only, REQUIRED)")
	swapCmd.Flags().StringVar(&refundAddr, "refund-to", "", "Refund address on source chain (cross-chain only)")
	swapCmd.Flags().Float64Var(&maxSlippage, "slippage", 0, "Max slippage percent (0 uses the saved preference)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&autoDeposit, "auto-deposit", false, "Send the cross-chain deposit from the configured Solana key")
}

func runSwap(cmd *cobra.Command, args []string) {
	commandStr := strings.Join(args, " ")
	swapReq, err := parser.ParseSwapCommand(commandStr)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	swapReq.SourceChain = fromChain
	swapReq.DestChain = toChain
	swapReq.RecipientAddr = recipientAddr
	swapReq.RefundAddr = refundAddr

	jsonOutput, _ := cmd.Flags().GetBool("json")

	if crossChain {
		runCrossChainSwap(swapReq, jsonOutput)
		return
	}
	runOnChainSwap(cmd.Context(), swapReq, jsonOutput)
}

func runOnChainSwap(ctx context.Context, swapReq *parser.SwapRequest, jsonOutput bool) {
	tk, err := wire(ctx, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer tk.close()
	tk.rememberComponent("swap")

	fromToken, err := tk.resolveToken(ctx, swapReq.SourceToken)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	toToken, err := tk.resolveToken(ctx, swapReq.DestToken)
	if err != nil {
		printError(err)
		os.Exit(1)
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
				printSuccess(color.GreenString("Swap confirmed in block %s", receipt.BlockNumber))
			} else {
				printSuccess(color.GreenString("Swap confirmed"))
			}
			close(done)
		},
	}

	provider := swap.New(tk.swapDeps(), swap.Config{
		MaxSlippage:   maxSlippage,
		UseAggregator: tk.cfg.UseAggregator,
	}, hooks)
	provider.SetFromToken(*fromToken)
	provider.SetToToken(*toToken)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	provider.HandleAmountChange(ctx, swap.SideFrom, swapReq.Amount, nil)
	quote, err := awaitQuote(provider)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(map[string]any{
			"from":         fromToken.Symbol,
			"to":           toToken.Symbol,
			"amount_from":  swapReq.Amount,
			"amount_to":    quote,
			"max_slippage": provider.MaxSlippage(),
		}, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println("\n" + strings.Repeat("=", 60))
		color.Green("                     SWAP QUOTE")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("\n  From:          %s %s\n", swapReq.Amount, color.YellowString(fromToken.Symbol))
		fmt.Printf("  To:            ~%s %s\n", quote, color.YellowString(toToken.Symbol))
		fmt.Printf("  Max Slippage:  %.2f%%\n", provider.MaxSlippage())
		fmt.Println("\n" + strings.Repeat("=", 60))
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	provider.HandleSubmit(ctx)
	<-done
}

// awaitQuote polls the provider until the destination amount lands or
// the quote fails.
func awaitQuote(provider *swap.Provider) (string, error) {
	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return "", fmt.Errorf("timed out waiting for quote")
		case <-ticker.C:
			to := provider.To()
			if to.Err != nil {
				return "", to.Err
			}
			if !to.Loading && to.Amount != "" {
				return to.Amount, nil
			}
		}
	}
}

func runCrossChainSwap(swapReq *parser.SwapRequest, jsonOutput bool) {
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.OneClickJWT == "" {
		printError(fmt.Errorf("cross-chain swaps need WALLETKIT_ONECLICK_JWT"))
		os.Exit(1)
	}
	if swapReq.RecipientAddr == "" {
		printError(fmt.Errorf("--recipient is required for cross-chain swaps"))
		os.Exit(1)
	}

	agg := client.NewCrossChain(cfg.OneClickJWT)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	quote, err := agg.GetQuote(client.CrossChainParams{
		Amount:        swapReq.Amount,
		FromSymbol:    swapReq.SourceToken,
		ToSymbol:      swapReq.DestToken,
		FromChain:     swapReq.SourceChain,
		ToChain:       swapReq.DestChain,
		RecipientAddr: swapReq.RecipientAddr,
		RefundAddr:    swapReq.RefundAddr,
	})
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(map[string]any{
			"deposit_address":   quote.DepositAddress,
			"source_amount":     quote.AmountInFormatted,
			"source_token":      swapReq.SourceToken,
			"dest_amount":       quote.AmountOutFormatted,
			"dest_token":        swapReq.DestToken,
			"time_estimate_sec": quote.TimeEstimateSec,
			"status":            "quote_generated",
		}, "", "  ")
		fmt.Println(string(out))
	} else {
		displayCrossChainQuote(quote, swapReq)
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	if !jsonOutput {
		displayDepositInstructions(quote, swapReq)
	}

	if autoDeposit {
		if err := sendAutoDeposit(cfg, agg, swapReq, quote); err != nil {
			color.Red("\nAuto-deposit failed: %v", err)
			color.Yellow("Please send the deposit manually to: %s\n", quote.DepositAddress)
		}
	}

	if !jsonOutput {
		fmt.Println("\nYou can monitor the swap status using:")
		color.Cyan("  walletkit status %s\n", quote.DepositAddress)
	}
}

// sendAutoDeposit funds the deposit address from the configured Solana
// key. Only Solana-sourced deposits are automated.
func sendAutoDeposit(cfg *config.Config, agg *client.CrossChain, swapReq *parser.SwapRequest, quote *client.CrossChainQuote) error {
	if chain := strings.ToLower(swapReq.SourceChain); chain != "" && chain != "sol" && chain != "solana" {
		return fmt.Errorf("auto-deposit is only supported from Solana, not %s", swapReq.SourceChain)
	}
	if cfg.SolanaRPCURL == "" || cfg.SolanaPrivateKey == "" {
		return fmt.Errorf("solana sender not configured. Set WALLETKIT_SOLANA_RPC_URL and WALLETKIT_SOLANA_PRIVATE_KEY")
	}

	sender, err := deposit.NewSolanaSender(cfg.SolanaRPCURL, cfg.SolanaPrivateKey)
	if err != nil {
		return err
	}

	color.Yellow("\nInitiating auto-deposit...\n")
	fmt.Printf("  Amount:  %s %s\n", swapReq.Amount, swapReq.SourceToken)
	fmt.Printf("  To:      %s\n", quote.DepositAddress)

	if !noConfirm && !confirm("Proceed with auto-deposit?") {
		return fmt.Errorf("auto-deposit cancelled by user")
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Sending deposit..."
	s.Start()
	txid, err := sender.Send(context.Background(), quote.DepositAddress, swapReq.Amount)
	s.Stop()
	if err != nil {
		return err
	}

	color.Green("\nDeposit sent successfully!")
	fmt.Printf("  Transaction ID: %s\n", color.CyanString(txid))

	if err := agg.SubmitDepositTx(quote.DepositAddress, txid); err != nil {
		color.Yellow("Could not notify the aggregator of the deposit: %v", err)
	}
	return nil
}

func displayCrossChainQuote(quote *client.CrossChainQuote, swapReq *parser.SwapRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Deposit Address:   %s\n", color.CyanString(quote.DepositAddress))
	fmt.Printf("  From:              %s %s\n", quote.AmountInFormatted, color.YellowString(swapReq.SourceToken))
	fmt.Printf("  To:                ~%s %s\n", quote.AmountOutFormatted, color.YellowString(swapReq.DestToken))
	fmt.Printf("  Estimated Time:    %.0f seconds\n", quote.TimeEstimateSec)

	if swapReq.SourceChain != "" {
		fmt.Printf("  Source Chain:      %s\n", swapReq.SourceChain)
	}
	if swapReq.DestChain != "" {
		fmt.Printf("  Destination Chain: %s\n", swapReq.DestChain)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayDepositInstructions(quote *client.CrossChainQuote, swapReq *parser.SwapRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                 DEPOSIT INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nTo complete the swap, send %s %s to:\n\n", quote.AmountInFormatted, swapReq.SourceToken)
	color.Cyan("  %s\n", quote.DepositAddress)
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
