package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"walletkit/config"
	"walletkit/pkg/client"
	"walletkit/pkg/token"
)

var (
	filterChain  string
	filterSymbol string
	searchQuery  string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List supported tokens",
	Long: `List supported tokens.

By default this lists the tokens supported by the 1Click cross-chain
aggregator, optionally filtered by blockchain or symbol. With --search
it queries the swap API instead, which covers on-chain swap pairs.

Examples:
  walletkit list-tokens
  walletkit list-tokens --chain solana
  walletkit list-tokens --symbol USDC
  walletkit list-tokens --search degen`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().StringVar(&searchQuery, "search", "", "Search the swap API by name or symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if searchQuery != "" {
		runTokenSearch(cmd, jsonOutput)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.OneClickJWT == "" {
		printError(fmt.Errorf("listing cross-chain tokens needs WALLETKIT_ONECLICK_JWT (or use --search)"))
		os.Exit(1)
	}

	agg := client.NewCrossChain(cfg.OneClickJWT)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}
	tokens, err := agg.SupportedTokens()
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := tokens
	if filterChain != "" {
		var temp []oneclick.TokenResponse
		for _, tok := range filtered {
			if strings.EqualFold(tok.GetBlockchain(), filterChain) {
				temp = append(temp, tok)
			}
		}
		filtered = temp
	}
	if filterSymbol != "" {
		var temp []oneclick.TokenResponse
		for _, tok := range filtered {
			if strings.Contains(strings.ToUpper(tok.GetSymbol()), strings.ToUpper(filterSymbol)) {
				temp = append(temp, tok)
			}
		}
		filtered = temp
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayCrossChainTokens(filtered)
	}
}

func runTokenSearch(cmd *cobra.Command, jsonOutput bool) {
	ctx := cmd.Context()

	tk, err := wire(ctx, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer tk.close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Searching tokens..."
		s.Start()
	}
	tokens, err := tk.api.GetTokens(ctx, client.GetTokensParams{Search: searchQuery, Limit: 25})
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	// The API search is fuzzy; narrow to prefix/address matches locally.
	tokens = token.Filter(tokens, searchQuery)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(tokens, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displaySwapTokens(tokens)
}

func displaySwapTokens(tokens []token.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              SWAP TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	for _, tok := range tokens {
		address := tok.Address
		if address == "" {
			address = "native"
		}
		fmt.Printf("  %-10s  %2d decimals  chain %-8d  %s\n",
			color.YellowString(tok.Symbol),
			tok.Decimals,
			tok.ChainID,
			color.HiBlackString(address))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens\n\n", len(tokens))
}

func displayCrossChainTokens(tokens []oneclick.TokenResponse) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	tokensByChain := make(map[string][]oneclick.TokenResponse)
	for _, tok := range tokens {
		chain := tok.GetBlockchain()
		tokensByChain[chain] = append(tokensByChain[chain], tok)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, tok := range tokensByChain[chain] {
			address := tok.GetContractAddress()
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(tok.GetSymbol()),
				tok.GetDecimals(),
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
