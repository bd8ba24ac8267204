package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "walletkit",
	Short: "A CLI for onchain swaps, buys and cross-chain transfers",
	Long: `walletkit is a command-line tool for onchain token swaps, buys and
cross-chain transfers. Same-chain operations run through the wallet
directly; cross-chain swaps route through the 1Click aggregator.

Examples:
  walletkit swap 1 ETH to USDC
  walletkit swap 1 SOL to USDC --cross-chain --recipient <addr>
  walletkit buy 10 DEGEN --pay-with USDC
  walletkit tokens --search DEG
  walletkit status <deposit-address>`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
