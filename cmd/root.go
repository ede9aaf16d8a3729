package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deposit-bridge/config"
	"deposit-bridge/pkg/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deposit-bridge",
	Short: "Deposit any holding into one settlement account",
	Long: `deposit-bridge moves funds from any configured chain into a single
settlement account. Deposits of the settlement asset on the settlement chain
are sent directly; everything else is bridged or swapped through a quote.

Examples:
  deposit-bridge tokens
  deposit-bridge quote 10 USDC on arbitrum
  deposit-bridge deposit 0.5 SOL
  deposit-bridge history
  deposit-bridge status <hash> --chain base`,
	Version:           "0.1.0",
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is $HOME/.deposit-bridge.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger = logging.New(os.Stderr, level)
	return nil
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
