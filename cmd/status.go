package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"deposit-bridge/pkg/directory"
)

var (
	statusChain       string
	statusDepositAddr bool
	watchStatus       bool
	watchInterval     int
)

var statusCmd = &cobra.Command{
	Use:   "status <hash | deposit-address>",
	Short: "Check the status of a deposit",
	Long: `Check a submitted deposit on its source chain, or the settlement of a
1Click deposit address.

A hash found in the deposit history does not need --chain. A confirmed or
failed lookup updates the history record.

Examples:
  deposit-bridge status 0xabc... --chain base
  deposit-bridge status 5Kq...
  deposit-bridge status <deposit-address> --deposit-address --watch`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusChain, "chain", "", "Chain the transaction was sent on")
	statusCmd.Flags().BoolVar(&statusDepositAddr, "deposit-address", false, "Treat the argument as a 1Click deposit address")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	target := args[0]

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if statusDepositAddr {
		if a.oneClick == nil {
			printError(fmt.Errorf("--deposit-address requires the oneclick quote provider"))
			os.Exit(1)
		}
		if watchStatus {
			watchSettlement(cmd, a, target, jsonOutput)
			return
		}
		checkSettlement(cmd, a, target, jsonOutput)
		return
	}

	record, known := a.history.FindByHash(target)
	chain := statusChain
	if chain == "" && known {
		chain = record.Chain
	}
	if chain == "" {
		printError(fmt.Errorf("--chain is required for hashes not in the deposit history"))
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction..."
		s.Start()
	}
	status, err := a.transactionStatus(cmd.Context(), chain, target)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if known && (status.Confirmed || status.Failed) {
		if _, err := a.history.Settle(target, status.Confirmed, status.Detail); err != nil {
			logger.Warn().Err(err).Str("hash", target).Msg("Failed to update deposit history")
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayTransactionStatus(status, chain)
}

func displayTransactionStatus(status directory.TransactionStatus, chain string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Hash:    %s\n", color.CyanString(status.Hash))
	fmt.Printf("  Chain:   %s\n", chain)

	state := color.YellowString("PENDING")
	switch {
	case !status.Found:
		state = color.HiBlackString("NOT FOUND")
	case status.Failed:
		state = color.RedString("FAILED")
	case status.Confirmed:
		state = color.GreenString("CONFIRMED")
	}
	fmt.Printf("  Status:  %s\n", state)
	if status.Block > 0 {
		fmt.Printf("  Block:   %d\n", status.Block)
	}
	if status.Detail != "" {
		fmt.Printf("  Detail:  %s\n", status.Detail)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func checkSettlement(cmd *cobra.Command, a *app, depositAddress string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking settlement status..."
		s.Start()
	}

	status, err := a.oneClick.ExecutionStatus(cmd.Context(), depositAddress)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displaySettlement(status, depositAddress)
}

func watchSettlement(cmd *cobra.Command, a *app, depositAddress string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching settlement (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		status, err := a.oneClick.ExecutionStatus(cmd.Context(), depositAddress)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displaySettlement(status, depositAddress)
			if settled(status.GetStatus()) {
				printSuccess("Settlement finished.")
				return
			}
		}

		select {
		case <-ticker.C:
		case <-cmd.Context().Done():
			return
		}
	}
}

func displaySettlement(status *oneclick.GetExecutionStatusResponse, depositAddress string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      SETTLEMENT STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(depositAddress))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.GetStatus()))
	fmt.Printf("  Last Updated:    %s\n", status.GetUpdatedAt().Format("2006-01-02 15:04:05"))

	swapDetails := status.GetSwapDetails()
	for _, tx := range swapDetails.GetOriginChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
		}
	}
	for _, tx := range swapDetails.GetDestinationChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Settlement Tx:   %s\n", color.HiBlackString(hash))
		}
	}

	if swapDetails.HasAmountInFormatted() {
		fmt.Printf("  Amount In:       %s\n", swapDetails.GetAmountInFormatted())
	}
	if swapDetails.HasAmountOutFormatted() {
		fmt.Printf("  Amount Out:      %s\n", swapDetails.GetAmountOutFormatted())
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func settled(status string) bool {
	switch strings.ToUpper(status) {
	case "SUCCESS", "FAILED", "REFUNDED":
		return true
	}
	return false
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING", "KNOWN_DEPOSIT_TX":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}
