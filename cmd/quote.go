package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"deposit-bridge/pkg/amount"
	"deposit-bridge/pkg/client"
	"deposit-bridge/pkg/parser"
	"deposit-bridge/pkg/types"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> [on <chain>]",
	Short: "Price a deposit without sending it",
	Long: `Fetch a quote for depositing a holding into the settlement account.

Examples:
  deposit-bridge quote 10 USDC on arbitrum
  deposit-bridge quote max SOL`,
	Args: cobra.MinimumNArgs(2),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	command, err := parser.ParseDepositCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	token, input, err := resolveHolding(cmd, a, command, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if a.destination.IsDirect(token) {
		display := quoteDisplay(token, input, a.destination, nil)
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(display, "", "  ")
			fmt.Println(string(jsonData))
			return
		}
		displayQuote(display)
		return
	}

	req, err := client.BuildRequest(token, input, a.destination, a.accounts[token.Chain.Family], a.cfg.Quote.MaxSlippageBps)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	quote, err := a.quotes.GetQuote(cmd.Context(), req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	display := quoteDisplay(token, input, a.destination, quote)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(display, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayQuote(display)
}

// resolveHolding finds the holding a command names and resolves "max" to its balance
func resolveHolding(cmd *cobra.Command, a *app, command *types.DepositCommand, quiet bool) (types.Token, string, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !quiet {
		s.Suffix = " Reading balances..."
		s.Start()
	}
	token, err := a.directory.Find(cmd.Context(), command.Symbol, command.Chain)
	if !quiet {
		s.Stop()
	}
	if err != nil {
		return types.Token{}, "", err
	}

	input := command.Amount
	if input == "max" {
		input = token.Balance
	}
	return token, input, nil
}

func quoteDisplay(token types.Token, input string, dest types.Destination, quote *types.Quote) types.QuoteDisplay {
	display := types.QuoteDisplay{
		SourceAmount: input,
		SourceToken:  token.Symbol,
		SourceChain:  token.Chain.Name,
		DestAmount:   input,
		DestMinimum:  input,
		DestToken:    dest.Symbol,
		Direct:       quote == nil,
	}
	if quote == nil {
		return display
	}

	if v, err := amount.FromBaseUnitsString(quote.DestinationAmountEstimate, dest.Decimals); err == nil {
		display.DestAmount = v
	}
	if v, err := amount.FromBaseUnitsString(quote.DestinationAmountMinimum, dest.Decimals); err == nil {
		display.DestMinimum = v
	}
	if quote.EstimatedDuration > 0 {
		display.EstimatedTime = quote.EstimatedDuration.String()
	}
	display.DepositAddress = quote.DepositAddress
	return display
}

func displayQuote(q types.QuoteDisplay) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    DEPOSIT QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s on %s\n", q.SourceAmount, color.YellowString(q.SourceToken), q.SourceChain)
	if q.Direct {
		fmt.Printf("  To:                %s %s\n", q.DestAmount, color.YellowString(q.DestToken))
		fmt.Printf("  Route:             %s\n", color.GreenString("direct transfer"))
	} else {
		fmt.Printf("  To:                ~%s %s\n", q.DestAmount, color.YellowString(q.DestToken))
		fmt.Printf("  Minimum:           %s %s\n", q.DestMinimum, color.YellowString(q.DestToken))
	}
	if q.EstimatedTime != "" {
		fmt.Printf("  Estimated Time:    %s\n", q.EstimatedTime)
	}
	if q.DepositAddress != "" {
		fmt.Printf("  Deposit Address:   %s\n", color.CyanString(q.DepositAddress))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// fiatValue formats balance * price with two decimals
func fiatValue(balance string, price float64) string {
	value, err := amount.Parse(balance)
	if err != nil {
		return "0.00"
	}
	return value.Mul(decimal.NewFromFloat(price)).StringFixed(2)
}
