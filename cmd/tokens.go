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

	"deposit-bridge/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
	showProvider bool
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List the holdings you can deposit from",
	Long: `List the configured tokens with their current balances.

With --provider, list every token the 1Click provider can route instead.

Examples:
  deposit-bridge tokens
  deposit-bridge tokens --chain solana
  deposit-bridge tokens --provider --symbol USDC`,
	Run: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by chain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().BoolVar(&showProvider, "provider", false, "List tokens supported by the quote provider")
}

func runTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Reading balances..."
		s.Start()
	}

	if showProvider {
		if a.oneClick == nil {
			s.Stop()
			printError(fmt.Errorf("--provider requires the oneclick quote provider"))
			os.Exit(1)
		}
		tokens, err := a.oneClick.GetSupportedTokens(cmd.Context())
		s.Stop()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		filtered := filterProviderTokens(tokens)
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(filtered, "", "  ")
			fmt.Println(string(jsonData))
			return
		}
		displayProviderTokens(filtered)
		return
	}

	holdings, err := a.directory.Tokens(cmd.Context())
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterHoldings(holdings)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayHoldings(filtered, a.destination)
}

func filterHoldings(tokens []types.Token) []types.Token {
	var out []types.Token
	for _, token := range tokens {
		if filterChain != "" && !strings.EqualFold(token.Chain.Name, filterChain) {
			continue
		}
		if filterSymbol != "" && !strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func filterProviderTokens(tokens []oneclick.TokenResponse) []oneclick.TokenResponse {
	var out []oneclick.TokenResponse
	for _, token := range tokens {
		if filterChain != "" && !strings.EqualFold(token.GetBlockchain(), filterChain) {
			continue
		}
		if filterSymbol != "" && !strings.Contains(strings.ToUpper(token.GetSymbol()), strings.ToUpper(filterSymbol)) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func displayHoldings(tokens []types.Token, dest types.Destination) {
	if len(tokens) == 0 {
		fmt.Println("\nNo holdings found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                              YOUR HOLDINGS")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n  Settlement: %s on %s -> %s\n", color.YellowString(dest.Symbol), dest.Chain.Name, color.CyanString(dest.Address))

	byChain := make(map[string][]types.Token)
	for _, token := range tokens {
		byChain[token.Chain.Name] = append(byChain[token.Chain.Name], token)
	}

	chains := make([]string, 0, len(byChain))
	for chain := range byChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 80))

		for _, token := range byChain[chain] {
			route := color.HiBlackString("bridge")
			if dest.IsDirect(token) {
				route = color.GreenString("direct")
			}
			value := ""
			if token.Price > 0 {
				value = fmt.Sprintf("(~$%s)", fiatValue(token.Balance, token.Price))
			}
			fmt.Printf("  %-10s  %20s  %-14s %s\n",
				color.YellowString(token.Symbol),
				token.Balance,
				value,
				route)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
}

func displayProviderTokens(tokens []oneclick.TokenResponse) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	tokensByChain := make(map[string][]oneclick.TokenResponse)
	for _, token := range tokens {
		chain := token.GetBlockchain()
		tokensByChain[chain] = append(tokensByChain[chain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.GetContractAddress()
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(token.GetSymbol()),
				token.GetDecimals(),
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
