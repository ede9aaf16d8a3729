package parser

import (
	"fmt"
	"regexp"
	"strings"

	"deposit-bridge/pkg/types"
)

var depositPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+|MAX)\s+([A-Z0-9.]+)(?:\s+ON\s+([A-Z0-9-]+))?$`)

// ParseDepositCommand parses a natural language deposit command
// Examples:
//   - "deposit 10 USDC"
//   - "0.5 ETH on arbitrum"
//   - "max SOL"
func ParseDepositCommand(command string) (*types.DepositCommand, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "DEPOSIT ")

	matches := depositPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid deposit command format. Expected: 'deposit <amount> <token> [on <chain>]' (e.g., 'deposit 10 USDC on base')")
	}

	return &types.DepositCommand{
		Amount: strings.ToLower(matches[1]),
		Symbol: NormalizeTokenSymbol(matches[2]),
		Chain:  strings.ToLower(matches[3]),
	}, nil
}

// ValidateDepositCommand validates that a deposit command has all required fields
func ValidateDepositCommand(cmd *types.DepositCommand) error {
	if cmd.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if cmd.Symbol == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"USDC.E": "USDC",
		"WSOL":   "SOL",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
