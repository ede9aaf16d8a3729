package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"deposit-bridge/pkg/types"
)

var (
	testDestination = types.Destination{
		Chain:    types.Chain{Name: "base", Family: types.FamilyEVM, ChainID: 8453},
		Token:    "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa",
		Symbol:   "USDC",
		Decimals: 6,
		Address:  "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb",
	}
	testSOL = types.Token{
		Chain:    types.Chain{Name: "solana", Family: types.FamilySolana},
		Symbol:   "SOL",
		Decimals: 9,
		Balance:  "2",
		Price:    150,
	}
)

func TestQuoteDisplay(t *testing.T) {
	quote := &types.Quote{
		DestinationAmountEstimate: "299500000",
		DestinationAmountMinimum:  "298000000",
		EstimatedDuration:         45 * time.Second,
		DepositAddress:            "dep1",
	}

	display := quoteDisplay(testSOL, "2", testDestination, quote)
	assert.Equal(t, "2", display.SourceAmount)
	assert.Equal(t, "SOL", display.SourceToken)
	assert.Equal(t, "solana", display.SourceChain)
	assert.Equal(t, "299.5", display.DestAmount)
	assert.Equal(t, "298", display.DestMinimum)
	assert.Equal(t, "45s", display.EstimatedTime)
	assert.Equal(t, "dep1", display.DepositAddress)
	assert.False(t, display.Direct)
}

func TestQuoteDisplayDirect(t *testing.T) {
	usdc := types.Token{Chain: testDestination.Chain, Symbol: "USDC", Address: testDestination.Token, Decimals: 6}

	display := quoteDisplay(usdc, "10", testDestination, nil)
	assert.True(t, display.Direct)
	assert.Equal(t, "10", display.DestAmount)
	assert.Equal(t, "10", display.DestMinimum)
}

func TestFiatValue(t *testing.T) {
	assert.Equal(t, "300.00", fiatValue("2", 150))
	assert.Equal(t, "1.23", fiatValue("1.2345", 1))
	assert.Equal(t, "0.00", fiatValue("abc", 3))
}

func TestFilterHoldings(t *testing.T) {
	usdc := types.Token{Chain: testDestination.Chain, Symbol: "USDC"}
	tokens := []types.Token{testSOL, usdc}

	filterChain, filterSymbol = "SOLANA", ""
	t.Cleanup(func() { filterChain, filterSymbol = "", "" })
	assert.Equal(t, []types.Token{testSOL}, filterHoldings(tokens))

	filterChain, filterSymbol = "", "usd"
	assert.Equal(t, []types.Token{usdc}, filterHoldings(tokens))
}

func TestSettled(t *testing.T) {
	assert.True(t, settled("SUCCESS"))
	assert.True(t, settled("refunded"))
	assert.False(t, settled("PENDING_DEPOSIT"))
	assert.False(t, settled("PROCESSING"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdefgh", 5))
}
