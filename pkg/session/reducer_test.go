package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"deposit-bridge/pkg/classify"
	"deposit-bridge/pkg/types"
)

var (
	baseChain     = types.Chain{Name: "base", Family: types.FamilyEVM, ChainID: 8453}
	ethereumChain = types.Chain{Name: "ethereum", Family: types.FamilyEVM, ChainID: 1}

	destination = types.Destination{
		Chain:    baseChain,
		Token:    "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa",
		Symbol:   "USDC",
		Decimals: 6,
		Address:  "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb",
	}

	directToken = types.Token{
		Chain:    baseChain,
		Symbol:   "USDC",
		Address:  "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Decimals: 6,
		Balance:  "100",
	}

	bridgedToken = types.Token{
		Chain:    ethereumChain,
		Symbol:   "USDC",
		Address:  "0x2222222222222222222222222222222222222222",
		Decimals: 6,
		Balance:  "100",
	}
)

func TestReduceSelectToken(t *testing.T) {
	s := New(destination)
	assert.Equal(t, StepSelectToken, s.Step)

	s = Reduce(s, SelectToken{Token: directToken})
	assert.Equal(t, StepEnterAmount, s.Step)
	assert.True(t, s.Direct())
	assert.False(t, s.NeedsQuote())

	s = Reduce(s, SelectToken{Token: bridgedToken})
	assert.False(t, s.Direct())
	assert.True(t, s.NeedsQuote())
}

func TestReduceClampsAmount(t *testing.T) {
	s := Reduce(New(destination), SelectToken{Token: directToken})

	s = Reduce(s, ChangeAmount{Amount: "150"})
	assert.Equal(t, "100", s.Amount)
	assert.Equal(t, StepConfirm, s.Step)

	s = Reduce(s, ChangeAmount{Amount: "abc"})
	assert.Equal(t, "abc", s.Amount)
	assert.Equal(t, StepEnterAmount, s.Step)

	s = Reduce(s, ChangeAmount{Amount: "0"})
	assert.Equal(t, StepEnterAmount, s.Step)
	assert.ErrorIs(t, s.CanExecute(), ErrInvalidAmount)
}

func TestReduceInvalidatesQuote(t *testing.T) {
	s := Reduce(New(destination), SelectToken{Token: bridgedToken})
	s = Reduce(s, ChangeAmount{Amount: "10"})
	assert.Equal(t, StepEnterAmount, s.Step)
	assert.ErrorIs(t, s.CanExecute(), ErrQuoteRequired)

	gen := s.Generation
	s = Reduce(s, QuoteRequested{Generation: gen})
	assert.True(t, s.QuoteLoading)

	s = Reduce(s, QuoteReceived{Generation: gen, Quote: &types.Quote{ID: "q1"}})
	assert.Equal(t, StepConfirm, s.Step)
	assert.NoError(t, s.CanExecute())

	s = Reduce(s, ChangeAmount{Amount: "20"})
	assert.Nil(t, s.Quote)
	assert.Greater(t, s.Generation, gen)
	assert.ErrorIs(t, s.CanExecute(), ErrQuoteRequired)

	s = Reduce(s, QuoteReceived{Generation: s.Generation, Quote: &types.Quote{ID: "q2"}})
	s = Reduce(s, SelectToken{Token: bridgedToken})
	assert.Nil(t, s.Quote)
	assert.Empty(t, s.Amount)
}

func TestReduceDropsStaleQuotes(t *testing.T) {
	s := Reduce(New(destination), SelectToken{Token: bridgedToken})
	s = Reduce(s, ChangeAmount{Amount: "10"})
	stale := s.Generation
	s = Reduce(s, ChangeAmount{Amount: "20"})

	s = Reduce(s, QuoteReceived{Generation: stale, Quote: &types.Quote{ID: "old"}})
	assert.Nil(t, s.Quote)

	s = Reduce(s, QuoteFailed{Generation: stale, Err: errors.New("boom")})
	assert.Empty(t, s.QuoteError)

	s = Reduce(s, QuoteFailed{Generation: s.Generation, Err: errors.New("no route")})
	assert.Equal(t, "no route", s.QuoteError)
	assert.Equal(t, StepEnterAmount, s.Step)
}

func TestReduceExecutionLifecycle(t *testing.T) {
	s := Reduce(New(destination), SelectToken{Token: directToken})
	s = Reduce(s, ChangeAmount{Amount: "50"})

	s = Reduce(s, ExecutionStarted{})
	assert.True(t, s.InFlight)
	assert.Equal(t, StepProcessing, s.Step)
	assert.ErrorIs(t, s.CanExecute(), ErrInFlight)

	// inputs and resets are ignored while in flight
	before := s
	assert.Equal(t, before, Reduce(s, SelectToken{Token: bridgedToken}))
	assert.Equal(t, before, Reduce(s, ChangeAmount{Amount: "1"}))
	assert.Equal(t, before, Reduce(s, Reset{ID: "new"}))

	s = Reduce(s, StatusChanged{Message: "Waiting for confirmation..."})
	assert.Equal(t, "Waiting for confirmation...", s.StatusMessage)

	s = Reduce(s, ExecutionSucceeded{Hash: "0xabc", Confirmed: true})
	assert.False(t, s.InFlight)
	assert.Equal(t, StepSuccess, s.Step)
	assert.Equal(t, "0xabc", s.TxHash)

	s = Reduce(s, Reset{ID: "next"})
	assert.Equal(t, "next", s.ID)
	assert.Equal(t, StepSelectToken, s.Step)
	assert.Nil(t, s.Token)
}

func TestReduceFailureKeepsHash(t *testing.T) {
	s := Reduce(New(destination), SelectToken{Token: directToken})
	s = Reduce(s, ChangeAmount{Amount: "50"})
	s = Reduce(s, ExecutionStarted{})

	err := errors.New("insufficient funds for gas * price + value")
	s = Reduce(s, ExecutionFailed{Hash: "0xdead", Err: err, Kind: classify.KindInsufficientFunds})
	assert.Equal(t, StepError, s.Step)
	assert.False(t, s.InFlight)
	assert.Equal(t, "0xdead", s.TxHash)
	assert.Equal(t, classify.KindInsufficientFunds, s.ErrorKind)
	assert.Equal(t, classify.Message(classify.KindInsufficientFunds, err), s.Error)

	s = Reduce(s, Retry{})
	assert.Equal(t, StepConfirm, s.Step)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.TxHash)
}

func TestReduceIgnoresOutOfOrderEvents(t *testing.T) {
	s := New(destination)
	assert.Equal(t, s, Reduce(s, ChangeAmount{Amount: "5"}))
	assert.Equal(t, s, Reduce(s, ExecutionSucceeded{Hash: "0x1"}))
	assert.Equal(t, s, Reduce(s, StatusChanged{Message: "x"}))
	assert.Equal(t, s, Reduce(s, Retry{}))
}
