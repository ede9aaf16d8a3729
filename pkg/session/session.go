// Package session drives one deposit from token selection to a terminal outcome.
package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"deposit-bridge/pkg/amount"
	"deposit-bridge/pkg/classify"
	"deposit-bridge/pkg/types"
)

var (
	ErrNoToken       = errors.New("no token selected")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrQuoteRequired = errors.New("a current quote is required")
	ErrInFlight      = errors.New("a transaction is already in flight")
)

// Step is the session's position in the deposit flow
type Step int

const (
	StepSelectToken Step = iota
	StepEnterAmount
	StepConfirm // Amount valid and quote ready, or direct transfer
	StepProcessing
	StepSuccess
	StepError
)

func (s Step) String() string {
	switch s {
	case StepSelectToken:
		return "select_token"
	case StepEnterAmount:
		return "enter_amount"
	case StepConfirm:
		return "confirm"
	case StepProcessing:
		return "processing"
	case StepSuccess:
		return "success"
	case StepError:
		return "error"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Terminal returns true for steps that end an execution
func (s Step) Terminal() bool {
	return s == StepSuccess || s == StepError
}

// Session is the state of one deposit. It is a value: every transition
// produces a new Session.
type Session struct {
	ID          string
	Step        Step
	Destination types.Destination
	Token       *types.Token
	Amount      string // Human units, clamped to the token balance

	Quote        *types.Quote
	Generation   uint64 // Bumped on every token or amount change
	QuoteLoading bool
	QuoteError   string

	InFlight      bool
	TxHash        string
	Confirmed     bool
	StatusMessage string
	Error         string
	ErrorKind     classify.Kind
	Attempts      []types.TransactionAttempt
}

// New starts a session for dest
func New(dest types.Destination) Session {
	return Session{
		ID:          uuid.NewString(),
		Step:        StepSelectToken,
		Destination: dest,
	}
}

// Direct returns true when the selected token is the settlement asset on the settlement chain
func (s Session) Direct() bool {
	return s.Token != nil && s.Destination.IsDirect(*s.Token)
}

// NeedsQuote returns true when the deposit must be priced by a quote
func (s Session) NeedsQuote() bool {
	return s.Token != nil && !s.Direct()
}

// AmountValid checks 0 < amount <= balance
func (s Session) AmountValid() bool {
	return s.Token != nil && amount.Validate(s.Amount, s.Token.Balance) == nil
}

// CanExecute reports why execution is not allowed, nil when it is
func (s Session) CanExecute() error {
	if s.InFlight {
		return ErrInFlight
	}
	if s.Token == nil {
		return ErrNoToken
	}
	if err := amount.Validate(s.Amount, s.Token.Balance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if s.NeedsQuote() && s.Quote == nil {
		return ErrQuoteRequired
	}
	return nil
}
