package session

import (
	"deposit-bridge/pkg/amount"
	"deposit-bridge/pkg/classify"
	"deposit-bridge/pkg/types"
)

// Event is an input to Reduce
type Event interface {
	event()
}

type (
	// SelectToken picks the holding to deposit from
	SelectToken struct{ Token types.Token }
	// ChangeAmount sets the amount, clamped to the balance
	ChangeAmount struct{ Amount string }
	// QuoteRequested marks a quote request for Generation as started
	QuoteRequested struct{ Generation uint64 }
	// QuoteReceived delivers a quote requested at Generation
	QuoteReceived struct {
		Generation uint64
		Quote      *types.Quote
	}
	// QuoteFailed reports a failed quote request for Generation
	QuoteFailed struct {
		Generation uint64
		Err        error
	}
	// ExecutionStarted enters Processing and raises the in-flight guard
	ExecutionStarted struct{}
	// StatusChanged updates the progress message during execution
	StatusChanged struct{ Message string }
	// ExecutionSucceeded ends execution with a submitted hash
	ExecutionSucceeded struct {
		Hash      string
		Confirmed bool
		Attempts  []types.TransactionAttempt
	}
	// ExecutionFailed ends execution with an error. Hash is kept when one was produced.
	ExecutionFailed struct {
		Hash     string
		Err      error
		Kind     classify.Kind
		Attempts []types.TransactionAttempt
	}
	// Retry leaves Error for another attempt
	Retry struct{}
	// Reset starts over with a new session ID
	Reset struct{ ID string }
)

func (SelectToken) event()        {}
func (ChangeAmount) event()       {}
func (QuoteRequested) event()     {}
func (QuoteReceived) event()      {}
func (QuoteFailed) event()        {}
func (ExecutionStarted) event()   {}
func (StatusChanged) event()      {}
func (ExecutionSucceeded) event() {}
func (ExecutionFailed) event()    {}
func (Retry) event()              {}
func (Reset) event()              {}

// Reduce returns the session after ev. Input changes are ignored while a
// transaction is in flight; quote results for an old generation are dropped.
func Reduce(s Session, ev Event) Session {
	switch e := ev.(type) {
	case SelectToken:
		if s.InFlight {
			return s
		}
		token := e.Token
		s.Token = &token
		s.Amount = ""
		s = invalidateQuote(s)
		s = clearOutcome(s)
		return settle(s)

	case ChangeAmount:
		if s.InFlight || s.Token == nil {
			return s
		}
		s.Amount = amount.Clamp(e.Amount, s.Token.Balance)
		s = invalidateQuote(s)
		s = clearOutcome(s)
		return settle(s)

	case QuoteRequested:
		if e.Generation != s.Generation || s.InFlight {
			return s
		}
		s.QuoteLoading = true
		s.QuoteError = ""
		return s

	case QuoteReceived:
		if e.Generation != s.Generation || s.InFlight || e.Quote == nil {
			return s
		}
		s.Quote = e.Quote
		s.QuoteLoading = false
		s.QuoteError = ""
		return settle(s)

	case QuoteFailed:
		if e.Generation != s.Generation || s.InFlight {
			return s
		}
		s.Quote = nil
		s.QuoteLoading = false
		s.QuoteError = "Unable to get a quote"
		if e.Err != nil {
			s.QuoteError = e.Err.Error()
		}
		return settle(s)

	case ExecutionStarted:
		s = clearOutcome(s)
		s.InFlight = true
		s.Step = StepProcessing
		s.StatusMessage = "Preparing transaction..."
		return s

	case StatusChanged:
		if !s.InFlight {
			return s
		}
		s.StatusMessage = e.Message
		return s

	case ExecutionSucceeded:
		if !s.InFlight {
			return s
		}
		s.InFlight = false
		s.Step = StepSuccess
		s.TxHash = e.Hash
		s.Confirmed = e.Confirmed
		s.Attempts = e.Attempts
		if e.Confirmed {
			s.StatusMessage = "Deposit confirmed"
		} else {
			s.StatusMessage = "Deposit submitted, confirmation pending"
		}
		return s

	case ExecutionFailed:
		if !s.InFlight {
			return s
		}
		s.InFlight = false
		s.Step = StepError
		s.ErrorKind = e.Kind
		s.Error = classify.Message(e.Kind, e.Err)
		s.Attempts = e.Attempts
		if e.Hash != "" {
			s.TxHash = e.Hash
		}
		s.StatusMessage = ""
		return s

	case Retry:
		if s.Step != StepError {
			return s
		}
		s = clearOutcome(s)
		return settle(s)

	case Reset:
		if s.InFlight {
			return s
		}
		next := New(s.Destination)
		next.ID = e.ID
		next.Generation = s.Generation + 1
		return next
	}

	return s
}

// invalidateQuote drops the quote and moves to a new generation so any
// outstanding response is ignored
func invalidateQuote(s Session) Session {
	s.Quote = nil
	s.Generation++
	s.QuoteLoading = false
	s.QuoteError = ""
	return s
}

func clearOutcome(s Session) Session {
	s.TxHash = ""
	s.Confirmed = false
	s.StatusMessage = ""
	s.Error = ""
	s.ErrorKind = classify.KindNone
	s.Attempts = nil
	return s
}

// settle derives the pre-execution step from the session's inputs
func settle(s Session) Session {
	switch {
	case s.Token == nil:
		s.Step = StepSelectToken
	case s.AmountValid() && (s.Direct() || s.Quote != nil):
		s.Step = StepConfirm
	default:
		s.Step = StepEnterAmount
	}
	return s
}
