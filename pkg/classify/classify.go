// Package classify maps raw wallet, RPC and provider failures onto the small
// taxonomy the deposit session reacts to.
package classify

import (
	"context"
	"errors"
	"strings"
)

// Kind is a failure classification
type Kind string

const (
	KindNone               Kind = ""
	KindUserRejected       Kind = "user_rejected"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindTimeout            Kind = "timeout"
	KindSponsorshipFailure Kind = "sponsorship_failure"
	KindUnclassified       Kind = "unclassified"
)

// Phrases are matched against the lowercased error text. Anything that does
// not match falls through to KindUnclassified.
var (
	userRejectedPhrases = []string{
		"user rejected",
		"user denied",
		"rejected by user",
		"user cancelled",
		"user canceled",
		"cancelled by user",
		"canceled by user",
		"code=4001",
		"code: 4001",
	}
	insufficientFundsPhrases = []string{
		"insufficient funds",
		"insufficient balance",
		"insufficient lamports",
		"transfer amount exceeds balance",
		"exceeds balance",
	}
	timeoutPhrases = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"blockhash not found",
		"block height exceeded",
	}
	sponsorshipPhrases = []string{
		"sponsorship unavailable",
		"sponsorship failed",
		"paymaster",
		"gas sponsor",
		"transaction too large",
		"transaction size exceeds",
		"too large for sponsored",
	}
)

// Classify returns the kind of err, KindNone for a nil error
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindUserRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, userRejectedPhrases):
		return KindUserRejected
	case containsAny(msg, insufficientFundsPhrases):
		return KindInsufficientFunds
	case containsAny(msg, sponsorshipPhrases):
		return KindSponsorshipFailure
	case errors.Is(err, context.DeadlineExceeded), containsAny(msg, timeoutPhrases):
		return KindTimeout
	default:
		return KindUnclassified
	}
}

// Retryable returns true if the user may be offered a retry
func (k Kind) Retryable() bool {
	return k != KindUserRejected && k != KindNone
}

// Surfaced returns false for kinds handled internally
func (k Kind) Surfaced() bool {
	return k != KindSponsorshipFailure && k != KindNone
}

// Message returns the user-facing text for an error of kind k
func Message(k Kind, err error) string {
	switch k {
	case KindNone:
		return ""
	case KindUserRejected:
		return "Transaction was rejected in the wallet."
	case KindInsufficientFunds:
		return "Insufficient funds to cover the amount and network fees."
	case KindTimeout:
		return "The network took too long to respond. Please try again."
	case KindSponsorshipFailure:
		return "Fee sponsorship failed."
	}
	if err == nil {
		return "Deposit failed."
	}
	return err.Error()
}

func containsAny(msg string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
