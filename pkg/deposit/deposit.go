package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"deposit-bridge/pkg/types"
)

var (
	// ErrSponsorshipUnavailable is returned by wallets that cannot sponsor fees
	ErrSponsorshipUnavailable = errors.New("sponsorship unavailable")
	// ErrTransactionTooLarge is returned when sponsorship would push a transaction over the size limit
	ErrTransactionTooLarge = errors.New("transaction too large for sponsored submission")
	// ErrReverted is returned when a transaction was included but failed on chain
	ErrReverted = errors.New("transaction reverted")
	// ErrUnsupportedFamily is returned for chain families without an executor
	ErrUnsupportedFamily = errors.New("unsupported chain family")
)

// SendOptions controls how a wallet submits a transaction
type SendOptions struct {
	Sponsor bool
}

// StatusFunc receives progress messages for the user
type StatusFunc func(message string)

func notify(status StatusFunc, message string) {
	if status != nil {
		status(message)
	}
}

// Request is a validated deposit ready for submission
type Request struct {
	Token       types.Token
	Amount      *big.Int     // Smallest units
	Quote       *types.Quote // Nil for direct transfers
	From        string       // Source account
	Destination types.Destination
}

// Recipient returns where a plain transfer should go: the provider's deposit
// address for deposit-address quotes, the settlement address otherwise
func (r Request) Recipient() string {
	if r.Quote != nil && r.Quote.DepositAddress != "" {
		return r.Quote.DepositAddress
	}
	return r.Destination.Address
}

// IsTransfer returns true when the deposit is a single transfer rather than a quoted transaction
func (r Request) IsTransfer() bool {
	return r.Quote == nil || r.Quote.Transaction.IsEmpty()
}

// Result is the outcome of an execution. Hash is kept even when err is set.
type Result struct {
	Hash         string // Transfer or bridge transaction, never the approval
	ApprovalHash string
	Confirmed    bool
	Attempts     []types.TransactionAttempt
}

// ChainExecutor builds, submits and confirms deposits for one chain family
type ChainExecutor interface {
	Execute(ctx context.Context, req Request, status StatusFunc) (Result, error)
}

// Policy configures submission and confirmation
type Policy struct {
	Sponsorship              bool          // Try a sponsored submission first
	ConfirmationTimeout      time.Duration // Bound on waiting for finality
	PollInterval             time.Duration // Initial confirmation poll interval
	CredentialRefreshTimeout time.Duration // Bound on refreshing the wallet session
}

// DefaultPolicy returns the default submission policy
func DefaultPolicy() Policy {
	return Policy{
		Sponsorship:              true,
		ConfirmationTimeout:      2 * time.Minute,
		PollInterval:             500 * time.Millisecond,
		CredentialRefreshTimeout: 5 * time.Second,
	}
}

// Registry resolves the executor for a chain family
type Registry struct {
	executors map[types.ChainFamily]ChainExecutor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[types.ChainFamily]ChainExecutor),
	}
}

// Register sets the executor for family
func (r *Registry) Register(family types.ChainFamily, executor ChainExecutor) {
	r.executors[family] = executor
}

// For returns the executor for family
func (r *Registry) For(family types.ChainFamily) (ChainExecutor, error) {
	executor, ok := r.executors[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFamily, family)
	}
	return executor, nil
}

// Families returns the registered chain families
func (r *Registry) Families() []types.ChainFamily {
	families := make([]types.ChainFamily, 0, len(r.executors))
	for family := range r.executors {
		families = append(families, family)
	}
	return families
}
