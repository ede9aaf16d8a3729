package types

import (
	"strings"
	"time"
)

// ChainFamily groups chains that share a transaction model
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"    // Account-model chains with allowances
	FamilySolana ChainFamily = "solana" // Ledger-style chains with versioned transactions
)

// Chain identifies a supported network
type Chain struct {
	Name    string      `json:"name"`
	Family  ChainFamily `json:"family"`
	ChainID int64       `json:"chain_id,omitempty"` // EVM only
}

// Token is a holding the user can deposit from
type Token struct {
	Chain    Chain   `json:"chain"`
	Symbol   string  `json:"symbol"`
	Address  string  `json:"address,omitempty"` // Empty for the chain's native asset
	Decimals int32   `json:"decimals"`
	Balance  string  `json:"balance"` // Human units
	Logo     string  `json:"logo,omitempty"`
	Price    float64 `json:"price,omitempty"` // Unit price in fiat, zero when unknown
}

// IsNative returns true if the token is the chain's native asset
func (t Token) IsNative() bool {
	return t.Address == ""
}

// Key identifies the token across chains
func (t Token) Key() string {
	return t.Chain.Name + ":" + NormalizeAddress(t.Chain.Family, t.Address)
}

// Destination is the fixed settlement target every deposit ends up in
type Destination struct {
	Chain    Chain  `json:"chain"`
	Token    string `json:"token"` // Settlement asset address, empty for native
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
	Address  string `json:"address"` // Settlement recipient
}

// IsDirect returns true when depositing token needs neither bridge nor swap
func (d Destination) IsDirect(token Token) bool {
	if token.Chain.Name != d.Chain.Name {
		return false
	}
	return NormalizeAddress(token.Chain.Family, token.Address) == NormalizeAddress(d.Chain.Family, d.Token)
}

// NormalizeAddress lowercases EVM hex addresses; Solana base58 is case-sensitive
func NormalizeAddress(family ChainFamily, address string) string {
	address = strings.TrimSpace(address)
	if family == FamilyEVM {
		return strings.ToLower(address)
	}
	return address
}

// ExecutableTransaction is the chain-specific payload attached to a quote
type ExecutableTransaction struct {
	To         string `json:"to,omitempty"`
	Data       string `json:"data,omitempty"`  // Hex calldata (EVM)
	Value      string `json:"value,omitempty"` // Native value in smallest units (EVM)
	ChainID    int64  `json:"chain_id,omitempty"`
	Serialized string `json:"serialized,omitempty"` // Base64 transaction (Solana)
}

// IsEmpty returns true if the quote carries no transaction to submit
func (t ExecutableTransaction) IsEmpty() bool {
	return t.To == "" && t.Serialized == ""
}

// Quote is a priced route; quotes are never mutated, only replaced
type Quote struct {
	ID                        string                `json:"id,omitempty"`
	SourceAmount              string                `json:"source_amount"`
	DestinationAmountEstimate string                `json:"destination_amount_estimate"`
	DestinationAmountMinimum  string                `json:"destination_amount_minimum"`
	ApprovalTarget            string                `json:"approval_target,omitempty"`
	Transaction               ExecutableTransaction `json:"transaction"`
	DepositAddress            string                `json:"deposit_address,omitempty"` // Set by deposit-address providers instead of Transaction
	DepositMemo               string                `json:"deposit_memo,omitempty"`
	EstimatedDuration         time.Duration         `json:"estimated_duration,omitempty"`
	Provider                  string                `json:"provider"`
}

// AttemptOutcome is the state of one submission try
type AttemptOutcome string

const (
	AttemptPending   AttemptOutcome = "pending"
	AttemptConfirmed AttemptOutcome = "confirmed"
	AttemptFailed    AttemptOutcome = "failed"
)

// AttemptPurpose tells approval attempts apart from the deposit itself
type AttemptPurpose string

const (
	PurposeApproval AttemptPurpose = "approval"
	PurposeTransfer AttemptPurpose = "transfer"
	PurposeBridge   AttemptPurpose = "bridge"
)

// TransactionAttempt records one submission try
type TransactionAttempt struct {
	Purpose       AttemptPurpose `json:"purpose"`
	Sponsored     bool           `json:"sponsored"`
	Hash          string         `json:"hash,omitempty"`
	Outcome       AttemptOutcome `json:"outcome"`
	FailureReason string         `json:"failure_reason,omitempty"`
}
