package deposit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"deposit-bridge/pkg/types"
)

const (
	// MaxTransactionSize is the network's packet limit for a serialized transaction
	MaxTransactionSize = 1232
	// sponsorOverhead is the fee payer signature and account key a sponsor adds
	sponsorOverhead = solana.SignatureLength + solana.PublicKeyLength
)

// SolanaReader is the read side of a Solana RPC endpoint. *rpc.Client satisfies it.
type SolanaReader interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// SolanaWallet signs and submits serialized Solana transactions
type SolanaWallet interface {
	// RefreshSessionCredential renews the signing session. Callers bound it with a timeout.
	RefreshSessionCredential(ctx context.Context) error
	SignAndSendTransaction(ctx context.Context, serialized []byte, opts SendOptions) (string, error)
}

// SolanaExecutor executes deposits on Solana
type SolanaExecutor struct {
	wallet     SolanaWallet
	reader     SolanaReader
	policy     Policy
	commitment rpc.CommitmentType
	maxTxSize  int
	logger     zerolog.Logger
}

// NewSolanaExecutor creates an executor that waits for the given commitment
func NewSolanaExecutor(wallet SolanaWallet, reader SolanaReader, policy Policy, commitment rpc.CommitmentType, logger zerolog.Logger) *SolanaExecutor {
	if commitment == "" {
		commitment = rpc.CommitmentFinalized
	}
	return &SolanaExecutor{
		wallet:     wallet,
		reader:     reader,
		policy:     policy,
		commitment: commitment,
		maxTxSize:  MaxTransactionSize,
		logger:     logger.With().Str("component", "solana_executor").Logger(),
	}
}

// Execute submits the deposit described by req
func (s *SolanaExecutor) Execute(ctx context.Context, req Request, status StatusFunc) (Result, error) {
	var res Result

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return res, fmt.Errorf("invalid amount")
	}

	var (
		tx      *solana.Transaction
		purpose types.AttemptPurpose
		err     error
	)
	if req.IsTransfer() {
		tx, err = s.transferTransaction(ctx, req)
		purpose = types.PurposeTransfer
	} else {
		tx, err = DecodeTransaction(req.Quote.Transaction.Serialized)
		purpose = types.PurposeBridge
	}
	if err != nil {
		return res, err
	}

	notify(status, "Sending transaction...")
	hash, attempts, err := submit(ctx, purpose, s.policy.Sponsorship, status, s.logger, s.sender(tx))
	res.Attempts = attempts
	if err != nil {
		return res, err
	}
	res.Hash = hash

	notify(status, "Waiting for confirmation...")
	err = s.waitForSignature(ctx, hash)
	last := &res.Attempts[len(res.Attempts)-1]
	switch {
	case errors.Is(err, ErrReverted):
		last.Outcome = types.AttemptFailed
		last.FailureReason = err.Error()
		return res, err
	case err != nil:
		s.logger.Warn().Err(err).Str("signature", hash).Msg("Could not confirm transaction, it may still land")
		return res, nil
	}

	last.Outcome = types.AttemptConfirmed
	res.Confirmed = true
	return res, nil
}

// sender signs with a blockhash fetched right before each attempt. Sponsored
// attempts are refused locally when the sponsor's additions would not fit.
func (s *SolanaExecutor) sender(tx *solana.Transaction) sendFunc {
	return func(ctx context.Context, opts SendOptions) (string, error) {
		latest, err := s.reader.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return "", fmt.Errorf("failed to get latest blockhash: %w", err)
		}
		tx.Message.RecentBlockhash = latest.Value.Blockhash
		// A new blockhash voids any provider co-signature, so every slot starts empty.
		tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

		serialized, err := tx.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("failed to serialize transaction: %w", err)
		}
		if opts.Sponsor && len(serialized)+sponsorOverhead > s.maxTxSize {
			return "", fmt.Errorf("%w: %d bytes plus %d sponsor bytes exceeds %d",
				ErrTransactionTooLarge, len(serialized), sponsorOverhead, s.maxTxSize)
		}

		s.refreshCredential(ctx)

		return s.wallet.SignAndSendTransaction(ctx, serialized, opts)
	}
}

// refreshCredential renews the wallet session, giving up after the configured
// timeout. Failure is not fatal: signing proceeds with the current credential.
func (s *SolanaExecutor) refreshCredential(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.CredentialRefreshTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.wallet.RefreshSessionCredential(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn().Err(err).Msg("Credential refresh failed, continuing with existing session")
		}
	case <-ctx.Done():
		s.logger.Warn().Dur("timeout", s.policy.CredentialRefreshTimeout).Msg("Credential refresh timed out, continuing with existing session")
	}
}

func (s *SolanaExecutor) waitForSignature(ctx context.Context, hash string) error {
	sig, err := solana.SignatureFromBase58(hash)
	if err != nil {
		return fmt.Errorf("invalid transaction signature: %w", err)
	}

	return waitFor(ctx, s.policy, func(ctx context.Context) (bool, error) {
		statuses, err := s.reader.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			s.logger.Debug().Err(err).Str("signature", hash).Msg("Signature status lookup failed")
			return false, nil
		}
		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			return false, nil
		}

		st := statuses.Value[0]
		if st.Err != nil {
			return false, fmt.Errorf("%w: %v", ErrReverted, st.Err)
		}
		return reached(st.ConfirmationStatus, s.commitment), nil
	})
}

// reached reports whether status satisfies the wanted commitment
func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch want {
	case rpc.CommitmentProcessed:
		return status != ""
	case rpc.CommitmentConfirmed:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusFinalized
	}
}

// transferTransaction builds a native or SPL transfer to the request's recipient.
// The blockhash is left empty and filled in at submission.
func (s *SolanaExecutor) transferTransaction(ctx context.Context, req Request) (*solana.Transaction, error) {
	owner, err := solana.PublicKeyFromBase58(req.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	recipient, err := solana.PublicKeyFromBase58(req.Recipient())
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	if !req.Amount.IsUint64() {
		return nil, fmt.Errorf("amount %s out of range", req.Amount)
	}
	amount := req.Amount.Uint64()

	var instructions []solana.Instruction
	if req.Token.IsNative() {
		instructions = append(instructions, system.NewTransferInstruction(amount, owner, recipient).Build())
	} else {
		mint, err := solana.PublicKeyFromBase58(req.Token.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid token mint address: %w", err)
		}
		source, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			return nil, fmt.Errorf("failed to derive source token account: %w", err)
		}
		dest, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
		if err != nil {
			return nil, fmt.Errorf("failed to derive destination token account: %w", err)
		}

		exists, err := s.accountExists(ctx, dest)
		if err != nil {
			return nil, fmt.Errorf("failed to check destination account: %w", err)
		}
		if !exists {
			instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(owner, recipient, mint).Build())
		}
		instructions = append(instructions, token.NewTransferInstruction(
			amount,
			source,
			dest,
			owner,
			[]solana.PublicKey{},
		).Build())
	}

	tx, err := solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

func (s *SolanaExecutor) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := s.reader.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return info != nil && info.Value != nil, nil
}

// DecodeTransaction parses a base64 serialized transaction from a quote
func DecodeTransaction(serialized string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction encoding: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

