package wallet

import (
	"context"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"deposit-bridge/pkg/deposit"
)

// SolanaBackend submits signed transactions. *rpc.Client satisfies it.
type SolanaBackend interface {
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// LocalSolanaWallet signs with a private key held in memory
type LocalSolanaWallet struct {
	backend       SolanaBackend
	privateKey    solana.PrivateKey
	publicKey     solana.PublicKey
	skipPreflight bool
	commitment    rpc.CommitmentType
	logger        zerolog.Logger
}

// NewLocalSolanaWallet creates a wallet from a base58 private key
func NewLocalSolanaWallet(backend SolanaBackend, base58Key string, skipPreflight bool, commitment rpc.CommitmentType, logger zerolog.Logger) (*LocalSolanaWallet, error) {
	privateKey, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &LocalSolanaWallet{
		backend:       backend,
		privateKey:    privateKey,
		publicKey:     privateKey.PublicKey(),
		skipPreflight: skipPreflight,
		commitment:    commitment,
		logger:        logger.With().Str("component", "solana_wallet").Logger(),
	}, nil
}

// PublicKey returns the wallet's account
func (w *LocalSolanaWallet) PublicKey() solana.PublicKey {
	return w.publicKey
}

// RefreshSessionCredential is a no-op: a local key has no session to renew
func (w *LocalSolanaWallet) RefreshSessionCredential(ctx context.Context) error {
	return ctx.Err()
}

// SignAndSendTransaction signs the serialized transaction and broadcasts it
func (w *LocalSolanaWallet) SignAndSendTransaction(ctx context.Context, serialized []byte, opts deposit.SendOptions) (string, error) {
	if opts.Sponsor {
		return "", deposit.ErrSponsorshipUnavailable
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(serialized))
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	tx.Signatures = nil
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.publicKey) {
			return &w.privateKey
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := w.backend.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       w.skipPreflight,
		PreflightCommitment: w.commitment,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	w.logger.Debug().Str("signature", sig.String()).Msg("Transaction sent")
	return sig.String(), nil
}

// ParseCommitment maps a config value onto a commitment level, defaulting to confirmed
func ParseCommitment(value string) rpc.CommitmentType {
	switch strings.ToLower(value) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
