package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"deposit-bridge/pkg/deposit"
)

// TransactionStatus is a one-shot view of a submitted transaction
type TransactionStatus struct {
	Hash      string `json:"hash"`
	Found     bool   `json:"found"`
	Confirmed bool   `json:"confirmed"`
	Failed    bool   `json:"failed"`
	Block     uint64 `json:"block,omitempty"` // Block number or slot
	Detail    string `json:"detail,omitempty"`
}

// EVMTransactionStatus reads the receipt for hash
func EVMTransactionStatus(ctx context.Context, reader deposit.EVMReader, hash string) (TransactionStatus, error) {
	status := TransactionStatus{Hash: hash}

	receipt, err := reader.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	status.Found = true
	if receipt.BlockNumber != nil {
		status.Block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		status.Confirmed = true
	} else {
		status.Failed = true
		status.Detail = "reverted"
	}
	return status, nil
}

// SignatureStatusReader reads signature statuses. *rpc.Client satisfies it.
type SignatureStatusReader interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// SolanaTransactionStatus reads the signature status for hash
func SolanaTransactionStatus(ctx context.Context, reader SignatureStatusReader, hash string) (TransactionStatus, error) {
	status := TransactionStatus{Hash: hash}

	sig, err := solana.SignatureFromBase58(hash)
	if err != nil {
		return status, fmt.Errorf("invalid transaction signature: %w", err)
	}

	result, err := reader.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return status, fmt.Errorf("failed to get signature status: %w", err)
	}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return status, nil
	}

	st := result.Value[0]
	status.Found = true
	status.Block = st.Slot
	status.Detail = string(st.ConfirmationStatus)
	if st.Err != nil {
		status.Failed = true
		status.Detail = fmt.Sprintf("%v", st.Err)
		return status, nil
	}
	status.Confirmed = st.ConfirmationStatus == rpc.ConfirmationStatusFinalized
	return status, nil
}
