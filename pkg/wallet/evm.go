package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"deposit-bridge/pkg/deposit"
)

// EVMBackend is the part of an EVM RPC client the wallet needs. *ethclient.Client satisfies it.
type EVMBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EVMNetwork is one chain the wallet can sign for
type EVMNetwork struct {
	ChainID  int64
	Backend  EVMBackend
	GasLimit *uint64 // Overrides estimation when set
	GasPrice *int64  // Overrides the suggested price when set (wei)
}

// LocalEVMWallet signs with a private key held in memory. It has no paymaster,
// so sponsored submissions are refused.
type LocalEVMWallet struct {
	mu         sync.Mutex
	privateKey *ecdsa.PrivateKey
	address    common.Address
	networks   map[int64]EVMNetwork
	active     int64
	logger     zerolog.Logger
}

// NewLocalEVMWallet creates a wallet from a hex private key. The first network is active.
func NewLocalEVMWallet(hexKey string, networks []EVMNetwork, logger zerolog.Logger) (*LocalEVMWallet, error) {
	if len(networks) == 0 {
		return nil, fmt.Errorf("no EVM networks configured")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	byID := make(map[int64]EVMNetwork, len(networks))
	for _, n := range networks {
		byID[n.ChainID] = n
	}

	return &LocalEVMWallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		networks:   byID,
		active:     networks[0].ChainID,
		logger:     logger.With().Str("component", "evm_wallet").Logger(),
	}, nil
}

// Address returns the wallet's account
func (w *LocalEVMWallet) Address() common.Address {
	return w.address
}

// ActiveChain returns the chain the wallet currently signs for
func (w *LocalEVMWallet) ActiveChain(_ context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active, nil
}

// SwitchChain selects a configured chain
func (w *LocalEVMWallet) SwitchChain(_ context.Context, chainID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.networks[chainID]; !ok {
		return fmt.Errorf("chain %d not configured", chainID)
	}
	w.active = chainID
	return nil
}

// SendTransaction signs tx with EIP-155 replay protection and broadcasts it
func (w *LocalEVMWallet) SendTransaction(ctx context.Context, tx deposit.EVMTransaction, opts deposit.SendOptions) (string, error) {
	if opts.Sponsor {
		return "", deposit.ErrSponsorshipUnavailable
	}

	w.mu.Lock()
	active := w.active
	w.mu.Unlock()
	if tx.ChainID != active {
		return "", fmt.Errorf("wallet is on chain %d, transaction targets %d", active, tx.ChainID)
	}
	network := w.networks[active]

	nonce, err := network.Backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.gasPrice(ctx, network)
	if err != nil {
		return "", err
	}

	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit, err := w.gasLimit(ctx, network, tx, value)
	if err != nil {
		return "", err
	}

	unsigned := types.NewTransaction(nonce, tx.To, value, gasLimit, gasPrice, tx.Data)
	signed, err := types.SignTx(unsigned, types.NewEIP155Signer(big.NewInt(network.ChainID)), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := network.Backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	w.logger.Debug().
		Str("hash", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Uint64("gas", gasLimit).
		Msg("Transaction sent")

	return signed.Hash().Hex(), nil
}

func (w *LocalEVMWallet) gasPrice(ctx context.Context, network EVMNetwork) (*big.Int, error) {
	if network.GasPrice != nil {
		return big.NewInt(*network.GasPrice), nil
	}

	gasPrice, err := network.Backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// gasLimit estimates with a 20% buffer. Plain value transfers fall back to
// the standard 21000 when estimation fails; contract calls do not.
func (w *LocalEVMWallet) gasLimit(ctx context.Context, network EVMNetwork, tx deposit.EVMTransaction, value *big.Int) (uint64, error) {
	if network.GasLimit != nil {
		return *network.GasLimit, nil
	}

	to := tx.To
	estimated, err := network.Backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  tx.Data,
	})
	if err != nil {
		if len(tx.Data) == 0 {
			return 21000, nil
		}
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}

	return estimated * 120 / 100, nil
}
