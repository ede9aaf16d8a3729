// Package directory lists the holdings a deposit can be made from.
package directory

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"deposit-bridge/pkg/amount"
	"deposit-bridge/pkg/deposit"
	"deposit-bridge/pkg/types"
)

// EVMBalanceReader reads native and ERC20 balances. *ethclient.Client satisfies it.
type EVMBalanceReader interface {
	deposit.EVMReader
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// SolanaBalanceReader reads lamport and SPL balances. *rpc.Client satisfies it.
type SolanaBalanceReader interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Directory supplies the holdings a user selects from
type Directory interface {
	Tokens(ctx context.Context) ([]types.Token, error)
}

// OnChain reads balances for a fixed token list straight from the chains
type OnChain struct {
	tokens      []types.Token
	evm         map[int64]EVMBalanceReader
	evmOwner    common.Address
	solana      SolanaBalanceReader
	solanaOwner solana.PublicKey
	logger      zerolog.Logger
}

// NewOnChain creates a directory over tokens. Balances are filled in by Tokens.
func NewOnChain(tokens []types.Token, logger zerolog.Logger) *OnChain {
	return &OnChain{
		tokens: tokens,
		evm:    make(map[int64]EVMBalanceReader),
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

// WithEVM enables EVM tokens for owner; readers are keyed by chain ID
func (d *OnChain) WithEVM(owner common.Address, readers map[int64]EVMBalanceReader) *OnChain {
	d.evmOwner = owner
	for id, r := range readers {
		d.evm[id] = r
	}
	return d
}

// WithSolana enables Solana tokens for owner
func (d *OnChain) WithSolana(owner solana.PublicKey, reader SolanaBalanceReader) *OnChain {
	d.solanaOwner = owner
	d.solana = reader
	return d
}

// Tokens returns every configured token with its current balance. Tokens
// whose balance cannot be read are skipped.
func (d *OnChain) Tokens(ctx context.Context) ([]types.Token, error) {
	out := make([]types.Token, 0, len(d.tokens))
	for _, token := range d.tokens {
		units, err := d.balance(ctx, token)
		if err != nil {
			d.logger.Warn().
				Err(err).
				Str("chain", token.Chain.Name).
				Str("symbol", token.Symbol).
				Msg("Skipping token, balance unavailable")
			continue
		}
		token.Balance = amount.FromBaseUnits(units, token.Decimals)
		out = append(out, token)
	}
	return out, nil
}

// Find returns the holding for symbol, narrowed by chain when given
func (d *OnChain) Find(ctx context.Context, symbol, chain string) (types.Token, error) {
	tokens, err := d.Tokens(ctx)
	if err != nil {
		return types.Token{}, err
	}
	return Match(tokens, symbol, chain)
}

// Match picks the single token matching symbol and optional chain
func Match(tokens []types.Token, symbol, chain string) (types.Token, error) {
	var matches []types.Token
	for _, t := range tokens {
		if !strings.EqualFold(t.Symbol, symbol) {
			continue
		}
		if chain != "" && !strings.EqualFold(t.Chain.Name, chain) {
			continue
		}
		matches = append(matches, t)
	}

	switch len(matches) {
	case 0:
		if chain != "" {
			return types.Token{}, fmt.Errorf("no %s holding on %s", symbol, chain)
		}
		return types.Token{}, fmt.Errorf("no %s holding", symbol)
	case 1:
		return matches[0], nil
	}

	chains := make([]string, len(matches))
	for i, t := range matches {
		chains[i] = t.Chain.Name
	}
	return types.Token{}, fmt.Errorf("%s is held on several chains (%s), specify one with 'on <chain>'", symbol, strings.Join(chains, ", "))
}

func (d *OnChain) balance(ctx context.Context, token types.Token) (*big.Int, error) {
	switch token.Chain.Family {
	case types.FamilyEVM:
		reader, ok := d.evm[token.Chain.ChainID]
		if !ok {
			return nil, fmt.Errorf("no RPC endpoint for chain %d", token.Chain.ChainID)
		}
		if token.IsNative() {
			return reader.BalanceAt(ctx, d.evmOwner, nil)
		}
		return deposit.BalanceOf(ctx, reader, common.HexToAddress(token.Address), d.evmOwner)

	case types.FamilySolana:
		if d.solana == nil {
			return nil, fmt.Errorf("no Solana RPC endpoint")
		}
		return d.solanaBalance(ctx, token)
	}

	return nil, fmt.Errorf("unsupported chain family %q", token.Chain.Family)
}

func (d *OnChain) solanaBalance(ctx context.Context, token types.Token) (*big.Int, error) {
	if token.IsNative() {
		balance, err := d.solana.GetBalance(ctx, d.solanaOwner, rpc.CommitmentFinalized)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return new(big.Int).SetUint64(balance.Value), nil
	}

	mint, err := solana.PublicKeyFromBase58(token.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}
	account, _, err := solana.FindAssociatedTokenAddress(d.solanaOwner, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	balance, err := d.solana.GetTokenAccountBalance(ctx, account, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if balance.Value == nil {
		return big.NewInt(0), nil
	}

	units, ok := new(big.Int).SetString(balance.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse token balance %q", balance.Value.Amount)
	}
	return units, nil
}
