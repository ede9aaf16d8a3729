package directory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-bridge/pkg/types"
)

type fakeEVM struct {
	native  *big.Int
	erc20   *big.Int
	receipt *ethtypes.Receipt
}

func (f *fakeEVM) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.native, nil
}

func (f *fakeEVM) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	if f.erc20 == nil {
		return nil, errors.New("execution reverted")
	}
	return common.LeftPadBytes(f.erc20.Bytes(), 32), nil
}

func (f *fakeEVM) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

type fakeSolana struct {
	lamports uint64
	tokens   string
	status   *rpc.SignatureStatusesResult
}

func (f *fakeSolana) GetBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.lamports}, nil
}

func (f *fakeSolana) GetTokenAccountBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return &rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{Amount: f.tokens}}, nil
}

func (f *fakeSolana) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{f.status}}, nil
}

var (
	ethereumChain = types.Chain{Name: "ethereum", Family: types.FamilyEVM, ChainID: 1}
	baseChain     = types.Chain{Name: "base", Family: types.FamilyEVM, ChainID: 8453}
	solanaChain   = types.Chain{Name: "solana", Family: types.FamilySolana}
)

func TestOnChainTokens(t *testing.T) {
	tokens := []types.Token{
		{Chain: ethereumChain, Symbol: "ETH", Decimals: 18},
		{Chain: ethereumChain, Symbol: "USDC", Address: "0x2222222222222222222222222222222222222222", Decimals: 6},
		{Chain: baseChain, Symbol: "USDC", Address: "0x3333333333333333333333333333333333333333", Decimals: 6},
		{Chain: solanaChain, Symbol: "SOL", Decimals: 9},
		{Chain: solanaChain, Symbol: "USDC", Address: solana.NewWallet().PublicKey().String(), Decimals: 6},
	}

	evm := &fakeEVM{native: big.NewInt(1_500_000_000_000_000_000), erc20: big.NewInt(100_000_000)}
	sol := &fakeSolana{lamports: 2_000_000_000, tokens: "12500000"}

	d := NewOnChain(tokens, zerolog.Nop()).
		WithEVM(common.Address{}, map[int64]EVMBalanceReader{1: evm}).
		WithSolana(solana.NewWallet().PublicKey(), sol)

	got, err := d.Tokens(context.Background())
	require.NoError(t, err)

	// base has no reader and is skipped
	require.Len(t, got, 4)
	assert.Equal(t, "1.5", got[0].Balance)
	assert.Equal(t, "100", got[1].Balance)
	assert.Equal(t, "2", got[2].Balance)
	assert.Equal(t, "12.5", got[3].Balance)
}

func TestMatch(t *testing.T) {
	tokens := []types.Token{
		{Chain: ethereumChain, Symbol: "USDC"},
		{Chain: baseChain, Symbol: "USDC"},
		{Chain: solanaChain, Symbol: "SOL"},
	}

	tok, err := Match(tokens, "sol", "")
	require.NoError(t, err)
	assert.Equal(t, "solana", tok.Chain.Name)

	tok, err = Match(tokens, "usdc", "Base")
	require.NoError(t, err)
	assert.Equal(t, "base", tok.Chain.Name)

	_, err = Match(tokens, "usdc", "")
	assert.ErrorContains(t, err, "several chains")

	_, err = Match(tokens, "dai", "")
	assert.Error(t, err)
}

func TestEVMTransactionStatus(t *testing.T) {
	reader := &fakeEVM{}
	st, err := EVMTransactionStatus(context.Background(), reader, "0x01")
	require.NoError(t, err)
	assert.False(t, st.Found)

	reader.receipt = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42)}
	st, err = EVMTransactionStatus(context.Background(), reader, "0x01")
	require.NoError(t, err)
	assert.True(t, st.Confirmed)
	assert.Equal(t, uint64(42), st.Block)

	reader.receipt = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed}
	st, err = EVMTransactionStatus(context.Background(), reader, "0x01")
	require.NoError(t, err)
	assert.True(t, st.Failed)
}

func TestSolanaTransactionStatus(t *testing.T) {
	reader := &fakeSolana{status: &rpc.SignatureStatusesResult{Slot: 9, ConfirmationStatus: rpc.ConfirmationStatusFinalized}}
	sig := solana.Signature{1}.String()

	st, err := SolanaTransactionStatus(context.Background(), reader, sig)
	require.NoError(t, err)
	assert.True(t, st.Found)
	assert.True(t, st.Confirmed)
	assert.Equal(t, uint64(9), st.Block)

	_, err = SolanaTransactionStatus(context.Background(), reader, "not-base58!")
	assert.Error(t, err)
}
