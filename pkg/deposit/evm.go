package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"deposit-bridge/pkg/types"
)

// ERC20 subset used for deposits and balance reads
const erc20ABIJSON = `[
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

// ERC20 is the parsed ERC20 ABI
var ERC20 = mustParseABI(erc20ABIJSON)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return parsed
}

// EVMTransaction is an unsigned EVM call handed to the wallet
type EVMTransaction struct {
	ChainID int64
	To      common.Address
	Data    []byte
	Value   *big.Int
}

// EVMReader is the read side of an EVM RPC endpoint. *ethclient.Client satisfies it.
type EVMReader interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// EVMWallet signs and submits EVM transactions
type EVMWallet interface {
	ActiveChain(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	SendTransaction(ctx context.Context, tx EVMTransaction, opts SendOptions) (string, error)
}

// EVMExecutor executes deposits on EVM chains
type EVMExecutor struct {
	wallet  EVMWallet
	readers map[int64]EVMReader
	policy  Policy
	logger  zerolog.Logger
}

// NewEVMExecutor creates an executor; readers are keyed by chain ID
func NewEVMExecutor(wallet EVMWallet, readers map[int64]EVMReader, policy Policy, logger zerolog.Logger) *EVMExecutor {
	return &EVMExecutor{
		wallet:  wallet,
		readers: readers,
		policy:  policy,
		logger:  logger.With().Str("component", "evm_executor").Logger(),
	}
}

// Execute submits the deposit described by req. Bridged ERC20 deposits get an
// allowance check and, when short, an approval confirmed before the bridge call.
func (e *EVMExecutor) Execute(ctx context.Context, req Request, status StatusFunc) (Result, error) {
	var res Result

	chainID := req.Token.Chain.ChainID
	reader, ok := e.readers[chainID]
	if !ok {
		return res, fmt.Errorf("no RPC endpoint configured for chain %d", chainID)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return res, fmt.Errorf("invalid amount")
	}

	if err := e.ensureChain(ctx, chainID, status); err != nil {
		return res, err
	}

	if req.IsTransfer() {
		tx, err := e.transferTransaction(req)
		if err != nil {
			return res, err
		}
		notify(status, "Sending transfer...")
		return e.sendAndConfirm(ctx, reader, tx, types.PurposeTransfer, status, res)
	}

	if req.Quote.ApprovalTarget != "" && !req.Token.IsNative() {
		if err := e.ensureAllowance(ctx, reader, req, status, &res); err != nil {
			return res, err
		}
	}

	tx, err := bridgeTransaction(req.Quote.Transaction, chainID)
	if err != nil {
		return res, err
	}
	notify(status, "Sending bridge transaction...")
	return e.sendAndConfirm(ctx, reader, tx, types.PurposeBridge, status, res)
}

func (e *EVMExecutor) ensureChain(ctx context.Context, chainID int64, status StatusFunc) error {
	active, err := e.wallet.ActiveChain(ctx)
	if err != nil {
		return fmt.Errorf("failed to read active chain: %w", err)
	}
	if active == chainID {
		return nil
	}

	notify(status, "Switching network...")
	e.logger.Debug().Int64("from", active).Int64("to", chainID).Msg("Switching chain")
	if err := e.wallet.SwitchChain(ctx, chainID); err != nil {
		return fmt.Errorf("failed to switch chain: %w", err)
	}
	return nil
}

// ensureAllowance approves the quote's spender for the maximum amount when the
// current allowance is short, and waits for the approval to confirm.
func (e *EVMExecutor) ensureAllowance(ctx context.Context, reader EVMReader, req Request, status StatusFunc, res *Result) error {
	if !common.IsHexAddress(req.Quote.ApprovalTarget) {
		return fmt.Errorf("invalid approval target: %s", req.Quote.ApprovalTarget)
	}
	tokenAddress := common.HexToAddress(req.Token.Address)
	owner := common.HexToAddress(req.From)
	spender := common.HexToAddress(req.Quote.ApprovalTarget)

	allowance, err := Allowance(ctx, reader, tokenAddress, owner, spender)
	if err != nil {
		return fmt.Errorf("failed to read allowance: %w", err)
	}
	if allowance.Cmp(req.Amount) >= 0 {
		e.logger.Debug().Str("allowance", allowance.String()).Msg("Allowance sufficient")
		return nil
	}

	data, err := ERC20.Pack("approve", spender, math.MaxBig256)
	if err != nil {
		return fmt.Errorf("failed to pack approve data: %w", err)
	}
	tx := EVMTransaction{
		ChainID: req.Token.Chain.ChainID,
		To:      tokenAddress,
		Data:    data,
		Value:   big.NewInt(0),
	}

	notify(status, "Approving token...")
	hash, attempts, err := submit(ctx, types.PurposeApproval, e.policy.Sponsorship, status, e.logger, e.sender(tx))
	res.Attempts = append(res.Attempts, attempts...)
	if err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}
	res.ApprovalHash = hash

	notify(status, "Waiting for approval confirmation...")
	receipt, err := e.waitForReceipt(ctx, reader, hash)
	last := &res.Attempts[len(res.Attempts)-1]
	if err != nil {
		return fmt.Errorf("approval %s not confirmed: %w", hash, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		last.Outcome = types.AttemptFailed
		last.FailureReason = ErrReverted.Error()
		return fmt.Errorf("approval %s: %w", hash, ErrReverted)
	}
	last.Outcome = types.AttemptConfirmed

	e.logger.Info().Str("hash", hash).Msg("Approval confirmed")
	return nil
}

// sendAndConfirm submits tx and waits for its receipt. A confirmation check
// that fails or times out leaves the deposit submitted but unconfirmed.
func (e *EVMExecutor) sendAndConfirm(ctx context.Context, reader EVMReader, tx EVMTransaction, purpose types.AttemptPurpose, status StatusFunc, res Result) (Result, error) {
	hash, attempts, err := submit(ctx, purpose, e.policy.Sponsorship, status, e.logger, e.sender(tx))
	res.Attempts = append(res.Attempts, attempts...)
	if err != nil {
		return res, err
	}
	res.Hash = hash

	notify(status, "Waiting for confirmation...")
	receipt, err := e.waitForReceipt(ctx, reader, hash)
	if err != nil {
		e.logger.Warn().Err(err).Str("hash", hash).Msg("Could not confirm transaction, it may still land")
		return res, nil
	}

	last := &res.Attempts[len(res.Attempts)-1]
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		last.Outcome = types.AttemptFailed
		last.FailureReason = ErrReverted.Error()
		return res, fmt.Errorf("transaction %s: %w", hash, ErrReverted)
	}

	last.Outcome = types.AttemptConfirmed
	res.Confirmed = true
	return res, nil
}

func (e *EVMExecutor) sender(tx EVMTransaction) sendFunc {
	return func(ctx context.Context, opts SendOptions) (string, error) {
		return e.wallet.SendTransaction(ctx, tx, opts)
	}
}

func (e *EVMExecutor) waitForReceipt(ctx context.Context, reader EVMReader, hash string) (*ethtypes.Receipt, error) {
	var receipt *ethtypes.Receipt
	err := waitFor(ctx, e.policy, func(ctx context.Context) (bool, error) {
		r, err := reader.TransactionReceipt(ctx, common.HexToHash(hash))
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				e.logger.Debug().Err(err).Str("hash", hash).Msg("Receipt lookup failed")
			}
			return false, nil
		}
		receipt = r
		return true, nil
	})
	return receipt, err
}

func (e *EVMExecutor) transferTransaction(req Request) (EVMTransaction, error) {
	recipient := req.Recipient()
	if !common.IsHexAddress(recipient) {
		return EVMTransaction{}, fmt.Errorf("invalid recipient address: %s", recipient)
	}
	to := common.HexToAddress(recipient)

	if req.Token.IsNative() {
		return EVMTransaction{
			ChainID: req.Token.Chain.ChainID,
			To:      to,
			Value:   new(big.Int).Set(req.Amount),
		}, nil
	}

	if !common.IsHexAddress(req.Token.Address) {
		return EVMTransaction{}, fmt.Errorf("invalid token contract address: %s", req.Token.Address)
	}
	data, err := ERC20.Pack("transfer", to, req.Amount)
	if err != nil {
		return EVMTransaction{}, fmt.Errorf("failed to pack transfer data: %w", err)
	}

	return EVMTransaction{
		ChainID: req.Token.Chain.ChainID,
		To:      common.HexToAddress(req.Token.Address),
		Data:    data,
		Value:   big.NewInt(0),
	}, nil
}

// bridgeTransaction converts a quoted transaction into a wallet call
func bridgeTransaction(t types.ExecutableTransaction, chainID int64) (EVMTransaction, error) {
	if t.ChainID != 0 && t.ChainID != chainID {
		return EVMTransaction{}, fmt.Errorf("quote targets chain %d, token is on chain %d", t.ChainID, chainID)
	}
	if !common.IsHexAddress(t.To) {
		return EVMTransaction{}, fmt.Errorf("invalid transaction target: %s", t.To)
	}

	var data []byte
	if t.Data != "" {
		raw := t.Data
		if !strings.HasPrefix(raw, "0x") {
			raw = "0x" + raw
		}
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			return EVMTransaction{}, fmt.Errorf("invalid transaction data: %w", err)
		}
		data = decoded
	}

	value, err := parseValue(t.Value)
	if err != nil {
		return EVMTransaction{}, err
	}

	return EVMTransaction{
		ChainID: chainID,
		To:      common.HexToAddress(t.To),
		Data:    data,
		Value:   value,
	}, nil
}

// parseValue accepts decimal or 0x-prefixed hex
func parseValue(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	if strings.HasPrefix(value, "0x") {
		v, err := hexutil.DecodeBig(value)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction value: %w", err)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid transaction value: %s", value)
	}
	return v, nil
}

// Allowance reads an ERC20 allowance
func Allowance(ctx context.Context, reader EVMReader, token, owner, spender common.Address) (*big.Int, error) {
	data, err := ERC20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	result, err := reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// BalanceOf reads an ERC20 balance
func BalanceOf(ctx context.Context, reader EVMReader, token, account common.Address) (*big.Int, error) {
	data, err := ERC20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	result, err := reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}
