package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-bridge/pkg/types"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")

	s, err := NewStore(path)
	require.NoError(t, err)
	assert.Empty(t, s.List())

	first := &Record{
		Chain:     "ethereum",
		Symbol:    "USDC",
		Amount:    "25",
		Hash:      "0xABC",
		Status:    StatusSubmitted,
		CreatedAt: time.Now().Add(-time.Hour),
		Attempts: []types.TransactionAttempt{
			{Purpose: types.PurposeApproval, Hash: "0xAPP", Outcome: types.AttemptConfirmed},
			{Purpose: types.PurposeBridge, Hash: "0xABC", Outcome: types.AttemptPending},
		},
	}
	require.NoError(t, s.Append(first))
	assert.NotEmpty(t, first.ID)

	second := &Record{Chain: "solana", Symbol: "SOL", Amount: "1", Status: StatusFailed, ErrorKind: "user_rejected"}
	require.NoError(t, s.Append(second))

	reopened, err := NewStore(path)
	require.NoError(t, err)

	list := reopened.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Len(t, list[1].Attempts, 2)

	got, ok := reopened.FindByHash("0xabc")
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	got.Status = StatusConfirmed
	got.Confirmed = true
	require.NoError(t, reopened.Update(got))
	assert.Len(t, reopened.ListByStatus(StatusConfirmed), 1)

	byPrefix, err := reopened.Get(first.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, first.ID, byPrefix.ID)
}

func TestStoreErrors(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	assert.Error(t, s.Update(&Record{ID: "missing"}))
	_, err = s.Get("missing")
	assert.Error(t, err)
	_, ok := s.FindByHash("0x1")
	assert.False(t, ok)
}

func TestSettleMatchesOnlyDepositHash(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	failed := &Record{
		Chain:     "ethereum",
		Symbol:    "USDC",
		Amount:    "25",
		Status:    StatusFailed,
		ErrorKind: "unclassified",
		Error:     "execution reverted: slippage",
		Attempts: []types.TransactionAttempt{
			{Purpose: types.PurposeApproval, Hash: "0xAPP", Outcome: types.AttemptConfirmed},
			{Purpose: types.PurposeBridge, Outcome: types.AttemptFailed},
		},
	}
	require.NoError(t, s.Append(failed))

	settled, err := s.Settle("0xapp", true, "")
	require.NoError(t, err)
	assert.False(t, settled)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.False(t, failed.Confirmed)

	submitted := &Record{Chain: "base", Symbol: "USDC", Amount: "5", Hash: "0xDEP", Status: StatusSubmitted}
	require.NoError(t, s.Append(submitted))

	settled, err = s.Settle("0xdep", true, "")
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, StatusConfirmed, submitted.Status)
	assert.True(t, submitted.Confirmed)

	settled, err = s.Settle("0xDEP", false, "reverted")
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, StatusFailed, submitted.Status)
	assert.Equal(t, "reverted", submitted.Error)
}
