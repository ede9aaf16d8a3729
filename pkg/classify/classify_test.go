package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"user rejected", errors.New("User rejected the request."), KindUserRejected},
		{"wrapped rejection", fmt.Errorf("send: %w", errors.New("user denied transaction signature")), KindUserRejected},
		{"eip-1193 code", errors.New("wallet error code=4001"), KindUserRejected},
		{"context canceled", context.Canceled, KindUserRejected},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), KindInsufficientFunds},
		{"insufficient lamports", errors.New("Transfer: insufficient lamports 10, need 5000"), KindInsufficientFunds},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), KindTimeout},
		{"rpc timeout", errors.New("Post \"https://rpc\": net/http: request timeout"), KindTimeout},
		{"blockhash", errors.New("Blockhash not found"), KindTimeout},
		{"paymaster", errors.New("paymaster rejected user operation"), KindSponsorshipFailure},
		{"paymaster rejected request", errors.New("paymaster rejected the request: policy limit reached"), KindSponsorshipFailure},
		{"sponsor policy", errors.New("gas sponsor policy: request rejected"), KindSponsorshipFailure},
		{"rejected by user", errors.New("transaction rejected by user"), KindUserRejected},
		{"too large", errors.New("transaction too large: 1300 > 1232"), KindSponsorshipFailure},
		{"unknown", errors.New("execution reverted: STF"), KindUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKindRetryable(t *testing.T) {
	assert.False(t, KindUserRejected.Retryable())
	assert.False(t, KindNone.Retryable())
	assert.True(t, KindTimeout.Retryable())
	assert.True(t, KindUnclassified.Retryable())
	assert.True(t, KindInsufficientFunds.Retryable())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "execution reverted", Message(KindUnclassified, errors.New("execution reverted")))
	assert.Contains(t, Message(KindUserRejected, nil), "rejected")
	assert.False(t, KindSponsorshipFailure.Surfaced())
	assert.True(t, KindTimeout.Surfaced())
}
