package client

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-bridge/pkg/types"
)

var (
	testBase = types.Chain{Name: "base", Family: types.FamilyEVM, ChainID: 8453}
	testArb  = types.Chain{Name: "arbitrum", Family: types.FamilyEVM, ChainID: 42161}
	testDest = types.Destination{
		Chain:    testBase,
		Token:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Symbol:   "USDC",
		Decimals: 6,
		Address:  "0x00000000000000000000000000000000000000d1",
	}
	testToken = types.Token{
		Chain:    testArb,
		Symbol:   "WETH",
		Address:  "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		Decimals: 18,
		Balance:  "20",
	}
)

func TestBuildRequest(t *testing.T) {
	req, err := BuildRequest(testToken, "10", testDest, "0xsender", 50)
	require.NoError(t, err)

	assert.Equal(t, "10000000000000000000", req.FromAmount)
	assert.Equal(t, "42161", req.FromChain)
	assert.Equal(t, "8453", req.ToChain)
	assert.Equal(t, testToken.Address, req.FromToken)
	assert.Equal(t, testDest.Token, req.ToToken)
	assert.Equal(t, testDest.Address, req.ToAddress)
	assert.InDelta(t, 0.005, req.Slippage, 1e-12)
	assert.Equal(t, uint32(50), req.SlippageBps())
}

func TestBuildRequestNativeMarkers(t *testing.T) {
	eth := types.Token{Chain: testArb, Symbol: "ETH", Decimals: 18}
	req, err := BuildRequest(eth, "1", testDest, "0xsender", 50)
	require.NoError(t, err)
	assert.Equal(t, EVMNativeToken, req.FromToken)

	sol := types.Token{Chain: types.Chain{Name: "solana", Family: types.FamilySolana}, Symbol: "SOL", Decimals: 9}
	req, err = BuildRequest(sol, "1", testDest, "sender", 50)
	require.NoError(t, err)
	assert.Equal(t, SolanaNativeToken, req.FromToken)
	assert.Equal(t, "solana", req.FromChain)
}

func TestBuildRequestRejectsInvalidAmounts(t *testing.T) {
	for _, input := range []string{"", "abc", "0", "-3", "0.0000000000000000001"} {
		_, err := BuildRequest(testToken, input, testDest, "0xsender", 50)
		assert.ErrorIs(t, err, ErrNoQuote, "input %q", input)
	}
}

func TestMinimumOutput(t *testing.T) {
	assert.Equal(t, "995", MinimumOutput(big.NewInt(1000), 50).String())
	assert.Equal(t, "0", MinimumOutput(big.NewInt(1000), 20000).String())
}

func newQuoteServer(t *testing.T, handler func(w http.ResponseWriter, body QuoteRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/quote", r.URL.Path)
		var body QuoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPQuoteClientGetQuote(t *testing.T) {
	var calls atomic.Int32
	server := newQuoteServer(t, func(w http.ResponseWriter, body QuoteRequest) {
		calls.Add(1)
		assert.Equal(t, "10000000000000000000", body.FromAmount)
		assert.Equal(t, "42161", body.FromChain)
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"id": "q-1",
				"fromAmount": "10000000000000000000",
				"toAmount": "31250000000",
				"toAmountMin": "31000000000",
				"approvalAddress": "0x00000000000000000000000000000000000000a1",
				"transactionRequest": {"to": "0x00000000000000000000000000000000000000b2", "data": "0xdeadbeef", "value": "0", "chainId": 42161},
				"estimatedDuration": 45
			}
		}`))
	})

	qc, err := NewHTTPQuoteClient(server.URL, zerolog.Nop())
	require.NoError(t, err)

	req, err := BuildRequest(testToken, "10", testDest, "0x00000000000000000000000000000000000000c3", 50)
	require.NoError(t, err)

	quote, err := qc.GetQuote(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "q-1", quote.ID)
	assert.Equal(t, "31250000000", quote.DestinationAmountEstimate)
	assert.Equal(t, "31000000000", quote.DestinationAmountMinimum)
	assert.Equal(t, "0x00000000000000000000000000000000000000a1", quote.ApprovalTarget)
	assert.Equal(t, "0xdeadbeef", quote.Transaction.Data)
	assert.Equal(t, int64(42161), quote.Transaction.ChainID)
	assert.Equal(t, 45*time.Second, quote.EstimatedDuration)

	est, _ := new(big.Int).SetString(quote.DestinationAmountEstimate, 10)
	minimum, _ := new(big.Int).SetString(quote.DestinationAmountMinimum, 10)
	assert.LessOrEqual(t, minimum.Cmp(est), 0)
}

func TestHTTPQuoteClientDerivesMinimum(t *testing.T) {
	server := newQuoteServer(t, func(w http.ResponseWriter, body QuoteRequest) {
		_, _ = w.Write([]byte(`{"success": true, "data": {"toAmount": "1000", "serializedTransaction": "AQID"}}`))
	})

	qc, err := NewHTTPQuoteClient(server.URL, zerolog.Nop())
	require.NoError(t, err)

	req, err := BuildRequest(testToken, "1", testDest, "0xsender", 100)
	require.NoError(t, err)

	quote, err := qc.GetQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "990", quote.DestinationAmountMinimum)
	assert.Equal(t, req.FromAmount, quote.SourceAmount)
	assert.Equal(t, "AQID", quote.Transaction.Serialized)
}

func TestHTTPQuoteClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"error string", 200, `{"success": false, "error": "no route found"}`, "no route found"},
		{"error object", 400, `{"success": false, "error": {"message": "amount too small", "code": 1001}}`, "amount too small"},
		{"minimum above estimate", 200, `{"success": true, "data": {"toAmount": "10", "toAmountMin": "11", "serializedTransaction": "AQ=="}}`, "exceeds estimate"},
		{"no transaction", 200, `{"success": true, "data": {"toAmount": "10"}}`, "no executable transaction"},
		{"not json", 502, `bad gateway`, "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			qc, err := NewHTTPQuoteClient(server.URL, zerolog.Nop())
			require.NoError(t, err)

			req, err := BuildRequest(testToken, "1", testDest, "0xsender", 50)
			require.NoError(t, err)

			_, err = qc.GetQuote(context.Background(), req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewHTTPQuoteClientRejectsBadURL(t *testing.T) {
	_, err := NewHTTPQuoteClient("not a url", zerolog.Nop())
	assert.Error(t, err)
}
