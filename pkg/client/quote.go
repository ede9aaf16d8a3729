package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deposit-bridge/pkg/amount"
	"deposit-bridge/pkg/types"
)

// ErrNoQuote is returned when a request cannot be priced without calling a provider
var ErrNoQuote = errors.New("no quote")

// Native asset markers sent to quote services
const (
	EVMNativeToken    = "0x0000000000000000000000000000000000000000"
	SolanaNativeToken = "11111111111111111111111111111111"
)

// QuoteProvider prices a bridge/swap route
type QuoteProvider interface {
	GetQuote(ctx context.Context, req QuoteRequest) (*types.Quote, error)
}

// DepositNotifier is implemented by providers that must be told about the
// source-chain deposit hash
type DepositNotifier interface {
	NotifyDeposit(ctx context.Context, quote *types.Quote, txHash string) error
}

// QuoteRequest is the wire body of a quote request
type QuoteRequest struct {
	FromChain   string  `json:"fromChain"`
	ToChain     string  `json:"toChain"`
	FromToken   string  `json:"fromToken"`
	ToToken     string  `json:"toToken"`
	FromAddress string  `json:"fromAddress"`
	ToAddress   string  `json:"toAddress"`
	FromAmount  string  `json:"fromAmount"` // Integer string in smallest units
	Slippage    float64 `json:"slippage"`   // Fraction, 0.005 = 0.5%

	Source      types.Token       `json:"-"`
	Destination types.Destination `json:"-"`
}

// SlippageBps returns the slippage in basis points
func (r QuoteRequest) SlippageBps() uint32 {
	return uint32(math.Round(r.Slippage * 10000))
}

// BuildRequest converts a human amount into a quote request. Amounts that are
// not positive after conversion yield ErrNoQuote.
func BuildRequest(token types.Token, input string, dest types.Destination, fromAddress string, slippageBps int) (QuoteRequest, error) {
	units, err := amount.ToBaseUnits(input, token.Decimals)
	if err != nil {
		return QuoteRequest{}, fmt.Errorf("%w: %v", ErrNoQuote, err)
	}

	return QuoteRequest{
		FromChain:   chainRef(token.Chain),
		ToChain:     chainRef(dest.Chain),
		FromToken:   tokenRef(token.Chain.Family, token.Address),
		ToToken:     tokenRef(dest.Chain.Family, dest.Token),
		FromAddress: fromAddress,
		ToAddress:   dest.Address,
		FromAmount:  units.String(),
		Slippage:    float64(slippageBps) / 10000,
		Source:      token,
		Destination: dest,
	}, nil
}

func chainRef(chain types.Chain) string {
	if chain.Family == types.FamilyEVM && chain.ChainID != 0 {
		return strconv.FormatInt(chain.ChainID, 10)
	}
	return chain.Name
}

func tokenRef(family types.ChainFamily, address string) string {
	if address != "" {
		return address
	}
	if family == types.FamilySolana {
		return SolanaNativeToken
	}
	return EVMNativeToken
}

// MinimumOutput applies slippage in basis points to an expected output
func MinimumOutput(expected *big.Int, slippageBps uint32) *big.Int {
	if slippageBps > 10000 {
		slippageBps = 10000
	}
	out := new(big.Int).Mul(expected, big.NewInt(int64(10000-slippageBps)))
	return out.Div(out, big.NewInt(10000))
}

// HTTPQuoteClient talks to a quote service over the JSON contract
type HTTPQuoteClient struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewHTTPQuoteClient creates a quote client for baseURL
func NewHTTPQuoteClient(baseURL string, logger zerolog.Logger) (*HTTPQuoteClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid quote service URL: %w", err)
	}

	return &HTTPQuoteClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With().Str("component", "quote_client").Logger(),
	}, nil
}

type quoteEnvelope struct {
	Success bool            `json:"success"`
	Data    *quoteData      `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type quoteData struct {
	ID                    string              `json:"id"`
	FromAmount            string              `json:"fromAmount"`
	ToAmount              string              `json:"toAmount"`
	ToAmountMin           string              `json:"toAmountMin"`
	ApprovalAddress       string              `json:"approvalAddress"`
	TransactionRequest    *transactionRequest `json:"transactionRequest"`
	SerializedTransaction string              `json:"serializedTransaction"`
	EstimatedDuration     float64             `json:"estimatedDuration"`
}

type transactionRequest struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
	ChainID int64  `json:"chainId"`
}

// GetQuote requests a quote
func (c *HTTPQuoteClient) GetQuote(ctx context.Context, req QuoteRequest) (*types.Quote, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to close response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}

	var envelope quoteEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("quote service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	if !envelope.Success || envelope.Data == nil {
		msg := errorMessage(envelope.Error)
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("quote service error: %s", msg)
	}

	quote, err := normalize(envelope.Data, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("from_chain", req.FromChain).
		Str("from_amount", req.FromAmount).
		Str("to_amount", quote.DestinationAmountEstimate).
		Msg("Quote received")

	return quote, nil
}

func normalize(data *quoteData, req QuoteRequest) (*types.Quote, error) {
	estimate, ok := new(big.Int).SetString(data.ToAmount, 10)
	if !ok || estimate.Sign() <= 0 {
		return nil, fmt.Errorf("quote has invalid destination amount %q", data.ToAmount)
	}

	minimum := MinimumOutput(estimate, req.SlippageBps())
	if data.ToAmountMin != "" {
		minimum, ok = new(big.Int).SetString(data.ToAmountMin, 10)
		if !ok || minimum.Sign() < 0 {
			return nil, fmt.Errorf("quote has invalid minimum amount %q", data.ToAmountMin)
		}
	}
	if minimum.Cmp(estimate) > 0 {
		return nil, fmt.Errorf("quote minimum %s exceeds estimate %s", minimum, estimate)
	}

	sourceAmount := data.FromAmount
	if sourceAmount == "" {
		sourceAmount = req.FromAmount
	}

	quote := &types.Quote{
		ID:                        data.ID,
		SourceAmount:              sourceAmount,
		DestinationAmountEstimate: estimate.String(),
		DestinationAmountMinimum:  minimum.String(),
		ApprovalTarget:            data.ApprovalAddress,
		EstimatedDuration:         time.Duration(data.EstimatedDuration * float64(time.Second)),
		Provider:                  "http",
	}
	if data.TransactionRequest != nil {
		quote.Transaction = types.ExecutableTransaction{
			To:      data.TransactionRequest.To,
			Data:    data.TransactionRequest.Data,
			Value:   data.TransactionRequest.Value,
			ChainID: data.TransactionRequest.ChainID,
		}
	}
	quote.Transaction.Serialized = data.SerializedTransaction

	if quote.Transaction.IsEmpty() {
		return nil, fmt.Errorf("quote has no executable transaction")
	}

	return quote, nil
}

func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
