package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/rs/zerolog"

	"deposit-bridge/pkg/types"
)

// oneClickChains maps chain names to 1Click blockchain identifiers
var oneClickChains = map[string]string{
	"ethereum": "eth",
	"solana":   "sol",
	"arbitrum": "arb",
	"bitcoin":  "btc",
}

// OneClickClient wraps the 1Click SDK. Its quotes carry a deposit address
// instead of calldata: executing one is a plain transfer to that address.
type OneClickClient struct {
	client   *oneclick.APIClient
	jwtToken string
	logger   zerolog.Logger
}

// NewOneClickClient creates a new 1Click API client
func NewOneClickClient(jwtToken, baseURL string, logger zerolog.Logger) *OneClickClient {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}

	return &OneClickClient{
		client:   oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
		logger:   logger.With().Str("component", "oneclick_client").Logger(),
	}
}

func (c *OneClickClient) authContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// GetSupportedTokens retrieves all supported tokens
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// FindToken locates a token on chain by contract address, or by symbol for native assets
func (c *OneClickClient) FindToken(ctx context.Context, chain, address, symbol string) (*oneclick.TokenResponse, error) {
	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	blockchain := strings.ToLower(chain)
	if alias, ok := oneClickChains[blockchain]; ok {
		blockchain = alias
	}

	for _, token := range tokens {
		if strings.ToLower(token.GetBlockchain()) != blockchain {
			continue
		}
		if address != "" && strings.EqualFold(token.GetContractAddress(), address) {
			return &token, nil
		}
		if address == "" && token.GetContractAddress() == "" && strings.EqualFold(token.GetSymbol(), symbol) {
			return &token, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
}

// GetQuote generates a quote with a deposit address
func (c *OneClickClient) GetQuote(ctx context.Context, req QuoteRequest) (*types.Quote, error) {
	sourceToken, err := c.FindToken(ctx, req.Source.Chain.Name, req.Source.Address, req.Source.Symbol)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}

	destToken, err := c.FindToken(ctx, req.Destination.Chain.Name, req.Destination.Token, req.Destination.Symbol)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	if req.ToAddress == "" {
		return nil, fmt.Errorf("recipient address is required")
	}

	refundTo := req.FromAddress
	if refundTo == "" {
		return nil, fmt.Errorf("refund address is required")
	}

	deadline := time.Now().Add(24 * time.Hour)

	quoteReq := oneclick.NewQuoteRequest(
		false,                      // dry - false to get a real deposit address
		"EXACT_INPUT",              // swapType
		float32(req.SlippageBps()), // slippageTolerance in bps
		sourceToken.GetAssetId(),   // originAsset
		"ORIGIN_CHAIN",             // depositType
		destToken.GetAssetId(),     // destinationAsset
		req.FromAmount,             // amount in smallest unit
		refundTo,                   // refundTo
		"ORIGIN_CHAIN",             // refundType
		req.ToAddress,              // recipient
		"DESTINATION_CHAIN",        // recipientType
		deadline,                   // deadline
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authContext(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, apiError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	details := resp.GetQuote()
	quote := &types.Quote{
		SourceAmount:              details.GetAmountIn(),
		DestinationAmountEstimate: details.GetAmountOut(),
		DestinationAmountMinimum:  details.GetMinAmountOut(),
		DepositAddress:            details.GetDepositAddress(),
		EstimatedDuration:         time.Duration(details.GetTimeEstimate()) * time.Second,
		Provider:                  "oneclick",
	}
	if details.HasDepositMemo() {
		quote.DepositMemo = details.GetDepositMemo()
	}
	if quote.DepositAddress == "" {
		return nil, fmt.Errorf("quote has no deposit address")
	}

	c.logger.Debug().
		Str("deposit_address", quote.DepositAddress).
		Str("amount_out", details.GetAmountOutFormatted()).
		Msg("Quote received")

	return quote, nil
}

// NotifyDeposit submits the deposit transaction hash for a quote
func (c *OneClickClient) NotifyDeposit(ctx context.Context, quote *types.Quote, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(quote.DepositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.authContext(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 && httpResp.StatusCode != 201 {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return nil
}

// ExecutionStatus checks the settlement status for a deposit address
func (c *OneClickClient) ExecutionStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.authContext(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// apiError extracts the API's message from a failed response
func apiError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("failed to get quote from API (status: %d): %w", httpResp.StatusCode, err)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
		if errors, ok := errorResp["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", httpResp.StatusCode, errors)
		}
	}

	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(bodyBytes))
}
