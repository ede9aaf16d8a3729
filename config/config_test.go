package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-bridge/pkg/types"
)

const sampleConfig = `
quote:
  provider: oneclick
  jwt_token: file-token
  max_slippage_bps: 100
  debounce: 250ms
sponsorship: false
confirmation_timeout: 90s
destination:
  chain: base
  token: "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
  symbol: USDC
  decimals: 6
  address: "0xBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBbBb"
chains:
  base:
    family: evm
    chain_id: 8453
    rpc_url: https://mainnet.base.org
    gas_limit: 300000
  solana:
    family: solana
    rpc_url: https://api.mainnet-beta.solana.com
    commitment: finalized
tokens:
  - chain: base
    symbol: USDC
    address: "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
    decimals: 6
  - chain: solana
    symbol: SOL
    decimals: 9
    price: 150.5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "oneclick", cfg.Quote.Provider)
	assert.Equal(t, DefaultOneClickURL, cfg.Quote.BaseURL)
	assert.Equal(t, "file-token", cfg.Quote.JWTToken)
	assert.Equal(t, 100, cfg.Quote.MaxSlippageBps)
	assert.Equal(t, 250*time.Millisecond, cfg.Quote.Debounce)
	assert.False(t, cfg.Sponsorship)
	assert.Equal(t, 90*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, 5*time.Second, cfg.CredentialRefreshTimeout)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NotNil(t, cfg.Chains["base"].GasLimit)
	assert.Equal(t, uint64(300000), *cfg.Chains["base"].GasLimit)

	dest, err := cfg.DestinationTarget()
	require.NoError(t, err)
	assert.Equal(t, types.Chain{Name: "base", Family: types.FamilyEVM, ChainID: 8453}, dest.Chain)
	assert.Equal(t, int32(6), dest.Decimals)

	tokens, err := cfg.TokenList()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.True(t, dest.IsDirect(tokens[0]))
	assert.Equal(t, types.FamilySolana, tokens[1].Chain.Family)
	assert.True(t, tokens[1].IsNative())
	assert.Equal(t, 150.5, tokens[1].Price)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEPOSIT_BRIDGE_QUOTE_JWT_TOKEN", "env-token")
	t.Setenv("DEPOSIT_BRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Quote.JWTToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Quote:       QuoteConfig{Provider: "http", BaseURL: "https://quotes.example.com"},
			Destination: DestinationConfig{Chain: "base", Address: "0xb"},
			Chains:      map[string]ChainConfig{"base": {Family: "evm", ChainID: 8453, RPCUrl: "https://rpc"}},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Quote.Provider = "magic" }, "unknown quote provider"},
		{"oneclick without jwt", func(c *Config) { c.Quote.Provider = "oneclick" }, "JWT token"},
		{"http without url", func(c *Config) { c.Quote.BaseURL = "" }, "base_url"},
		{"slippage", func(c *Config) { c.Quote.MaxSlippageBps = 20000 }, "max_slippage_bps"},
		{"no destination", func(c *Config) { c.Destination.Address = "" }, "destination"},
		{"destination chain", func(c *Config) { c.Destination.Chain = "polygon" }, "not configured"},
		{"unknown family", func(c *Config) { c.Chains["btc"] = ChainConfig{Family: "utxo", RPCUrl: "x"} }, "unknown family"},
		{"evm without id", func(c *Config) { c.Chains["base"] = ChainConfig{Family: "evm", RPCUrl: "x"} }, "chain_id"},
		{"rpc url", func(c *Config) { c.Chains["sol"] = ChainConfig{Family: "solana"} }, "rpc_url"},
		{"token chain", func(c *Config) { c.Tokens = []TokenConfig{{Chain: "arbitrum", Symbol: "ARB"}} }, "arbitrum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
