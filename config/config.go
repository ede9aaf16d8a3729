package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"deposit-bridge/pkg/types"
)

const (
	DefaultOneClickURL = "https://1click.chaindefuser.com"
	EnvPrefix          = "DEPOSIT_BRIDGE"
)

// Config holds the application configuration
type Config struct {
	Quote                    QuoteConfig            `mapstructure:"quote"`
	Sponsorship              bool                   `mapstructure:"sponsorship"`
	CredentialRefreshTimeout time.Duration          `mapstructure:"credential_refresh_timeout"`
	ConfirmationTimeout      time.Duration          `mapstructure:"confirmation_timeout"`
	Destination              DestinationConfig      `mapstructure:"destination"`
	Chains                   map[string]ChainConfig `mapstructure:"chains"`
	Tokens                   []TokenConfig          `mapstructure:"tokens"`
	HistoryPath              string                 `mapstructure:"history_path"`
	LogLevel                 string                 `mapstructure:"log_level"`
}

// QuoteConfig selects and configures the quote provider
type QuoteConfig struct {
	Provider       string        `mapstructure:"provider"` // "oneclick" or "http"
	BaseURL        string        `mapstructure:"base_url"`
	JWTToken       string        `mapstructure:"jwt_token"`
	MaxSlippageBps int           `mapstructure:"max_slippage_bps"`
	Debounce       time.Duration `mapstructure:"debounce"`
}

// DestinationConfig is the settlement target
type DestinationConfig struct {
	Chain    string `mapstructure:"chain"`
	Token    string `mapstructure:"token"` // Empty for the native asset
	Symbol   string `mapstructure:"symbol"`
	Decimals int32  `mapstructure:"decimals"`
	Address  string `mapstructure:"address"`
}

// ChainConfig holds connection and signing settings for one chain
type ChainConfig struct {
	Family        string  `mapstructure:"family"`
	ChainID       int64   `mapstructure:"chain_id"` // EVM only
	RPCUrl        string  `mapstructure:"rpc_url"`
	PrivateKey    string  `mapstructure:"private_key"`
	Commitment    string  `mapstructure:"commitment"`     // Solana only
	SkipPreflight bool    `mapstructure:"skip_preflight"` // Solana only
	GasLimit      *uint64 `mapstructure:"gas_limit"`      // EVM only
	GasPrice      *int64  `mapstructure:"gas_price"`      // EVM only, wei
}

// TokenConfig is a holding offered for deposit
type TokenConfig struct {
	Chain    string  `mapstructure:"chain"`
	Symbol   string  `mapstructure:"symbol"`
	Address  string  `mapstructure:"address"`
	Decimals int32   `mapstructure:"decimals"`
	Price    float64 `mapstructure:"price"`
	Logo     string  `mapstructure:"logo"`
}

// Load reads configuration from path, or from .deposit-bridge.yaml in $HOME
// or the working directory, with DEPOSIT_BRIDGE_* environment overrides
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".deposit-bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	// Set default values
	v.SetDefault("quote.provider", "oneclick")
	v.SetDefault("quote.base_url", "")
	v.SetDefault("quote.jwt_token", "")
	v.SetDefault("quote.max_slippage_bps", 50)
	v.SetDefault("quote.debounce", 500*time.Millisecond)
	v.SetDefault("sponsorship", true)
	v.SetDefault("credential_refresh_timeout", 5*time.Second)
	v.SetDefault("confirmation_timeout", 2*time.Minute)
	v.SetDefault("history_path", "")
	v.SetDefault("log_level", "info")

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Quote.Provider = strings.ToLower(cfg.Quote.Provider)
	if cfg.Quote.Provider == "oneclick" && cfg.Quote.BaseURL == "" {
		cfg.Quote.BaseURL = DefaultOneClickURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration is complete and consistent
func (c *Config) Validate() error {
	switch c.Quote.Provider {
	case "oneclick":
		if c.Quote.JWTToken == "" {
			return fmt.Errorf("JWT token not found. Please set %s_QUOTE_JWT_TOKEN or quote.jwt_token in .deposit-bridge.yaml", EnvPrefix)
		}
	case "http":
		if c.Quote.BaseURL == "" {
			return fmt.Errorf("quote.base_url is required for the http quote provider")
		}
	default:
		return fmt.Errorf("unknown quote provider %q", c.Quote.Provider)
	}

	if c.Quote.MaxSlippageBps < 0 || c.Quote.MaxSlippageBps > 10000 {
		return fmt.Errorf("quote.max_slippage_bps must be between 0 and 10000")
	}

	for name, chain := range c.Chains {
		switch types.ChainFamily(chain.Family) {
		case types.FamilyEVM:
			if chain.ChainID == 0 {
				return fmt.Errorf("chain %s: chain_id is required for EVM chains", name)
			}
		case types.FamilySolana:
		default:
			return fmt.Errorf("chain %s: unknown family %q", name, chain.Family)
		}
		if chain.RPCUrl == "" {
			return fmt.Errorf("chain %s: rpc_url is required", name)
		}
	}

	if c.Destination.Chain == "" || c.Destination.Address == "" {
		return fmt.Errorf("destination chain and address are required")
	}
	if _, ok := c.Chains[c.Destination.Chain]; !ok {
		return fmt.Errorf("destination chain %s is not configured under chains", c.Destination.Chain)
	}

	for _, t := range c.Tokens {
		if _, ok := c.Chains[t.Chain]; !ok {
			return fmt.Errorf("token %s: chain %s is not configured", t.Symbol, t.Chain)
		}
	}

	return nil
}

// Chain returns the typed chain for name
func (c *Config) Chain(name string) (types.Chain, error) {
	chain, ok := c.Chains[name]
	if !ok {
		return types.Chain{}, fmt.Errorf("chain %s not configured", name)
	}
	return types.Chain{
		Name:    name,
		Family:  types.ChainFamily(chain.Family),
		ChainID: chain.ChainID,
	}, nil
}

// DestinationTarget returns the typed settlement destination
func (c *Config) DestinationTarget() (types.Destination, error) {
	chain, err := c.Chain(c.Destination.Chain)
	if err != nil {
		return types.Destination{}, err
	}
	return types.Destination{
		Chain:    chain,
		Token:    c.Destination.Token,
		Symbol:   c.Destination.Symbol,
		Decimals: c.Destination.Decimals,
		Address:  c.Destination.Address,
	}, nil
}

// TokenList returns the configured holdings without balances
func (c *Config) TokenList() ([]types.Token, error) {
	tokens := make([]types.Token, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		chain, err := c.Chain(t.Chain)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, types.Token{
			Chain:    chain,
			Symbol:   t.Symbol,
			Address:  t.Address,
			Decimals: t.Decimals,
			Logo:     t.Logo,
			Price:    t.Price,
		})
	}
	return tokens, nil
}
