package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"deposit-bridge/config"
	"deposit-bridge/pkg/client"
	"deposit-bridge/pkg/deposit"
	"deposit-bridge/pkg/directory"
	"deposit-bridge/pkg/history"
	"deposit-bridge/pkg/session"
	"deposit-bridge/pkg/types"
	"deposit-bridge/pkg/wallet"
)

// app holds the clients and services built from configuration
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	destination types.Destination

	quotes   client.QuoteProvider
	oneClick *client.OneClickClient // nil unless the oneclick provider is configured

	evmClients   map[string]*ethclient.Client // Keyed by chain name
	solanaClient *rpc.Client

	registry  *deposit.Registry
	accounts  map[types.ChainFamily]string
	directory *directory.OnChain
	history   *history.Store
}

// newApp dials every configured chain and builds wallets for the chains with a private key
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	dest, err := cfg.DestinationTarget()
	if err != nil {
		return nil, err
	}
	tokens, err := cfg.TokenList()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		destination: dest,
		evmClients:  make(map[string]*ethclient.Client),
		registry:    deposit.NewRegistry(),
		accounts:    make(map[types.ChainFamily]string),
		directory:   directory.NewOnChain(tokens, logger),
	}

	if err := a.setupQuotes(); err != nil {
		return nil, err
	}
	if err := a.setupEVM(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupSolana(); err != nil {
		a.Close()
		return nil, err
	}

	a.history, err = history.NewStore(cfg.HistoryPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) policy() deposit.Policy {
	policy := deposit.DefaultPolicy()
	policy.Sponsorship = a.cfg.Sponsorship
	if a.cfg.ConfirmationTimeout > 0 {
		policy.ConfirmationTimeout = a.cfg.ConfirmationTimeout
	}
	if a.cfg.CredentialRefreshTimeout > 0 {
		policy.CredentialRefreshTimeout = a.cfg.CredentialRefreshTimeout
	}
	return policy
}

func (a *app) setupQuotes() error {
	switch a.cfg.Quote.Provider {
	case "oneclick":
		a.oneClick = client.NewOneClickClient(a.cfg.Quote.JWTToken, a.cfg.Quote.BaseURL, a.logger)
		a.quotes = a.oneClick
	case "http":
		quotes, err := client.NewHTTPQuoteClient(a.cfg.Quote.BaseURL, a.logger)
		if err != nil {
			return err
		}
		a.quotes = quotes
	default:
		return fmt.Errorf("unknown quote provider %q", a.cfg.Quote.Provider)
	}
	return nil
}

// sortedChains returns configured chain names of family in a stable order
func (a *app) sortedChains(family types.ChainFamily) []string {
	var names []string
	for name, chain := range a.cfg.Chains {
		if types.ChainFamily(chain.Family) == family {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// setupEVM dials EVM chains. All EVM chains sign with one key, so one wallet
// spans every network.
func (a *app) setupEVM(ctx context.Context) error {
	var (
		key      string
		networks []wallet.EVMNetwork
	)
	readers := make(map[int64]deposit.EVMReader)
	balances := make(map[int64]directory.EVMBalanceReader)

	for _, name := range a.sortedChains(types.FamilyEVM) {
		chain := a.cfg.Chains[name]
		ethClient, err := ethclient.DialContext(ctx, chain.RPCUrl)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", name, err)
		}
		a.evmClients[name] = ethClient
		readers[chain.ChainID] = ethClient
		balances[chain.ChainID] = ethClient

		if chain.PrivateKey == "" {
			continue
		}
		if key != "" && key != chain.PrivateKey {
			return fmt.Errorf("chain %s: EVM chains must share one private key", name)
		}
		key = chain.PrivateKey
		networks = append(networks, wallet.EVMNetwork{
			ChainID:  chain.ChainID,
			Backend:  ethClient,
			GasLimit: chain.GasLimit,
			GasPrice: chain.GasPrice,
		})
	}

	if key == "" {
		return nil
	}

	evmWallet, err := wallet.NewLocalEVMWallet(key, networks, a.logger)
	if err != nil {
		return err
	}
	a.accounts[types.FamilyEVM] = evmWallet.Address().Hex()
	a.registry.Register(types.FamilyEVM, deposit.NewEVMExecutor(evmWallet, readers, a.policy(), a.logger))
	a.directory.WithEVM(evmWallet.Address(), balances)
	return nil
}

func (a *app) setupSolana() error {
	names := a.sortedChains(types.FamilySolana)
	if len(names) == 0 {
		return nil
	}
	if len(names) > 1 {
		return fmt.Errorf("only one solana chain can be configured, found %d", len(names))
	}

	chain := a.cfg.Chains[names[0]]
	a.solanaClient = rpc.New(chain.RPCUrl)
	if chain.PrivateKey == "" {
		return nil
	}

	commitment := wallet.ParseCommitment(chain.Commitment)
	solWallet, err := wallet.NewLocalSolanaWallet(a.solanaClient, chain.PrivateKey, chain.SkipPreflight, commitment, a.logger)
	if err != nil {
		return err
	}
	a.accounts[types.FamilySolana] = solWallet.PublicKey().String()
	a.registry.Register(types.FamilySolana, deposit.NewSolanaExecutor(solWallet, a.solanaClient, a.policy(), commitment, a.logger))
	a.directory.WithSolana(solWallet.PublicKey(), a.solanaClient)
	return nil
}

// newController starts a deposit session against the configured destination
func (a *app) newController(onUpdate func(session.Session)) *session.Controller {
	opts := session.Options{
		Debounce:    a.cfg.Quote.Debounce,
		SlippageBps: a.cfg.Quote.MaxSlippageBps,
		OnUpdate:    onUpdate,
		Logger:      a.logger,
	}
	if a.oneClick != nil {
		opts.Notifier = a.oneClick
	}
	return session.NewController(a.destination, a.quotes, a.registry, a.accounts, opts)
}

// transactionStatus looks a hash up on the named chain
func (a *app) transactionStatus(ctx context.Context, chainName, hash string) (directory.TransactionStatus, error) {
	chain, err := a.cfg.Chain(chainName)
	if err != nil {
		return directory.TransactionStatus{}, err
	}
	switch chain.Family {
	case types.FamilyEVM:
		return directory.EVMTransactionStatus(ctx, a.evmClients[chainName], hash)
	case types.FamilySolana:
		return directory.SolanaTransactionStatus(ctx, a.solanaClient, hash)
	}
	return directory.TransactionStatus{}, fmt.Errorf("%w: %s", deposit.ErrUnsupportedFamily, chain.Family)
}

// Close releases RPC connections
func (a *app) Close() {
	for _, c := range a.evmClients {
		c.Close()
	}
	if a.solanaClient != nil {
		if err := a.solanaClient.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("Failed to close solana client")
		}
	}
}
