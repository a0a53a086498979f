package wallet

import (
	"net/http"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chain/rpc"
	"github.com/mrz1836/compass/internal/config"
	"github.com/mrz1836/compass/internal/keystore"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/signing"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// LoadOptions supplies the interactive pieces NewFromConfig cannot read
// from configuration.
type LoadOptions struct {
	// Passphrase unlocks the encrypted mnemonic file when COMPASS_PASSPHRASE
	// is not set.
	Passphrase keystore.PassphraseFunc
	// Approve confirms signing actions. Ignored when provider.auto_approve is set.
	Approve provider.ApproveFunc
	// Logger receives component logs. Nil discards them.
	Logger *config.Logger
	// HTTPClient overrides the RPC transport.
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// NewFromConfig loads the signing key, builds a Local provider over the
// configured RPC endpoints and returns a service wired to it. Close the
// service to destroy the key.
func NewFromConfig(cfg *config.Config, opts LoadOptions) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = config.NullLogger()
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	binding, err := signing.ParseChainBinding(cfg.Signing.ChainBinding)
	if err != nil {
		return nil, err
	}

	settings := Settings{PreferredChain: cfg.DefaultChain()}
	recipient, ok, err := cfg.RecipientAddress()
	if err != nil {
		return nil, err
	}
	if ok {
		settings.Recipient = &recipient
	}

	passphrase := opts.Passphrase
	if cfg.Keystore.Passphrase != "" {
		fixed := cfg.Keystore.Passphrase
		passphrase = func() (string, error) { return fixed, nil }
	}
	key, err := keystore.Load(keystore.Source{
		Mnemonic:   cfg.Keystore.Mnemonic,
		File:       config.ExpandHome(cfg.Keystore.File),
		Passphrase: passphrase,
		Account:    cfg.Keystore.Account,
		Index:      cfg.Keystore.Index,
	})
	if err != nil {
		return nil, err
	}

	limiter := chain.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	backends := make(map[chain.ID]provider.Backend)
	for _, id := range cfg.Chains() {
		url, _ := cfg.RPCURL(id)
		backends[id] = rpc.NewClientWithOptions(url, &rpc.ClientOptions{
			HTTPClient: opts.HTTPClient,
			Limiter:    limiter,
			Metrics:    opts.Metrics,
		})
	}

	approve := opts.Approve
	if cfg.Provider.AutoApprove {
		approve = nil
	}
	local, err := provider.NewLocal(provider.LocalOptions{
		Signer:       key,
		Backends:     backends,
		DefaultChain: cfg.DefaultChain(),
		Descriptor: provider.Descriptor{
			Alias:               cfg.Provider.Alias,
			Image:               cfg.Provider.Image,
			AvailableCurrencies: cfg.Provider.Currencies,
		},
		Approve: approve,
		Logger:  logger.Component("provider"),
	})
	if err != nil {
		key.Destroy()
		return nil, compasserr.WithSuggestion(err, "add an RPC endpoint for the default chain under provider.rpc")
	}
	logger.Debug("loaded key %s with %d chain backends", key.Address().Hex(), len(backends))

	return NewService(&Config{
		Provider:       local,
		Registry:       registry,
		Settings:       settings,
		ReferenceChain: cfg.ReferenceChain(),
		Binding:        binding,
		PollInterval:   cfg.Dispatch.PollInterval,
		ConfirmTimeout: cfg.Dispatch.ConfirmTimeout,
		Logger:         logger.Component("wallet"),
		Metrics:        opts.Metrics,
		Closer:         key.Destroy,
	}), nil
}
