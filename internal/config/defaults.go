package config

import (
	"time"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
)

// Default RPC endpoints. PublicNode requires no API key.
const (
	DefaultEthereumRPCURL = "https://ethereum-rpc.publicnode.com"
	DefaultPolygonRPCURL  = "https://polygon-bor-rpc.publicnode.com"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.compass",
		Provider: ProviderConfig{
			Alias:        "compass",
			DefaultChain: uint64(chain.Ethereum),
			RPC: map[uint64]string{
				uint64(chain.Ethereum): DefaultEthereumRPCURL,
				uint64(chain.Polygon):  DefaultPolygonRPCURL,
			},
			Currencies: catalog.DefaultCurrencies(),
		},
		Keystore: KeystoreConfig{
			File: "~/.compass/mnemonic.age",
		},
		Settings: SettingsConfig{
			ReferenceChain: uint64(chain.Ethereum),
			KnownContracts: map[uint64]KnownContractConfig{
				uint64(chain.Ethereum): {
					Label:    "USDC",
					Token:    chain.USDCMainnet,
					Decimals: 6,
					Pair:     chain.USDCWETHPairMainnet,
				},
				uint64(chain.Polygon): {
					Label:    "USDT",
					Token:    chain.USDTPolygon,
					Decimals: 6,
				},
			},
		},
		Signing: SigningConfig{
			ChainBinding: "require",
		},
		Dispatch: DispatchConfig{
			PollInterval:   2 * time.Second,
			ConfirmTimeout: 3 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.compass/compass.log",
		},
	}
}
