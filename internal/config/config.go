// Package config provides configuration management for Compass.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Home      string          `yaml:"home"`
	Provider  ProviderConfig  `yaml:"provider"`
	Keystore  KeystoreConfig  `yaml:"keystore"`
	Settings  SettingsConfig  `yaml:"settings"`
	Signing   SigningConfig   `yaml:"signing"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProviderConfig configures the local wallet provider.
type ProviderConfig struct {
	Alias        string            `yaml:"alias"`
	Image        string            `yaml:"image,omitempty"`
	DefaultChain uint64            `yaml:"default_chain"`
	RPC          map[uint64]string `yaml:"rpc"`
	// Currencies is the session descriptor's available currency list.
	Currencies []catalog.RawCurrency `yaml:"currencies"`
	// AutoApprove skips the interactive confirmation before signing.
	AutoApprove bool `yaml:"auto_approve"`
}

// KeystoreConfig locates the signing key.
type KeystoreConfig struct {
	File             string `yaml:"file"`
	Account          uint32 `yaml:"account"`
	Index            uint32 `yaml:"index"`
	ScryptWorkFactor int    `yaml:"scrypt_work_factor,omitempty"`

	// Mnemonic and Passphrase only come from the environment.
	Mnemonic   string `yaml:"-"`
	Passphrase string `yaml:"-"`
}

// SettingsConfig is the injected operation settings.
type SettingsConfig struct {
	Recipient      string                         `yaml:"recipient"`
	ReferenceChain uint64                         `yaml:"reference_chain"`
	KnownContracts map[uint64]KnownContractConfig `yaml:"known_contracts"`
}

// KnownContractConfig is one registry entry.
type KnownContractConfig struct {
	Label    string `yaml:"label"`
	Token    string `yaml:"token"`
	Decimals uint8  `yaml:"decimals"`
	Pair     string `yaml:"pair,omitempty"`
}

// SigningConfig defines signing policy.
type SigningConfig struct {
	ChainBinding string `yaml:"chain_binding"`
}

// DispatchConfig defines receipt polling.
type DispatchConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

// RateLimitConfig throttles requests per RPC endpoint.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file on top of Defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, compasserr.WithDetails(compasserr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, compasserr.WithDetails(compasserr.WithCause(compasserr.ErrConfigInvalid, err), map[string]string{
			"path": path,
		})
	}

	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Path returns the config file path inside home.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default compass home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".compass"
	}
	return filepath.Join(home, ".compass")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// DefaultChain returns the configured default chain.
func (c *Config) DefaultChain() chain.ID {
	return chain.ID(c.Provider.DefaultChain)
}

// ReferenceChain returns the chain pool reads run on.
func (c *Config) ReferenceChain() chain.ID {
	return chain.ID(c.Settings.ReferenceChain)
}

// RPCURL returns the endpoint for a chain.
func (c *Config) RPCURL(id chain.ID) (string, bool) {
	u, ok := c.Provider.RPC[uint64(id)]
	return u, ok && u != ""
}

// Chains returns the chains with an RPC endpoint, ascending.
func (c *Config) Chains() []chain.ID {
	ids := make([]chain.ID, 0, len(c.Provider.RPC))
	for id, u := range c.Provider.RPC {
		if u != "" {
			ids = append(ids, chain.ID(id))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registry builds the known-contract registry from settings. An empty
// known_contracts section yields the built-in registry.
func (c *Config) Registry() (*chain.Registry, error) {
	if len(c.Settings.KnownContracts) == 0 {
		return chain.DefaultRegistry(), nil
	}

	entries := make(map[chain.ID]chain.KnownContract, len(c.Settings.KnownContracts))
	for id, k := range c.Settings.KnownContracts {
		token, err := chain.ParseAddress(k.Token)
		if err != nil {
			return nil, invalid("settings.known_contracts."+strconv.FormatUint(id, 10)+".token", k.Token, err.Error())
		}
		entry := chain.KnownContract{Label: k.Label, Token: token, Decimals: k.Decimals}
		if k.Pair != "" {
			pair, err := chain.ParseAddress(k.Pair)
			if err != nil {
				return nil, invalid("settings.known_contracts."+strconv.FormatUint(id, 10)+".pair", k.Pair, err.Error())
			}
			entry.Pair = &pair
		}
		entries[chain.ID(id)] = entry
	}
	return chain.NewRegistry(entries), nil
}

// RecipientAddress returns the configured default recipient, if any.
func (c *Config) RecipientAddress() (common.Address, bool, error) {
	if c.Settings.Recipient == "" {
		return common.Address{}, false, nil
	}
	addr, err := chain.ParseAddress(c.Settings.Recipient)
	if err != nil {
		return common.Address{}, false, err
	}
	return addr, true, nil
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if c.Provider.DefaultChain == 0 {
		return invalid("provider.default_chain", "0", "must be a positive chain id")
	}
	if _, ok := c.RPCURL(c.DefaultChain()); !ok {
		return invalid("provider.default_chain", c.DefaultChain().String(), "no RPC endpoint configured for this chain")
	}
	for id, raw := range c.Provider.RPC {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid("provider.rpc."+strconv.FormatUint(id, 10), raw, "must be an http(s) URL")
		}
	}
	if c.Settings.ReferenceChain == 0 {
		return invalid("settings.reference_chain", "0", "must be a positive chain id")
	}
	if _, _, err := c.RecipientAddress(); err != nil {
		return invalid("settings.recipient", c.Settings.Recipient, "not a valid address")
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	switch c.Signing.ChainBinding {
	case "", "require", "optional":
	default:
		return invalid("signing.chain_binding", c.Signing.ChainBinding, "must be require or optional")
	}
	if c.Dispatch.PollInterval <= 0 {
		return invalid("dispatch.poll_interval", c.Dispatch.PollInterval.String(), "must be positive")
	}
	if c.Dispatch.ConfirmTimeout < c.Dispatch.PollInterval {
		return invalid("dispatch.confirm_timeout", c.Dispatch.ConfirmTimeout.String(), "must be at least poll_interval")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return invalid("rate_limit", strconv.FormatFloat(c.RateLimit.RequestsPerSecond, 'f', -1, 64), "must not be negative")
	}
	switch c.Output.DefaultFormat {
	case "", "auto", "text", "json":
	default:
		return invalid("output.default_format", c.Output.DefaultFormat, "must be auto, text or json")
	}
	return nil
}

func invalid(key, value, reason string) error {
	return compasserr.WithDetails(compasserr.ErrConfigInvalid, map[string]string{
		"key":    key,
		"value":  value,
		"reason": reason,
	})
}
