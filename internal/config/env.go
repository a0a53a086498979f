package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Environment variable names.
const (
	EnvHome         = "COMPASS_HOME"
	EnvDefaultChain = "COMPASS_DEFAULT_CHAIN"
	EnvRPCPrefix    = "COMPASS_RPC_"
	EnvMnemonic     = "COMPASS_MNEMONIC"   // #nosec G101 -- variable name, not a credential
	EnvPassphrase   = "COMPASS_PASSPHRASE" // #nosec G101 -- variable name, not a credential
	EnvKeystoreFile = "COMPASS_KEYSTORE_FILE"
	EnvRecipient    = "COMPASS_RECIPIENT"
	EnvOutputFormat = "COMPASS_OUTPUT_FORMAT"
	EnvVerbose      = "COMPASS_VERBOSE"
	EnvLogLevel     = "COMPASS_LOG_LEVEL"
	EnvAutoApprove  = "COMPASS_AUTO_APPROVE"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	applyEnvironment(cfg, os.Environ())
}

//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func applyEnvironment(cfg *Config, environ []string) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	if v := env[EnvHome]; v != "" {
		cfg.Home = v
	}

	if v := env[EnvDefaultChain]; v != "" {
		if id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil && id > 0 {
			cfg.Provider.DefaultChain = id
		}
	}

	// COMPASS_RPC_<DECIMAL_CHAIN_ID> sets one endpoint
	for k, v := range env {
		suffix, ok := strings.CutPrefix(k, EnvRPCPrefix)
		if !ok || v == "" {
			continue
		}
		id, err := strconv.ParseUint(suffix, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		if cfg.Provider.RPC == nil {
			cfg.Provider.RPC = map[uint64]string{}
		}
		cfg.Provider.RPC[id] = SanitizeURL(v)
	}

	if v := env[EnvMnemonic]; v != "" {
		cfg.Keystore.Mnemonic = v
	}

	if v := env[EnvPassphrase]; v != "" {
		cfg.Keystore.Passphrase = v
	}

	if v := env[EnvKeystoreFile]; v != "" {
		cfg.Keystore.File = v
	}

	if v := env[EnvRecipient]; v != "" {
		cfg.Settings.Recipient = strings.TrimSpace(v)
	}

	if v := env[EnvOutputFormat]; v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := env[EnvVerbose]; v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := env[EnvLogLevel]; v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := env[EnvAutoApprove]; v != "" {
		cfg.Provider.AutoApprove = parseBool(v)
	}

	// NO_COLOR disables colored output
	if _, ok := env[EnvNoColor]; ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL strips whitespace and control characters picked up by
// copy-paste and drops any fragment.
func SanitizeURL(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)

	u, err := url.Parse(cleaned)
	if err != nil {
		return cleaned
	}
	u.Fragment = ""
	return u.String()
}
