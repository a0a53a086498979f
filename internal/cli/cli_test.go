package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/config"
	"github.com/mrz1836/compass/internal/fileutil"
	"github.com/mrz1836/compass/internal/keystore"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/provider/providertest"
	"github.com/mrz1836/compass/internal/service/wallet"
)

const (
	devMnemonic  = "test test test test test test test test test test test junk"
	devAddress   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherAddress = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// compassEnv lists every variable ApplyEnvironment reads.
//
//nolint:gochecknoglobals // test fixture
var compassEnv = []string{
	config.EnvHome, config.EnvDefaultChain, config.EnvMnemonic, config.EnvPassphrase,
	config.EnvKeystoreFile, config.EnvRecipient, config.EnvOutputFormat, config.EnvVerbose,
	config.EnvAutoApprove, config.EnvRPCPrefix + "1", config.EnvRPCPrefix + "137",
}

// resetFlags restores every flag in the tree to its default so one test's
// arguments never leak into the next.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(reset)
		cmd.PersistentFlags().VisitAll(reset)
	})
}

// executeCommand runs the compass command tree with args against an isolated
// environment and returns what it wrote to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeCommandEnv(t, nil, args...)
}

// executeCommandEnv is executeCommand with extra environment variables.
func executeCommandEnv(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()

	for _, name := range compassEnv {
		t.Setenv(name, "")
	}
	t.Setenv(config.EnvLogLevel, "off")
	for k, v := range env {
		t.Setenv(k, v)
	}

	resetFlags()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags()
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// writeConfig stores a config file in home built from Defaults.
func writeConfig(t *testing.T, home string, mutate func(*config.Config)) {
	t.Helper()
	c := config.Defaults()
	c.Home = home
	c.Keystore.File = filepath.Join(home, "mnemonic.age")
	c.Keystore.ScryptWorkFactor = 10
	c.Logging.File = ""
	if mutate != nil {
		mutate(c)
	}
	data, err := config.Marshal(c)
	require.NoError(t, err)
	require.NoError(t, fileutil.WriteFile(config.Path(home), data, fileutil.Options{}))
}

// withStdin feeds input to commands reading stdin.
func withStdin(t *testing.T, input string) {
	t.Helper()
	orig := stdin
	stdin = bufio.NewReader(strings.NewReader(input))
	t.Cleanup(func() { stdin = orig })
}

// withPrompts replaces the interactive prompts.
func withPrompts(t *testing.T, passphrase string, confirm bool) *int {
	t.Helper()
	origPW, origNewPW, origConfirm := promptPasswordFn, promptNewPasswordFn, promptConfirmFn
	t.Cleanup(func() {
		promptPasswordFn, promptNewPasswordFn, promptConfirmFn = origPW, origNewPW, origConfirm
	})

	asked := new(int)
	promptPasswordFn = func(string) ([]byte, error) { return []byte(passphrase), nil }
	promptNewPasswordFn = func() ([]byte, error) { return []byte(passphrase), nil }
	promptConfirmFn = func(io.Writer, string) bool {
		*asked++
		return confirm
	}
	return asked
}

// testWallet backs the CLI with a Local provider signing with the dev key
// over in-memory nodes.
type testWallet struct {
	backends   map[chain.ID]*providertest.Backend
	currencies []catalog.RawCurrency
}

func sixDecimals() *int { d := 6; return &d }
func eighteenDecimals() *int { d := 18; return &d }

func testCurrencies() []catalog.RawCurrency {
	return []catalog.RawCurrency{
		{ID: "ethereum.mainnet.native.eth", Symbol: "ETH", Address: catalog.NativePlaceholder, Decimals: eighteenDecimals(), ChainID: "1"},
		{ID: "ethereum.mainnet.usdc", Symbol: "USDC", Address: chain.USDCMainnet, Decimals: sixDecimals(), ChainID: "0x1"},
		{ID: "polygon.mainnet.native.matic", Symbol: "POL", Address: catalog.NativePlaceholder, Decimals: eighteenDecimals(), ChainID: "137"},
	}
}

func confirmingBackend() *providertest.Backend {
	return providertest.NewBackend().Handle(provider.MethodGetReceipt, func(params []json.RawMessage) (any, error) {
		var hash string
		if err := json.Unmarshal(params[0], &hash); err != nil {
			return nil, err
		}
		return map[string]any{
			"transactionHash": hash,
			"blockNumber":     "0x10",
			"status":          "0x1",
			"gasUsed":         "0x5208",
		}, nil
	})
}

func withTestWallet(t *testing.T) *testWallet {
	t.Helper()

	tw := &testWallet{
		backends: map[chain.ID]*providertest.Backend{
			chain.Ethereum: confirmingBackend(),
			chain.Polygon:  confirmingBackend(),
		},
		currencies: testCurrencies(),
	}

	orig := newWalletService
	t.Cleanup(func() { newWalletService = orig })
	newWalletService = func(cc *CommandContext) (*wallet.Service, error) {
		key, err := keystore.FromMnemonic(devMnemonic, "", 0, 0)
		if err != nil {
			return nil, err
		}

		backends := make(map[chain.ID]provider.Backend, len(tw.backends))
		for id, b := range tw.backends {
			backends[id] = b
		}
		var approve provider.ApproveFunc
		if !cc.Config.Provider.AutoApprove {
			approve = approvalPrompt(cc.Out)
		}

		p, err := provider.NewLocal(provider.LocalOptions{
			Signer:       key,
			Backends:     backends,
			DefaultChain: cc.Config.DefaultChain(),
			Descriptor:   provider.Descriptor{Alias: "dev", AvailableCurrencies: tw.currencies},
			Approve:      approve,
		})
		if err != nil {
			key.Destroy()
			return nil, err
		}

		reg, err := cc.Config.Registry()
		if err != nil {
			key.Destroy()
			return nil, err
		}
		settings := wallet.Settings{PreferredChain: cc.Config.DefaultChain()}
		if addr, ok, err := cc.Config.RecipientAddress(); err == nil && ok {
			settings.Recipient = &addr
		}

		return wallet.NewService(&wallet.Config{
			Provider:       p,
			Registry:       reg,
			Settings:       settings,
			ReferenceChain: cc.Config.ReferenceChain(),
			PollInterval:   time.Millisecond,
			ConfirmTimeout: time.Second,
			Logger:         cc.Logger.Component("wallet"),
			Closer:         key.Destroy,
		}), nil
	}
	return tw
}

// decodeJSON unmarshals command output into a generic map.
func decodeJSON(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), "output: %s", out)
	return m
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	return string(data)
}
