// Package cli implements the Compass command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/config"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/output"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// defaultTimeout bounds a whole command, including confirmation waits.
const defaultTimeout = 5 * time.Minute

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	assumeYes    bool
	timeout      time.Duration

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter

	buildInfo BuildInfo
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "compass",
	Short: "A chain-synchronized wallet session client",
	Long: `Compass connects to a wallet provider, keeps an asset catalog in sync with
what the provider advertises, and makes sure every signature, transfer and
contract read runs on the chain it belongs to.`,
	Example: `  compass connect
  compass assets --select polygon.mainnet.native.matic
  compass send native --amount 0.01 --to 0x...
  compass read pool`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	walkCommands(rootCmd, enrichParentLong)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(rootCmd.ErrOrStderr(), err, format)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return compasserr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	switch {
	case errors.Is(err, compasserr.ErrConfigNotFound):
		cfg = config.Defaults()
	case err != nil:
		return err
	}
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	// Command-line flags win over the environment.
	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if assumeYes {
		cfg.Provider.AutoApprove = true
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		logger = config.NullLogger()
	}

	w := cmd.OutOrStdout()
	formatter = output.NewFormatter(output.DetectFormat(w, output.ParseFormat(cfg.Output.DefaultFormat)), w)

	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		if snap := metrics.Global.Snapshot(); snap.RPCCallsTotal > 0 {
			logger.Debug("rpc calls=%d errors=%d switches=%d dispatched=%d signatures=%d queries=%d",
				snap.RPCCallsTotal, snap.RPCErrorsTotal, snap.SwitchRequests,
				snap.TxDispatched, snap.Signatures, snap.Queries)
		}
		_ = logger.Close()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "compass data directory (default: ~/.compass)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "approve signing requests without prompting")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "overall deadline for provider requests")

	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "operations", Title: "Operation Commands:"},
		&cobra.Group{ID: "config", Title: "Configuration Commands:"},
	)
}
