package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/config"
	"github.com/mrz1836/compass/internal/output"
	"github.com/mrz1836/compass/internal/service/wallet"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *config.Logger
	Formatter *output.Formatter
	// Out receives human-facing notices (stderr).
	Out io.Writer
}

// GetCmdContext returns the dependencies initialized for cmd.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Config:    cfg,
		Logger:    logger,
		Formatter: formatter,
		Out:       cmd.ErrOrStderr(),
	}
}

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, d)
}

// newWalletService builds the service for a command. Tests replace it.
//
//nolint:gochecknoglobals // test seam
var newWalletService = func(cc *CommandContext) (*wallet.Service, error) {
	return wallet.NewFromConfig(cc.Config, wallet.LoadOptions{
		Passphrase: func() (string, error) {
			b, err := promptPasswordFn("Mnemonic file passphrase: ")
			if err != nil {
				return "", err
			}
			defer zeroBytes(b)
			return string(b), nil
		},
		Approve: approvalPrompt(cc.Out),
		Logger:  cc.Logger,
	})
}

// connected is a bootstrapped wallet session bound to a command deadline.
type connected struct {
	ctx       context.Context
	svc       *wallet.Service
	bootstrap *wallet.BootstrapResult
	cancel    context.CancelFunc
}

func (c *connected) Close() {
	c.cancel()
	c.svc.Close()
}

// connect loads the wallet service and bootstraps a session. The caller must
// Close the result.
func connect(cmd *cobra.Command) (*connected, error) {
	cc := GetCmdContext(cmd)

	svc, err := newWalletService(cc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := contextWithTimeout(cmd, timeout)
	res, err := svc.Bootstrap(ctx)
	if err != nil {
		cancel()
		svc.Close()
		return nil, err
	}
	for _, dropped := range res.Dropped {
		output.Warn(cc.Out, "ignoring catalog entry: %s", dropped)
	}
	cc.Logger.Debug("session %s on chain %s", res.Session.Address.Hex(), res.Session.ObservedChain)

	return &connected{ctx: ctx, svc: svc, bootstrap: res, cancel: cancel}, nil
}

// selectIfRequested switches the selection before an operation.
func (c *connected) selectIfRequested(cmd *cobra.Command, id string) error {
	if id == "" {
		return nil
	}
	asset, err := c.svc.Select(c.ctx, id)
	if err != nil {
		return err
	}
	GetCmdContext(cmd).Logger.Debug("selected %s", asset.ID)
	return nil
}
