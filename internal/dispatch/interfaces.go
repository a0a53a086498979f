// Package dispatch builds asset transfers, submits them through the wallet
// provider on the correct chain, and waits for one confirmation.
package dispatch

import (
	"context"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chainsync"
)

// ChainEnsurer aligns the provider's active chain with a target chain.
type ChainEnsurer interface {
	EnsureChain(ctx context.Context, target chain.ID) (chainsync.Outcome, error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}
