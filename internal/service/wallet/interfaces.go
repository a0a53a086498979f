// Package wallet orchestrates a Compass session: it connects, builds the
// asset catalog, aligns the provider with the selected asset's chain, and
// runs signing, transfer and query operations against that session.
package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chainsync"
	"github.com/mrz1836/compass/internal/dispatch"
	"github.com/mrz1836/compass/internal/query"
	"github.com/mrz1836/compass/internal/session"
	"github.com/mrz1836/compass/internal/signing"
)

// Reconciler aligns the provider's chain.
type Reconciler interface {
	EnsureChain(ctx context.Context, target chain.ID) (chainsync.Outcome, error)
	Align(ctx context.Context, holder *session.Holder, target chain.ID) (*session.Session, error)
}

// Dispatcher submits transfers.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *session.Session, shape dispatch.Shape) (*dispatch.Result, error)
}

// Signer requests verified signatures.
type Signer interface {
	SignMessage(ctx context.Context, sess *session.Session, msg []byte) (*signing.MessageSignature, error)
	SignTypedData(ctx context.Context, sess *session.Session, td apitypes.TypedData) (*signing.TypedDataSignature, error)
}

// Reader runs read-only contract queries.
type Reader interface {
	TokenInfo(ctx context.Context, sess *session.Session) (*query.TokenInfo, error)
	PoolReserves(ctx context.Context) (*query.PoolReserves, error)
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

var (
	_ Reconciler = (*chainsync.Reconciler)(nil)
	_ Dispatcher = (*dispatch.Dispatcher)(nil)
	_ Signer     = (*signing.Signer)(nil)
	_ Reader     = (*query.Reader)(nil)
)
