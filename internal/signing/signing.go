// Package signing requests message and EIP-712 typed-data signatures from the
// wallet provider and verifies them locally before returning them.
package signing

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chainsync"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/session"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// ChainBinding controls whether typed-data domains are bound to a chain.
type ChainBinding int

const (
	// ChainBindingRequire fills a missing domain chainId with the session's
	// observed chain, so signatures cannot be replayed across chains.
	ChainBindingRequire ChainBinding = iota
	// ChainBindingOptional leaves a missing domain chainId absent.
	ChainBindingOptional
)

// ParseChainBinding parses "require" or "optional".
func ParseChainBinding(s string) (ChainBinding, error) {
	switch s {
	case "", "require":
		return ChainBindingRequire, nil
	case "optional":
		return ChainBindingOptional, nil
	default:
		return 0, compasserr.WithDetails(compasserr.ErrConfigInvalid, map[string]string{
			"chain_binding": s,
			"reason":        "must be require or optional",
		})
	}
}

func (b ChainBinding) String() string {
	if b == ChainBindingOptional {
		return "optional"
	}
	return "require"
}

// ChainEnsurer aligns the provider's active chain with a target chain.
type ChainEnsurer interface {
	EnsureChain(ctx context.Context, target chain.ID) (chainsync.Outcome, error)
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options configures a Signer.
type Options struct {
	Binding ChainBinding
	Logger  LogWriter
	Metrics *metrics.Metrics
}

// Signer requests signatures from a provider.
type Signer struct {
	provider provider.Provider
	ensurer  ChainEnsurer
	binding  ChainBinding
	logger   LogWriter
	metrics  *metrics.Metrics
}

// New creates a Signer.
func New(p provider.Provider, ensurer ChainEnsurer, opts Options) *Signer {
	s := &Signer{
		provider: p,
		ensurer:  ensurer,
		binding:  opts.Binding,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Global
	}
	return s
}

// MessageSignature is a verified personal_sign signature.
type MessageSignature struct {
	Message   string         `json:"message"`
	Signature string         `json:"signature"`
	Signer    common.Address `json:"signer"`
}

// SignMessage asks the provider to personal_sign msg with the session's
// account and checks that the signature recovers to that account.
func (s *Signer) SignMessage(ctx context.Context, sess *session.Session, msg []byte) (res *MessageSignature, err error) {
	defer func() { s.metrics.RecordSignature(err) }()

	if sess == nil {
		return nil, compasserr.ErrConnection
	}

	raw, err := s.provider.Request(ctx, provider.MethodPersonalSign, hexutil.Encode(msg), sess.Address.Hex())
	if err != nil {
		return nil, signingRejected(provider.MethodPersonalSign, err)
	}
	sig, err := decodeSignature(raw)
	if err != nil {
		return nil, err
	}

	recovered, err := RecoverMessageSigner(msg, sig)
	if err != nil {
		return nil, err
	}
	if recovered != sess.Address {
		return nil, mismatch(sess.Address, recovered)
	}

	s.logger.Debug("message signature verified for %s", recovered.Hex())
	return &MessageSignature{
		Message:   string(msg),
		Signature: hexutil.Encode(sig),
		Signer:    recovered,
	}, nil
}

func decodeSignature(raw json.RawMessage) ([]byte, error) {
	var sigHex string
	if err := json.Unmarshal(raw, &sigHex); err != nil {
		return nil, compasserr.WithCause(compasserr.ErrInvalidSignature, err)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, compasserr.WithCause(compasserr.ErrInvalidSignature, err)
	}
	if len(sig) != signatureLength {
		return nil, compasserr.WithDetails(compasserr.ErrInvalidSignature, map[string]string{
			"length": strconv.Itoa(len(sig)),
		})
	}
	return sig, nil
}

func signingRejected(method string, err error) error {
	details := map[string]string{
		"method": method,
		"reason": provider.ErrorMessage(err),
	}
	if code, ok := provider.ErrorCode(err); ok {
		details["provider_code"] = strconv.Itoa(code)
	}
	if provider.IsUserRejected(err) {
		details["reason"] = "user declined the signature request"
	}
	return compasserr.WithDetails(compasserr.WithCause(compasserr.ErrSigningRejected, err), details)
}

func mismatch(want, got common.Address) error {
	return compasserr.WithDetails(compasserr.ErrSignatureMismatch, map[string]string{
		"expected":  want.Hex(),
		"recovered": got.Hex(),
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
