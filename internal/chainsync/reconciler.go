// Package chainsync keeps the wallet provider's active chain aligned with the
// chain an operation targets.
package chainsync

import (
	"context"
	"strconv"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/session"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// State is a step of one reconciliation.
type State int

// Reconciliation states.
const (
	StateQuery State = iota
	StateCompare
	StateSwitchRequested
	StateAligned
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQuery:
		return "query"
	case StateCompare:
		return "compare"
	case StateSwitchRequested:
		return "switch-requested"
	case StateAligned:
		return "aligned"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Outcome describes a successful reconciliation.
type Outcome struct {
	From     chain.ID `json:"from"`
	To       chain.ID `json:"to"`
	Switched bool     `json:"switched"`
}

// Reconciler aligns a provider's active chain with a target chain.
type Reconciler struct {
	provider provider.Provider
	logger   LogWriter
	metrics  *metrics.Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(l LogWriter) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New creates a Reconciler for p.
func New(p provider.Provider, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider: p,
		logger:   nopLogger{},
		metrics:  metrics.Global,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureChain makes the provider's active chain equal target. It asks the
// provider for its chain, and when that differs issues exactly one
// wallet_switchEthereumChain and confirms the result with a second query.
// Nothing is cached between calls and nothing is retried.
func (r *Reconciler) EnsureChain(ctx context.Context, target chain.ID) (out Outcome, err error) {
	out.To = target
	defer func() { r.metrics.RecordReconciliation(out.Switched, err) }()

	state := StateQuery
	current, currentWire, err := provider.RequestChainID(ctx, r.provider)
	if err != nil && currentWire == "" {
		return out, r.fail(state, "", target, err)
	}
	out.From = current

	state = StateCompare
	r.logger.Debug("%s: provider %q, target %s", state, currentWire, target.Wire())
	if chain.EqualWire(currentWire, target.Wire()) {
		r.logger.Debug("chain %s already active", target.Wire())
		return out, nil
	}

	state = StateSwitchRequested
	out.Switched = true
	r.logger.Debug("requesting switch %s -> %s", currentWire, target.Wire())
	if _, err = r.provider.Request(ctx, provider.MethodSwitchChain, provider.SwitchChainParam{ChainID: target.Wire()}); err != nil {
		return out, r.fail(state, currentWire, target, err)
	}

	confirmed, confirmedWire, err := provider.RequestChainID(ctx, r.provider)
	if err != nil {
		return out, r.fail(state, currentWire, target, err)
	}
	if confirmed != target {
		err = compasserr.WithDetails(compasserr.ErrChainSwitch, map[string]string{
			"current": currentWire,
			"target":  target.Wire(),
			"reason":  "provider still reports " + confirmedWire,
			"state":   state.String(),
		})
		r.logger.Error("chain switch to %s not applied: provider reports %s", target.Wire(), confirmedWire)
		return out, err
	}

	r.logger.Debug("chain %s aligned", target.Wire())
	return out, nil
}

func (r *Reconciler) fail(state State, currentWire string, target chain.ID, cause error) error {
	details := map[string]string{
		"target": target.Wire(),
		"reason": provider.ErrorMessage(cause),
		"state":  state.String(),
	}
	if currentWire != "" {
		details["current"] = currentWire
	}

	ce := &compasserr.CompassError{
		Code:     compasserr.ErrChainSwitch.Code,
		Message:  compasserr.ErrChainSwitch.Message,
		Details:  details,
		Cause:    cause,
		ExitCode: compasserr.ErrChainSwitch.ExitCode,
	}

	if code, ok := provider.ErrorCode(cause); ok {
		details["provider_code"] = strconv.Itoa(code)
		switch code {
		case provider.CodeUserRejected:
			ce.Suggestion = "approve the network switch in your wallet"
		case provider.CodeUnrecognizedChain:
			ce.Suggestion = "add " + target.Name() + " (" + target.String() + ") to your wallet or configure an RPC endpoint for it"
		}
	}

	r.logger.Error("chain reconciliation failed in %s: %v", state, cause)
	return ce
}

// Align runs EnsureChain under a new holder generation and records the
// observed chain if that generation is still the newest. A superseded
// alignment returns the newer session together with ErrStaleReconciliation.
func (r *Reconciler) Align(ctx context.Context, holder *session.Holder, target chain.ID) (*session.Session, error) {
	gen := holder.Begin()

	out, err := r.EnsureChain(ctx, target)
	if err != nil {
		return holder.Current(), err
	}

	sess, ok := holder.Commit(gen, func(s session.Session) session.Session {
		return s.WithObservedChain(out.To)
	})
	if !ok {
		r.metrics.RecordStaleReconciliation()
		r.logger.Debug("discarding stale alignment to %s (generation %d, latest %d)", target.Wire(), gen, holder.Latest())
		return sess, compasserr.WithDetails(compasserr.ErrStaleReconciliation, map[string]string{
			"target":     target.Wire(),
			"generation": strconv.FormatUint(gen, 10),
		})
	}
	return sess, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
