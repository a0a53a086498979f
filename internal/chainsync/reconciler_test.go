package chainsync_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chainsync"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/provider/providertest"
	"github.com/mrz1836/compass/internal/session"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

const account = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func newReconciler(p provider.Provider) (*chainsync.Reconciler, *metrics.Metrics) {
	m := &metrics.Metrics{}
	return chainsync.New(p, chainsync.WithMetrics(m)), m
}

func TestEnsureChain_AlreadyAligned(t *testing.T) {
	t.Parallel()

	p := providertest.New(chain.Ethereum, account)
	r, m := newReconciler(p)

	for i := 0; i < 2; i++ {
		out, err := r.EnsureChain(context.Background(), chain.Ethereum)
		require.NoError(t, err)
		assert.False(t, out.Switched)
		assert.Equal(t, chain.Ethereum, out.From)
	}

	assert.Equal(t, 0, p.Count(provider.MethodSwitchChain))
	assert.Equal(t, 2, p.Count(provider.MethodChainID), "the chain is re-queried on every call")
	assert.Equal(t, int64(0), m.SwitchRequests())
}

func TestEnsureChain_DecimalProviderReply(t *testing.T) {
	t.Parallel()

	p := providertest.New(chain.Polygon, account).Handle(provider.MethodChainID, providertest.Result("137"))
	r, _ := newReconciler(p)

	out, err := r.EnsureChain(context.Background(), chain.Polygon)
	require.NoError(t, err)
	assert.False(t, out.Switched)
	assert.Equal(t, 0, p.Count(provider.MethodSwitchChain))
}

func TestEnsureChain_SwitchesOnce(t *testing.T) {
	t.Parallel()

	p := providertest.New(chain.Ethereum, account)
	r, m := newReconciler(p)

	out, err := r.EnsureChain(context.Background(), chain.Polygon)
	require.NoError(t, err)
	assert.Equal(t, chainsync.Outcome{From: chain.Ethereum, To: chain.Polygon, Switched: true}, out)

	switches := p.CallsTo(provider.MethodSwitchChain)
	require.Len(t, switches, 1)
	require.Len(t, switches[0].Params, 1)

	var param provider.SwitchChainParam
	require.NoError(t, json.Unmarshal(switches[0].Params[0], &param))
	assert.Equal(t, "0x89", param.ChainID)

	assert.Equal(t, []string{
		provider.MethodChainID,
		provider.MethodSwitchChain,
		provider.MethodChainID,
	}, p.Methods())
	assert.Equal(t, int64(1), m.SwitchRequests())
}

func TestEnsureChain_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setup          func() *providertest.Provider
		wantCode       string
		wantSuggestion bool
		wantSwitches   int
	}{
		{
			name: "user rejects switch",
			setup: func() *providertest.Provider {
				return providertest.New(chain.Ethereum, account).Handle(provider.MethodSwitchChain, providertest.Reject())
			},
			wantCode:       "4001",
			wantSuggestion: true,
			wantSwitches:   1,
		},
		{
			name: "unrecognized chain",
			setup: func() *providertest.Provider {
				return providertest.New(chain.Ethereum, account).Handle(provider.MethodSwitchChain,
					providertest.Fail(provider.CodeUnrecognizedChain, "Unrecognized chain ID"))
			},
			wantCode:       "4902",
			wantSuggestion: true,
			wantSwitches:   1,
		},
		{
			name: "switch silently ignored",
			setup: func() *providertest.Provider {
				return providertest.New(chain.Ethereum, account).IgnoreSwitch()
			},
			wantSwitches: 1,
		},
		{
			name: "chain query fails",
			setup: func() *providertest.Provider {
				return providertest.New(chain.Ethereum, account).Handle(provider.MethodChainID,
					providertest.Fail(provider.CodeDisconnected, "disconnected"))
			},
			wantCode:     "4900",
			wantSwitches: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := tc.setup()
			r, m := newReconciler(p)

			_, err := r.EnsureChain(context.Background(), chain.Polygon)
			require.ErrorIs(t, err, compasserr.ErrChainSwitch)

			var ce *compasserr.CompassError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "0x89", ce.Details["target"])
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, ce.Details["provider_code"])
			}
			assert.Equal(t, tc.wantSuggestion, ce.Suggestion != "")
			assert.Equal(t, tc.wantSwitches, p.Count(provider.MethodSwitchChain), "switch is never retried")
			assert.Equal(t, int64(1), m.Snapshot().SwitchFailures)
		})
	}
}

func TestEnsureChain_UnparsableProviderChain(t *testing.T) {
	t.Parallel()

	p := providertest.New(chain.Ethereum, account)
	calls := 0
	p.Handle(provider.MethodChainID, func([]json.RawMessage) (any, error) {
		calls++
		if calls == 1 {
			return "mainnet", nil
		}
		return chain.Polygon.Wire(), nil
	})
	r, _ := newReconciler(p)

	out, err := r.EnsureChain(context.Background(), chain.Polygon)
	require.NoError(t, err)
	assert.True(t, out.Switched)
}

func TestAlign_CommitsObservedChain(t *testing.T) {
	t.Parallel()

	p := providertest.New(chain.Ethereum, account)
	r, _ := newReconciler(p)
	holder := session.NewHolder(&session.Session{ObservedChain: chain.Ethereum})

	sess, err := r.Align(context.Background(), holder, chain.Polygon)
	require.NoError(t, err)
	assert.Equal(t, chain.Polygon, sess.ObservedChain)
	assert.Equal(t, chain.Polygon, holder.Current().ObservedChain)
}

func TestAlign_FailureLeavesSession(t *testing.T) {
	t.Parallel()

	p := providertest.New(chain.Ethereum, account).Handle(provider.MethodSwitchChain, providertest.Reject())
	r, _ := newReconciler(p)
	holder := session.NewHolder(&session.Session{ObservedChain: chain.Ethereum})

	sess, err := r.Align(context.Background(), holder, chain.Polygon)
	require.ErrorIs(t, err, compasserr.ErrChainSwitch)
	assert.Equal(t, chain.Ethereum, sess.ObservedChain)
}

func TestAlign_StaleResultDiscarded(t *testing.T) {
	t.Parallel()

	p := providertest.New(chain.Ethereum, account)
	entered := make(chan struct{})
	release := make(chan struct{})
	p.Handle(provider.MethodSwitchChain, func([]json.RawMessage) (any, error) {
		close(entered)
		<-release
		p.SetChain(chain.Polygon)
		return nil, nil
	})

	r, m := newReconciler(p)
	holder := session.NewHolder(&session.Session{ObservedChain: chain.Ethereum})

	type result struct {
		sess *session.Session
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		s, err := r.Align(context.Background(), holder, chain.Polygon)
		slow <- result{s, err}
	}()

	<-entered
	// A newer selection back to Ethereum completes while the switch to
	// Polygon is still pending.
	fast, err := r.Align(context.Background(), holder, chain.Ethereum)
	require.NoError(t, err)
	assert.Equal(t, chain.Ethereum, fast.ObservedChain)

	close(release)
	got := <-slow
	require.ErrorIs(t, got.err, compasserr.ErrStaleReconciliation)
	assert.Equal(t, chain.Ethereum, got.sess.ObservedChain)
	assert.Equal(t, chain.Ethereum, holder.Current().ObservedChain)
	assert.Equal(t, int64(1), m.Snapshot().StaleDiscarded)
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "query", chainsync.StateQuery.String())
	assert.Equal(t, "switch-requested", chainsync.StateSwitchRequested.String())
	assert.Equal(t, "unknown", chainsync.State(99).String())
}
