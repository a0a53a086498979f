// Package providertest provides scripted in-memory wallet providers and chain
// backends for tests.
package providertest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/provider"
)

// Call is one recorded request.
type Call struct {
	Method string
	Params []json.RawMessage
}

// Handler answers a request. The returned value is JSON-encoded unless it is
// already a json.RawMessage.
type Handler func(params []json.RawMessage) (any, error)

// Provider is a scripted provider. Without overrides it answers
// eth_requestAccounts, eth_accounts, eth_chainId and
// wallet_switchEthereumChain from its own state.
type Provider struct {
	mu            sync.Mutex
	chain         chain.ID
	accounts      []string
	descriptor    provider.Descriptor
	descriptorErr error
	ignoreSwitch  bool
	handlers      map[string]Handler
	calls         []Call
}

var _ provider.Provider = (*Provider)(nil)

// New creates a provider on the given chain exposing the given accounts.
func New(id chain.ID, accounts ...string) *Provider {
	return &Provider{
		chain:    id,
		accounts: accounts,
		handlers: make(map[string]Handler),
	}
}

// Handle overrides the answer for method.
func (p *Provider) Handle(method string, h Handler) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method] = h
	return p
}

// SetChain changes the active chain, as a user switching in the wallet would.
func (p *Provider) SetChain(id chain.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chain = id
}

// Chain returns the active chain.
func (p *Provider) Chain() chain.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chain
}

// IgnoreSwitch makes wallet_switchEthereumChain succeed without changing chains.
func (p *Provider) IgnoreSwitch() *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignoreSwitch = true
	return p
}

// SetDescriptor sets the descriptor returned by Descriptor.
func (p *Provider) SetDescriptor(d provider.Descriptor, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descriptor = d
	p.descriptorErr = err
	return p
}

// Descriptor implements provider.Provider.
func (p *Provider) Descriptor(_ context.Context) (*provider.Descriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.descriptorErr != nil {
		return nil, p.descriptorErr
	}
	d := p.descriptor
	return &d, nil
}

// Request implements provider.Provider.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoded := make([]json.RawMessage, len(params))
	for i, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		encoded[i] = b
	}

	p.mu.Lock()
	p.calls = append(p.calls, Call{Method: method, Params: encoded})
	h, ok := p.handlers[method]
	p.mu.Unlock()

	if ok {
		v, err := h(encoded)
		if err != nil {
			return nil, err
		}
		return toRaw(v)
	}
	return p.builtin(method, encoded)
}

func (p *Provider) builtin(method string, params []json.RawMessage) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch method {
	case provider.MethodRequestAccounts, provider.MethodAccounts:
		accounts := p.accounts
		if accounts == nil {
			accounts = []string{}
		}
		return json.Marshal(accounts)
	case provider.MethodChainID:
		return json.Marshal(p.chain.Wire())
	case provider.MethodSwitchChain:
		if len(params) == 0 {
			return nil, provider.NewRPCError(provider.CodeInvalidParams, "missing parameter 0")
		}
		var sp provider.SwitchChainParam
		if err := json.Unmarshal(params[0], &sp); err != nil {
			return nil, provider.NewRPCError(provider.CodeInvalidParams, "%v", err)
		}
		id, err := chain.ParseID(sp.ChainID)
		if err != nil {
			return nil, provider.NewRPCError(provider.CodeInvalidParams, "%v", err)
		}
		if !p.ignoreSwitch {
			p.chain = id
		}
		return json.RawMessage(`null`), nil
	default:
		return nil, provider.NewRPCError(provider.CodeUnsupportedMethod, "method %s not scripted", method)
	}
}

// Calls returns every recorded request.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallsTo returns the recorded requests for one method.
func (p *Provider) CallsTo(method string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times method was requested.
func (p *Provider) Count(method string) int {
	return len(p.CallsTo(method))
}

// Methods returns the recorded method names in order.
func (p *Provider) Methods() []string {
	calls := p.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Reject returns a handler that fails with EIP-1193 code 4001.
func Reject() Handler {
	return Fail(provider.CodeUserRejected, "User rejected the request.")
}

// Fail returns a handler that fails with the given provider error.
func Fail(code int, message string) Handler {
	return func([]json.RawMessage) (any, error) {
		return nil, provider.NewRPCError(code, "%s", message)
	}
}

// Result returns a handler that always answers v.
func Result(v any) Handler {
	return func([]json.RawMessage) (any, error) {
		return v, nil
	}
}

func toRaw(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
