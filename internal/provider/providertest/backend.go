package providertest

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/compass/internal/chain/rpc"
	"github.com/mrz1836/compass/internal/provider"
)

// Backend is an in-memory provider.Backend. Raw transactions are decoded and
// kept so tests can inspect what was signed.
type Backend struct {
	mu       sync.Mutex
	Nonce    uint64
	Price    *big.Int
	Gas      uint64
	SendErr  error
	handlers map[string]Handler
	sent     []*types.Transaction
	calls    []string
}

var _ provider.Backend = (*Backend)(nil)

// NewBackend creates a backend with fixed nonce, gas price, and gas estimate.
func NewBackend() *Backend {
	return &Backend{
		Price:    big.NewInt(1_000_000_000),
		Gas:      21000,
		handlers: make(map[string]Handler),
	}
}

// Handle scripts the answer for a forwarded method.
func (b *Backend) Handle(method string, h Handler) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = h
	return b
}

// Call implements provider.Backend.
func (b *Backend) Call(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	encoded := make([]json.RawMessage, len(params))
	for i, v := range params {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		encoded[i] = raw
	}

	b.mu.Lock()
	b.calls = append(b.calls, method)
	h, ok := b.handlers[method]
	b.mu.Unlock()

	if !ok {
		return nil, &rpc.Error{Code: -32601, Message: "the method " + method + " does not exist/is not available"}
	}
	v, err := h(encoded)
	if err != nil {
		return nil, err
	}
	return toRaw(v)
}

// GetTransactionCount implements provider.Backend.
func (b *Backend) GetTransactionCount(context.Context, common.Address, string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Nonce, nil
}

// GasPrice implements provider.Backend.
func (b *Backend) GasPrice(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.Price), nil
}

// EstimateGas implements provider.Backend.
func (b *Backend) EstimateGas(context.Context, rpc.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Gas, nil
}

// SendRawTransaction implements provider.Backend.
func (b *Backend) SendRawTransaction(_ context.Context, signedTx []byte) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return common.Hash{}, b.SendErr
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return common.Hash{}, err
	}
	b.sent = append(b.sent, tx)
	b.Nonce++
	return tx.Hash(), nil
}

// Sent returns the transactions broadcast so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Transaction, len(b.sent))
	copy(out, b.sent)
	return out
}

// Forwarded returns the forwarded method names in order.
func (b *Backend) Forwarded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}
