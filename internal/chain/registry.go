package chain

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Well-known contract addresses used by the default registry.
const (
	// USDCMainnet is the USDC contract address on Ethereum mainnet.
	USDCMainnet = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

	// USDCWETHPairMainnet is the Uniswap V2 USDC/WETH pair on Ethereum mainnet.
	USDCWETHPairMainnet = "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"

	// USDTPolygon is the USDT contract address on Polygon PoS.
	USDTPolygon = "0xc2132D05D31c914a87C6611C10748AEb04B58e8F"
)

// KnownContract is a well-established token (and optionally a liquidity pair)
// on one chain, used by read-only queries and the default token transfer.
type KnownContract struct {
	Label    string
	Token    common.Address
	Decimals uint8
	Pair     *common.Address
}

// HasPair reports whether a liquidity pair is registered.
func (k KnownContract) HasPair() bool {
	return k.Pair != nil
}

// Registry maps chains to their known contracts. It is immutable after
// construction and safe for concurrent reads.
type Registry struct {
	entries map[ID]KnownContract
}

// NewRegistry creates a registry from the given entries. The map is copied.
func NewRegistry(entries map[ID]KnownContract) *Registry {
	r := &Registry{entries: make(map[ID]KnownContract, len(entries))}
	for id, k := range entries {
		r.entries[id] = k
	}
	return r
}

// DefaultRegistry returns the built-in registry: USDC plus the USDC/WETH
// Uniswap V2 pair on Ethereum, and USDT on Polygon.
func DefaultRegistry() *Registry {
	pair := common.HexToAddress(USDCWETHPairMainnet)
	return NewRegistry(map[ID]KnownContract{
		Ethereum: {
			Label:    "USDC",
			Token:    common.HexToAddress(USDCMainnet),
			Decimals: 6,
			Pair:     &pair,
		},
		Polygon: {
			Label:    "USDT",
			Token:    common.HexToAddress(USDTPolygon),
			Decimals: 6,
		},
	})
}

// Lookup returns the known contract for a chain. A missing entry is an
// expected state, not an error.
func (r *Registry) Lookup(id ID) (KnownContract, bool) {
	if r == nil {
		return KnownContract{}, false
	}
	k, ok := r.entries[id]
	return k, ok
}

// Chains returns the registered chain IDs in ascending order.
func (r *Registry) Chains() []ID {
	if r == nil {
		return nil
	}
	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
