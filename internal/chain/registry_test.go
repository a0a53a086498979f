package chain_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/chain"
)

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()
	reg := chain.DefaultRegistry()

	eth, ok := reg.Lookup(chain.Ethereum)
	require.True(t, ok)
	assert.Equal(t, "USDC", eth.Label)
	assert.Equal(t, common.HexToAddress(chain.USDCMainnet), eth.Token)
	assert.Equal(t, uint8(6), eth.Decimals)
	require.True(t, eth.HasPair())
	assert.Equal(t, common.HexToAddress(chain.USDCWETHPairMainnet), *eth.Pair)

	poly, ok := reg.Lookup(chain.Polygon)
	require.True(t, ok)
	assert.Equal(t, "USDT", poly.Label)
	assert.False(t, poly.HasPair())

	assert.Equal(t, []chain.ID{chain.Ethereum, chain.Polygon}, reg.Chains())
}

func TestRegistry_MissingEntryIsNotAnError(t *testing.T) {
	t.Parallel()
	_, ok := chain.DefaultRegistry().Lookup(chain.BSC)
	assert.False(t, ok)

	var nilReg *chain.Registry
	_, ok = nilReg.Lookup(chain.Ethereum)
	assert.False(t, ok)
	assert.Empty(t, nilReg.Chains())
}

func TestNewRegistry_CopiesEntries(t *testing.T) {
	t.Parallel()
	entries := map[chain.ID]chain.KnownContract{
		chain.Base: {Label: "USDC", Token: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6},
	}
	reg := chain.NewRegistry(entries)
	delete(entries, chain.Base)

	_, ok := reg.Lookup(chain.Base)
	assert.True(t, ok)
}
