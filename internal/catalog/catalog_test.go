package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

func intPtr(n int) *int { return &n }

func usdcRaw(chainID catalog.ChainRef) catalog.RawCurrency {
	return catalog.RawCurrency{
		ID:       "ethereum.mainnet.erc20.usdc",
		Symbol:   "USDC",
		Address:  chain.USDCMainnet,
		Decimals: intPtr(6),
		ChainID:  chainID,
	}
}

func TestBuild_PreservesOrderAndParsesChainIDs(t *testing.T) {
	t.Parallel()

	raw := append(catalog.DefaultCurrencies(), usdcRaw("0x1"))
	c, problems := catalog.Build(raw)
	require.Empty(t, problems)
	require.Equal(t, 3, c.Len())

	assets := c.Assets()
	assert.Equal(t, "ETH", assets[0].Symbol)
	assert.Equal(t, chain.Ethereum, assets[0].ChainID)
	assert.True(t, assets[0].IsNative())

	assert.Equal(t, "POL", assets[1].Symbol)
	assert.Equal(t, chain.Polygon, assets[1].ChainID)
	assert.True(t, assets[1].IsNative())

	assert.Equal(t, "USDC", assets[2].Symbol)
	assert.Equal(t, chain.Ethereum, assets[2].ChainID)
	assert.Equal(t, uint8(6), assets[2].Decimals)
	assert.False(t, assets[2].IsNative())
}

func TestBuild_DropsMalformedEntries(t *testing.T) {
	t.Parallel()

	good := usdcRaw("1")
	raw := []catalog.RawCurrency{
		{ID: "", Symbol: "X", ChainID: "1"},
		{ID: "no.symbol", ChainID: "1"},
		{ID: "bad.chain", Symbol: "X", ChainID: "not-a-chain"},
		{ID: "unprefixed.hex.chain", Symbol: "X", ChainID: "cafe"},
		{ID: "bad.address", Symbol: "X", Address: "0x1234", Decimals: intPtr(6), ChainID: "1"},
		{ID: "token.no.decimals", Symbol: "X", Address: chain.USDTPolygon, ChainID: "137"},
		{ID: "too.many.decimals", Symbol: "X", Decimals: intPtr(99), ChainID: "1"},
		good,
		good, // duplicate id
	}

	c, problems := catalog.Build(raw)
	require.Equal(t, 1, c.Len())
	require.Len(t, problems, 8)
	for _, p := range problems {
		require.ErrorIs(t, p, compasserr.ErrCatalogEntryMalformed)
	}
	assert.Contains(t, problems[3].Error(), "unprefixed.hex.chain")
	assert.Contains(t, problems[7].Error(), "duplicate id")
	assert.Contains(t, problems[7].Error(), "position: 8")
}

func TestBuild_NativeDecimalsDefault(t *testing.T) {
	t.Parallel()

	c, problems := catalog.Build([]catalog.RawCurrency{
		{ID: "base.native.eth", Symbol: "ETH", Address: catalog.NativePlaceholder, ChainID: "0x2105"},
	})
	require.Empty(t, problems)
	a, err := c.Find("base.native.eth")
	require.NoError(t, err)
	assert.Equal(t, uint8(18), a.Decimals)
	assert.Equal(t, chain.Base, a.ChainID)
}

func TestRawCurrency_ChainIDEncodings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
		want chain.ID
	}{
		{"hex string", `{"id":"a","symbol":"A","chainId":"0x89","decimals":18}`, chain.Polygon},
		{"decimal string", `{"id":"a","symbol":"A","chainId":"137","decimals":18}`, chain.Polygon},
		{"number", `{"id":"a","symbol":"A","chainId":137,"decimals":18}`, chain.Polygon},
		{"uppercase hex", `{"id":"a","symbol":"A","chainId":"0X1","decimals":18}`, chain.Ethereum},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var rc catalog.RawCurrency
			require.NoError(t, json.Unmarshal([]byte(tc.json), &rc))

			c, problems := catalog.Build([]catalog.RawCurrency{rc})
			require.Empty(t, problems)
			assert.Equal(t, tc.want, c.Assets()[0].ChainID)
		})
	}
}

func TestFind_Suggestions(t *testing.T) {
	t.Parallel()

	c, _ := catalog.Build(catalog.DefaultCurrencies())

	a, err := c.Find(" ethereum.mainnet.native.eth ")
	require.NoError(t, err)
	assert.Equal(t, "ETH", a.Symbol)

	_, err = c.Find("ethereum.mainnet.native.et")
	require.ErrorIs(t, err, compasserr.ErrAssetNotFound)

	var ce *compasserr.CompassError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Suggestion, "ethereum.mainnet.native.eth")

	_, err = c.Find("something.else.entirely")
	require.ErrorAs(t, err, &ce)
	assert.Empty(t, ce.Suggestion)
}

func TestSuggest_OrdersByDistance(t *testing.T) {
	t.Parallel()

	c, problems := catalog.Build([]catalog.RawCurrency{
		{ID: "usdc", Symbol: "USDC", Address: chain.USDCMainnet, Decimals: intPtr(6), ChainID: "1"},
		{ID: "usdt", Symbol: "USDT", Address: chain.USDTPolygon, Decimals: intPtr(6), ChainID: "137"},
	})
	require.Empty(t, problems)

	assert.Equal(t, []string{"usdt", "usdc"}, c.Suggest("usdtt"))
	assert.Empty(t, c.Suggest(""))
}

func TestSelectInitial(t *testing.T) {
	t.Parallel()

	eth := catalog.Asset{ID: "eth", ChainID: chain.Ethereum}
	pol := catalog.Asset{ID: "pol", ChainID: chain.Polygon}
	bnb := catalog.Asset{ID: "bnb", ChainID: chain.BSC}

	t.Run("preferred regardless of position", func(t *testing.T) {
		t.Parallel()
		got, ok := catalog.SelectInitial([]catalog.Asset{pol, bnb, eth}, "0x1")
		require.True(t, ok)
		assert.Equal(t, "eth", got.ID)
	})

	t.Run("first when preferred absent", func(t *testing.T) {
		t.Parallel()
		got, ok := catalog.SelectInitial([]catalog.Asset{pol, bnb}, "0x1")
		require.True(t, ok)
		assert.Equal(t, "pol", got.ID)
	})

	t.Run("first of several on preferred chain", func(t *testing.T) {
		t.Parallel()
		usdc := catalog.Asset{ID: "usdc", ChainID: chain.Ethereum}
		got, ok := catalog.SelectInitial([]catalog.Asset{pol, usdc, eth}, "0x1")
		require.True(t, ok)
		assert.Equal(t, "usdc", got.ID)
	})

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		_, ok := catalog.SelectInitial(nil, "0x1")
		assert.False(t, ok)
	})
}

func TestAsset_IsNative(t *testing.T) {
	t.Parallel()

	assert.True(t, catalog.Asset{}.IsNative())
	assert.True(t, catalog.Asset{ContractAddress: common.HexToAddress(catalog.NativePlaceholder)}.IsNative())
	assert.False(t, catalog.Asset{ContractAddress: common.HexToAddress(chain.USDTPolygon)}.IsNative())
}

func TestNilCatalog(t *testing.T) {
	t.Parallel()

	var c *catalog.Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Assets())
	_, err := c.Find("x")
	require.ErrorIs(t, err, compasserr.ErrAssetNotFound)
}
