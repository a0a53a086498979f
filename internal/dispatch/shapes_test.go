package dispatch_test

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/dispatch"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

var (
	sender    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	recipient = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	ethAsset = catalog.Asset{
		ID:              "ethereum.mainnet.native.eth",
		Symbol:          "ETH",
		ContractAddress: common.HexToAddress(catalog.NativePlaceholder),
		Decimals:        18,
		ChainID:         chain.Ethereum,
	}
	usdtAsset = catalog.Asset{
		ID:              "polygon.mainnet.erc20.usdt",
		Symbol:          "USDT",
		ContractAddress: common.HexToAddress(chain.USDTPolygon),
		Decimals:        6,
		ChainID:         chain.Polygon,
	}
)

// transferArgs decodes transfer(address,uint256) call data.
func transferArgs(t *testing.T, data []byte) (common.Address, *big.Int) {
	t.Helper()
	erc20 := chain.ERC20ABI()
	method, err := erc20.MethodById(data[:4])
	require.NoError(t, err)
	require.Equal(t, "transfer", method.Name)

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 2)
	to, ok := args[0].(common.Address)
	require.True(t, ok)
	amount, ok := args[1].(*big.Int)
	require.True(t, ok)
	return to, amount
}

func TestNativeTransfer_Build(t *testing.T) {
	t.Parallel()

	req, err := dispatch.NativeTransfer{Asset: ethAsset, To: recipient, Amount: "0.001"}.Build(sender)
	require.NoError(t, err)
	assert.Equal(t, sender, req.From)
	assert.Equal(t, recipient, req.To)
	assert.Equal(t, "1000000000000000", req.Value.String())
	assert.Empty(t, req.Data)
	assert.Equal(t, chain.Ethereum, req.ChainID)
}

func TestContractTransfer_Build(t *testing.T) {
	t.Parallel()

	shape := dispatch.ContractTransfer{Asset: usdtAsset, To: recipient, Amount: "0.001"}
	assert.Equal(t, chain.Polygon, shape.Chain())

	req, err := shape.Build(sender)
	require.NoError(t, err)
	assert.Equal(t, usdtAsset.ContractAddress, req.To, "transaction goes to the token contract")
	assert.Equal(t, 0, req.Value.Sign(), "outer value is zero")

	to, amount := transferArgs(t, req.Data)
	assert.Equal(t, recipient, to)
	assert.Equal(t, "1000", amount.String())
}

func TestContractTransfer_UsesAssetDecimals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		decimals uint8
		amount   string
		want     string
	}{
		{6, "0.001", "1000"},
		{8, "0.001", "100000"},
		{18, "0.001", "1000000000000000"},
		{0, "42", "42"},
	}

	for _, tc := range tests {
		asset := usdtAsset
		asset.Decimals = tc.decimals
		req, err := dispatch.ContractTransfer{Asset: asset, To: recipient, Amount: tc.amount}.Build(sender)
		require.NoError(t, err)
		_, amount := transferArgs(t, req.Data)
		assert.Equal(t, tc.want, amount.String(), "decimals %d", tc.decimals)
	}
}

func TestShapes_BuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		shape dispatch.Shape
		want  error
	}{
		{"native with token asset", dispatch.NativeTransfer{Asset: usdtAsset, To: recipient, Amount: "1"}, compasserr.ErrInvalidInput},
		{"token with native asset", dispatch.ContractTransfer{Asset: ethAsset, To: recipient, Amount: "1"}, compasserr.ErrInvalidInput},
		{"zero recipient", dispatch.NativeTransfer{Asset: ethAsset, Amount: "1"}, compasserr.ErrInvalidAddress},
		{"garbage amount", dispatch.NativeTransfer{Asset: ethAsset, To: recipient, Amount: "abc"}, compasserr.ErrInvalidAmount},
		{"zero amount", dispatch.ContractTransfer{Asset: usdtAsset, To: recipient, Amount: "0"}, compasserr.ErrInvalidAmount},
		{"too precise", dispatch.ContractTransfer{Asset: usdtAsset, To: recipient, Amount: "0.0000001"}, compasserr.ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.shape.Build(sender)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestShapes_RejectAmountsBeyondUint256(t *testing.T) {
	t.Parallel()

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	wholeUnits := usdtAsset
	wholeUnits.Decimals = 0

	req, err := dispatch.ContractTransfer{Asset: wholeUnits, To: recipient, Amount: maxUint256.String()}.Build(sender)
	require.NoError(t, err)
	_, amount := transferArgs(t, req.Data)
	assert.Equal(t, 0, maxUint256.Cmp(amount), "largest uint256 encodes unchanged")

	overflow := new(big.Int).Add(maxUint256, big.NewInt(1)).String()
	tests := []struct {
		name  string
		shape dispatch.Shape
	}{
		{"contract just past uint256", dispatch.ContractTransfer{Asset: wholeUnits, To: recipient, Amount: overflow}},
		{"contract 1e78 at 6 decimals", dispatch.ContractTransfer{Asset: usdtAsset, To: recipient, Amount: "1" + strings.Repeat("0", 78)}},
		{"native 1e70 at 18 decimals", dispatch.NativeTransfer{Asset: ethAsset, To: recipient, Amount: "1" + strings.Repeat("0", 70)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.shape.Build(sender)
			require.ErrorIs(t, err, compasserr.ErrInvalidAmount)
			assert.Contains(t, err.Error(), "uint256")
		})
	}
}

func TestKnownTokenTransfer(t *testing.T) {
	t.Parallel()

	reg := chain.DefaultRegistry()

	shape, err := dispatch.KnownTokenTransfer(reg, chain.Polygon, recipient, "0.001")
	require.NoError(t, err)
	assert.Equal(t, "USDT", shape.Asset.Symbol)
	assert.Equal(t, chain.Polygon, shape.Chain())

	req, err := shape.Build(sender)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(chain.USDTPolygon), req.To)
	_, amount := transferArgs(t, req.Data)
	assert.Equal(t, "1000", amount.String())

	_, err = dispatch.KnownTokenTransfer(reg, chain.BSC, recipient, "1")
	require.ErrorIs(t, err, compasserr.ErrUnknownContractForChain)
}

func TestTxRequest_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(dispatch.TxRequest{
		From:    sender,
		To:      recipient,
		Value:   big.NewInt(255),
		Data:    []byte{0xa9, 0x05},
		ChainID: chain.Polygon,
	})
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sender.Hex(), got["from"])
	assert.Equal(t, recipient.Hex(), got["to"])
	assert.Equal(t, "0xff", got["value"])
	assert.Equal(t, "0xa905", got["data"])
	assert.Equal(t, "0x89", got["chainId"])

	data, err = json.Marshal(dispatch.TxRequest{From: sender, To: recipient, ChainID: chain.Ethereum})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "0x0", got["value"])
}
