package chain_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/chain"
)

func TestERC20ABI_TransferSelector(t *testing.T) {
	t.Parallel()

	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	data, err := chain.ERC20ABI().Pack("transfer", to, big.NewInt(1000))
	require.NoError(t, err)
	require.Len(t, data, 68)

	assert.Equal(t, "0xa9059cbb", hexutil.Encode(data[:4]))
	assert.Equal(t, to.Bytes(), data[16:36])
	assert.Equal(t, int64(1000), new(big.Int).SetBytes(data[36:68]).Int64())
}

func TestERC20ABI_ViewSelectors(t *testing.T) {
	t.Parallel()

	methods := chain.ERC20ABI().Methods
	assert.Equal(t, "0x06fdde03", hexutil.Encode(methods["name"].ID))
	assert.Equal(t, "0x95d89b41", hexutil.Encode(methods["symbol"].ID))
	assert.Equal(t, "0x313ce567", hexutil.Encode(methods["decimals"].ID))
	assert.Equal(t, "0x18160ddd", hexutil.Encode(methods["totalSupply"].ID))
	assert.Equal(t, "0x70a08231", hexutil.Encode(methods["balanceOf"].ID))
}

func TestUniswapV2PairABI_Selectors(t *testing.T) {
	t.Parallel()

	methods := chain.UniswapV2PairABI().Methods
	assert.Equal(t, "0x0dfe1681", hexutil.Encode(methods["token0"].ID))
	assert.Equal(t, "0xd21220a7", hexutil.Encode(methods["token1"].ID))
	assert.Equal(t, "0x0902f1ac", hexutil.Encode(methods["getReserves"].ID))
}
