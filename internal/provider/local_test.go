package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chain/rpc"
	"github.com/mrz1836/compass/internal/keystore"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/provider/providertest"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

const devMnemonic = "test test test test test test test test test test test junk" // gitleaks:allow

type fixture struct {
	local    *provider.Local
	key      *keystore.Key
	mainnet  *providertest.Backend
	polygon  *providertest.Backend
	approved []provider.ApprovalRequest
}

func newFixture(t *testing.T, approve bool) *fixture {
	t.Helper()

	key, err := keystore.FromMnemonic(devMnemonic, "", 0, 0)
	require.NoError(t, err)
	t.Cleanup(key.Destroy)

	f := &fixture{key: key, mainnet: providertest.NewBackend(), polygon: providertest.NewBackend()}
	f.local, err = provider.NewLocal(provider.LocalOptions{
		Signer: key,
		Backends: map[chain.ID]provider.Backend{
			chain.Ethereum: f.mainnet,
			chain.Polygon:  f.polygon,
		},
		DefaultChain: chain.Ethereum,
		Descriptor: provider.Descriptor{
			Alias:               "dev",
			AvailableCurrencies: catalog.DefaultCurrencies(),
		},
		Approve: func(_ context.Context, req provider.ApprovalRequest) (bool, error) {
			f.approved = append(f.approved, req)
			return approve, nil
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	_, err := f.local.Request(context.Background(), provider.MethodRequestAccounts)
	require.NoError(t, err)
}

func decodeString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestNewLocal_Validation(t *testing.T) {
	t.Parallel()

	_, err := provider.NewLocal(provider.LocalOptions{})
	require.ErrorIs(t, err, compasserr.ErrKeyUnavailable)

	key, err := keystore.FromMnemonic(devMnemonic, "", 0, 0)
	require.NoError(t, err)
	defer key.Destroy()

	_, err = provider.NewLocal(provider.LocalOptions{Signer: key, DefaultChain: chain.Ethereum})
	require.ErrorIs(t, err, compasserr.ErrConfigInvalid)
}

func TestLocal_Accounts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	accts, err := provider.RequestAccounts(ctx, f.local, provider.MethodAccounts)
	require.NoError(t, err)
	assert.Empty(t, accts)

	accts, err = provider.RequestAccounts(ctx, f.local, provider.MethodRequestAccounts)
	require.NoError(t, err)
	assert.Equal(t, []string{f.key.Address().Hex()}, accts)

	accts, err = provider.RequestAccounts(ctx, f.local, provider.MethodAccounts)
	require.NoError(t, err)
	assert.Len(t, accts, 1)
}

func TestLocal_SwitchChain(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	id, wire, err := provider.RequestChainID(ctx, f.local)
	require.NoError(t, err)
	assert.Equal(t, chain.Ethereum, id)
	assert.Equal(t, "0x1", wire)

	_, err = f.local.Request(ctx, provider.MethodSwitchChain, provider.SwitchChainParam{ChainID: "0x89"})
	require.NoError(t, err)
	assert.Equal(t, chain.Polygon, f.local.ActiveChain())

	_, err = f.local.Request(ctx, provider.MethodSwitchChain, map[string]string{"chainId": "0x38"})
	code, ok := provider.ErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, provider.CodeUnrecognizedChain, code)
	assert.Equal(t, chain.Polygon, f.local.ActiveChain())

	_, err = f.local.Request(ctx, provider.MethodSwitchChain)
	code, _ = provider.ErrorCode(err)
	assert.Equal(t, provider.CodeInvalidParams, code)
}

func TestLocal_PersonalSign(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()
	addr := f.key.Address().Hex()

	_, err := f.local.Request(ctx, provider.MethodPersonalSign, "0x68656c6c6f", addr)
	code, _ := provider.ErrorCode(err)
	require.Equal(t, provider.CodeUnauthorized, code, "signing before connect must fail")

	f.connect(t)
	raw, err := f.local.Request(ctx, provider.MethodPersonalSign, "0x68656c6c6f", addr)
	require.NoError(t, err)

	sig, err := hexutil.Decode(decodeString(t, raw))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte("hello")), sig)
	require.NoError(t, err)
	assert.Equal(t, f.key.Address(), crypto.PubkeyToAddress(*pub))
	require.Len(t, f.approved, 1)
	assert.Equal(t, provider.MethodPersonalSign, f.approved[0].Method)

	_, err = f.local.Request(ctx, provider.MethodPersonalSign, "0x68656c6c6f", "0x0000000000000000000000000000000000000001")
	code, _ = provider.ErrorCode(err)
	assert.Equal(t, provider.CodeUnauthorized, code)
}

func TestLocal_UserRejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.connect(t)

	_, err := f.local.Request(context.Background(), provider.MethodPersonalSign, "hi", f.key.Address().Hex())
	require.Error(t, err)
	assert.True(t, provider.IsUserRejected(err))
}

const typedDataJSON = `{
  "types": {
    "EIP712Domain": [
      {"name": "name", "type": "string"},
      {"name": "version", "type": "string"},
      {"name": "chainId", "type": "uint256"}
    ],
    "Mail": [
      {"name": "contents", "type": "string"}
    ]
  },
  "primaryType": "Mail",
  "domain": {"name": "Compass", "version": "1", "chainId": "%s"},
  "message": {"contents": "hello"}
}`

func TestLocal_SignTypedData(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.connect(t)
	ctx := context.Background()
	addr := f.key.Address().Hex()

	td := fmt.Sprintf(typedDataJSON, "1")
	raw, err := f.local.Request(ctx, provider.MethodSignTypedDataV4, addr, td)
	require.NoError(t, err)
	sig, err := hexutil.Decode(decodeString(t, raw))
	require.NoError(t, err)
	require.Len(t, sig, 65)

	_, err = f.local.Request(ctx, provider.MethodSignTypedDataV4, addr, fmt.Sprintf(typedDataJSON, "137"))
	code, _ := provider.ErrorCode(err)
	assert.Equal(t, provider.CodeInvalidParams, code, "domain chain must match active chain")

	_, err = f.local.Request(ctx, provider.MethodSignTypedDataV4, addr, "{not json")
	code, _ = provider.ErrorCode(err)
	assert.Equal(t, provider.CodeInvalidParams, code)
}

func TestLocal_SendTransaction(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.connect(t)
	ctx := context.Background()

	from := f.key.Address()
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	f.mainnet.Nonce = 7

	raw, err := f.local.Request(ctx, provider.MethodSendTransaction, provider.TxArgs{
		From:  &from,
		To:    &to,
		Value: (*hexutil.Big)(big.NewInt(1000)),
	})
	require.NoError(t, err)

	sent := f.mainnet.Sent()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, common.HexToHash(decodeString(t, raw)), tx.Hash())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, big.NewInt(1000), tx.Value())
	assert.Equal(t, &to, tx.To())
	assert.Equal(t, big.NewInt(1), tx.ChainId())

	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(1)), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)
	assert.Empty(t, f.polygon.Sent())
}

func TestLocal_SendTransaction_SignsForReceivingNode(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.connect(t)
	ctx := context.Background()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		targets := []string{chain.Polygon.Wire(), chain.Ethereum.Wire()}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = f.local.Request(ctx, provider.MethodSwitchChain, provider.SwitchChainParam{ChainID: targets[i%2]})
		}
	}()

	from := f.key.Address()
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	for range 200 {
		_, err := f.local.Request(ctx, provider.MethodSendTransaction, provider.TxArgs{From: &from, To: &to})
		require.NoError(t, err)
	}
	close(stop)
	<-done

	for _, tx := range f.mainnet.Sent() {
		assert.Equal(t, big.NewInt(1), tx.ChainId())
	}
	for _, tx := range f.polygon.Sent() {
		assert.Equal(t, big.NewInt(137), tx.ChainId())
	}
	assert.Len(t, append(f.mainnet.Sent(), f.polygon.Sent()...), 200)
}

func TestLocal_SendTransaction_ChainMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.connect(t)

	from := f.key.Address()
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	_, err := f.local.Request(context.Background(), provider.MethodSendTransaction, provider.TxArgs{
		From:    &from,
		To:      &to,
		ChainID: (*hexutil.Big)(big.NewInt(137)),
	})
	code, _ := provider.ErrorCode(err)
	assert.Equal(t, provider.CodeInvalidParams, code)
	assert.Empty(t, f.mainnet.Sent())
}

func TestLocal_SendTransaction_NodeError(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	f.connect(t)
	f.mainnet.SendErr = &rpc.Error{Code: -32000, Message: "insufficient funds for gas * price + value"}

	from := f.key.Address()
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	_, err := f.local.Request(context.Background(), provider.MethodSendTransaction, provider.TxArgs{From: &from, To: &to})
	require.Error(t, err)

	code, ok := provider.ErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, -32000, code)
	assert.Equal(t, "insufficient funds for gas * price + value", provider.ErrorMessage(err))
}

func TestLocal_ForwardsToActiveBackend(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	f.polygon.Handle(provider.MethodCall, providertest.Result("0x01"))

	_, err := f.local.Request(ctx, provider.MethodCall, map[string]string{"to": chain.USDTPolygon}, "latest")
	require.Error(t, err, "mainnet backend has no eth_call script")

	_, err = f.local.Request(ctx, provider.MethodSwitchChain, provider.SwitchChainParam{ChainID: "137"})
	require.NoError(t, err)

	raw, err := f.local.Request(ctx, provider.MethodCall, map[string]string{"to": chain.USDTPolygon}, "latest")
	require.NoError(t, err)
	assert.Equal(t, "0x01", decodeString(t, raw))
	assert.Equal(t, []string{provider.MethodCall}, f.polygon.Forwarded())
}

func TestLocal_Descriptor(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	d, err := f.local.Descriptor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev", d.Alias)
	require.Len(t, d.AvailableCurrencies, 2)

	d.AvailableCurrencies[0].ID = "mutated"
	again, err := f.local.Descriptor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ethereum.mainnet.native.eth", again.AvailableCurrencies[0].ID)
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	_, ok := provider.ErrorCode(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, "plain", provider.ErrorMessage(errors.New("plain")))

	code, ok := provider.ErrorCode(&rpc.Error{Code: -32000, Message: "x"})
	assert.True(t, ok)
	assert.Equal(t, -32000, code)

	assert.True(t, provider.IsUserRejected(provider.NewRPCError(provider.CodeUserRejected, "no")))
	assert.False(t, provider.IsUserRejected(provider.NewRPCError(provider.CodeUnrecognizedChain, "no")))
}
