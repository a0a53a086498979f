// Package query performs read-only contract introspection through the
// wallet provider: ERC-20 token details and Uniswap V2 pair reserves.
package query

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chain/rpc"
	"github.com/mrz1836/compass/internal/chainsync"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/session"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// ChainEnsurer aligns the provider's active chain with a target chain.
type ChainEnsurer interface {
	EnsureChain(ctx context.Context, target chain.ID) (chainsync.Outcome, error)
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options configures a Reader.
type Options struct {
	// Registry resolves known contracts. Nil uses chain.DefaultRegistry.
	Registry *chain.Registry
	// ReferenceChain is where PoolReserves reads the registered pair.
	ReferenceChain chain.ID
	Logger         LogWriter
	Metrics        *metrics.Metrics
}

// Reader runs read-only contract calls.
type Reader struct {
	provider  provider.Provider
	ensurer   ChainEnsurer
	registry  *chain.Registry
	reference chain.ID
	logger    LogWriter
	metrics   *metrics.Metrics
}

// New creates a Reader.
func New(p provider.Provider, ensurer ChainEnsurer, opts Options) *Reader {
	r := &Reader{
		provider:  p,
		ensurer:   ensurer,
		registry:  opts.Registry,
		reference: opts.ReferenceChain,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if r.registry == nil {
		r.registry = chain.DefaultRegistry()
	}
	if r.reference == 0 {
		r.reference = chain.Ethereum
	}
	if r.logger == nil {
		r.logger = nopLogger{}
	}
	if r.metrics == nil {
		r.metrics = metrics.Global
	}
	return r
}

// TokenInfo describes the known token on the active chain and the session
// account's balance of it.
type TokenInfo struct {
	ChainID     chain.ID       `json:"chain_id"`
	Label       string         `json:"label"`
	Contract    common.Address `json:"contract"`
	Owner       common.Address `json:"owner"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	TotalSupply *big.Int       `json:"total_supply"`
	Balance     *big.Int       `json:"balance"`
	// Display forms scaled by Decimals.
	TotalSupplyFormatted string `json:"total_supply_formatted"`
	BalanceFormatted     string `json:"balance_formatted"`
}

// TokenInfo reads the registered token on the provider's active chain. The
// chain comes from eth_chainId, falling back to the session's observed
// chain when the provider cannot answer.
func (r *Reader) TokenInfo(ctx context.Context, sess *session.Session) (info *TokenInfo, err error) {
	defer func() { r.metrics.RecordQuery(err) }()

	if sess == nil {
		return nil, compasserr.ErrConnection
	}

	id, _, cerr := provider.RequestChainID(ctx, r.provider)
	if cerr != nil {
		r.logger.Debug("eth_chainId failed, using observed chain %s: %v", sess.ObservedChain, cerr)
		id = sess.ObservedChain
	}

	known, ok := r.registry.Lookup(id)
	if !ok {
		return nil, unknownContract(id, "no known token")
	}

	erc20 := chain.ERC20ABI()
	info = &TokenInfo{ChainID: id, Label: known.Label, Contract: known.Token, Owner: sess.Address}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.call(gctx, erc20, known.Token, "name", nil, &info.Name)
	})
	g.Go(func() error {
		return r.call(gctx, erc20, known.Token, "symbol", nil, &info.Symbol)
	})
	g.Go(func() error {
		return r.call(gctx, erc20, known.Token, "decimals", nil, &info.Decimals)
	})
	g.Go(func() error {
		return r.call(gctx, erc20, known.Token, "totalSupply", nil, &info.TotalSupply)
	})
	g.Go(func() error {
		return r.call(gctx, erc20, known.Token, "balanceOf", []any{sess.Address}, &info.Balance)
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	info.TotalSupplyFormatted = chain.FormatDecimalAmount(info.TotalSupply, int(info.Decimals))
	info.BalanceFormatted = chain.FormatDecimalAmount(info.Balance, int(info.Decimals))
	return info, nil
}

// PoolReserves is a snapshot of a Uniswap V2 pair.
type PoolReserves struct {
	ChainID            chain.ID       `json:"chain_id"`
	Pair               common.Address `json:"pair"`
	Token0             common.Address `json:"token0"`
	Token1             common.Address `json:"token1"`
	Reserve0           *big.Int       `json:"reserve0"`
	Reserve1           *big.Int       `json:"reserve1"`
	BlockTimestampLast uint32         `json:"block_timestamp_last"`
}

// PoolReserves aligns the provider to the reference chain and reads the
// registered pair there.
func (r *Reader) PoolReserves(ctx context.Context) (res *PoolReserves, err error) {
	defer func() { r.metrics.RecordQuery(err) }()

	known, ok := r.registry.Lookup(r.reference)
	if !ok || !known.HasPair() {
		return nil, unknownContract(r.reference, "no known liquidity pair")
	}

	if _, err = r.ensurer.EnsureChain(ctx, r.reference); err != nil {
		return nil, err
	}

	pairABI := chain.UniswapV2PairABI()
	pair := *known.Pair
	res = &PoolReserves{ChainID: r.reference, Pair: pair}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.call(gctx, pairABI, pair, "token0", nil, &res.Token0)
	})
	g.Go(func() error {
		return r.call(gctx, pairABI, pair, "token1", nil, &res.Token1)
	})
	g.Go(func() error {
		out, callErr := r.callRaw(gctx, pairABI, pair, "getReserves", nil)
		if callErr != nil {
			return callErr
		}
		var reserves struct {
			Reserve0           *big.Int
			Reserve1           *big.Int
			BlockTimestampLast uint32
		}
		if unpackErr := pairABI.UnpackIntoInterface(&reserves, "getReserves", out); unpackErr != nil {
			return decodeFailed(pair, "getReserves", unpackErr)
		}
		res.Reserve0 = reserves.Reserve0
		res.Reserve1 = reserves.Reserve1
		res.BlockTimestampLast = reserves.BlockTimestampLast
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// call runs a single-output view method and stores the decoded value in dst.
func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args []any, dst any) error {
	out, err := r.callRaw(ctx, contract, to, method, args)
	if err != nil {
		return err
	}
	if err := contract.UnpackIntoInterface(dst, method, out); err != nil {
		return decodeFailed(to, method, err)
	}
	return nil
}

func (r *Reader) callRaw(ctx context.Context, contract abi.ABI, to common.Address, method string, args []any) ([]byte, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, compasserr.WithCause(compasserr.ErrQueryFailed, err)
	}

	raw, err := r.provider.Request(ctx, provider.MethodCall, rpc.CallMsg{To: &to, Data: data}, "latest")
	if err != nil {
		return nil, compasserr.WithDetails(compasserr.WithCause(compasserr.ErrQueryFailed, err), map[string]string{
			"contract": to.Hex(),
			"method":   method,
			"reason":   provider.ErrorMessage(err),
		})
	}

	var hexOut string
	if err := json.Unmarshal(raw, &hexOut); err != nil {
		return nil, decodeFailed(to, method, err)
	}
	out, err := hexutil.Decode(hexOut)
	if err != nil {
		return nil, decodeFailed(to, method, err)
	}
	if len(out) == 0 {
		return nil, compasserr.WithDetails(compasserr.ErrQueryFailed, map[string]string{
			"contract": to.Hex(),
			"method":   method,
			"reason":   "empty result, no contract code at this address?",
		})
	}
	r.logger.Debug("eth_call %s.%s returned %d bytes", to.Hex(), method, len(out))
	return out, nil
}

func decodeFailed(to common.Address, method string, err error) error {
	return compasserr.WithDetails(compasserr.WithCause(compasserr.ErrQueryFailed, err), map[string]string{
		"contract": to.Hex(),
		"method":   method,
		"reason":   "undecodable result",
	})
}

func unknownContract(id chain.ID, reason string) error {
	return compasserr.WithSuggestion(
		compasserr.WithDetails(compasserr.ErrUnknownContractForChain, map[string]string{
			"chain_id": id.String(),
			"reason":   reason,
		}),
		"known contracts are configured under settings.known_contracts",
	)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
