package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chain/rpc"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// Signer holds the account key used by Local.
type Signer interface {
	Address() common.Address
	// SignHash returns a 65-byte [R || S || V] signature with V in {0, 1}.
	SignHash(hash []byte) ([]byte, error)
}

// Backend is a chain node Local forwards reads and raw transactions to.
type Backend interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	GetTransactionCount(ctx context.Context, address common.Address, block string) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg rpc.CallMsg) (uint64, error)
	SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error)
}

// LogWriter provides logging capabilities.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// ApprovalRequest describes an action Local needs the user to approve.
type ApprovalRequest struct {
	Method  string
	ChainID chain.ID
	Summary string
}

// ApproveFunc asks the user to approve a signing action. Returning false
// rejects it with code 4001.
type ApproveFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// LocalOptions configures a Local provider.
type LocalOptions struct {
	Signer       Signer
	Backends     map[chain.ID]Backend
	DefaultChain chain.ID
	Descriptor   Descriptor
	Approve      ApproveFunc
	Logger       LogWriter
}

// Local is an in-process provider. It signs with a local key and forwards
// everything else to the node configured for the active chain.
type Local struct {
	signer     Signer
	backends   map[chain.ID]Backend
	descriptor Descriptor
	approve    ApproveFunc
	logger     LogWriter

	mu        sync.RWMutex
	active    chain.ID
	connected bool
}

var _ Provider = (*Local)(nil)

// NewLocal creates a Local provider.
func NewLocal(opts LocalOptions) (*Local, error) {
	if opts.Signer == nil {
		return nil, compasserr.ErrKeyUnavailable
	}
	if _, ok := opts.Backends[opts.DefaultChain]; !ok {
		return nil, compasserr.WithDetails(compasserr.ErrConfigInvalid, map[string]string{
			"reason": "no RPC endpoint for default chain",
			"chain":  opts.DefaultChain.String(),
		})
	}

	backends := make(map[chain.ID]Backend, len(opts.Backends))
	for id, b := range opts.Backends {
		backends[id] = b
	}

	l := &Local{
		signer:     opts.Signer,
		backends:   backends,
		descriptor: opts.Descriptor,
		approve:    opts.Approve,
		logger:     opts.Logger,
		active:     opts.DefaultChain,
	}
	if l.logger == nil {
		l.logger = nopLogger{}
	}
	return l, nil
}

// ActiveChain returns the chain Local currently targets.
func (l *Local) ActiveChain() chain.ID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Descriptor returns the configured session descriptor.
func (l *Local) Descriptor(_ context.Context) (*Descriptor, error) {
	d := l.descriptor
	d.AvailableCurrencies = append(d.AvailableCurrencies[:0:0], l.descriptor.AvailableCurrencies...)
	return &d, nil
}

// Request handles one provider request.
func (l *Local) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	l.logger.Debug("provider request: %s", method)

	switch method {
	case MethodRequestAccounts:
		l.mu.Lock()
		l.connected = true
		l.mu.Unlock()
		return json.Marshal([]string{l.signer.Address().Hex()})
	case MethodAccounts:
		if !l.isConnected() {
			return json.RawMessage(`[]`), nil
		}
		return json.Marshal([]string{l.signer.Address().Hex()})
	case MethodChainID:
		return json.Marshal(l.ActiveChain().Wire())
	case "net_version":
		return json.Marshal(l.ActiveChain().String())
	case MethodSwitchChain:
		return l.switchChain(params)
	case MethodPersonalSign:
		return l.personalSign(ctx, params)
	case MethodSignTypedDataV4:
		return l.signTypedData(ctx, params)
	case MethodSendTransaction:
		return l.sendTransaction(ctx, params)
	default:
		backend := l.activeBackend()
		result, err := backend.Call(ctx, method, params...)
		if err != nil {
			return nil, fromBackend(err)
		}
		return result, nil
	}
}

func (l *Local) isConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

func (l *Local) activeBackend() Backend {
	_, backend := l.activeTarget()
	return backend
}

// activeTarget reads the active chain and its backend together so a
// concurrent switch cannot pair one chain's signer with another's node.
func (l *Local) activeTarget() (chain.ID, Backend) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active, l.backends[l.active]
}

func (l *Local) switchChain(params []any) (json.RawMessage, error) {
	var p SwitchChainParam
	if err := decodeParam(params, 0, &p); err != nil {
		return nil, err
	}
	target, err := chain.ParseID(p.ChainID)
	if err != nil {
		return nil, NewRPCError(CodeInvalidParams, "invalid chainId %q", p.ChainID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.backends[target]; !ok {
		return nil, NewRPCError(CodeUnrecognizedChain, "Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", p.ChainID)
	}
	if l.active != target {
		l.logger.Debug("switching active chain %s -> %s", l.active.Wire(), target.Wire())
		l.active = target
	}
	return json.RawMessage(`null`), nil
}

func (l *Local) requireAccount(params []any, index int) error {
	if !l.isConnected() {
		return NewRPCError(CodeUnauthorized, "the requested account has not been authorized")
	}
	var addr string
	if err := decodeParam(params, index, &addr); err != nil {
		return err
	}
	if !common.IsHexAddress(addr) || common.HexToAddress(addr) != l.signer.Address() {
		return NewRPCError(CodeUnauthorized, "the requested account %s has not been authorized", addr)
	}
	return nil
}

func (l *Local) confirm(ctx context.Context, req ApprovalRequest) error {
	if l.approve == nil {
		return nil
	}
	ok, err := l.approve(ctx, req)
	if err != nil {
		return &RPCError{Code: CodeInternal, Message: err.Error(), cause: err}
	}
	if !ok {
		return NewRPCError(CodeUserRejected, "User rejected the request.")
	}
	return nil
}

func (l *Local) personalSign(ctx context.Context, params []any) (json.RawMessage, error) {
	if err := l.requireAccount(params, 1); err != nil {
		return nil, err
	}
	var data string
	if err := decodeParam(params, 0, &data); err != nil {
		return nil, err
	}

	msg := []byte(data)
	if strings.HasPrefix(data, "0x") {
		decoded, err := hexutil.Decode(data)
		if err != nil {
			return nil, NewRPCError(CodeInvalidParams, "invalid hex message: %v", err)
		}
		msg = decoded
	}

	if err := l.confirm(ctx, ApprovalRequest{
		Method:  MethodPersonalSign,
		ChainID: l.ActiveChain(),
		Summary: fmt.Sprintf("sign message %q", string(msg)),
	}); err != nil {
		return nil, err
	}

	return l.sign(accounts.TextHash(msg))
}

func (l *Local) signTypedData(ctx context.Context, params []any) (json.RawMessage, error) {
	if err := l.requireAccount(params, 0); err != nil {
		return nil, err
	}
	if len(params) < 2 {
		return nil, NewRPCError(CodeInvalidParams, "missing typed data parameter")
	}

	raw, err := json.Marshal(params[1])
	if err != nil {
		return nil, NewRPCError(CodeInvalidParams, "encoding typed data: %v", err)
	}
	// v4 accepts the typed data as a JSON string or as an object.
	if bytes.HasPrefix(raw, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, NewRPCError(CodeInvalidParams, "decoding typed data: %v", err)
		}
		raw = []byte(s)
	}

	var td apitypes.TypedData
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, NewRPCError(CodeInvalidParams, "decoding typed data: %v", err)
	}

	active := l.ActiveChain()
	if td.Domain.ChainId != nil {
		domainChain := (*big.Int)(td.Domain.ChainId)
		if domainChain.Cmp(active.Big()) != 0 {
			return nil, NewRPCError(CodeInvalidParams,
				"provided chainId %s must match the active chainId %s", domainChain.String(), active.String())
		}
	}

	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, NewRPCError(CodeInvalidParams, "hashing typed data: %v", err)
	}

	if err := l.confirm(ctx, ApprovalRequest{
		Method:  MethodSignTypedDataV4,
		ChainID: active,
		Summary: fmt.Sprintf("sign %s for %s", td.PrimaryType, td.Domain.Name),
	}); err != nil {
		return nil, err
	}

	return l.sign(hash)
}

func (l *Local) sign(hash []byte) (json.RawMessage, error) {
	sig, err := l.signer.SignHash(hash)
	if err != nil {
		return nil, &RPCError{Code: CodeInternal, Message: "signing failed", cause: err}
	}
	sig[recoveryIDIndex] += 27
	return json.Marshal(hexutil.Encode(sig))
}

// recoveryIDIndex is the position of V in a 65-byte signature.
const recoveryIDIndex = 64

// TxArgs is the eth_sendTransaction argument object.
type TxArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     *hexutil.Bytes  `json:"data,omitempty"`
	Input    *hexutil.Bytes  `json:"input,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
	ChainID  *hexutil.Big    `json:"chainId,omitempty"`
}

func (a TxArgs) data() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

func (l *Local) sendTransaction(ctx context.Context, params []any) (json.RawMessage, error) {
	if !l.isConnected() {
		return nil, NewRPCError(CodeUnauthorized, "the requested account has not been authorized")
	}

	var args TxArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return nil, err
	}
	from := l.signer.Address()
	if args.From == nil || *args.From != from {
		return nil, NewRPCError(CodeUnauthorized, "the requested account has not been authorized")
	}
	if args.To == nil {
		return nil, NewRPCError(CodeInvalidParams, "contract creation is not supported")
	}

	active, backend := l.activeTarget()
	if args.ChainID != nil && args.ChainID.ToInt().Cmp(active.Big()) != 0 {
		return nil, NewRPCError(CodeInvalidParams,
			"chainId %s does not match the active chainId %s", args.ChainID.ToInt().String(), active.String())
	}

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	data := args.data()

	nonce, gas, gasPrice, err := l.fillTx(ctx, backend, args, from, value, data)
	if err != nil {
		return nil, err
	}

	if err := l.confirm(ctx, ApprovalRequest{
		Method:  MethodSendTransaction,
		ChainID: active,
		Summary: fmt.Sprintf("send %s wei to %s with %d bytes of data", value.String(), args.To.Hex(), len(data)),
	}); err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       args.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	txSigner := types.NewEIP155Signer(active.Big())
	digest := txSigner.Hash(tx)
	sig, err := l.signer.SignHash(digest[:])
	if err != nil {
		return nil, &RPCError{Code: CodeInternal, Message: "signing failed", cause: err}
	}
	signed, err := tx.WithSignature(txSigner, sig)
	if err != nil {
		return nil, &RPCError{Code: CodeInternal, Message: "attaching signature", cause: err}
	}
	encoded, err := signed.MarshalBinary()
	if err != nil {
		return nil, &RPCError{Code: CodeInternal, Message: "encoding transaction", cause: err}
	}

	hash, err := backend.SendRawTransaction(ctx, encoded)
	if err != nil {
		return nil, fromBackend(err)
	}
	l.logger.Debug("broadcast %s on chain %s", hash.Hex(), active.String())
	return json.Marshal(hash.Hex())
}

func (l *Local) fillTx(ctx context.Context, backend Backend, args TxArgs, from common.Address, value *big.Int, data []byte) (nonce, gas uint64, gasPrice *big.Int, err error) {
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	} else if nonce, err = backend.GetTransactionCount(ctx, from, "pending"); err != nil {
		return 0, 0, nil, fromBackend(err)
	}

	if args.GasPrice != nil {
		gasPrice = args.GasPrice.ToInt()
	} else if gasPrice, err = backend.GasPrice(ctx); err != nil {
		return 0, 0, nil, fromBackend(err)
	}

	if args.Gas != nil {
		gas = uint64(*args.Gas)
	} else if gas, err = backend.EstimateGas(ctx, rpc.CallMsg{From: &from, To: args.To, Value: value, Data: data}); err != nil {
		return 0, 0, nil, fromBackend(err)
	}

	return nonce, gas, gasPrice, nil
}

// decodeParam decodes params[index] into dst through a JSON round trip so
// callers may pass either Go values or raw JSON.
func decodeParam(params []any, index int, dst any) error {
	if index >= len(params) {
		return NewRPCError(CodeInvalidParams, "missing parameter %d", index)
	}
	var raw []byte
	switch v := params[index].(type) {
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return NewRPCError(CodeInvalidParams, "encoding parameter %d: %v", index, err)
		}
		raw = b
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewRPCError(CodeInvalidParams, "decoding parameter %d: %v", index, err)
	}
	return nil
}

// fromBackend converts node errors to provider errors, keeping the node's
// code and message.
func fromBackend(err error) error {
	var re *rpc.Error
	if errors.As(err, &re) {
		return &RPCError{Code: re.Code, Message: re.Message, Data: re.Data, cause: err}
	}
	var pe *RPCError
	if errors.As(err, &pe) {
		return err
	}
	return &RPCError{Code: CodeDisconnected, Message: err.Error(), cause: err}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
