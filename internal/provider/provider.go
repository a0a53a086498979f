// Package provider defines the wallet provider boundary: an EIP-1193 style
// request/response interface plus the session descriptor.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chain/rpc"
)

// Provider methods used by Compass.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodPersonalSign    = "personal_sign"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
	MethodSendTransaction = "eth_sendTransaction"
	MethodGetReceipt      = "eth_getTransactionReceipt"
	MethodCall            = "eth_call"
)

// EIP-1193 and JSON-RPC error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
)

// Provider is a wallet provider.
type Provider interface {
	// Request sends one RPC request and returns the raw JSON result.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// Descriptor returns the provider's session descriptor.
	Descriptor(ctx context.Context) (*Descriptor, error)
}

// Descriptor is the client-level information a provider exposes.
type Descriptor struct {
	Alias               string                `json:"alias"`
	Image               string                `json:"image"`
	AvailableCurrencies []catalog.RawCurrency `json:"availableCurrencies"`
}

// SwitchChainParam is the single parameter of wallet_switchEthereumChain.
type SwitchChainParam struct {
	ChainID string `json:"chainId"`
}

// RPCError is an error returned by a provider.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	cause   error
}

// NewRPCError creates a provider error.
func NewRPCError(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Unwrap() error {
	return e.cause
}

// ErrorCode extracts a provider or node error code from err.
func ErrorCode(err error) (int, bool) {
	var pe *RPCError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	var re *rpc.Error
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}

// ErrorMessage returns the provider's own message for err, or err.Error().
func ErrorMessage(err error) string {
	var pe *RPCError
	if errors.As(err, &pe) {
		return pe.Message
	}
	var re *rpc.Error
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

// IsUserRejected reports whether err is an EIP-1193 user rejection.
func IsUserRejected(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}

// RequestChainID asks the provider for its active chain.
func RequestChainID(ctx context.Context, p Provider) (chain.ID, string, error) {
	raw, err := p.Request(ctx, MethodChainID)
	if err != nil {
		return 0, "", err
	}
	var wire string
	if err := json.Unmarshal(raw, &wire); err != nil {
		// Some providers answer with a bare number.
		var n json.Number
		if nerr := json.Unmarshal(raw, &n); nerr != nil {
			return 0, "", fmt.Errorf("decoding eth_chainId result: %w", err)
		}
		wire = n.String()
	}
	id, err := chain.ParseID(wire)
	if err != nil {
		return 0, wire, err
	}
	return id, wire, nil
}

// RequestAccounts calls method (eth_requestAccounts or eth_accounts) and
// decodes the account list.
func RequestAccounts(ctx context.Context, p Provider, method string) ([]string, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method, err)
	}
	return accounts, nil
}
