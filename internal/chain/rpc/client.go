// Package rpc provides a minimal JSON-RPC 2.0 client for EVM nodes.
package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/metrics"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// maxResponseBodySize caps how much of a response body is read.
const maxResponseBodySize = 10 << 20

var (
	// ErrRPCRequest indicates an RPC request failed.
	ErrRPCRequest = &compasserr.CompassError{
		Code:     "RPC_REQUEST_FAILED",
		Message:  "RPC request failed",
		ExitCode: compasserr.ExitGeneral,
	}

	// ErrRPCResponse indicates an invalid RPC response.
	ErrRPCResponse = &compasserr.CompassError{
		Code:     "RPC_INVALID_RESPONSE",
		Message:  "invalid RPC response",
		ExitCode: compasserr.ExitGeneral,
	}

	// ErrInvalidHexNumber indicates an invalid hex number.
	ErrInvalidHexNumber = &compasserr.CompassError{
		Code:     "RPC_INVALID_HEX",
		Message:  "invalid hex number",
		ExitCode: compasserr.ExitInput,
	}
)

// ClientOptions contains optional configuration for the RPC client.
type ClientOptions struct {
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Limiter throttles requests to this endpoint. Nil disables throttling.
	Limiter *chain.RateLimiter
	// Metrics receives per-call timings. Nil uses metrics.Global.
	Metrics *metrics.Metrics
}

// Client is a minimal EVM JSON-RPC client.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *chain.RateLimiter
	metrics    *metrics.Metrics
	idCounter  atomic.Uint64
}

// NewClient creates a new RPC client with default options.
func NewClient(url string) *Client {
	return NewClientWithOptions(url, nil)
}

// NewClientWithOptions creates a new RPC client.
func NewClientWithOptions(url string, opts *ClientOptions) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		metrics:    metrics.Global,
	}
	if opts != nil {
		if opts.HTTPClient != nil {
			c.httpClient = opts.HTTPClient
		}
		if opts.Metrics != nil {
			c.metrics = opts.Metrics
		}
		c.limiter = opts.Limiter
	}
	return c
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string {
	return c.url
}

// request represents a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response represents a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object returned by a node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Call performs a JSON-RPC call and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params ...any) (result json.RawMessage, err error) {
	if params == nil {
		params = []any{}
	}

	if err = c.limiter.Wait(ctx, c.url); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	start := time.Now()
	defer func() { c.metrics.RecordRPCCall(time.Since(start), err) }()

	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, compasserr.WithCause(ErrRPCRequest, err)
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, compasserr.WithDetails(ErrRPCRequest, map[string]string{
				"method": method,
				"status": httpResp.Status,
			})
		}
		return nil, compasserr.WithCause(ErrRPCResponse, err)
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// ChainID returns the chain ID reported by the node.
func (c *Client) ChainID(ctx context.Context) (chain.ID, error) {
	hexVal, err := c.callString(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	return chain.ParseID(hexVal)
}

// GetTransactionCount returns the nonce for an address.
func (c *Client) GetTransactionCount(ctx context.Context, address common.Address, block string) (uint64, error) {
	if block == "" {
		block = "pending"
	}

	hexVal, err := c.callString(ctx, "eth_getTransactionCount", address.Hex(), block)
	if err != nil {
		return 0, err
	}

	n, err := parseHexBigInt(hexVal)
	if err != nil {
		return 0, err
	}

	return n.Uint64(), nil
}

// GasPrice returns the current gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	hexVal, err := c.callString(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}
	return parseHexBigInt(hexVal)
}

// CallMsg represents the parameters for eth_call and eth_estimateGas.
type CallMsg struct {
	From  *common.Address
	To    *common.Address
	Gas   uint64
	Value *big.Int
	Data  []byte
}

// MarshalJSON implements custom JSON marshaling for CallMsg.
func (m CallMsg) MarshalJSON() ([]byte, error) {
	type callMsgJSON struct {
		From  string `json:"from,omitempty"`
		To    string `json:"to,omitempty"`
		Gas   string `json:"gas,omitempty"`
		Value string `json:"value,omitempty"`
		Data  string `json:"data,omitempty"`
	}

	var msg callMsgJSON
	if m.From != nil {
		msg.From = m.From.Hex()
	}
	if m.To != nil {
		msg.To = m.To.Hex()
	}
	if m.Gas > 0 {
		msg.Gas = fmt.Sprintf("0x%x", m.Gas)
	}
	if m.Value != nil && m.Value.Sign() > 0 {
		msg.Value = "0x" + m.Value.Text(16)
	}
	if len(m.Data) > 0 {
		msg.Data = "0x" + hex.EncodeToString(m.Data)
	}

	return json.Marshal(msg)
}

// EthCall performs an eth_call.
func (c *Client) EthCall(ctx context.Context, msg CallMsg, block string) ([]byte, error) {
	if block == "" {
		block = "latest"
	}

	hexVal, err := c.callString(ctx, "eth_call", msg, block)
	if err != nil {
		return nil, err
	}

	return parseHexBytes(hexVal)
}

// EstimateGas estimates the gas needed for a transaction.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	hexVal, err := c.callString(ctx, "eth_estimateGas", msg)
	if err != nil {
		return 0, err
	}

	n, err := parseHexBigInt(hexVal)
	if err != nil {
		return 0, err
	}

	return n.Uint64(), nil
}

// SendRawTransaction sends a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
	txHash, err := c.callString(ctx, "eth_sendRawTransaction", hexutil.Encode(signedTx))
	if err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(txHash), nil
}

// Receipt is the subset of a transaction receipt Compass relies on.
type Receipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockHash       common.Hash    `json:"blockHash"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	Status          hexutil.Uint64 `json:"status"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
}

// Succeeded reports whether execution succeeded (status 1).
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}

// GetTransactionReceipt returns the receipt for a mined transaction, or nil
// while the transaction is still pending.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", hash.Hex())
	if err != nil {
		return nil, err
	}
	return DecodeReceipt(result)
}

// DecodeReceipt decodes a raw eth_getTransactionReceipt result. A JSON null
// result decodes to a nil receipt.
func DecodeReceipt(raw json.RawMessage) (*Receipt, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil //nolint:nilnil // nil receipt means pending
	}
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, compasserr.WithCause(ErrRPCResponse, err)
	}
	return &r, nil
}

// callString performs a call whose result is a JSON string.
func (c *Client) callString(ctx context.Context, method string, params ...any) (string, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return "", err
	}

	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", fmt.Errorf("parsing %s result: %w", method, err)
	}
	return s, nil
}

// parseHexBigInt parses a hex string (with or without 0x prefix) to big.Int.
func parseHexBigInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}

	n := new(big.Int)
	if _, ok := n.SetString(s, 16); !ok {
		return nil, ErrInvalidHexNumber
	}

	return n, nil
}

// parseHexBytes parses a hex string to bytes.
func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return []byte{}, nil
	}
	return hex.DecodeString(s)
}
