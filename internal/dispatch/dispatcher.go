package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/chain/rpc"
	"github.com/mrz1836/compass/internal/metrics"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/session"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// Default confirmation settings.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultConfirmTimeout = 3 * time.Minute
)

// Transaction statuses reported in Result.
const (
	StatusConfirmed = "confirmed"
	StatusReverted  = "reverted"
	StatusPending   = "pending"
)

// Options configures a Dispatcher.
type Options struct {
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	Logger         LogWriter
	Metrics        *metrics.Metrics
}

// Dispatcher submits transfers through a provider.
type Dispatcher struct {
	provider       provider.Provider
	ensurer        ChainEnsurer
	pollInterval   time.Duration
	confirmTimeout time.Duration
	logger         LogWriter
	metrics        *metrics.Metrics
}

// New creates a Dispatcher.
func New(p provider.Provider, ensurer ChainEnsurer, opts Options) *Dispatcher {
	d := &Dispatcher{
		provider:       p,
		ensurer:        ensurer,
		pollInterval:   opts.PollInterval,
		confirmTimeout: opts.ConfirmTimeout,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
	if d.pollInterval <= 0 {
		d.pollInterval = DefaultPollInterval
	}
	if d.confirmTimeout <= 0 {
		d.confirmTimeout = DefaultConfirmTimeout
	}
	if d.logger == nil {
		d.logger = nopLogger{}
	}
	if d.metrics == nil {
		d.metrics = metrics.Global
	}
	return d
}

// Result describes a submitted transfer.
type Result struct {
	Hash        common.Hash    `json:"hash"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Recipient   common.Address `json:"recipient"`
	Kind        string         `json:"kind"`
	Symbol      string         `json:"symbol"`
	Amount      string         `json:"amount"`
	Value       *big.Int       `json:"value"`
	ChainID     chain.ID       `json:"chain_id"`
	Status      string         `json:"status"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	GasUsed     uint64         `json:"gas_used,omitempty"`
}

// Dispatch aligns the provider with the shape's chain, submits the
// transaction, and waits for one confirmation. It never retries.
//
// Once the transaction is submitted, the returned Result carries its hash
// even when confirmation fails.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, shape Shape) (res *Result, err error) {
	defer func() { d.metrics.RecordDispatch(err) }()

	if sess == nil {
		return nil, compasserr.ErrConnection
	}

	req, err := shape.Build(sess.Address)
	if err != nil {
		return nil, err
	}

	if _, err = d.ensurer.EnsureChain(ctx, shape.Chain()); err != nil {
		return nil, err
	}

	desc := shape.Describe()
	d.logger.Debug("submitting %s transfer of %s %s on chain %s", desc.Kind, desc.Amount, desc.Symbol, shape.Chain())

	raw, err := d.provider.Request(ctx, provider.MethodSendTransaction, req)
	if err != nil {
		return nil, rejected(err)
	}
	var hashHex string
	if err = json.Unmarshal(raw, &hashHex); err != nil || !isHash(hashHex) {
		return nil, compasserr.WithDetails(compasserr.ErrTxRejected, map[string]string{
			"reason": "provider returned an invalid transaction hash",
		})
	}

	res = &Result{
		Hash:      common.HexToHash(hashHex),
		From:      sess.Address,
		To:        req.To,
		Recipient: desc.Recipient,
		Kind:      desc.Kind,
		Symbol:    desc.Symbol,
		Amount:    desc.Amount,
		Value:     req.Value,
		ChainID:   shape.Chain(),
		Status:    StatusPending,
	}
	d.logger.Debug("submitted %s", res.Hash.Hex())

	receipt, err := d.awaitReceipt(ctx, res.Hash)
	if err != nil {
		return res, err
	}

	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.ToInt().Uint64()
	}
	res.GasUsed = uint64(receipt.GasUsed)

	if !receipt.Succeeded() {
		res.Status = StatusReverted
		d.logger.Error("transaction %s reverted", res.Hash.Hex())
		return res, compasserr.WithDetails(compasserr.ErrTxReverted, map[string]string{
			"hash":  res.Hash.Hex(),
			"block": strconv.FormatUint(res.BlockNumber, 10),
		})
	}

	res.Status = StatusConfirmed
	return res, nil
}

// awaitReceipt polls for the receipt until it exists, the confirmation
// timeout elapses, or ctx ends.
func (d *Dispatcher) awaitReceipt(ctx context.Context, hash common.Hash) (*rpc.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, d.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		raw, err := d.provider.Request(ctx, provider.MethodGetReceipt, hash.Hex())
		if err != nil {
			if ctx.Err() != nil {
				return nil, confirmationTimeout(hash, ctx.Err())
			}
			return nil, compasserr.WithDetails(compasserr.WithCause(compasserr.ErrNetworkError, err), map[string]string{
				"hash":   hash.Hex(),
				"reason": "receipt lookup failed: " + provider.ErrorMessage(err),
			})
		}

		receipt, err := rpc.DecodeReceipt(raw)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, confirmationTimeout(hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func confirmationTimeout(hash common.Hash, cause error) error {
	return compasserr.WithDetails(compasserr.WithCause(compasserr.ErrConfirmationTimeout, cause), map[string]string{
		"hash": hash.Hex(),
	})
}

func rejected(err error) error {
	details := map[string]string{"reason": provider.ErrorMessage(err)}
	if code, ok := provider.ErrorCode(err); ok {
		details["provider_code"] = strconv.Itoa(code)
	}
	if provider.IsUserRejected(err) {
		details["reason"] = "user declined the transaction"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		details["reason"] = err.Error()
	}
	return compasserr.WithDetails(compasserr.WithCause(compasserr.ErrTxRejected, err), details)
}

func isHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
