// Package errors provides structured error handling for Compass.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitRejected   = 3 // User or provider declined the request
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Permission denied or insufficient funds
)

// CompassError is the structured error type for Compass.
type CompassError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *CompassError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CompassError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for CompassError.
func (e *CompassError) Is(target error) bool {
	var t *CompassError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &CompassError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &CompassError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &CompassError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrInsufficientFunds = &CompassError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "insufficient funds for transaction",
		ExitCode: ExitPermission,
	}

	// Session errors.
	ErrConnection = &CompassError{
		Code:     "CONNECTION_FAILED",
		Message:  "wallet provider connection failed",
		ExitCode: ExitGeneral,
	}

	ErrNoAccounts = &CompassError{
		Code:     "NO_ACCOUNTS",
		Message:  "wallet provider returned no accounts",
		ExitCode: ExitGeneral,
	}

	// Chain errors.
	ErrInvalidChainID = &CompassError{
		Code:     "INVALID_CHAIN_ID",
		Message:  "invalid chain identifier",
		ExitCode: ExitInput,
	}

	ErrChainSwitch = &CompassError{
		Code:     "CHAIN_SWITCH_FAILED",
		Message:  "wallet provider did not switch to the required chain",
		ExitCode: ExitGeneral,
	}

	ErrStaleReconciliation = &CompassError{
		Code:     "STALE_RECONCILIATION",
		Message:  "chain reconciliation superseded by a newer selection",
		ExitCode: ExitGeneral,
	}

	ErrInvalidAddress = &CompassError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrInvalidChecksum = &CompassError{
		Code:     "INVALID_CHECKSUM",
		Message:  "invalid address checksum",
		ExitCode: ExitInput,
	}

	ErrInvalidAmount = &CompassError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	ErrNetworkError = &CompassError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	// Catalog errors.
	ErrCatalogEntryMalformed = &CompassError{
		Code:     "CATALOG_ENTRY_MALFORMED",
		Message:  "malformed currency entry dropped from catalog",
		ExitCode: ExitInput,
	}

	ErrAssetNotFound = &CompassError{
		Code:     "ASSET_NOT_FOUND",
		Message:  "asset not found in catalog",
		ExitCode: ExitNotFound,
	}

	ErrNoAssetSelected = &CompassError{
		Code:     "NO_ASSET_SELECTED",
		Message:  "no asset selected",
		ExitCode: ExitInput,
	}

	ErrUnknownContractForChain = &CompassError{
		Code:     "UNKNOWN_CONTRACT_FOR_CHAIN",
		Message:  "no known contract for this chain",
		ExitCode: ExitNotFound,
	}

	// Signing errors.
	ErrSigningRejected = &CompassError{
		Code:     "SIGNING_REJECTED",
		Message:  "signature request was declined",
		ExitCode: ExitRejected,
	}

	ErrSignatureMismatch = &CompassError{
		Code:     "SIGNATURE_MISMATCH",
		Message:  "recovered signer does not match the connected account",
		ExitCode: ExitGeneral,
	}

	ErrInvalidSignature = &CompassError{
		Code:     "INVALID_SIGNATURE",
		Message:  "invalid signature",
		ExitCode: ExitInput,
	}

	ErrInvalidTypedData = &CompassError{
		Code:     "INVALID_TYPED_DATA",
		Message:  "invalid typed data",
		ExitCode: ExitInput,
	}

	// Transaction errors.
	ErrTxRejected = &CompassError{
		Code:     "TX_REJECTED",
		Message:  "transaction rejected",
		ExitCode: ExitRejected,
	}

	ErrTxReverted = &CompassError{
		Code:     "TX_REVERTED",
		Message:  "transaction reverted on-chain",
		ExitCode: ExitGeneral,
	}

	ErrConfirmationTimeout = &CompassError{
		Code:     "CONFIRMATION_TIMEOUT",
		Message:  "timed out waiting for transaction confirmation",
		ExitCode: ExitGeneral,
	}

	// Query errors.
	ErrQueryFailed = &CompassError{
		Code:     "QUERY_FAILED",
		Message:  "read-only contract query failed",
		ExitCode: ExitGeneral,
	}

	// Key errors.
	ErrKeyUnavailable = &CompassError{
		Code:     "KEY_UNAVAILABLE",
		Message:  "no signing key configured",
		ExitCode: ExitInput,
	}

	ErrInvalidMnemonic = &CompassError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrDecryptionFailed = &CompassError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong passphrase or corrupted file",
		ExitCode: ExitRejected,
	}

	// Config errors.
	ErrConfigNotFound = &CompassError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &CompassError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &CompassError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}

	ErrNotSupported = &CompassError{
		Code:     "NOT_SUPPORTED",
		Message:  "operation not supported",
		ExitCode: ExitInput,
	}
)

// New creates a new CompassError with the given code and message.
func New(code, message string) *CompassError {
	return &CompassError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ce *CompassError
	if errors.As(err, &ce) {
		return &CompassError{
			Code:       ce.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ce.Message),
			Details:    ce.Details,
			Suggestion: ce.Suggestion,
			Cause:      err,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CompassError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of a sentinel error carrying cause as its underlying error.
func WithCause(sentinel *CompassError, cause error) error {
	return &CompassError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ce *CompassError
	if errors.As(err, &ce) {
		return &CompassError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    details,
			Suggestion: ce.Suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CompassError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ce *CompassError
	if errors.As(err, &ce) {
		return &CompassError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    ce.Details,
			Suggestion: suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CompassError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ce *CompassError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ce *CompassError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
