package session

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/compass/internal/provider"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// Connect requests account access once and builds the initial session from
// the first account, the provider descriptor, and the provider's chain.
// No partial session is returned on failure.
func Connect(ctx context.Context, p provider.Provider) (*Session, error) {
	accounts, err := provider.RequestAccounts(ctx, p, provider.MethodRequestAccounts)
	if err != nil {
		return nil, connectionError("eth_requestAccounts", err)
	}
	if len(accounts) == 0 {
		return nil, compasserr.WithCause(compasserr.ErrConnection, compasserr.ErrNoAccounts)
	}
	if !common.IsHexAddress(accounts[0]) {
		return nil, compasserr.WithDetails(compasserr.ErrConnection, map[string]string{
			"step":    "eth_requestAccounts",
			"reason":  "provider returned an invalid address",
			"address": accounts[0],
		})
	}

	desc, err := p.Descriptor(ctx)
	if err != nil {
		return nil, connectionError("descriptor", err)
	}
	if desc == nil {
		desc = &provider.Descriptor{}
	}

	observed, _, err := provider.RequestChainID(ctx, p)
	if err != nil {
		return nil, connectionError("eth_chainId", err)
	}

	return &Session{
		Address:       common.HexToAddress(accounts[0]),
		Alias:         desc.Alias,
		Avatar:        desc.Image,
		ObservedChain: observed,
		ConnectedAt:   time.Now().UTC(),
		Currencies:    desc.AvailableCurrencies,
	}, nil
}

func connectionError(step string, cause error) error {
	ce := &compasserr.CompassError{
		Code:     compasserr.ErrConnection.Code,
		Message:  compasserr.ErrConnection.Message,
		Details:  map[string]string{"step": step, "reason": provider.ErrorMessage(cause)},
		Cause:    cause,
		ExitCode: compasserr.ErrConnection.ExitCode,
	}
	if provider.IsUserRejected(cause) {
		ce.Suggestion = "approve the connection request in your wallet and try again"
	}
	return ce
}
