package signing

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/provider"
	"github.com/mrz1836/compass/internal/session"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

const domainType = "EIP712Domain"

// domainFieldOrder is the canonical EIP-712 domain field order.
var domainFieldOrder = []apitypes.Type{ //nolint:gochecknoglobals // read-only table
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
	{Name: "salt", Type: "bytes32"},
}

// TypedDataSignature is a verified eth_signTypedData_v4 signature.
type TypedDataSignature struct {
	Signature   string         `json:"signature"`
	Hash        common.Hash    `json:"hash"`
	Signer      common.Address `json:"signer"`
	ChainID     chain.ID       `json:"chain_id,omitempty"`
	PrimaryType string         `json:"primary_type"`
}

// ParseTypedData decodes an EIP-712 document in the eth_signTypedData_v4
// JSON layout.
func ParseTypedData(data []byte) (apitypes.TypedData, error) {
	var td apitypes.TypedData
	if err := json.Unmarshal(data, &td); err != nil {
		return td, compasserr.WithCause(compasserr.ErrInvalidTypedData, err)
	}
	if td.PrimaryType == "" {
		return td, compasserr.WithDetails(compasserr.ErrInvalidTypedData, map[string]string{
			"reason": "primaryType is required",
		})
	}
	if _, ok := td.Types[td.PrimaryType]; !ok {
		return td, compasserr.WithDetails(compasserr.ErrInvalidTypedData, map[string]string{
			"reason":      "primaryType has no type definition",
			"primaryType": td.PrimaryType,
		})
	}
	return td, nil
}

// SignTypedData asks the provider to sign td with the session's account.
// Under ChainBindingRequire a domain without chainId is bound to the
// session's observed chain. A bound domain aligns the provider to its chain
// before the request is sent.
func (s *Signer) SignTypedData(ctx context.Context, sess *session.Session, td apitypes.TypedData) (res *TypedDataSignature, err error) {
	defer func() { s.metrics.RecordSignature(err) }()

	if sess == nil {
		return nil, compasserr.ErrConnection
	}

	td, err = s.prepare(sess, td)
	if err != nil {
		return nil, err
	}

	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, compasserr.WithCause(compasserr.ErrInvalidTypedData, err)
	}

	var bound chain.ID
	if td.Domain.ChainId != nil {
		bound, err = chain.IDFromBig((*big.Int)(td.Domain.ChainId))
		if err != nil {
			return nil, err
		}
		if _, err = s.ensurer.EnsureChain(ctx, bound); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(td)
	if err != nil {
		return nil, compasserr.WithCause(compasserr.ErrInvalidTypedData, err)
	}

	raw, err := s.provider.Request(ctx, provider.MethodSignTypedDataV4, sess.Address.Hex(), string(payload))
	if err != nil {
		return nil, signingRejected(provider.MethodSignTypedDataV4, err)
	}
	sig, err := decodeSignature(raw)
	if err != nil {
		return nil, err
	}

	recovered, err := RecoverTypedDataSigner(td, sig)
	if err != nil {
		return nil, err
	}
	if recovered != sess.Address {
		return nil, mismatch(sess.Address, recovered)
	}

	s.logger.Debug("typed data signature verified for %s on chain %s", recovered.Hex(), bound)
	return &TypedDataSignature{
		Signature:   hexutil.Encode(sig),
		Hash:        common.BytesToHash(hash),
		Signer:      recovered,
		ChainID:     bound,
		PrimaryType: td.PrimaryType,
	}, nil
}

// prepare applies the chain binding policy and makes sure the domain type
// lists exactly the fields the domain sets.
func (s *Signer) prepare(sess *session.Session, td apitypes.TypedData) (apitypes.TypedData, error) {
	if td.PrimaryType == "" {
		return td, compasserr.WithDetails(compasserr.ErrInvalidTypedData, map[string]string{
			"reason": "primaryType is required",
		})
	}

	types := make(apitypes.Types, len(td.Types)+1)
	for name, fields := range td.Types {
		types[name] = append([]apitypes.Type(nil), fields...)
	}
	td.Types = types

	if td.Domain.ChainId == nil && s.binding == ChainBindingRequire {
		if sess.ObservedChain == 0 {
			return td, compasserr.WithDetails(compasserr.ErrInvalidTypedData, map[string]string{
				"reason": "domain has no chainId and the session has no observed chain",
			})
		}
		td.Domain.ChainId = (*math.HexOrDecimal256)(sess.ObservedChain.Big())
	}

	fields, ok := td.Types[domainType]
	if !ok {
		td.Types[domainType] = domainTypeFor(td.Domain)
		return td, nil
	}
	if td.Domain.ChainId != nil && !hasField(fields, "chainId") {
		td.Types[domainType] = insertChainID(fields)
	}
	return td, nil
}

// domainTypeFor lists the set domain fields in canonical order.
func domainTypeFor(d apitypes.TypedDataDomain) []apitypes.Type {
	set := map[string]bool{
		"name":              d.Name != "",
		"version":           d.Version != "",
		"chainId":           d.ChainId != nil,
		"verifyingContract": d.VerifyingContract != "",
		"salt":              d.Salt != "",
	}
	out := make([]apitypes.Type, 0, len(domainFieldOrder))
	for _, f := range domainFieldOrder {
		if set[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

func hasField(fields []apitypes.Type, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// insertChainID adds chainId before verifyingContract or salt, or at the end.
func insertChainID(fields []apitypes.Type) []apitypes.Type {
	out := make([]apitypes.Type, 0, len(fields)+1)
	inserted := false
	for _, f := range fields {
		if !inserted && (f.Name == "verifyingContract" || f.Name == "salt") {
			out = append(out, apitypes.Type{Name: "chainId", Type: "uint256"})
			inserted = true
		}
		out = append(out, f)
	}
	if !inserted {
		out = append(out, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	return out
}
