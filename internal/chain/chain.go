// Package chain provides chain identity, amount scaling, address helpers,
// and the known-contract registry shared by every Compass component.
package chain

import (
	"math/big"
	"strconv"
)

// ID is an EVM chain identifier in its internal (decimal) form.
// The hexadecimal wire form only exists at the provider boundary; see ToWire.
type ID uint64

// Well-known chain identifiers.
const (
	Ethereum ID = 1
	Optimism ID = 10
	BSC      ID = 56
	Polygon  ID = 137
	Base     ID = 8453
	Arbitrum ID = 42161
	Sepolia  ID = 11155111
)

// String returns the decimal representation of the chain ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Wire returns the hexadecimal wire representation of the chain ID.
func (id ID) Wire() string {
	return ToWire(id)
}

// Big returns the chain ID as a *big.Int for transaction signing.
func (id ID) Big() *big.Int {
	return new(big.Int).SetUint64(uint64(id))
}

// Name returns a display name for well-known chains, or the decimal ID.
func (id ID) Name() string {
	switch id {
	case Ethereum:
		return "Ethereum"
	case Optimism:
		return "Optimism"
	case BSC:
		return "BNB Smart Chain"
	case Polygon:
		return "Polygon"
	case Base:
		return "Base"
	case Arbitrum:
		return "Arbitrum One"
	case Sepolia:
		return "Sepolia"
	default:
		return "chain " + id.String()
	}
}
