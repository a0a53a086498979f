// Package catalog turns the provider's advertised currencies into the
// validated, ordered asset list the rest of Compass operates on.
package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/compass/internal/chain"
)

// NativePlaceholder is the conventional address for a chain's native currency.
const NativePlaceholder = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// polygonNativeToken is the system contract Polygon uses for POL.
const polygonNativeToken = "0x0000000000000000000000000000000000001010"

// defaultNativeDecimals applies to native currencies that omit decimals.
const defaultNativeDecimals = 18

// Asset is a validated catalog entry.
type Asset struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	ContractAddress common.Address `json:"contract_address"`
	Decimals        uint8          `json:"decimals"`
	ChainID         chain.ID       `json:"chain_id"`
	Image           string         `json:"image,omitempty"`
}

// IsNative reports whether the asset is its chain's native currency rather
// than a token contract.
func (a Asset) IsNative() bool {
	return isNativeAddress(a.ContractAddress)
}

func isNativeAddress(addr common.Address) bool {
	return addr == common.Address{} ||
		addr == common.HexToAddress(NativePlaceholder) ||
		addr == common.HexToAddress(polygonNativeToken)
}

// ChainRef is a chain identifier as the provider sent it: a hex or decimal
// string, or a bare JSON number.
type ChainRef string

// UnmarshalJSON accepts both string and number encodings.
func (c *ChainRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ChainRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = ChainRef(n.String())
	return nil
}

// RawCurrency is one entry of the provider's availableCurrencies list.
type RawCurrency struct {
	ID       string   `json:"id" yaml:"id"`
	Symbol   string   `json:"symbol" yaml:"symbol"`
	Address  string   `json:"address" yaml:"address"`
	Decimals *int     `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	ChainID  ChainRef `json:"chainId" yaml:"chain_id"`
	Image    string   `json:"image,omitempty" yaml:"image,omitempty"`
}

// DefaultCurrencies is the catalog used when a provider advertises none:
// ETH on Ethereum mainnet and POL on Polygon.
func DefaultCurrencies() []RawCurrency {
	eighteen := func() *int { d := 18; return &d }
	return []RawCurrency{
		{
			ID:       "ethereum.mainnet.native.eth",
			Symbol:   "ETH",
			Address:  NativePlaceholder,
			Decimals: eighteen(),
			ChainID:  "1",
		},
		{
			ID:       "polygon.mainnet.native.matic",
			Symbol:   "POL",
			Address:  polygonNativeToken,
			Decimals: eighteen(),
			ChainID:  "137",
			Image:    "https://beexo.nyc3.digitaloceanspaces.com/staging/digital-currencies/1708714736817-thumbnail",
		},
	}
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
