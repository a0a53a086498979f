package dispatch

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// Transfer kinds.
const (
	KindNative   = "native"
	KindContract = "contract"
)

// Shape is a transfer that can be turned into an eth_sendTransaction request.
type Shape interface {
	// Chain is the chain the transfer must execute on.
	Chain() chain.ID
	// Build returns the transaction request sent from the given account.
	Build(from common.Address) (*TxRequest, error)
	// Describe summarizes the transfer for results and logs.
	Describe() Description
}

// Description summarizes a transfer in human units.
type Description struct {
	Kind      string         `json:"kind"`
	Symbol    string         `json:"symbol"`
	Amount    string         `json:"amount"`
	Recipient common.Address `json:"recipient"`
}

// TxRequest is the eth_sendTransaction argument object.
type TxRequest struct {
	From    common.Address
	To      common.Address
	Value   *big.Int
	Data    []byte
	ChainID chain.ID
}

// MarshalJSON encodes quantities as hex, the form providers expect.
func (r TxRequest) MarshalJSON() ([]byte, error) {
	value := r.Value
	if value == nil {
		value = new(big.Int)
	}
	out := struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Value   string `json:"value"`
		Data    string `json:"data,omitempty"`
		ChainID string `json:"chainId"`
	}{
		From:    r.From.Hex(),
		To:      r.To.Hex(),
		Value:   hexutil.EncodeBig(value),
		ChainID: r.ChainID.Wire(),
	}
	if len(r.Data) > 0 {
		out.Data = hexutil.Encode(r.Data)
	}
	return json.Marshal(out)
}

// NativeTransfer moves the chain's native currency.
type NativeTransfer struct {
	Asset  catalog.Asset
	To     common.Address
	Amount string
}

var _ Shape = NativeTransfer{}

// Chain implements Shape.
func (n NativeTransfer) Chain() chain.ID { return n.Asset.ChainID }

// Describe implements Shape.
func (n NativeTransfer) Describe() Description {
	return Description{Kind: KindNative, Symbol: n.Asset.Symbol, Amount: n.Amount, Recipient: n.To}
}

// Build implements Shape. The value is Amount scaled by the asset's decimals.
func (n NativeTransfer) Build(from common.Address) (*TxRequest, error) {
	if !n.Asset.IsNative() {
		return nil, compasserr.WithDetails(compasserr.ErrInvalidInput, map[string]string{
			"asset":  n.Asset.ID,
			"reason": "asset is a token contract; use a token transfer",
		})
	}
	if err := checkRecipient(n.To); err != nil {
		return nil, err
	}
	value, err := scale(n.Amount, n.Asset.Decimals)
	if err != nil {
		return nil, err
	}
	return &TxRequest{From: from, To: n.To, Value: value, ChainID: n.Asset.ChainID}, nil
}

// ContractTransfer calls transfer(address,uint256) on the asset's contract.
type ContractTransfer struct {
	Asset  catalog.Asset
	To     common.Address
	Amount string
}

var _ Shape = ContractTransfer{}

// Chain implements Shape.
func (c ContractTransfer) Chain() chain.ID { return c.Asset.ChainID }

// Describe implements Shape.
func (c ContractTransfer) Describe() Description {
	return Description{Kind: KindContract, Symbol: c.Asset.Symbol, Amount: c.Amount, Recipient: c.To}
}

// Build implements Shape. The call data carries Amount scaled by the asset's
// own decimals; the outer value is zero.
func (c ContractTransfer) Build(from common.Address) (*TxRequest, error) {
	if c.Asset.IsNative() {
		return nil, compasserr.WithDetails(compasserr.ErrInvalidInput, map[string]string{
			"asset":  c.Asset.ID,
			"reason": "asset has no token contract; use a native transfer",
		})
	}
	if err := checkRecipient(c.To); err != nil {
		return nil, err
	}
	units, err := scale(c.Amount, c.Asset.Decimals)
	if err != nil {
		return nil, err
	}
	data, err := chain.ERC20ABI().Pack("transfer", c.To, units)
	if err != nil {
		return nil, compasserr.Wrap(err, "encoding transfer call")
	}
	return &TxRequest{
		From:    from,
		To:      c.Asset.ContractAddress,
		Value:   new(big.Int),
		Data:    data,
		ChainID: c.Asset.ChainID,
	}, nil
}

// KnownTokenTransfer builds a contract transfer of the registry's default
// token on id.
func KnownTokenTransfer(reg *chain.Registry, id chain.ID, to common.Address, amount string) (ContractTransfer, error) {
	known, ok := reg.Lookup(id)
	if !ok {
		return ContractTransfer{}, compasserr.WithDetails(compasserr.ErrUnknownContractForChain, map[string]string{
			"chain": id.String(),
		})
	}
	return ContractTransfer{
		Asset: catalog.Asset{
			ID:              "known." + id.String() + "." + known.Label,
			Symbol:          known.Label,
			ContractAddress: known.Token,
			Decimals:        known.Decimals,
			ChainID:         id,
		},
		To:     to,
		Amount: amount,
	}, nil
}

func checkRecipient(to common.Address) error {
	if to == (common.Address{}) {
		return compasserr.WithDetails(compasserr.ErrInvalidAddress, map[string]string{
			"field":  "to",
			"reason": "recipient is the zero address",
		})
	}
	return nil
}

func scale(amount string, decimals uint8) (*big.Int, error) {
	units, err := chain.ParseDecimalAmount(amount, int(decimals))
	if err != nil {
		return nil, err
	}
	if units.Sign() <= 0 {
		return nil, compasserr.WithDetails(compasserr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "amount must be greater than zero",
		})
	}
	if units.BitLen() > 256 {
		return nil, compasserr.WithDetails(compasserr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "amount does not fit in uint256",
		})
	}
	return units, nil
}
