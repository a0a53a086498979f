package wallet

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/session"
)

// Settings is the injected operation configuration.
type Settings struct {
	// Recipient is the default transfer destination. Nil means every send
	// must name one.
	Recipient *common.Address
	// PreferredChain picks the initial asset at bootstrap.
	PreferredChain chain.ID
}

// BootstrapResult describes a completed bootstrap.
type BootstrapResult struct {
	Session  *session.Session `json:"session"`
	Selected *catalog.Asset   `json:"selected,omitempty"`
	Assets   int              `json:"assets"`
	// Dropped lists catalog entries rejected as malformed.
	Dropped []string `json:"dropped,omitempty"`
}

// SendRequest describes a transfer of a catalog asset.
type SendRequest struct {
	// AssetID defaults to the selected asset.
	AssetID string
	// To defaults to Settings.Recipient.
	To     string
	Amount string
}

// KnownSendRequest describes a transfer of a chain's registered token.
type KnownSendRequest struct {
	// ChainID defaults to the session's observed chain.
	ChainID chain.ID
	To      string
	Amount  string
}
