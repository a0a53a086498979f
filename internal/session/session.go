// Package session holds the connected wallet session.
//
// A Session is an immutable value. Operations that learn something new about
// the provider (such as its active chain) produce an updated copy, and the
// Holder decides which copy wins when several complete out of order.
package session

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
)

// Session is the connected account plus the last chain the provider reported.
type Session struct {
	Address       common.Address `json:"address"`
	Alias         string         `json:"alias,omitempty"`
	Avatar        string         `json:"avatar,omitempty"`
	ObservedChain chain.ID       `json:"observed_chain"`
	Generation    uint64         `json:"generation"`
	ConnectedAt   time.Time      `json:"connected_at"`

	// Currencies is the provider's advertised currency list, kept for
	// building the asset catalog.
	Currencies []catalog.RawCurrency `json:"-"`
}

// WithObservedChain returns a copy of s that observed id.
func (s Session) WithObservedChain(id chain.ID) Session {
	s.ObservedChain = id
	return s
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Currencies = append([]catalog.RawCurrency(nil), s.Currencies...)
	return &c
}
