package keystore

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// ethCoinType is the SLIP-44 coin type shared by every EVM chain.
const ethCoinType = 60

// Key is a derived secp256k1 signing key.
type Key struct {
	raw     []byte
	locked  bool
	private *ecdsa.PrivateKey
	address common.Address
	path    string
}

// DerivationPath returns the BIP44 path for the given account and index.
func DerivationPath(account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/%d", ethCoinType, account, index)
}

// FromMnemonic derives the key at m/44'/60'/account'/0/index.
func FromMnemonic(mnemonic, passphrase string, account, index uint32) (*Key, error) {
	seed, err := seedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + ethCoinType,
		bip32.FirstHardenedChild + account,
		0,
		index,
	}

	child := master
	for _, idx := range path {
		child, err = child.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("deriving child %d: %w", idx, err)
		}
	}

	key, err := FromPrivateKeyBytes(child.Key)
	if err != nil {
		return nil, err
	}
	key.path = DerivationPath(account, index)
	return key, nil
}

// FromPrivateKeyBytes wraps a raw 32-byte private key. The bytes are copied
// and memory-locked where the platform allows it.
func FromPrivateKeyBytes(b []byte) (*Key, error) {
	raw := make([]byte, len(b))
	copy(raw, b)

	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		zero(raw)
		return nil, compasserr.WithCause(compasserr.ErrKeyUnavailable, err)
	}

	return &Key{
		raw:     raw,
		locked:  mlock(raw),
		private: priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// Address returns the account address of the key.
func (k *Key) Address() common.Address {
	return k.address
}

// Path returns the derivation path, or "" for imported raw keys.
func (k *Key) Path() string {
	return k.path
}

// Locked reports whether the key bytes are memory-locked.
func (k *Key) Locked() bool {
	return k.locked
}

// PrivateKey returns the ECDSA key, or nil after Destroy.
func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.private
}

// SignHash signs a 32-byte digest and returns a 65-byte [R || S || V]
// signature with V in {0, 1}.
func (k *Key) SignHash(hash []byte) ([]byte, error) {
	if k.private == nil {
		return nil, compasserr.ErrKeyUnavailable
	}
	return crypto.Sign(hash, k.private)
}

// Destroy zeroes and unlocks the key material. The key is unusable afterwards.
func (k *Key) Destroy() {
	if k == nil || k.raw == nil {
		return
	}
	zero(k.raw)
	if k.locked {
		munlock(k.raw)
	}
	if k.private != nil && k.private.D != nil {
		k.private.D.SetInt64(0)
	}
	k.raw = nil
	k.private = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
