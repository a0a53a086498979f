package keystore

import (
	"errors"
	"os"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// PassphraseFunc supplies the passphrase for an encrypted mnemonic file.
type PassphraseFunc func() (string, error)

// Source describes where the mnemonic comes from.
type Source struct {
	// Mnemonic is used as-is when non-empty (usually from COMPASS_MNEMONIC).
	Mnemonic string
	// File is an age-encrypted mnemonic, read when Mnemonic is empty.
	File string
	// Passphrase unlocks File.
	Passphrase PassphraseFunc
	// BIP39Passphrase is the optional "25th word".
	BIP39Passphrase string
	// Account and Index select the derived key.
	Account uint32
	Index   uint32
}

// Load resolves the mnemonic from src and derives the signing key.
func Load(src Source) (*Key, error) {
	if src.Mnemonic != "" {
		return FromMnemonic(src.Mnemonic, src.BIP39Passphrase, src.Account, src.Index)
	}

	if src.File == "" {
		return nil, compasserr.WithSuggestion(compasserr.ErrKeyUnavailable,
			"set COMPASS_MNEMONIC or run 'compass key import' to create an encrypted mnemonic file")
	}

	ciphertext, err := os.ReadFile(src.File)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, compasserr.WithDetails(compasserr.ErrKeyUnavailable, map[string]string{
				"file": src.File,
			})
		}
		return nil, compasserr.WithCause(compasserr.ErrKeyUnavailable, err)
	}

	if src.Passphrase == nil {
		return nil, compasserr.WithDetails(compasserr.ErrKeyUnavailable, map[string]string{
			"reason": "no passphrase source for encrypted mnemonic",
		})
	}
	passphrase, err := src.Passphrase()
	if err != nil {
		return nil, compasserr.WithCause(compasserr.ErrKeyUnavailable, err)
	}

	plaintext, err := Decrypt(ciphertext, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(plaintext)

	return FromMnemonic(string(plaintext), src.BIP39Passphrase, src.Account, src.Index)
}

// SealMnemonic validates a mnemonic and returns it age-encrypted.
func SealMnemonic(mnemonic, passphrase string, workFactor int) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return Encrypt([]byte(NormalizeMnemonic(mnemonic)), passphrase, workFactor)
}
