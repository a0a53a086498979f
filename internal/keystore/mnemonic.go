// Package keystore loads the signing key used by the local wallet provider.
//
// Keys are derived from a BIP39 mnemonic along m/44'/60'/account'/0/index.
// The mnemonic comes from the environment or from an age-encrypted file and
// is never written in plaintext.
package keystore

import (
	"regexp"
	"strings"

	"github.com/tyler-smith/go-bip39"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

//nolint:gochecknoglobals // Compiled once
var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)
)

// NormalizeMnemonic lowercases the phrase, strips numbered-list prefixes and
// commas, and collapses whitespace to single spaces.
func NormalizeMnemonic(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateMnemonic checks word count, word validity, and the BIP39 checksum.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonic(mnemonic)
	switch len(strings.Fields(normalized)) {
	case 12, 15, 18, 21, 24:
	default:
		return compasserr.WithDetails(compasserr.ErrInvalidMnemonic, map[string]string{
			"reason": "word count must be 12, 15, 18, 21 or 24",
		})
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return compasserr.WithCause(compasserr.ErrInvalidMnemonic, err)
	}
	return nil
}

// seedFromMnemonic validates the mnemonic and returns its 64-byte BIP39 seed.
// The caller zeroes the seed.
func seedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase), nil
}
