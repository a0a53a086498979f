package chain

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// IsValidAddress checks if the address is a valid EVM address format.
// This validates the format (40 hex chars with 0x prefix) but does not validate checksum.
func IsValidAddress(address string) bool {
	if len(address) != 42 {
		return false
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return false
	}
	for _, c := range address[2:] {
		if !isHexChar(c) {
			return false
		}
	}
	return true
}

// ToChecksumAddress converts an address to EIP-55 checksum format.
// If the input is invalid, it returns the original input unchanged.
func ToChecksumAddress(address string) string {
	if !IsValidAddress(address) {
		return address
	}

	addr := strings.ToLower(address[2:])

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(addr))
	hash := hex.EncodeToString(hasher.Sum(nil))

	result := make([]byte, 42)
	result[0] = '0'
	result[1] = 'x'

	for i := 0; i < 40; i++ {
		c := addr[i]
		// If the hash nibble is >= 8, uppercase the character
		if hash[i] >= '8' && c >= 'a' && c <= 'f' {
			result[i+2] = c - 32 //nolint:gosec // Safe: i bounded by loop [0,40), result size is 42
		} else {
			result[i+2] = c //nolint:gosec // Safe: i bounded by loop [0,40), result size is 42
		}
	}

	return string(result)
}

// ValidateChecksumAddress validates that an address has a correct EIP-55 checksum.
// All lowercase and all uppercase addresses are considered valid (non-checksummed).
// Mixed-case addresses must have the correct checksum.
func ValidateChecksumAddress(address string) error {
	if !IsValidAddress(address) {
		return compasserr.WithDetails(compasserr.ErrInvalidAddress, map[string]string{
			"address": address,
		})
	}

	addrPart := address[2:]
	if addrPart == strings.ToLower(addrPart) || addrPart == strings.ToUpper(addrPart) {
		return nil
	}

	expected := ToChecksumAddress(address)
	if "0x"+addrPart != expected {
		return compasserr.WithDetails(compasserr.ErrInvalidChecksum, map[string]string{
			"expected": expected,
			"actual":   address,
		})
	}

	return nil
}

// ParseAddress validates an address (including its checksum when mixed-case)
// and returns it as a common.Address.
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if err := ValidateChecksumAddress(address); err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(address), nil
}

// isHexChar returns true if c is a valid hexadecimal character.
func isHexChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
