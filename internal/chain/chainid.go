package chain

import (
	"math/big"
	"strconv"
	"strings"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// ToWire converts an internal chain ID to the provider wire format:
// "0x" followed by lowercase hex digits without leading zeros.
func ToWire(id ID) string {
	return "0x" + strconv.FormatUint(uint64(id), 16)
}

// ParseID converts a chain identifier received from a provider into its
// internal form. Hex input must carry a 0x prefix; anything else is parsed
// as decimal, since some providers report decimal text where hex is expected.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalidChainID(s, "empty")
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if digits == "" {
			return 0, invalidChainID(s, "missing hex digits")
		}
		n, err := strconv.ParseUint(digits, 16, 64)
		if err != nil {
			return 0, invalidChainID(s, "not a hex number")
		}
		return ID(n), nil
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return ID(n), nil
	}

	return 0, invalidChainID(s, "not a hex or decimal number")
}

// MustParseID parses a chain identifier and panics on failure.
// Intended for compile-time constants and tests.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IDFromBig converts a big.Int chain ID, rejecting values outside uint64.
func IDFromBig(n *big.Int) (ID, error) {
	if n == nil || n.Sign() < 0 || !n.IsUint64() {
		return 0, invalidChainID(n.String(), "out of range")
	}
	return ID(n.Uint64()), nil
}

// EqualWire reports whether two provider-facing chain identifiers name the
// same chain. Both sides are normalized first; if either side cannot be
// parsed the comparison falls back to a case-insensitive string match.
func EqualWire(a, b string) bool {
	ida, errA := ParseID(a)
	idb, errB := ParseID(b)
	if errA == nil && errB == nil {
		return ida == idb
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeWire re-encodes a wire chain ID in canonical lowercase form.
func NormalizeWire(s string) (string, error) {
	id, err := ParseID(s)
	if err != nil {
		return "", err
	}
	return ToWire(id), nil
}

func invalidChainID(value, reason string) error {
	return compasserr.WithDetails(compasserr.ErrInvalidChainID, map[string]string{
		"value":  value,
		"reason": reason,
	})
}
