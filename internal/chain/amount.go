package chain

import (
	"math/big"
	"strings"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// MaxDecimals bounds the decimal places accepted for scaling.
// ERC-20 decimals is a uint8, but nothing real exceeds 77 (the uint256 limit).
const MaxDecimals = 77

// ParseDecimalAmount parses a human-readable decimal amount into the smallest
// unit for the given number of decimal places using integer arithmetic only.
// For example, "0.001" with 6 decimals returns 1000.
// Amounts with more fractional digits than decimalPlaces are rejected rather
// than silently truncated.
//
//nolint:gocognit,gocyclo // Decimal parsing requires sequential validation steps
func ParseDecimalAmount(amount string, decimalPlaces int) (*big.Int, error) {
	if amount == "" {
		return nil, invalidAmount(amount, "empty")
	}
	if decimalPlaces < 0 || decimalPlaces > MaxDecimals {
		return nil, invalidAmount(amount, "unsupported decimals")
	}

	if strings.HasPrefix(amount, "-") {
		return nil, invalidAmount(amount, "negative")
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, invalidAmount(amount, "multiple decimal points")
	}

	intPart := parts[0]
	decPart := ""
	if len(parts) == 2 {
		decPart = parts[1]
		if intPart == "" && decPart == "" {
			return nil, invalidAmount(amount, "no digits")
		}
	}

	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) {
		return nil, invalidAmount(amount, "non-digit characters")
	}
	intVal, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, invalidAmount(amount, "non-digit characters")
	}

	multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalPlaces)), nil)
	result := new(big.Int).Mul(intVal, multiplier)

	if decPart == "" {
		return result, nil
	}

	if !isDigits(decPart) {
		return nil, invalidAmount(amount, "non-digit characters")
	}

	// Trailing zeros beyond the precision are harmless; anything else is not.
	trimmed := strings.TrimRight(decPart, "0")
	if len(trimmed) > decimalPlaces {
		return nil, invalidAmount(amount, "too many decimal places")
	}

	for len(trimmed) < decimalPlaces {
		trimmed += "0"
	}
	if trimmed == "" {
		return result, nil
	}

	decVal, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidAmount(amount, "non-digit characters")
	}

	return result.Add(result, decVal), nil
}

// FormatDecimalAmount converts a big.Int to a human-readable string with the given decimal places.
// Trailing zeros after the decimal point are removed.
// For example, 1500000000000000000 with 18 decimals returns "1.5".
func FormatDecimalAmount(amount *big.Int, decimalPlaces int) string {
	if amount == nil {
		return "0"
	}
	if amount.Sign() < 0 {
		return "-" + FormatDecimalAmount(new(big.Int).Abs(amount), decimalPlaces)
	}
	if decimalPlaces <= 0 {
		return amount.String()
	}

	str := amount.String()

	// Pad with leading zeros if necessary
	for len(str) <= decimalPlaces {
		str = "0" + str
	}

	decimalPos := len(str) - decimalPlaces
	result := str[:decimalPos] + "." + str[decimalPos:]

	// Remove unnecessary trailing zeros
	for len(result) > 1 && result[len(result)-1] == '0' && result[len(result)-2] != '.' {
		result = result[:len(result)-1]
	}

	return result
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func invalidAmount(amount, reason string) error {
	return compasserr.WithDetails(compasserr.ErrInvalidAmount, map[string]string{
		"amount": amount,
		"reason": reason,
	})
}
