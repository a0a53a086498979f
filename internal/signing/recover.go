package signing

import (
	"strconv"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

const signatureLength = 65

// RecoverMessageSigner returns the address that produced an EIP-191
// personal_sign signature over msg. V may be 0, 1, 27 or 28.
func RecoverMessageSigner(msg, sig []byte) (common.Address, error) {
	return recoverHash(accounts.TextHash(msg), sig)
}

// RecoverTypedDataSigner returns the address that produced an EIP-712
// signature over td.
func RecoverTypedDataSigner(td apitypes.TypedData, sig []byte) (common.Address, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Address{}, compasserr.WithCause(compasserr.ErrInvalidTypedData, err)
	}
	return recoverHash(hash, sig)
}

func recoverHash(hash, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, compasserr.WithDetails(compasserr.ErrInvalidSignature, map[string]string{
			"length": strconv.Itoa(len(sig)),
		})
	}

	normalized := make([]byte, signatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, compasserr.WithDetails(compasserr.ErrInvalidSignature, map[string]string{
			"v": strconv.Itoa(int(sig[64])),
		})
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, compasserr.WithCause(compasserr.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
