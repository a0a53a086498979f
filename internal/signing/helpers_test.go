package signing_test

import (
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/mrz1836/compass/internal/chain"
)

func chainIDValue(id chain.ID) *math.HexOrDecimal256 {
	return (*math.HexOrDecimal256)(id.Big())
}
