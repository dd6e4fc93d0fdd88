package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// weiPerEther is 10^18.
var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// EtherToWei converts a display-unit amount to wei, truncating anything
// below one wei. All on-chain calls take wei; everything user-facing stays
// in decimal display units.
func EtherToWei(amount decimal.Decimal) *big.Int {
	return amount.Mul(decimal.NewFromBigInt(weiPerEther, 0)).BigInt()
}

// WeiToEther converts wei back to a display-unit decimal.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}
