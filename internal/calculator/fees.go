package calculator

import (
	"github.com/holiman/uint256"

	"YieldFlow/internal/errs"
)

// BasisPoints is 100% expressed in bps.
const BasisPoints uint64 = 10_000

const percentDenom uint64 = 100

// CalculateFee returns amount * feeRateBps / 10_000, truncated.
func CalculateFee(amount, feeRateBps uint64) (uint64, error) {
	if feeRateBps == 0 {
		return 0, nil
	}
	return mulDiv(amount, feeRateBps, BasisPoints)
}

// CalculatePercentage returns value * pct / 100, truncated.
func CalculatePercentage(value, pct uint64) (uint64, error) {
	return mulDiv(value, pct, percentDenom)
}

// mulDiv fails when the intermediate product does not fit in 64 bits, the
// same bound the settlement path works under.
func mulDiv(a, b, denom uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, errs.ErrArithmeticOverflow.Newf("%d * %d", a, b)
	}
	return product.Uint64() / denom, nil
}
