package calculator

import (
	"github.com/holiman/uint256"

	"YieldFlow/internal/errs"
)

// CalculateCompoundInterest applies ratePerPeriodBps to principal for the
// given number of periods, truncating after every period, and returns only
// the accrued interest.
func CalculateCompoundInterest(principal, ratePerPeriodBps, periods uint64) (uint64, error) {
	if ratePerPeriodBps == 0 || periods == 0 {
		return 0, nil
	}

	factor := new(uint256.Int).Add(uint256.NewInt(BasisPoints), uint256.NewInt(ratePerPeriodBps))
	denom := uint256.NewInt(BasisPoints)
	amount := uint256.NewInt(principal)

	for i := uint64(0); i < periods; i++ {
		next, overflow := new(uint256.Int).MulOverflow(amount, factor)
		if overflow {
			return 0, errs.ErrArithmeticOverflow.Newf("compound period %d", i+1)
		}
		amount = next.Div(next, denom)
		if !amount.IsUint64() {
			return 0, errs.ErrArithmeticOverflow.Newf("compound period %d", i+1)
		}
	}
	return amount.Uint64() - principal, nil
}
