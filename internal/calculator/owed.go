package calculator

import (
	"github.com/holiman/uint256"

	"YieldFlow/internal/errs"
	"YieldFlow/internal/model"
)

// CalculateOwed converts the appreciation between baseRate and currentRate
// into underlying units owed on stakedAmount:
//
//	stakedAmount * (currentRate - baseRate) / model.Precision
//
// truncated toward zero. A flat or falling rate yields ErrRateNotIncreased.
func CalculateOwed(stakedAmount, baseRate, currentRate uint64) (uint64, error) {
	if currentRate <= baseRate {
		return 0, errs.ErrRateNotIncreased.Newf("current %d, base %d", currentRate, baseRate)
	}
	delta := currentRate - baseRate

	raw, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(stakedAmount), uint256.NewInt(delta))
	if overflow || !raw.IsUint64() {
		return 0, errs.ErrArithmeticOverflow.Newf("stake %d * delta %d", stakedAmount, delta)
	}
	return raw.Uint64() / model.Precision, nil
}
