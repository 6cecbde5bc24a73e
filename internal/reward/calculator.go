// Package reward implements the time-weighted tier reward formula.
package reward

import (
	"github.com/holiman/uint256"

	stakeerr "tierStaking/internal/errors"
)

var hundred = uint256.NewInt(100)

// Compute returns the reward accrued by staked over elapsed seconds in a tier
// with the given lock period and percentage rate, plus the carried pending
// amount:
//
//	floor(floor(staked*elapsed/lockPeriod) * rate / 100) + pending
//
// Intermediates are 256-bit so no 64-bit inputs can overflow mid-formula. A
// result that does not fit in 64 bits is ErrOverflow.
func Compute(staked, elapsed, lockPeriod, rate, pending uint64) (uint64, error) {
	if lockPeriod == 0 {
		return 0, stakeerr.ErrInvalidTier
	}

	acc := new(uint256.Int).Mul(uint256.NewInt(staked), uint256.NewInt(elapsed))
	acc.Div(acc, uint256.NewInt(lockPeriod))
	acc.Mul(acc, uint256.NewInt(rate))
	acc.Div(acc, hundred)

	if _, overflow := acc.AddOverflow(acc, uint256.NewInt(pending)); overflow {
		return 0, stakeerr.ErrOverflow
	}
	if !acc.IsUint64() {
		return 0, stakeerr.ErrOverflow
	}
	return acc.Uint64(), nil
}

// Elapsed returns now-since, or ErrClockRegression when now is behind since.
func Elapsed(now, since uint64) (uint64, error) {
	if now < since {
		return 0, stakeerr.ErrClockRegression
	}
	return now - since, nil
}
