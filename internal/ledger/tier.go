// Package ledger holds the per-tier stake state machine and the pool-wide
// accounting rules. Every function works on values and returns the new state,
// leaving the caller to commit it once custody has moved the funds.
package ledger

import (
	gethmath "github.com/ethereum/go-ethereum/common/math"

	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/model"
	"tierStaking/internal/reward"
)

// Settlement is what an unstake pays out of the two vaults.
type Settlement struct {
	Principal uint64 `json:"principal"`
	Reward    uint64 `json:"reward"`
}

// Accrual is a read-only view of what a slot would pay at a given time.
type Accrual struct {
	Principal uint64 `json:"principal"`
	Reward    uint64 `json:"reward"`
	UnlocksAt uint64 `json:"unlocks_at"`
	Unlocked  bool   `json:"unlocked"`
}

// Stake deposits amount into slot at now. A slot that already holds principal
// is rebased first: reward accrued since the last claim is rolled into
// PendingReward and the lock clock restarts at now for the whole position.
func Stake(slot model.TierSlot, tier model.Tier, amount, now uint64) (model.TierSlot, error) {
	if amount == 0 {
		return slot, stakeerr.ErrInvalidAmount
	}
	elapsed, err := reward.Elapsed(now, slot.LastClaimedAt)
	if err != nil {
		return slot, err
	}

	next := slot
	if slot.Staked() {
		pending, err := reward.Compute(slot.Amount, elapsed, tier.LockPeriod, tier.RewardRate, slot.PendingReward)
		if err != nil {
			return slot, err
		}
		next.PendingReward = pending
	}

	total, overflow := gethmath.SafeAdd(slot.Amount, amount)
	if overflow {
		return slot, stakeerr.ErrOverflow
	}
	next.Amount = total
	next.StakedAt = now
	next.LastClaimedAt = now
	return next, nil
}

// Unstake empties slot at now and returns the settlement owed to the user.
// The lock boundary is inclusive: now == StakedAt+LockPeriod unlocks.
func Unstake(slot model.TierSlot, tier model.Tier, now uint64) (model.TierSlot, Settlement, error) {
	accrual, err := Accrued(slot, tier, now)
	if err != nil {
		return slot, Settlement{}, err
	}
	if !slot.Staked() {
		return slot, Settlement{}, stakeerr.ErrNothingStaked
	}
	if !accrual.Unlocked {
		return slot, Settlement{}, stakeerr.ErrLocked
	}

	claimed, overflow := gethmath.SafeAdd(slot.ClaimedTotal, accrual.Reward)
	if overflow {
		return slot, Settlement{}, stakeerr.ErrOverflow
	}

	next := model.TierSlot{
		LastClaimedAt: now,
		ClaimedTotal:  claimed,
	}
	return next, Settlement{Principal: slot.Amount, Reward: accrual.Reward}, nil
}

// Accrued reports the reward slot would pay if unstaked at now.
func Accrued(slot model.TierSlot, tier model.Tier, now uint64) (Accrual, error) {
	elapsed, err := reward.Elapsed(now, slot.LastClaimedAt)
	if err != nil {
		return Accrual{}, err
	}
	if !slot.Staked() {
		return Accrual{}, nil
	}

	amount, err := reward.Compute(slot.Amount, elapsed, tier.LockPeriod, tier.RewardRate, slot.PendingReward)
	if err != nil {
		return Accrual{}, err
	}

	unlocksAt, overflow := gethmath.SafeAdd(slot.StakedAt, tier.LockPeriod)
	return Accrual{
		Principal: slot.Amount,
		Reward:    amount,
		UnlocksAt: unlocksAt,
		Unlocked:  !overflow && now >= unlocksAt,
	}, nil
}
