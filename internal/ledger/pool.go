package ledger

import (
	"fmt"

	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"

	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/model"
)

// ValidateTiers rejects tier sets that could divide by zero at accrual time.
func ValidateTiers(tiers [model.TierCount]model.Tier) error {
	for i, tier := range tiers {
		if tier.LockPeriod == 0 {
			return fmt.Errorf("tier %d lock period is zero: %w", i, stakeerr.ErrInvalidTier)
		}
	}
	return nil
}

// NewPool builds the pool record for owner. The record and vault addresses
// are produced by custody and carried here as opaque data.
func NewPool(
	owner solana.PublicKey,
	tiers [model.TierCount]model.Tier,
	address solana.PublicKey,
	bump uint8,
	stakingVault model.Vault,
	rewardVault model.Vault,
) (model.Pool, error) {
	if owner.IsZero() {
		return model.Pool{}, stakeerr.ErrNotOwner
	}
	if stakingVault.Mint.IsZero() || rewardVault.Mint.IsZero() {
		return model.Pool{}, stakeerr.ErrInvalidMint
	}
	if stakingVault.Mint.Equals(rewardVault.Mint) {
		return model.Pool{}, fmt.Errorf("staking and reward mint must differ: %w", stakeerr.ErrInvalidMint)
	}
	if err := ValidateTiers(tiers); err != nil {
		return model.Pool{}, err
	}

	return model.Pool{
		Address:      address,
		Bump:         bump,
		Owner:        owner,
		StakingMint:  stakingVault.Mint,
		RewardMint:   rewardVault.Mint,
		Tiers:        tiers,
		StakingVault: stakingVault,
		RewardVault:  rewardVault,
	}, nil
}

// AddStake returns pool with amount added to TotalStaked.
func AddStake(pool model.Pool, amount uint64) (model.Pool, error) {
	total, overflow := gethmath.SafeAdd(pool.TotalStaked, amount)
	if overflow {
		return pool, stakeerr.ErrOverflow
	}
	pool.TotalStaked = total
	return pool, nil
}

// RemoveStake returns pool with amount removed from TotalStaked.
func RemoveStake(pool model.Pool, amount uint64) (model.Pool, error) {
	total, underflow := gethmath.SafeSub(pool.TotalStaked, amount)
	if underflow {
		return pool, stakeerr.ErrOverflow
	}
	pool.TotalStaked = total
	return pool, nil
}

// CheckRewardDeposit validates an owner funding the reward vault.
func CheckRewardDeposit(ownerBalance, amount uint64) error {
	if amount == 0 {
		return stakeerr.ErrInvalidAmount
	}
	if ownerBalance < amount {
		return stakeerr.ErrInsufficientBalance
	}
	return nil
}

// CheckRewardWithdraw validates an owner draining the reward vault. There is
// no floor tied to rewards still owed to stakers.
func CheckRewardWithdraw(vaultBalance, amount uint64) error {
	if amount == 0 {
		return stakeerr.ErrInvalidAmount
	}
	if vaultBalance < amount {
		return stakeerr.ErrInsufficientBalance
	}
	return nil
}

// CheckPayout validates that both vaults can cover a settlement.
func CheckPayout(stakingVaultBalance, rewardVaultBalance uint64, s Settlement) error {
	if rewardVaultBalance < s.Reward {
		return fmt.Errorf("reward vault holds %d, owes %d: %w", rewardVaultBalance, s.Reward, stakeerr.ErrInsufficientBalance)
	}
	if stakingVaultBalance < s.Principal {
		return fmt.Errorf("staking vault holds %d, owes %d: %w", stakingVaultBalance, s.Principal, stakeerr.ErrInsufficientBalance)
	}
	return nil
}
