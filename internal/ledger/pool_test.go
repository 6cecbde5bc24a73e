package ledger

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/model"
)

var (
	testOwner       = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	testStakingMint = solana.MustPublicKeyFromBase58("3cZgprrFWMqvmFB93aFoXXmpZL5mXb8PzZM8srdHwdVG")
	testRewardMint  = solana.MustPublicKeyFromBase58("EivE3x68mijknzjhnJqBBad32njcgZy4niLsYeBWA9bu")
)

func validTiers() [model.TierCount]model.Tier {
	return [model.TierCount]model.Tier{
		{LockPeriod: 2592000, RewardRate: 4},
		{LockPeriod: 7776000, RewardRate: 12},
		{LockPeriod: 15552000, RewardRate: 24},
		{LockPeriod: 31104000, RewardRate: 48},
	}
}

func TestNewPool(t *testing.T) {
	pool, err := NewPool(testOwner, validTiers(), solana.PublicKey{1}, 254,
		model.Vault{Address: solana.PublicKey{2}, Mint: testStakingMint, Bump: 253},
		model.Vault{Address: solana.PublicKey{3}, Mint: testRewardMint, Bump: 252},
	)
	require.NoError(t, err)
	require.Equal(t, testOwner, pool.Owner)
	require.Equal(t, testStakingMint, pool.StakingMint)
	require.Equal(t, testRewardMint, pool.RewardMint)
	require.Zero(t, pool.TotalStaked)
	require.Equal(t, uint8(254), pool.Bump)
}

func TestNewPoolRejections(t *testing.T) {
	staking := model.Vault{Mint: testStakingMint}
	rewardVault := model.Vault{Mint: testRewardMint}

	zeroLock := validTiers()
	zeroLock[2].LockPeriod = 0

	_, err := NewPool(testOwner, zeroLock, solana.PublicKey{}, 0, staking, rewardVault)
	require.ErrorIs(t, err, stakeerr.ErrInvalidTier)

	_, err = NewPool(testOwner, validTiers(), solana.PublicKey{}, 0, staking, staking)
	require.ErrorIs(t, err, stakeerr.ErrInvalidMint)

	_, err = NewPool(testOwner, validTiers(), solana.PublicKey{}, 0, model.Vault{}, rewardVault)
	require.ErrorIs(t, err, stakeerr.ErrInvalidMint)

	_, err = NewPool(solana.PublicKey{}, validTiers(), solana.PublicKey{}, 0, staking, rewardVault)
	require.ErrorIs(t, err, stakeerr.ErrNotOwner)
}

func TestTotalStakedArithmetic(t *testing.T) {
	pool, err := AddStake(model.Pool{}, 1500)
	require.NoError(t, err)
	pool, err = RemoveStake(pool, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(500), pool.TotalStaked)

	_, err = RemoveStake(pool, 501)
	require.ErrorIs(t, err, stakeerr.ErrOverflow)

	_, err = AddStake(model.Pool{TotalStaked: math.MaxUint64}, 1)
	require.ErrorIs(t, err, stakeerr.ErrOverflow)
}

func TestRewardFundingChecks(t *testing.T) {
	require.NoError(t, CheckRewardDeposit(100, 100))
	require.ErrorIs(t, CheckRewardDeposit(99, 100), stakeerr.ErrInsufficientBalance)
	require.ErrorIs(t, CheckRewardDeposit(99, 0), stakeerr.ErrInvalidAmount)

	require.NoError(t, CheckRewardWithdraw(100, 100))
	require.ErrorIs(t, CheckRewardWithdraw(99, 100), stakeerr.ErrInsufficientBalance)
	require.ErrorIs(t, CheckRewardWithdraw(99, 0), stakeerr.ErrInvalidAmount)
}

func TestCheckPayout(t *testing.T) {
	require.NoError(t, CheckPayout(1500, 200, Settlement{Principal: 1500, Reward: 200}))
	require.ErrorIs(t, CheckPayout(1500, 199, Settlement{Principal: 1500, Reward: 200}), stakeerr.ErrInsufficientBalance)
	require.ErrorIs(t, CheckPayout(1499, 200, Settlement{Principal: 1500, Reward: 200}), stakeerr.ErrInsufficientBalance)
}
