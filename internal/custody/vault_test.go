package custody

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/ledger"
	"tierStaking/internal/model"
)

var testProgramID = solana.MustPublicKeyFromBase58("HJsEfnpgjEhEPa3SYcg6pchqhh2pFGSi331hTyqs5iis")

func setupCustody(t *testing.T) (*Custody, *MemoryBank, model.Pool) {
	t.Helper()
	ctx := context.Background()
	bank := NewMemoryBank()
	c := New(testProgramID, bank)

	stakingVault, rewardVault, err := c.DeriveVaults(mintA, mintB)
	require.NoError(t, err)
	pool := model.Pool{
		Owner:        alice,
		StakingMint:  mintA,
		RewardMint:   mintB,
		StakingVault: stakingVault,
		RewardVault:  rewardVault,
	}
	require.NoError(t, c.OpenVaults(ctx, pool))
	require.NoError(t, c.OpenUserAccounts(ctx, pool, alice))
	require.NoError(t, c.OpenUserAccounts(ctx, pool, bob))
	return c, bank, pool
}

func TestDeriveVaultsDeterministic(t *testing.T) {
	c := New(testProgramID, NewMemoryBank())
	s1, r1, err := c.DeriveVaults(mintA, mintB)
	require.NoError(t, err)
	s2, r2, err := c.DeriveVaults(mintA, mintB)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
	require.Equal(t, r1, r2)
	require.NotEqual(t, s1.Address, r1.Address)

	want, bump, err := DeriveStakingVaultPDA(testProgramID, mintA)
	require.NoError(t, err)
	require.Equal(t, want, s1.Address)
	require.Equal(t, bump, s1.Bump)
}

func TestDeriveUserStakePDAPerUser(t *testing.T) {
	a, _, err := DeriveUserStakePDA(testProgramID, alice)
	require.NoError(t, err)
	b, _, err := DeriveUserStakePDA(testProgramID, bob)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDepositAndPayout(t *testing.T) {
	ctx := context.Background()
	c, bank, pool := setupCustody(t)

	aliceStaking, err := UserTokenAccount(alice, mintA)
	require.NoError(t, err)
	aliceReward, err := UserTokenAccount(alice, mintB)
	require.NoError(t, err)
	require.NoError(t, bank.Credit(ctx, aliceStaking, 1500))
	require.NoError(t, bank.Credit(ctx, aliceReward, 1000))

	require.NoError(t, c.DepositStake(ctx, pool, alice, 1500))
	require.NoError(t, c.DepositReward(ctx, pool, alice, 1000))

	staking, rewards, err := c.VaultBalances(ctx, pool)
	require.NoError(t, err)
	require.Equal(t, uint64(1500), staking)
	require.Equal(t, uint64(1000), rewards)

	require.NoError(t, c.Payout(ctx, pool, alice, ledger.Settlement{Principal: 1500, Reward: 200}))

	staking, rewards, err = c.VaultBalances(ctx, pool)
	require.NoError(t, err)
	require.Zero(t, staking)
	require.Equal(t, uint64(800), rewards)

	bal, err := c.UserBalance(ctx, alice, mintB)
	require.NoError(t, err)
	require.Equal(t, uint64(200), bal)
}

func TestPayoutUnfundedLegMovesNothing(t *testing.T) {
	ctx := context.Background()
	c, bank, pool := setupCustody(t)

	bobStaking, err := UserTokenAccount(bob, mintA)
	require.NoError(t, err)
	require.NoError(t, bank.Credit(ctx, bobStaking, 500))
	require.NoError(t, c.DepositStake(ctx, pool, bob, 500))

	before := bank.Accounts()
	err = c.Payout(ctx, pool, bob, ledger.Settlement{Principal: 500, Reward: 1})
	require.ErrorIs(t, err, stakeerr.ErrInsufficientBalance)
	require.Equal(t, before, bank.Accounts())
}

func TestWithdrawRewardOnlyFromVault(t *testing.T) {
	ctx := context.Background()
	c, bank, pool := setupCustody(t)

	aliceReward, err := UserTokenAccount(alice, mintB)
	require.NoError(t, err)
	bobReward, err := UserTokenAccount(bob, mintB)
	require.NoError(t, err)
	require.NoError(t, bank.Credit(ctx, aliceReward, 50))
	require.NoError(t, c.DepositReward(ctx, pool, alice, 50))

	require.NoError(t, c.WithdrawReward(ctx, pool, bobReward, 20))
	bal, err := c.UserBalance(ctx, bob, mintB)
	require.NoError(t, err)
	require.Equal(t, uint64(20), bal)

	err = c.WithdrawReward(ctx, pool, bobReward, 31)
	require.ErrorIs(t, err, stakeerr.ErrInsufficientBalance)
}
