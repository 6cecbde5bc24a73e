// Package custody owns the two pool vaults and every value movement in or out
// of them. Vault accounts are owned by their own derived address, so the only
// authority able to move funds out is this package acting on the pool record.
package custody

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"tierStaking/internal/ledger"
	"tierStaking/internal/model"
)

// Custody routes transfers between user token accounts and the pool vaults.
type Custody struct {
	programID solana.PublicKey
	bank      Bank
}

func New(programID solana.PublicKey, bank Bank) *Custody {
	return &Custody{programID: programID, bank: bank}
}

func (c *Custody) ProgramID() solana.PublicKey {
	return c.programID
}

// DeriveVaults returns the staking and reward vaults for the two mints.
func (c *Custody) DeriveVaults(stakingMint, rewardMint solana.PublicKey) (model.Vault, model.Vault, error) {
	stakingAddr, stakingBump, err := DeriveStakingVaultPDA(c.programID, stakingMint)
	if err != nil {
		return model.Vault{}, model.Vault{}, fmt.Errorf("derive staking vault: %w", err)
	}
	rewardAddr, rewardBump, err := DeriveRewardVaultPDA(c.programID, rewardMint)
	if err != nil {
		return model.Vault{}, model.Vault{}, fmt.Errorf("derive reward vault: %w", err)
	}
	return model.Vault{Address: stakingAddr, Mint: stakingMint, Bump: stakingBump},
		model.Vault{Address: rewardAddr, Mint: rewardMint, Bump: rewardBump},
		nil
}

// OpenVaults opens both vault accounts, each owned by itself.
func (c *Custody) OpenVaults(ctx context.Context, pool model.Pool) error {
	for _, vault := range []model.Vault{pool.StakingVault, pool.RewardVault} {
		err := c.bank.Open(ctx, model.TokenAccount{
			Address: vault.Address,
			Mint:    vault.Mint,
			Owner:   vault.Address,
		})
		if err != nil {
			return fmt.Errorf("open vault %s: %w", vault.Address, err)
		}
	}
	return nil
}

// OpenUserAccounts opens the associated staking and reward token accounts of
// user if they do not exist yet.
func (c *Custody) OpenUserAccounts(ctx context.Context, pool model.Pool, user solana.PublicKey) error {
	for _, mint := range []solana.PublicKey{pool.StakingMint, pool.RewardMint} {
		addr, err := UserTokenAccount(user, mint)
		if err != nil {
			return fmt.Errorf("derive token account: %w", err)
		}
		if err := c.bank.Open(ctx, model.TokenAccount{Address: addr, Mint: mint, Owner: user}); err != nil {
			return fmt.Errorf("open token account %s: %w", addr, err)
		}
	}
	return nil
}

// VaultBalances returns the staking and reward vault balances.
func (c *Custody) VaultBalances(ctx context.Context, pool model.Pool) (uint64, uint64, error) {
	staking, err := c.bank.Balance(ctx, pool.StakingVault.Address)
	if err != nil {
		return 0, 0, fmt.Errorf("staking vault balance: %w", err)
	}
	rewards, err := c.bank.Balance(ctx, pool.RewardVault.Address)
	if err != nil {
		return 0, 0, fmt.Errorf("reward vault balance: %w", err)
	}
	return staking, rewards, nil
}

// UserBalance returns the balance of user's associated account for mint.
func (c *Custody) UserBalance(ctx context.Context, user, mint solana.PublicKey) (uint64, error) {
	addr, err := UserTokenAccount(user, mint)
	if err != nil {
		return 0, fmt.Errorf("derive token account: %w", err)
	}
	return c.bank.Balance(ctx, addr)
}

// DepositStake moves amount of the staking asset from user into the staking
// vault.
func (c *Custody) DepositStake(ctx context.Context, pool model.Pool, user solana.PublicKey, amount uint64) error {
	from, err := UserTokenAccount(user, pool.StakingMint)
	if err != nil {
		return fmt.Errorf("derive token account: %w", err)
	}
	return c.bank.TransferBatch(ctx, []Transfer{{
		From:      from,
		To:        pool.StakingVault.Address,
		Authority: user,
		Amount:    amount,
	}})
}

// DepositReward moves amount of the reward asset from owner into the reward
// vault.
func (c *Custody) DepositReward(ctx context.Context, pool model.Pool, owner solana.PublicKey, amount uint64) error {
	from, err := UserTokenAccount(owner, pool.RewardMint)
	if err != nil {
		return fmt.Errorf("derive token account: %w", err)
	}
	return c.bank.TransferBatch(ctx, []Transfer{{
		From:      from,
		To:        pool.RewardVault.Address,
		Authority: owner,
		Amount:    amount,
	}})
}

// WithdrawReward moves amount out of the reward vault into recipient.
func (c *Custody) WithdrawReward(ctx context.Context, pool model.Pool, recipient solana.PublicKey, amount uint64) error {
	return c.bank.TransferBatch(ctx, []Transfer{{
		From:      pool.RewardVault.Address,
		To:        recipient,
		Authority: pool.RewardVault.Address,
		Amount:    amount,
	}})
}

// Payout pays an unstake settlement to user: principal from the staking vault
// and reward from the reward vault, as one batch.
func (c *Custody) Payout(ctx context.Context, pool model.Pool, user solana.PublicKey, s ledger.Settlement) error {
	stakingTo, err := UserTokenAccount(user, pool.StakingMint)
	if err != nil {
		return fmt.Errorf("derive token account: %w", err)
	}
	rewardTo, err := UserTokenAccount(user, pool.RewardMint)
	if err != nil {
		return fmt.Errorf("derive token account: %w", err)
	}
	return c.bank.TransferBatch(ctx, []Transfer{
		{
			From:      pool.StakingVault.Address,
			To:        stakingTo,
			Authority: pool.StakingVault.Address,
			Amount:    s.Principal,
		},
		{
			From:      pool.RewardVault.Address,
			To:        rewardTo,
			Authority: pool.RewardVault.Address,
			Amount:    s.Reward,
		},
	})
}
