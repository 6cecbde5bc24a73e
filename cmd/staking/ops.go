package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tierStaking/internal/config"
	"tierStaking/internal/custody"
	"tierStaking/internal/model"
)

// withRuntime wires the ledger, runs fn and persists the snapshot if fn
// succeeds.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := fn(ctx, rt); err != nil {
		return err
	}
	return rt.save(ctx)
}

func requirePool(rt *runtime) (model.Pool, error) {
	pool, ok := rt.engine.Pool()
	if !ok {
		return model.Pool{}, fmt.Errorf("pool is not initialized; run init first")
	}
	return pool, nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the pool with the signer as owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				signer, err := rt.signer()
				if err != nil {
					return err
				}
				stakingMint, err := config.PublicKey("staking-mint", rt.cfg.StakingMint)
				if err != nil {
					return err
				}
				rewardMint, err := config.PublicKey("reward-mint", rt.cfg.RewardMint)
				if err != nil {
					return err
				}
				if err := rt.engine.Initialize(ctx, signer, stakingMint, rewardMint, rt.cfg.Tiers); err != nil {
					return err
				}
				pool, _ := rt.engine.Pool()
				// the owner needs a reward account to fund the pool
				if err := rt.engine.Custody().OpenUserAccounts(ctx, pool, signer); err != nil {
					return err
				}
				return printJSON(cmd, pool)
			})
		},
	}
	cmd.Flags().String("staking-mint", "", "mint of the staked asset")
	cmd.Flags().String("reward-mint", "", "mint of the reward asset")
	cmd.Flags().StringSlice("lock-periods", nil, "four lock periods in seconds (comma-separated)")
	cmd.Flags().StringSlice("reward-rates", nil, "four reward rates in percent (comma-separated)")
	return cmd
}

func newDepositRewardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit-reward",
		Short: "Fund the reward vault from the owner's reward account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, _ := cmd.Flags().GetUint64("amount")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				signer, err := rt.signer()
				if err != nil {
					return err
				}
				return rt.engine.DepositReward(ctx, signer, amount)
			})
		},
	}
	cmd.Flags().Uint64("amount", 0, "reward tokens to deposit")
	return cmd
}

func newWithdrawRewardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw-reward",
		Short: "Withdraw reward tokens from the reward vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, _ := cmd.Flags().GetUint64("amount")
			recipientRaw, _ := cmd.Flags().GetString("recipient")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				signer, err := rt.signer()
				if err != nil {
					return err
				}
				var recipient solana.PublicKey
				if recipientRaw != "" {
					if recipient, err = config.PublicKey("recipient", recipientRaw); err != nil {
						return err
					}
				}
				return rt.engine.WithdrawReward(ctx, signer, amount, recipient)
			})
		},
	}
	cmd.Flags().Uint64("amount", 0, "reward tokens to withdraw")
	cmd.Flags().String("recipient", "", "destination reward token account (default: owner's own)")
	return cmd
}

func newStakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake tokens into a tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tier, _ := cmd.Flags().GetUint8("tier")
			amount, _ := cmd.Flags().GetUint64("amount")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				signer, err := rt.signer()
				if err != nil {
					return err
				}
				pool, err := requirePool(rt)
				if err != nil {
					return err
				}
				if err := rt.engine.Custody().OpenUserAccounts(ctx, pool, signer); err != nil {
					return err
				}
				if err := rt.engine.Stake(ctx, signer, tier, amount); err != nil {
					return err
				}
				record, _ := rt.engine.UserStake(signer)
				return printJSON(cmd, record)
			})
		},
	}
	cmd.Flags().Uint8("tier", 0, "tier index (0-3)")
	cmd.Flags().Uint64("amount", 0, "tokens to stake")
	return cmd
}

func newUnstakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unstake",
		Short: "Withdraw a tier position with its reward",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tier, _ := cmd.Flags().GetUint8("tier")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				signer, err := rt.signer()
				if err != nil {
					return err
				}
				settlement, err := rt.engine.Unstake(ctx, signer, tier)
				if err != nil {
					return err
				}
				return printJSON(cmd, settlement)
			})
		},
	}
	cmd.Flags().Uint8("tier", 0, "tier index (0-3)")
	return cmd
}

func newFaucetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faucet",
		Short: "Credit a user's token account in the local bank",
		RunE: func(cmd *cobra.Command, _ []string) error {
			toRaw, _ := cmd.Flags().GetString("to")
			asset, _ := cmd.Flags().GetString("asset")
			amount, _ := cmd.Flags().GetUint64("amount")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				to, err := config.PublicKey("to", toRaw)
				if err != nil {
					return err
				}
				pool, err := requirePool(rt)
				if err != nil {
					return err
				}
				var mint solana.PublicKey
				switch asset {
				case "staking":
					mint = pool.StakingMint
				case "reward":
					mint = pool.RewardMint
				default:
					return fmt.Errorf("unknown asset %q (staking, reward)", asset)
				}
				if err := rt.engine.Custody().OpenUserAccounts(ctx, pool, to); err != nil {
					return err
				}
				account, err := custody.UserTokenAccount(to, mint)
				if err != nil {
					return err
				}
				if err := rt.bank.Credit(ctx, account, amount); err != nil {
					return err
				}
				rt.logger.Info("faucet credit",
					zap.String("to", to.String()),
					zap.String("account", account.String()),
					zap.String("asset", asset),
					zap.Uint64("amount", amount),
				)
				return nil
			})
		},
	}
	cmd.Flags().String("to", "", "wallet to credit")
	cmd.Flags().String("asset", "staking", "asset to credit (staking, reward)")
	cmd.Flags().Uint64("amount", 0, "tokens to credit")
	return cmd
}
