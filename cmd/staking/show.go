package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tierStaking/internal/config"
	"tierStaking/internal/ledger"
	"tierStaking/internal/model"
)

type tierView struct {
	Tier    uint8          `json:"tier"`
	Slot    model.TierSlot `json:"slot"`
	Accrual ledger.Accrual `json:"accrual"`
}

type userView struct {
	User           string     `json:"user"`
	Record         string     `json:"record"`
	StakingBalance uint64     `json:"staking_balance"`
	RewardBalance  uint64     `json:"reward_balance"`
	Tiers          []tierView `json:"tiers"`
}

type poolView struct {
	Pool          model.Pool `json:"pool"`
	StakingVault  uint64     `json:"staking_vault_balance"`
	RewardVault   uint64     `json:"reward_vault_balance"`
	StakeAccounts int        `json:"stake_records"`
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [user]",
		Short: "Print the pool, or a user's positions and accrued rewards",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			pool, err := requirePool(rt)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				staking, rewards, err := rt.engine.Custody().VaultBalances(ctx, pool)
				if err != nil {
					return err
				}
				return printJSON(cmd, poolView{
					Pool:          pool,
					StakingVault:  staking,
					RewardVault:   rewards,
					StakeAccounts: len(rt.engine.Snapshot().Users),
				})
			}

			user, err := config.PublicKey("user", args[0])
			if err != nil {
				return err
			}
			record, ok := rt.engine.UserStake(user)
			if !ok {
				return fmt.Errorf("no stake record for %s", user)
			}
			view := userView{User: user.String(), Record: record.Address.String()}
			// accounts may not exist yet for a user that never staked
			view.StakingBalance, _ = rt.engine.Custody().UserBalance(ctx, user, pool.StakingMint)
			view.RewardBalance, _ = rt.engine.Custody().UserBalance(ctx, user, pool.RewardMint)
			for i, slot := range record.Slots {
				tier := uint8(i)
				accrual, err := rt.engine.Accrued(ctx, user, tier)
				if err != nil {
					return fmt.Errorf("accrued tier %d: %w", tier, err)
				}
				view.Tiers = append(view.Tiers, tierView{Tier: tier, Slot: slot, Accrual: accrual})
			}
			return printJSON(cmd, view)
		},
	}
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
