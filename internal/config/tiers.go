package config

import (
	"fmt"
	"strconv"

	"tierStaking/internal/model"
)

// DefaultTiers are 30, 90, 180 and 360 day locks at 4, 12, 24 and 48 percent.
var DefaultTiers = [model.TierCount]model.Tier{
	{LockPeriod: 2592000, RewardRate: 4},
	{LockPeriod: 7776000, RewardRate: 12},
	{LockPeriod: 15552000, RewardRate: 24},
	{LockPeriod: 31104000, RewardRate: 48},
}

// ParseTiers builds the tier table from lock periods in seconds and reward
// rates in percent. Empty lists fall back to DefaultTiers.
func ParseTiers(lockPeriods, rewardRates []string) ([model.TierCount]model.Tier, error) {
	tiers := DefaultTiers

	if len(lockPeriods) > 0 {
		if len(lockPeriods) != model.TierCount {
			return tiers, fmt.Errorf("lock-periods needs %d values, got %d", model.TierCount, len(lockPeriods))
		}
		for i, raw := range lockPeriods {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return tiers, fmt.Errorf("parse lock period %q: %w", raw, err)
			}
			if v == 0 {
				return tiers, fmt.Errorf("lock period for tier %d must be > 0", i)
			}
			tiers[i].LockPeriod = v
		}
	}

	if len(rewardRates) > 0 {
		if len(rewardRates) != model.TierCount {
			return tiers, fmt.Errorf("reward-rates needs %d values, got %d", model.TierCount, len(rewardRates))
		}
		for i, raw := range rewardRates {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return tiers, fmt.Errorf("parse reward rate %q: %w", raw, err)
			}
			tiers[i].RewardRate = v
		}
	}

	return tiers, nil
}
