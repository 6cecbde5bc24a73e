package model

import "github.com/gagliardetto/solana-go"

// TierCount is the fixed number of staking tiers in a pool.
const TierCount = 4

// Tier is one (lock period, reward rate) staking option. RewardRate is a
// percentage applied per full lock period.
type Tier struct {
	LockPeriod uint64 `json:"lock_period_seconds"`
	RewardRate uint64 `json:"reward_rate"`
}

// Vault is a custodial token account owned by its own derived address.
type Vault struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Bump    uint8            `json:"bump"`
}

// Pool is the single global staking record.
type Pool struct {
	Address      solana.PublicKey `json:"address"`
	Bump         uint8            `json:"bump"`
	Owner        solana.PublicKey `json:"owner"`
	StakingMint  solana.PublicKey `json:"staking_mint"`
	RewardMint   solana.PublicKey `json:"reward_mint"`
	Tiers        [TierCount]Tier  `json:"tiers"`
	TotalStaked  uint64           `json:"total_staked"`
	StakingVault Vault            `json:"staking_vault"`
	RewardVault  Vault            `json:"reward_vault"`
}

// Tier returns the tier at index, or false if the index is out of range.
func (p Pool) Tier(index uint8) (Tier, bool) {
	if int(index) >= TierCount {
		return Tier{}, false
	}
	return p.Tiers[index], true
}
