package model

import "github.com/gagliardetto/solana-go"

// TierSlot is a user's position in a single tier.
type TierSlot struct {
	Amount        uint64 `json:"amount"`
	StakedAt      uint64 `json:"staked_at"`
	LastClaimedAt uint64 `json:"last_claimed_at"`
	PendingReward uint64 `json:"pending_reward"`
	ClaimedTotal  uint64 `json:"claimed_total"`
}

// Staked reports whether the slot holds principal.
func (s TierSlot) Staked() bool {
	return s.Amount > 0
}

// UserStakeInfo holds all four tier slots for one user. Address is the
// record key derived from the user's identity.
type UserStakeInfo struct {
	Address solana.PublicKey    `json:"address"`
	User    solana.PublicKey    `json:"user"`
	Slots   [TierCount]TierSlot `json:"slots"`
}

// TotalAmount sums principal across all slots.
func (u UserStakeInfo) TotalAmount() uint64 {
	var total uint64
	for _, slot := range u.Slots {
		total += slot.Amount
	}
	return total
}
