package model

// Operation kinds recorded in the journal.
const (
	OpInitialize     = "initialize"
	OpDepositReward  = "deposit_reward"
	OpWithdrawReward = "withdraw_reward"
	OpStake          = "stake"
	OpUnstake        = "unstake"
)

// OperationRecord is the journal entry for one committed operation.
type OperationRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Signer      string `json:"signer"`
	Tier        *uint8 `json:"tier,omitempty"`
	Amount      uint64 `json:"amount"`
	Reward      uint64 `json:"reward,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	TotalStaked uint64 `json:"total_staked"`
	Timestamp   uint64 `json:"timestamp"`
	RecordedAt  string `json:"recorded_at"`
}
