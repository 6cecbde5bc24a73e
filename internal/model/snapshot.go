package model

// Snapshot is the full persisted ledger: pool, user records and the
// balances held by the local token bank.
type Snapshot struct {
	Pool     *Pool           `json:"pool,omitempty"`
	Users    []UserStakeInfo `json:"users"`
	Accounts []TokenAccount  `json:"accounts"`
}
