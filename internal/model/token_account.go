package model

import "github.com/gagliardetto/solana-go"

// TokenAccount is a balance of one mint controlled by Owner.
type TokenAccount struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
	Amount  uint64           `json:"amount"`
}
