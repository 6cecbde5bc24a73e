package custody

import (
	"github.com/gagliardetto/solana-go"
)

var (
	seedStakingInfo   = []byte("staking_info")
	seedStakingVaults = []byte("staking_token_vaults")
	seedRewardVaults  = []byte("reward_token_vaults")
	seedUserStakeInfo = []byte("user_stake_info")
)

func DerivePoolPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedStakingInfo}, programID)
}

func DeriveStakingVaultPDA(programID solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedStakingVaults, mint.Bytes()}, programID)
}

func DeriveRewardVaultPDA(programID solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedRewardVaults, mint.Bytes()}, programID)
}

func DeriveUserStakePDA(programID solana.PublicKey, user solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedUserStakeInfo, user.Bytes()}, programID)
}

// UserTokenAccount returns the associated token account of owner for mint.
func UserTokenAccount(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}
