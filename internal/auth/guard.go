package auth

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"tierStaking/internal/custody"
	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/model"
)

// RequireOwner fails unless caller is the pool owner.
func RequireOwner(pool model.Pool, caller solana.PublicKey) error {
	if caller.IsZero() || !caller.Equals(pool.Owner) {
		return stakeerr.ErrNotOwner
	}
	return nil
}

// RecordKey returns the stake record key caller is allowed to mutate. User
// operations only ever resolve records through this key, so a caller cannot
// reach another user's record.
func RecordKey(programID, caller solana.PublicKey) (solana.PublicKey, error) {
	if caller.IsZero() {
		return solana.PublicKey{}, stakeerr.ErrNotOwner
	}
	key, _, err := custody.DeriveUserStakePDA(programID, caller)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive stake record: %w", err)
	}
	return key, nil
}

// RequireHolder fails unless record belongs to caller.
func RequireHolder(programID solana.PublicKey, record model.UserStakeInfo, caller solana.PublicKey) error {
	key, err := RecordKey(programID, caller)
	if err != nil {
		return err
	}
	if !record.Address.Equals(key) || !record.User.Equals(caller) {
		return stakeerr.ErrNotOwner
	}
	return nil
}
