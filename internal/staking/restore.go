package staking

import (
	"fmt"
	"sort"

	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"

	"tierStaking/internal/custody"
	"tierStaking/internal/ledger"
	"tierStaking/internal/model"
)

// accountStore is implemented by banks whose balances live in the snapshot.
type accountStore interface {
	Accounts() []model.TokenAccount
	Restore(accounts []model.TokenAccount)
}

// Snapshot captures the pool, every user record and, for an in-process bank,
// all token accounts.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var snapshot model.Snapshot
	if e.pool != nil {
		pool := *e.pool
		snapshot.Pool = &pool
	}
	snapshot.Users = make([]model.UserStakeInfo, 0, len(e.users))
	for _, record := range e.users {
		snapshot.Users = append(snapshot.Users, record)
	}
	sort.Slice(snapshot.Users, func(i, j int) bool {
		return snapshot.Users[i].Address.String() < snapshot.Users[j].Address.String()
	})
	if store, ok := e.cfg.Bank.(accountStore); ok {
		snapshot.Accounts = store.Accounts()
	}
	return snapshot
}

// Restore replaces the engine state with snapshot after checking that it is
// consistent with this program.
func (e *Engine) Restore(snapshot model.Snapshot) error {
	users := make(map[solana.PublicKey]model.UserStakeInfo, len(snapshot.Users))
	var staked uint64
	for _, record := range snapshot.Users {
		key, _, err := custody.DeriveUserStakePDA(e.cfg.ProgramID, record.User)
		if err != nil {
			return fmt.Errorf("derive stake record: %w", err)
		}
		if !key.Equals(record.Address) {
			return fmt.Errorf("stake record %s does not belong to user %s", record.Address, record.User)
		}
		if _, dup := users[key]; dup {
			return fmt.Errorf("duplicate stake record %s", key)
		}
		var overflow bool
		if staked, overflow = gethmath.SafeAdd(staked, record.TotalAmount()); overflow {
			return fmt.Errorf("stake records overflow total staked")
		}
		users[key] = record
	}

	var pool *model.Pool
	if snapshot.Pool != nil {
		p := *snapshot.Pool
		address, _, err := custody.DerivePoolPDA(e.cfg.ProgramID)
		if err != nil {
			return fmt.Errorf("derive pool: %w", err)
		}
		if !address.Equals(p.Address) {
			return fmt.Errorf("pool %s was not created by program %s", p.Address, e.cfg.ProgramID)
		}
		if err := ledger.ValidateTiers(p.Tiers); err != nil {
			return err
		}
		if p.TotalStaked != staked {
			return fmt.Errorf("pool total staked %d does not match records %d", p.TotalStaked, staked)
		}
		pool = &p
	} else if len(users) > 0 {
		return fmt.Errorf("stake records present without a pool")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if store, ok := e.cfg.Bank.(accountStore); ok {
		store.Restore(snapshot.Accounts)
	}
	e.pool = pool
	e.users = users
	return nil
}
