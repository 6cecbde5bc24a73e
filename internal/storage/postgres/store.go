package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tierStaking/internal/model"
)

// Amounts are u64 and stored as NUMERIC(20,0) via their decimal text so the
// full range survives the round trip.
const schema = `
CREATE TABLE IF NOT EXISTS staking_pools (
	address TEXT PRIMARY KEY,
	bump SMALLINT NOT NULL,
	owner TEXT NOT NULL,
	staking_mint TEXT NOT NULL,
	reward_mint TEXT NOT NULL,
	tiers JSONB NOT NULL,
	total_staked NUMERIC(20,0) NOT NULL,
	staking_vault TEXT NOT NULL,
	staking_vault_bump SMALLINT NOT NULL,
	reward_vault TEXT NOT NULL,
	reward_vault_bump SMALLINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS user_stakes (
	record_address TEXT NOT NULL,
	user_address TEXT NOT NULL,
	tier SMALLINT NOT NULL,
	amount NUMERIC(20,0) NOT NULL,
	staked_at NUMERIC(20,0) NOT NULL,
	last_claimed_at NUMERIC(20,0) NOT NULL,
	pending_reward NUMERIC(20,0) NOT NULL,
	claimed_total NUMERIC(20,0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (record_address, tier)
);
CREATE TABLE IF NOT EXISTS token_accounts (
	address TEXT PRIMARY KEY,
	mint TEXT NOT NULL,
	owner TEXT NOT NULL,
	amount NUMERIC(20,0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS staking_operations (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	signer TEXT NOT NULL,
	tier SMALLINT,
	amount NUMERIC(20,0) NOT NULL,
	reward NUMERIC(20,0) NOT NULL,
	recipient TEXT NOT NULL,
	total_staked NUMERIC(20,0) NOT NULL,
	ts NUMERIC(20,0) NOT NULL,
	recorded_at TEXT NOT NULL
);
`

// Store provides Postgres persistence for the ledger snapshot and journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the ledger tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Save writes the snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snapshot model.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	queued := 0

	if p := snapshot.Pool; p != nil {
		tiers, err := json.Marshal(p.Tiers)
		if err != nil {
			return fmt.Errorf("marshal tiers: %w", err)
		}
		batch.Queue(`
			INSERT INTO staking_pools (
				address, bump, owner, staking_mint, reward_mint, tiers, total_staked,
				staking_vault, staking_vault_bump, reward_vault, reward_vault_bump, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10,$11,now())
			ON CONFLICT (address)
			DO UPDATE SET
				total_staked = EXCLUDED.total_staked,
				updated_at = now()
		`,
			p.Address.String(),
			int16(p.Bump),
			p.Owner.String(),
			p.StakingMint.String(),
			p.RewardMint.String(),
			tiers,
			formatU64(p.TotalStaked),
			p.StakingVault.Address.String(),
			int16(p.StakingVault.Bump),
			p.RewardVault.Address.String(),
			int16(p.RewardVault.Bump),
		)
		queued++
	}

	for _, u := range snapshot.Users {
		for tier, slot := range u.Slots {
			batch.Queue(`
				INSERT INTO user_stakes (
					record_address, user_address, tier, amount, staked_at, last_claimed_at,
					pending_reward, claimed_total, updated_at
				) VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6::numeric,$7::numeric,$8::numeric,now())
				ON CONFLICT (record_address, tier)
				DO UPDATE SET
					amount = EXCLUDED.amount,
					staked_at = EXCLUDED.staked_at,
					last_claimed_at = EXCLUDED.last_claimed_at,
					pending_reward = EXCLUDED.pending_reward,
					claimed_total = EXCLUDED.claimed_total,
					updated_at = now()
			`,
				u.Address.String(),
				u.User.String(),
				int16(tier),
				formatU64(slot.Amount),
				formatU64(slot.StakedAt),
				formatU64(slot.LastClaimedAt),
				formatU64(slot.PendingReward),
				formatU64(slot.ClaimedTotal),
			)
			queued++
		}
	}

	for _, acc := range snapshot.Accounts {
		batch.Queue(`
			INSERT INTO token_accounts (address, mint, owner, amount, updated_at)
			VALUES ($1,$2,$3,$4::numeric,now())
			ON CONFLICT (address)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		`,
			acc.Address.String(),
			acc.Mint.String(),
			acc.Owner.String(),
			formatU64(acc.Amount),
		)
		queued++
	}

	if queued > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < queued; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Load reads the snapshot. ok is false when no pool has been saved.
func (s *Store) Load(ctx context.Context) (model.Snapshot, bool, error) {
	var snapshot model.Snapshot

	pool, err := s.loadPool(ctx)
	if err != nil {
		return snapshot, false, err
	}
	if pool == nil {
		return snapshot, false, nil
	}
	snapshot.Pool = pool

	users, err := s.loadUsers(ctx)
	if err != nil {
		return snapshot, false, err
	}
	snapshot.Users = users

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return snapshot, false, err
	}
	snapshot.Accounts = accounts

	return snapshot, true, nil
}

func (s *Store) loadPool(ctx context.Context) (*model.Pool, error) {
	var (
		address, owner, stakingMint, rewardMint string
		stakingVault, rewardVault, totalStaked  string
		bump, stakingBump, rewardBump           int16
		tiers                                   []byte
	)
	row := s.pool.QueryRow(ctx, `
		SELECT address, bump, owner, staking_mint, reward_mint, tiers, total_staked::text,
			staking_vault, staking_vault_bump, reward_vault, reward_vault_bump
		FROM staking_pools LIMIT 1
	`)
	err := row.Scan(&address, &bump, &owner, &stakingMint, &rewardMint, &tiers, &totalStaked,
		&stakingVault, &stakingBump, &rewardVault, &rewardBump)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	p := &model.Pool{
		Bump:         uint8(bump),
		StakingVault: model.Vault{Bump: uint8(stakingBump)},
		RewardVault:  model.Vault{Bump: uint8(rewardBump)},
	}
	if err := json.Unmarshal(tiers, &p.Tiers); err != nil {
		return nil, fmt.Errorf("parse tiers: %w", err)
	}
	if p.TotalStaked, err = strconv.ParseUint(totalStaked, 10, 64); err != nil {
		return nil, fmt.Errorf("parse total staked: %w", err)
	}
	keys := []struct {
		dst *solana.PublicKey
		src string
	}{
		{&p.Address, address},
		{&p.Owner, owner},
		{&p.StakingMint, stakingMint},
		{&p.RewardMint, rewardMint},
		{&p.StakingVault.Address, stakingVault},
		{&p.RewardVault.Address, rewardVault},
	}
	for _, k := range keys {
		if *k.dst, err = solana.PublicKeyFromBase58(k.src); err != nil {
			return nil, fmt.Errorf("parse key %q: %w", k.src, err)
		}
	}
	p.StakingVault.Mint = p.StakingMint
	p.RewardVault.Mint = p.RewardMint
	return p, nil
}

func (s *Store) loadUsers(ctx context.Context) ([]model.UserStakeInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record_address, user_address, tier, amount::text, staked_at::text,
			last_claimed_at::text, pending_reward::text, claimed_total::text
		FROM user_stakes ORDER BY record_address, tier
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.UserStakeInfo
	for rows.Next() {
		var (
			record, user string
			tier         int16
			values       [5]string
		)
		if err := rows.Scan(&record, &user, &tier, &values[0], &values[1], &values[2], &values[3], &values[4]); err != nil {
			return nil, err
		}
		if tier < 0 || int(tier) >= model.TierCount {
			return nil, fmt.Errorf("stored tier %d out of range", tier)
		}

		if len(users) == 0 || users[len(users)-1].Address.String() != record {
			recordKey, err := solana.PublicKeyFromBase58(record)
			if err != nil {
				return nil, fmt.Errorf("parse record key: %w", err)
			}
			userKey, err := solana.PublicKeyFromBase58(user)
			if err != nil {
				return nil, fmt.Errorf("parse user key: %w", err)
			}
			users = append(users, model.UserStakeInfo{Address: recordKey, User: userKey})
		}

		var parsed [5]uint64
		for i, v := range values {
			if parsed[i], err = strconv.ParseUint(v, 10, 64); err != nil {
				return nil, fmt.Errorf("parse stake column: %w", err)
			}
		}
		users[len(users)-1].Slots[tier] = model.TierSlot{
			Amount:        parsed[0],
			StakedAt:      parsed[1],
			LastClaimedAt: parsed[2],
			PendingReward: parsed[3],
			ClaimedTotal:  parsed[4],
		}
	}
	return users, rows.Err()
}

func (s *Store) loadAccounts(ctx context.Context) ([]model.TokenAccount, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, mint, owner, amount::text FROM token_accounts ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.TokenAccount
	for rows.Next() {
		var address, mint, owner, amount string
		if err := rows.Scan(&address, &mint, &owner, &amount); err != nil {
			return nil, err
		}
		var acc model.TokenAccount
		if acc.Address, err = solana.PublicKeyFromBase58(address); err != nil {
			return nil, fmt.Errorf("parse account: %w", err)
		}
		if acc.Mint, err = solana.PublicKeyFromBase58(mint); err != nil {
			return nil, fmt.Errorf("parse mint: %w", err)
		}
		if acc.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
			return nil, fmt.Errorf("parse owner: %w", err)
		}
		if acc.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// PutOperationBatch inserts journal records, ignoring ids already stored.
func (s *Store) PutOperationBatch(ctx context.Context, ops []model.OperationRecord) error {
	if len(ops) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, op := range ops {
		var tier *int16
		if op.Tier != nil {
			v := int16(*op.Tier)
			tier = &v
		}
		batch.Queue(`
			INSERT INTO staking_operations (
				id, kind, signer, tier, amount, reward, recipient, total_staked, ts, recorded_at
			) VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric,$7,$8::numeric,$9::numeric,$10)
			ON CONFLICT (id) DO NOTHING
		`,
			op.ID,
			op.Kind,
			op.Signer,
			tier,
			formatU64(op.Amount),
			formatU64(op.Reward),
			op.Recipient,
			formatU64(op.TotalStaked),
			formatU64(op.Timestamp),
			op.RecordedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range ops {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func formatU64(v uint64) string {
	return strconv.FormatUint(v, 10)
}
