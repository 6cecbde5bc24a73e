// Package staking executes the pool operations. Each operation validates
// against copies of the current state, moves funds through custody as one
// batch and only then commits the copies.
package staking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tierStaking/internal/auth"
	"tierStaking/internal/custody"
	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/ledger"
	"tierStaking/internal/metrics"
	"tierStaking/internal/model"
	"tierStaking/internal/storage"
)

// EngineConfig holds the engine's collaborators. Journal is optional.
type EngineConfig struct {
	ProgramID solana.PublicKey
	Bank      custody.Bank
	Clock     TimeSource
	Journal   storage.Journal
}

func (c EngineConfig) Validate() error {
	if c.ProgramID.IsZero() {
		return fmt.Errorf("program id is required")
	}
	if c.Bank == nil {
		return fmt.Errorf("bank is nil")
	}
	if c.Clock == nil {
		return fmt.Errorf("clock is nil")
	}
	return nil
}

// Engine owns the pool record and every user stake record.
type Engine struct {
	cfg     EngineConfig
	custody *custody.Custody
	logger  *zap.Logger

	mu    sync.Mutex
	pool  *model.Pool
	users map[solana.PublicKey]model.UserStakeInfo
}

// NewEngine builds an Engine with an uninitialised pool.
func NewEngine(cfg EngineConfig, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		custody: custody.New(cfg.ProgramID, cfg.Bank),
		logger:  logger,
		users:   make(map[solana.PublicKey]model.UserStakeInfo),
	}, nil
}

// Custody exposes the vault router, e.g. for opening user token accounts.
func (e *Engine) Custody() *custody.Custody {
	return e.custody
}

// Initialize creates the pool with signer as owner and opens both vaults.
func (e *Engine) Initialize(
	ctx context.Context,
	signer solana.PublicKey,
	stakingMint solana.PublicKey,
	rewardMint solana.PublicKey,
	tiers [model.TierCount]model.Tier,
) (err error) {
	defer e.observe(model.OpInitialize, signer, &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool != nil {
		return stakeerr.ErrAlreadyInitialized
	}
	now, err := e.cfg.Clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}

	address, bump, err := custody.DerivePoolPDA(e.cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("derive pool: %w", err)
	}
	stakingVault, rewardVault, err := e.custody.DeriveVaults(stakingMint, rewardMint)
	if err != nil {
		return err
	}
	pool, err := ledger.NewPool(signer, tiers, address, bump, stakingVault, rewardVault)
	if err != nil {
		return err
	}
	if err := e.custody.OpenVaults(ctx, pool); err != nil {
		return err
	}

	e.pool = &pool
	e.logger.Info("pool initialized",
		zap.String("owner", signer.String()),
		zap.String("pool", pool.Address.String()),
		zap.String("staking_mint", stakingMint.String()),
		zap.String("reward_mint", rewardMint.String()),
	)
	e.record(ctx, model.OperationRecord{
		Kind:        model.OpInitialize,
		Signer:      signer.String(),
		TotalStaked: pool.TotalStaked,
		Timestamp:   now,
	})
	return nil
}

// DepositReward moves amount of the reward asset from the owner into the
// reward vault.
func (e *Engine) DepositReward(ctx context.Context, signer solana.PublicKey, amount uint64) (err error) {
	defer e.observe(model.OpDepositReward, signer, &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.requirePool()
	if err != nil {
		return err
	}
	if err := auth.RequireOwner(pool, signer); err != nil {
		return err
	}
	now, err := e.cfg.Clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}

	balance, err := e.custody.UserBalance(ctx, signer, pool.RewardMint)
	if err != nil {
		return fmt.Errorf("owner reward balance: %w", err)
	}
	if err := ledger.CheckRewardDeposit(balance, amount); err != nil {
		return err
	}
	if err := e.custody.DepositReward(ctx, pool, signer, amount); err != nil {
		return err
	}

	e.logger.Info("reward deposited", zap.String("signer", signer.String()), zap.Uint64("amount", amount))
	e.record(ctx, model.OperationRecord{
		Kind:        model.OpDepositReward,
		Signer:      signer.String(),
		Amount:      amount,
		TotalStaked: pool.TotalStaked,
		Timestamp:   now,
	})
	return nil
}

// WithdrawReward moves amount out of the reward vault into recipient, a
// reward token account. A zero recipient means the owner's own account.
func (e *Engine) WithdrawReward(ctx context.Context, signer solana.PublicKey, amount uint64, recipient solana.PublicKey) (err error) {
	defer e.observe(model.OpWithdrawReward, signer, &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.requirePool()
	if err != nil {
		return err
	}
	if err := auth.RequireOwner(pool, signer); err != nil {
		return err
	}
	now, err := e.cfg.Clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	if recipient.IsZero() {
		recipient, err = custody.UserTokenAccount(signer, pool.RewardMint)
		if err != nil {
			return fmt.Errorf("derive token account: %w", err)
		}
	}

	_, vaultBalance, err := e.custody.VaultBalances(ctx, pool)
	if err != nil {
		return err
	}
	if err := ledger.CheckRewardWithdraw(vaultBalance, amount); err != nil {
		return err
	}
	if err := e.custody.WithdrawReward(ctx, pool, recipient, amount); err != nil {
		return err
	}

	e.logger.Info("reward withdrawn",
		zap.String("signer", signer.String()),
		zap.String("recipient", recipient.String()),
		zap.Uint64("amount", amount),
	)
	e.record(ctx, model.OperationRecord{
		Kind:        model.OpWithdrawReward,
		Signer:      signer.String(),
		Amount:      amount,
		Recipient:   recipient.String(),
		TotalStaked: pool.TotalStaked,
		Timestamp:   now,
	})
	return nil
}

// Stake deposits amount of the staking asset into tier for signer.
func (e *Engine) Stake(ctx context.Context, signer solana.PublicKey, tier uint8, amount uint64) (err error) {
	defer e.observe(model.OpStake, signer, &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.requirePool()
	if err != nil {
		return err
	}
	key, err := auth.RecordKey(e.cfg.ProgramID, signer)
	if err != nil {
		return err
	}
	params, ok := pool.Tier(tier)
	if !ok {
		return fmt.Errorf("tier %d: %w", tier, stakeerr.ErrInvalidTier)
	}
	now, err := e.cfg.Clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}

	record, ok := e.users[key]
	if !ok {
		record = model.UserStakeInfo{Address: key, User: signer}
	}
	slot, err := ledger.Stake(record.Slots[tier], params, amount, now)
	if err != nil {
		return err
	}
	nextPool, err := ledger.AddStake(pool, amount)
	if err != nil {
		return err
	}
	if err := e.custody.DepositStake(ctx, pool, signer, amount); err != nil {
		return err
	}

	record.Slots[tier] = slot
	e.users[key] = record
	e.pool = &nextPool

	e.logger.Info("staked",
		zap.String("signer", signer.String()),
		zap.Uint8("tier", tier),
		zap.Uint64("amount", amount),
		zap.Uint64("position", slot.Amount),
		zap.Uint64("pending_reward", slot.PendingReward),
	)
	e.record(ctx, model.OperationRecord{
		Kind:        model.OpStake,
		Signer:      signer.String(),
		Tier:        &tier,
		Amount:      amount,
		TotalStaked: nextPool.TotalStaked,
		Timestamp:   now,
	})
	return nil
}

// Unstake withdraws signer's whole position in tier together with its
// accrued reward. It fails while the position is still locked.
func (e *Engine) Unstake(ctx context.Context, signer solana.PublicKey, tier uint8) (settlement ledger.Settlement, err error) {
	defer e.observe(model.OpUnstake, signer, &err)

	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.requirePool()
	if err != nil {
		return ledger.Settlement{}, err
	}
	key, err := auth.RecordKey(e.cfg.ProgramID, signer)
	if err != nil {
		return ledger.Settlement{}, err
	}
	params, ok := pool.Tier(tier)
	if !ok {
		return ledger.Settlement{}, fmt.Errorf("tier %d: %w", tier, stakeerr.ErrInvalidTier)
	}
	record, ok := e.users[key]
	if !ok {
		return ledger.Settlement{}, stakeerr.ErrNothingStaked
	}
	if err := auth.RequireHolder(e.cfg.ProgramID, record, signer); err != nil {
		return ledger.Settlement{}, err
	}
	now, err := e.cfg.Clock.Now(ctx)
	if err != nil {
		return ledger.Settlement{}, fmt.Errorf("read clock: %w", err)
	}

	slot, settlement, err := ledger.Unstake(record.Slots[tier], params, now)
	if err != nil {
		return ledger.Settlement{}, err
	}
	nextPool, err := ledger.RemoveStake(pool, settlement.Principal)
	if err != nil {
		return ledger.Settlement{}, err
	}
	stakingBalance, rewardBalance, err := e.custody.VaultBalances(ctx, pool)
	if err != nil {
		return ledger.Settlement{}, err
	}
	if err := ledger.CheckPayout(stakingBalance, rewardBalance, settlement); err != nil {
		return ledger.Settlement{}, err
	}
	if err := e.custody.Payout(ctx, pool, signer, settlement); err != nil {
		return ledger.Settlement{}, err
	}

	record.Slots[tier] = slot
	e.users[key] = record
	e.pool = &nextPool

	metrics.RewardPaidTotal.Add(float64(settlement.Reward))
	e.logger.Info("unstaked",
		zap.String("signer", signer.String()),
		zap.Uint8("tier", tier),
		zap.Uint64("principal", settlement.Principal),
		zap.Uint64("reward", settlement.Reward),
	)
	e.record(ctx, model.OperationRecord{
		Kind:        model.OpUnstake,
		Signer:      signer.String(),
		Tier:        &tier,
		Amount:      settlement.Principal,
		Reward:      settlement.Reward,
		TotalStaked: nextPool.TotalStaked,
		Timestamp:   now,
	})
	return settlement, nil
}

// Pool returns a copy of the pool record.
func (e *Engine) Pool() (model.Pool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool == nil {
		return model.Pool{}, false
	}
	return *e.pool, true
}

// UserStake returns user's stake record.
func (e *Engine) UserStake(user solana.PublicKey) (model.UserStakeInfo, bool) {
	key, _, err := custody.DeriveUserStakePDA(e.cfg.ProgramID, user)
	if err != nil {
		return model.UserStakeInfo{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	record, ok := e.users[key]
	return record, ok
}

// Accrued reports what user's tier position would pay if unstaked now.
func (e *Engine) Accrued(ctx context.Context, user solana.PublicKey, tier uint8) (ledger.Accrual, error) {
	key, _, err := custody.DeriveUserStakePDA(e.cfg.ProgramID, user)
	if err != nil {
		return ledger.Accrual{}, fmt.Errorf("derive stake record: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.requirePool()
	if err != nil {
		return ledger.Accrual{}, err
	}
	params, ok := pool.Tier(tier)
	if !ok {
		return ledger.Accrual{}, fmt.Errorf("tier %d: %w", tier, stakeerr.ErrInvalidTier)
	}
	record, ok := e.users[key]
	if !ok {
		return ledger.Accrual{}, nil
	}
	now, err := e.cfg.Clock.Now(ctx)
	if err != nil {
		return ledger.Accrual{}, fmt.Errorf("read clock: %w", err)
	}
	return ledger.Accrued(record.Slots[tier], params, now)
}

func (e *Engine) requirePool() (model.Pool, error) {
	if e.pool == nil {
		return model.Pool{}, stakeerr.ErrNotInitialized
	}
	return *e.pool, nil
}

// record appends a committed operation to the journal. The operation has
// already taken effect, so a journal failure is logged and counted only.
func (e *Engine) record(ctx context.Context, op model.OperationRecord) {
	op.ID = uuid.NewString()
	op.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)

	if e.pool != nil {
		metrics.TotalStaked.Set(float64(e.pool.TotalStaked))
		if staking, rewards, err := e.custody.VaultBalances(ctx, *e.pool); err == nil {
			metrics.VaultBalance.WithLabelValues("staking").Set(float64(staking))
			metrics.VaultBalance.WithLabelValues("reward").Set(float64(rewards))
		}
	}

	if e.cfg.Journal == nil {
		return
	}
	if err := e.cfg.Journal.PutOperationBatch(ctx, []model.OperationRecord{op}); err != nil {
		metrics.JournalErrorsTotal.Inc()
		e.logger.Error("journal write failed", zap.String("op", op.Kind), zap.String("id", op.ID), zap.Error(err))
	}
}

func (e *Engine) observe(op string, signer solana.PublicKey, errp *error) {
	if *errp == nil {
		metrics.OperationsTotal.WithLabelValues(op, "ok").Inc()
		return
	}
	metrics.OperationsTotal.WithLabelValues(op, "rejected").Inc()
	e.logger.Debug("operation rejected", zap.String("op", op), zap.String("signer", signer.String()), zap.Error(*errp))
}
