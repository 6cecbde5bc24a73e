package staking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tierStaking/internal/custody"
	stakeerr "tierStaking/internal/errors"
	"tierStaking/internal/ledger"
	"tierStaking/internal/model"
)

var (
	testProgramID   = solana.MustPublicKeyFromBase58("HJsEfnpgjEhEPa3SYcg6pchqhh2pFGSi331hTyqs5iis")
	testOwner       = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	testStakingMint = solana.MustPublicKeyFromBase58("3cZgprrFWMqvmFB93aFoXXmpZL5mXb8PzZM8srdHwdVG")
	testRewardMint  = solana.MustPublicKeyFromBase58("EivE3x68mijknzjhnJqBBad32njcgZy4niLsYeBWA9bu")
	alice           = solana.PublicKey{0xa1}
	bob             = solana.PublicKey{0xb0}
)

func testTiers() [model.TierCount]model.Tier {
	return [model.TierCount]model.Tier{
		{LockPeriod: 100, RewardRate: 10},
		{LockPeriod: 7776000, RewardRate: 12},
		{LockPeriod: 15552000, RewardRate: 24},
		{LockPeriod: 31104000, RewardRate: 48},
	}
}

type memoryJournal struct {
	mu  sync.Mutex
	ops []model.OperationRecord
}

func (j *memoryJournal) PutOperationBatch(ctx context.Context, ops []model.OperationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, ops...)
	return nil
}

type fixture struct {
	ctx     context.Context
	engine  *Engine
	bank    *custody.MemoryBank
	clock   *clockwork.FakeClock
	journal *memoryJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		bank:    custody.NewMemoryBank(),
		clock:   clockwork.NewFakeClockAt(time.Unix(0, 0)),
		journal: &memoryJournal{},
	}
	engine, err := NewEngine(EngineConfig{
		ProgramID: testProgramID,
		Bank:      f.bank,
		Clock:     SystemClock{Clock: f.clock},
		Journal:   f.journal,
	}, zap.NewNop())
	require.NoError(t, err)
	f.engine = engine

	require.NoError(t, engine.Initialize(f.ctx, testOwner, testStakingMint, testRewardMint, testTiers()))
	pool, ok := engine.Pool()
	require.True(t, ok)
	for _, user := range []solana.PublicKey{testOwner, alice, bob} {
		require.NoError(t, engine.Custody().OpenUserAccounts(f.ctx, pool, user))
	}

	f.credit(t, testOwner, testRewardMint, 1_000_000)
	f.credit(t, alice, testStakingMint, 10_000)
	f.credit(t, bob, testStakingMint, 10_000)
	require.NoError(t, engine.DepositReward(f.ctx, testOwner, 10_000))
	return f
}

func (f *fixture) credit(t *testing.T, user, mint solana.PublicKey, amount uint64) {
	t.Helper()
	addr, err := custody.UserTokenAccount(user, mint)
	require.NoError(t, err)
	require.NoError(t, f.bank.Credit(f.ctx, addr, amount))
}

func (f *fixture) balance(t *testing.T, user, mint solana.PublicKey) uint64 {
	t.Helper()
	bal, err := f.engine.Custody().UserBalance(f.ctx, user, mint)
	require.NoError(t, err)
	return bal
}

func (f *fixture) vaults(t *testing.T) (uint64, uint64) {
	t.Helper()
	pool, ok := f.engine.Pool()
	require.True(t, ok)
	staking, rewards, err := f.engine.Custody().VaultBalances(f.ctx, pool)
	require.NoError(t, err)
	return staking, rewards
}

func (f *fixture) advance(seconds int64) {
	f.clock.Advance(time.Duration(seconds) * time.Second)
}

func TestRestakeRebaseAndUnstake(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 1000))
	f.advance(50)
	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 500))

	record, ok := f.engine.UserStake(alice)
	require.True(t, ok)
	require.Equal(t, model.TierSlot{Amount: 1500, StakedAt: 50, LastClaimedAt: 50, PendingReward: 50}, record.Slots[0])

	f.advance(100)
	settlement, err := f.engine.Unstake(f.ctx, alice, 0)
	require.NoError(t, err)
	require.Equal(t, ledger.Settlement{Principal: 1500, Reward: 200}, settlement)

	record, _ = f.engine.UserStake(alice)
	require.Equal(t, model.TierSlot{LastClaimedAt: 150, ClaimedTotal: 200}, record.Slots[0])

	pool, _ := f.engine.Pool()
	require.Zero(t, pool.TotalStaked)
	require.Equal(t, uint64(10_000), f.balance(t, alice, testStakingMint))
	require.Equal(t, uint64(200), f.balance(t, alice, testRewardMint))

	staking, rewards := f.vaults(t)
	require.Zero(t, staking)
	require.Equal(t, uint64(9_800), rewards)
}

func TestAccruedView(t *testing.T) {
	f := newFixture(t)

	accrual, err := f.engine.Accrued(f.ctx, alice, 0)
	require.NoError(t, err)
	require.Equal(t, ledger.Accrual{}, accrual)

	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 1000))
	f.advance(40)
	accrual, err = f.engine.Accrued(f.ctx, alice, 0)
	require.NoError(t, err)
	require.Equal(t, ledger.Accrual{Principal: 1000, Reward: 40, UnlocksAt: 100}, accrual)

	_, err = f.engine.Accrued(f.ctx, alice, model.TierCount)
	require.ErrorIs(t, err, stakeerr.ErrInvalidTier)
}

func TestUnstakeLockBoundary(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 1000))

	f.advance(99)
	before := f.engine.Snapshot()
	_, err := f.engine.Unstake(f.ctx, alice, 0)
	require.ErrorIs(t, err, stakeerr.ErrLocked)
	require.Equal(t, before, f.engine.Snapshot())

	f.advance(1)
	settlement, err := f.engine.Unstake(f.ctx, alice, 0)
	require.NoError(t, err)
	require.Equal(t, ledger.Settlement{Principal: 1000, Reward: 100}, settlement)
}

func TestUnstakeEmptyTierPaysNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Unstake(f.ctx, alice, 0)
	require.ErrorIs(t, err, stakeerr.ErrNothingStaked)

	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 1000))
	f.advance(1000)
	before := f.engine.Snapshot()

	_, err = f.engine.Unstake(f.ctx, alice, 1)
	require.ErrorIs(t, err, stakeerr.ErrNothingStaked)
	// bob never staked and cannot reach alice's record
	_, err = f.engine.Unstake(f.ctx, bob, 0)
	require.ErrorIs(t, err, stakeerr.ErrNothingStaked)

	require.Equal(t, before, f.engine.Snapshot())
}

func TestOwnerOnlyOperations(t *testing.T) {
	f := newFixture(t)
	before := f.engine.Snapshot()

	require.ErrorIs(t, f.engine.DepositReward(f.ctx, bob, 1), stakeerr.ErrNotOwner)
	require.ErrorIs(t, f.engine.WithdrawReward(f.ctx, bob, 1, solana.PublicKey{}), stakeerr.ErrNotOwner)
	require.ErrorIs(t, f.engine.DepositReward(f.ctx, solana.PublicKey{}, 1), stakeerr.ErrNotOwner)
	require.Equal(t, before, f.engine.Snapshot())
}

func TestRewardFunding(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.engine.DepositReward(f.ctx, testOwner, 0), stakeerr.ErrInvalidAmount)
	require.ErrorIs(t, f.engine.DepositReward(f.ctx, testOwner, 990_001), stakeerr.ErrInsufficientBalance)
	require.ErrorIs(t, f.engine.WithdrawReward(f.ctx, testOwner, 10_001, solana.PublicKey{}), stakeerr.ErrInsufficientBalance)

	require.NoError(t, f.engine.WithdrawReward(f.ctx, testOwner, 4_000, solana.PublicKey{}))
	_, rewards := f.vaults(t)
	require.Equal(t, uint64(6_000), rewards)
	require.Equal(t, uint64(994_000), f.balance(t, testOwner, testRewardMint))

	bobRewards, err := custody.UserTokenAccount(bob, testRewardMint)
	require.NoError(t, err)
	require.NoError(t, f.engine.WithdrawReward(f.ctx, testOwner, 1_000, bobRewards))
	require.Equal(t, uint64(1_000), f.balance(t, bob, testRewardMint))

	bobStaking, err := custody.UserTokenAccount(bob, testStakingMint)
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.WithdrawReward(f.ctx, testOwner, 1, bobStaking), stakeerr.ErrInvalidMint)
}

func TestUnstakeUnfundedRewardVaultChangesNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 1000))
	require.NoError(t, f.engine.WithdrawReward(f.ctx, testOwner, 10_000, solana.PublicKey{}))

	f.advance(100)
	before := f.engine.Snapshot()
	_, err := f.engine.Unstake(f.ctx, alice, 0)
	require.ErrorIs(t, err, stakeerr.ErrInsufficientBalance)
	require.Equal(t, before, f.engine.Snapshot())

	require.NoError(t, f.engine.DepositReward(f.ctx, testOwner, 100))
	settlement, err := f.engine.Unstake(f.ctx, alice, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(100), settlement.Reward)
}

func TestStakeRejections(t *testing.T) {
	f := newFixture(t)
	before := f.engine.Snapshot()

	require.ErrorIs(t, f.engine.Stake(f.ctx, alice, 0, 0), stakeerr.ErrInvalidAmount)
	require.ErrorIs(t, f.engine.Stake(f.ctx, alice, model.TierCount, 10), stakeerr.ErrInvalidTier)
	require.ErrorIs(t, f.engine.Stake(f.ctx, alice, 0, 10_001), stakeerr.ErrInsufficientBalance)
	require.ErrorIs(t, f.engine.Stake(f.ctx, solana.PublicKey{}, 0, 1), stakeerr.ErrNotOwner)
	require.Equal(t, before, f.engine.Snapshot())
}

func TestAggregateConsistencyAndSolvency(t *testing.T) {
	f := newFixture(t)

	steps := []struct {
		user   solana.PublicKey
		tier   uint8
		amount uint64
	}{
		{alice, 0, 1000},
		{bob, 1, 2500},
		{alice, 3, 700},
		{bob, 0, 300},
		{alice, 0, 400},
	}
	for _, s := range steps {
		require.NoError(t, f.engine.Stake(f.ctx, s.user, s.tier, s.amount))
		f.advance(30)
	}
	f.advance(100)
	_, err := f.engine.Unstake(f.ctx, bob, 0)
	require.NoError(t, err)

	snapshot := f.engine.Snapshot()
	var sum uint64
	for _, record := range snapshot.Users {
		sum += record.TotalAmount()
	}
	require.Equal(t, snapshot.Pool.TotalStaked, sum)
	require.Equal(t, uint64(1000+2500+700+400), sum)

	staking, _ := f.vaults(t)
	require.Equal(t, sum, staking)
}

func TestInitializeGuards(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.engine.Initialize(f.ctx, testOwner, testStakingMint, testRewardMint, testTiers()), stakeerr.ErrAlreadyInitialized)

	engine, err := NewEngine(EngineConfig{
		ProgramID: testProgramID,
		Bank:      custody.NewMemoryBank(),
		Clock:     SystemClock{Clock: clockwork.NewFakeClock()},
	}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, engine.Stake(f.ctx, alice, 0, 1), stakeerr.ErrNotInitialized)
	require.ErrorIs(t, engine.DepositReward(f.ctx, testOwner, 1), stakeerr.ErrNotInitialized)

	require.ErrorIs(t, engine.Initialize(f.ctx, testOwner, testStakingMint, testStakingMint, testTiers()), stakeerr.ErrInvalidMint)
	tiers := testTiers()
	tiers[2].LockPeriod = 0
	require.ErrorIs(t, engine.Initialize(f.ctx, testOwner, testStakingMint, testRewardMint, tiers), stakeerr.ErrInvalidTier)
	_, ok := engine.Pool()
	require.False(t, ok)
}

type stepClock struct {
	now uint64
}

func (c *stepClock) Now(ctx context.Context) (uint64, error) {
	return c.now, nil
}

func TestClockRegressionRejected(t *testing.T) {
	ctx := context.Background()
	bank := custody.NewMemoryBank()
	clock := &stepClock{now: 500}
	engine, err := NewEngine(EngineConfig{ProgramID: testProgramID, Bank: bank, Clock: clock}, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Initialize(ctx, testOwner, testStakingMint, testRewardMint, testTiers()))
	pool, _ := engine.Pool()
	require.NoError(t, engine.Custody().OpenUserAccounts(ctx, pool, alice))
	addr, err := custody.UserTokenAccount(alice, testStakingMint)
	require.NoError(t, err)
	require.NoError(t, bank.Credit(ctx, addr, 100))

	require.NoError(t, engine.Stake(ctx, alice, 0, 50))
	clock.now = 499
	require.ErrorIs(t, engine.Stake(ctx, alice, 0, 50), stakeerr.ErrClockRegression)
	_, err = engine.Unstake(ctx, alice, 0)
	require.ErrorIs(t, err, stakeerr.ErrClockRegression)
}

func TestJournalRecordsCommittedOperations(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 1000))
	require.Error(t, f.engine.Stake(f.ctx, alice, 0, 0))
	f.advance(100)
	_, err := f.engine.Unstake(f.ctx, alice, 0)
	require.NoError(t, err)

	kinds := make([]string, 0, len(f.journal.ops))
	for _, op := range f.journal.ops {
		require.NotEmpty(t, op.ID)
		kinds = append(kinds, op.Kind)
	}
	require.Equal(t, []string{model.OpInitialize, model.OpDepositReward, model.OpStake, model.OpUnstake}, kinds)

	last := f.journal.ops[len(f.journal.ops)-1]
	require.Equal(t, uint64(1000), last.Amount)
	require.Equal(t, uint64(100), last.Reward)
	require.Equal(t, uint64(100), last.Timestamp)
	require.NotNil(t, last.Tier)
	require.Equal(t, uint8(0), *last.Tier)
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Stake(f.ctx, alice, 0, 1000))
	require.NoError(t, f.engine.Stake(f.ctx, bob, 2, 300))
	snapshot := f.engine.Snapshot()

	restored, err := NewEngine(EngineConfig{
		ProgramID: testProgramID,
		Bank:      custody.NewMemoryBank(),
		Clock:     SystemClock{Clock: f.clock},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(snapshot))
	require.Equal(t, snapshot, restored.Snapshot())

	f.advance(100)
	settlement, err := restored.Unstake(f.ctx, alice, 0)
	require.NoError(t, err)
	require.Equal(t, ledger.Settlement{Principal: 1000, Reward: 100}, settlement)

	bad := f.engine.Snapshot()
	pool := *bad.Pool
	pool.TotalStaked++
	bad.Pool = &pool
	require.Error(t, restored.Restore(bad))

	foreign := f.engine.Snapshot()
	foreign.Users[0].User = testOwner
	require.Error(t, restored.Restore(foreign))
}
