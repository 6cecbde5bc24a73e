// Package audit replays the operation journal and checks it against a ledger
// snapshot.
package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	gethmath "github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"

	"tierStaking/internal/model"
)

// Report is the outcome of one audit run.
type Report struct {
	Operations          int      `json:"operations"`
	Malformed           int      `json:"malformed"`
	ReplayedTotalStaked uint64   `json:"replayed_total_staked"`
	PoolTotalStaked     uint64   `json:"pool_total_staked"`
	RecordTotalStaked   uint64   `json:"record_total_staked"`
	PendingRewards      uint64   `json:"pending_rewards"`
	RewardPaid          uint64   `json:"reward_paid"`
	StakingVault        *uint64  `json:"staking_vault,omitempty"`
	RewardVault         *uint64  `json:"reward_vault,omitempty"`
	ExpectedRewardVault *uint64  `json:"expected_reward_vault,omitempty"`
	Issues              []string `json:"issues,omitempty"`
}

// OK reports whether the audit found no issues.
func (r Report) OK() bool {
	return len(r.Issues) == 0 && r.Malformed == 0
}

func (r *Report) issuef(format string, args ...any) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

// Auditor replays journal files.
type Auditor struct {
	logger *zap.Logger
}

func NewAuditor(logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{logger: logger}
}

type positionKey struct {
	user string
	tier uint8
}

type replay struct {
	positions  map[positionKey]uint64
	total      uint64
	rewardIn   uint64
	rewardOut  uint64
	rewardPaid uint64
	overflowed bool
}

func (r *replay) add(a, b uint64) uint64 {
	sum, overflow := gethmath.SafeAdd(a, b)
	if overflow {
		r.overflowed = true
	}
	return sum
}

// Run replays the JSONL journal at journalPath and compares the result with
// snapshot.
func (a *Auditor) Run(ctx context.Context, journalPath string, snapshot model.Snapshot) (Report, error) {
	var report Report

	file, err := os.Open(journalPath)
	if err != nil {
		return report, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	state := &replay{positions: make(map[positionKey]uint64)}
	seen := make(map[string]struct{})

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var op model.OperationRecord
		if err := json.Unmarshal(line, &op); err != nil {
			report.Malformed++
			a.logger.Warn("decode journal record", zap.Error(err))
			continue
		}
		if _, dup := seen[op.ID]; dup {
			report.issuef("duplicate operation id %s", op.ID)
			continue
		}
		seen[op.ID] = struct{}{}
		report.Operations++

		a.apply(state, op, &report)
		if op.TotalStaked != state.total {
			report.issuef("operation %s records total staked %d, replay has %d", op.ID, op.TotalStaked, state.total)
		}
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("scan journal: %w", err)
	}
	if state.overflowed {
		report.issuef("replayed amounts overflow u64")
	}

	report.ReplayedTotalStaked = state.total
	report.RewardPaid = state.rewardPaid
	a.compare(state, snapshot, &report)

	a.logger.Info("audit complete",
		zap.Int("operations", report.Operations),
		zap.Int("malformed", report.Malformed),
		zap.Int("issues", len(report.Issues)),
		zap.Uint64("total_staked", report.ReplayedTotalStaked),
	)
	return report, nil
}

func (a *Auditor) apply(state *replay, op model.OperationRecord, report *Report) {
	switch op.Kind {
	case model.OpInitialize:
	case model.OpDepositReward:
		state.rewardIn = state.add(state.rewardIn, op.Amount)
	case model.OpWithdrawReward:
		state.rewardOut = state.add(state.rewardOut, op.Amount)
	case model.OpStake, model.OpUnstake:
		if op.Tier == nil || int(*op.Tier) >= model.TierCount {
			report.issuef("operation %s has no valid tier", op.ID)
			return
		}
		key := positionKey{user: op.Signer, tier: *op.Tier}
		if op.Kind == model.OpStake {
			state.positions[key] = state.add(state.positions[key], op.Amount)
			state.total = state.add(state.total, op.Amount)
			return
		}
		if held := state.positions[key]; held != op.Amount {
			report.issuef("operation %s unstakes %d from tier %d, replay holds %d", op.ID, op.Amount, *op.Tier, held)
		}
		delete(state.positions, key)
		if state.total < op.Amount {
			report.issuef("operation %s unstakes more than total staked", op.ID)
			state.total = 0
		} else {
			state.total -= op.Amount
		}
		state.rewardPaid = state.add(state.rewardPaid, op.Reward)
	default:
		report.issuef("operation %s has unknown kind %q", op.ID, op.Kind)
	}
}

func (a *Auditor) compare(state *replay, snapshot model.Snapshot, report *Report) {
	if snapshot.Pool == nil {
		if report.Operations > 0 {
			report.issuef("journal has operations but the snapshot has no pool")
		}
		return
	}
	pool := snapshot.Pool
	report.PoolTotalStaked = pool.TotalStaked

	if pool.TotalStaked != state.total {
		report.issuef("pool total staked %d, replay has %d", pool.TotalStaked, state.total)
	}

	remaining := make(map[positionKey]uint64, len(state.positions))
	for k, v := range state.positions {
		remaining[k] = v
	}
	for _, record := range snapshot.Users {
		for tier, slot := range record.Slots {
			report.RecordTotalStaked += slot.Amount
			report.PendingRewards += slot.PendingReward
			key := positionKey{user: record.User.String(), tier: uint8(tier)}
			if replayed := remaining[key]; replayed != slot.Amount {
				report.issuef("user %s tier %d holds %d, replay has %d", record.User, tier, slot.Amount, replayed)
			}
			delete(remaining, key)
		}
	}
	for key, amount := range remaining {
		if amount > 0 {
			report.issuef("user %s tier %d replays %d but has no record", key.user, key.tier, amount)
		}
	}
	if report.RecordTotalStaked != pool.TotalStaked {
		report.issuef("records hold %d, pool total staked is %d", report.RecordTotalStaked, pool.TotalStaked)
	}

	balances := make(map[string]uint64, len(snapshot.Accounts))
	for _, acc := range snapshot.Accounts {
		balances[acc.Address.String()] = acc.Amount
	}
	if bal, ok := balances[pool.StakingVault.Address.String()]; ok {
		report.StakingVault = &bal
		if bal < pool.TotalStaked {
			report.issuef("staking vault holds %d, owes %d", bal, pool.TotalStaked)
		}
	}
	if bal, ok := balances[pool.RewardVault.Address.String()]; ok {
		report.RewardVault = &bal
		if bal < report.PendingRewards {
			report.issuef("reward vault holds %d, pending rewards are %d", bal, report.PendingRewards)
		}
		if in, out := state.rewardIn, state.add(state.rewardOut, state.rewardPaid); in >= out {
			expected := in - out
			report.ExpectedRewardVault = &expected
			if expected != bal {
				report.issuef("reward vault holds %d, journal flows give %d", bal, expected)
			}
		} else {
			report.issuef("journal pays out %d rewards but only %d were deposited", out, in)
		}
	}
}
