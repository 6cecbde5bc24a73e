package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staking_operations_total",
			Help: "Total number of ledger operations by outcome",
		},
		[]string{"op", "status"},
	)

	TotalStaked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "staking_total_staked",
			Help: "Principal currently staked across all users and tiers",
		},
	)

	VaultBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "staking_vault_balance",
			Help: "Balance held by each pool vault",
		},
		[]string{"vault"},
	)

	RewardPaidTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staking_reward_paid_total",
			Help: "Reward tokens paid out by unstake",
		},
	)

	JournalErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staking_journal_errors_total",
			Help: "Committed operations that could not be written to the journal",
		},
	)
)
