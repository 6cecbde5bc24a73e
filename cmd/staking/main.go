package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tierStaking/internal/chain"
	"tierStaking/internal/config"
	"tierStaking/internal/custody"
	"tierStaking/internal/staking"
	"tierStaking/internal/storage"
	"tierStaking/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "staking",
		Short:        "Four-tier custodial staking ledger",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("program-id", config.DefaultProgramID, "program id used to derive pool, vault and stake record addresses")
	flags.String("state-file", "./data/state.json", "ledger snapshot file")
	flags.String("journal", "./data/journal.jsonl", "operation journal JSONL")
	flags.String("pg-dsn", "", "Postgres DSN; stores snapshot and journal in Postgres when set")
	flags.String("clock", config.ClockSystem, "time source (system, cluster)")
	flags.String("rpc", "", "Solana RPC URL for the cluster clock")
	flags.Int("max-retries", 5, "maximum RPC retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	flags.String("signer", "", "public key of the account signing the operation")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(),
		newDepositRewardCmd(),
		newWithdrawRewardCmd(),
		newStakeCmd(),
		newUnstakeCmd(),
		newFaucetCmd(),
		newShowCmd(),
		newAuditCmd(),
		newServeCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime is the wired ledger for one command invocation.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	engine *staking.Engine
	bank   *custody.MemoryBank
	store  storage.StateStore
	close  []func()
}

func openRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger, bank: custody.NewMemoryBank()}
	rt.close = append(rt.close, func() { _ = logger.Sync() })

	programID, err := config.PublicKey("program-id", cfg.ProgramID)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var clock staking.TimeSource
	switch cfg.Clock {
	case config.ClockCluster:
		clock, err = chain.NewClusterClock(cfg.RPCURL, chain.ClusterClockConfig{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("cluster clock: %w", err)
		}
	default:
		clock = staking.NewSystemClock()
	}

	var journal storage.Journal = storage.NewJsonlJournal(cfg.Journal)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.close = append(rt.close, store.Close)
		if err := store.Migrate(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		rt.store = store
		journal = storage.MultiJournal{journal, store}
	} else {
		rt.store = &storage.FileStateStore{Path: cfg.StateFile}
	}

	rt.engine, err = staking.NewEngine(staking.EngineConfig{
		ProgramID: programID,
		Bank:      rt.bank,
		Clock:     clock,
		Journal:   journal,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if err := rt.reload(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// reload restores the engine from the state store.
func (rt *runtime) reload(ctx context.Context) error {
	snapshot, ok, err := rt.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return nil
	}
	if err := rt.engine.Restore(snapshot); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	return nil
}

func (rt *runtime) save(ctx context.Context) error {
	if err := rt.store.Save(ctx, rt.engine.Snapshot()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (rt *runtime) signer() (solana.PublicKey, error) {
	return config.PublicKey("signer", rt.cfg.Signer)
}

func (rt *runtime) Close() {
	for i := len(rt.close) - 1; i >= 0; i-- {
		rt.close[i]()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
