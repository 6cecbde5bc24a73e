package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// SolanaRPC is the subset of the Solana RPC client the cluster clock needs.
type SolanaRPC interface {
	GetSlot(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error)
	GetBlockTime(ctx context.Context, block uint64) (*solana.UnixTimeSeconds, error)
}

// ClusterClock reads the current time from the block time of the latest
// finalized slot.
type ClusterClock struct {
	rpc          SolanaRPC
	commitment   solanarpc.CommitmentType
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// ClusterClockConfig holds retry settings for the cluster clock.
type ClusterClockConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewClusterClock creates a clock from an RPC endpoint URL.
func NewClusterClock(rpcURL string, cfg ClusterClockConfig, logger *zap.Logger) (*ClusterClock, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	return NewClusterClockWithRPC(solanarpc.New(rpcURL), cfg, logger), nil
}

// NewClusterClockWithRPC creates a clock over an existing RPC client.
func NewClusterClockWithRPC(rpc SolanaRPC, cfg ClusterClockConfig, logger *zap.Logger) *ClusterClock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClusterClock{
		rpc:          rpc,
		commitment:   solanarpc.CommitmentFinalized,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
		tsCache:      make(map[uint64]uint64),
	}
}

// Now returns the block time of the latest finalized slot.
func (c *ClusterClock) Now(ctx context.Context) (uint64, error) {
	var slot uint64
	err := withRetry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		var err error
		slot, err = c.rpc.GetSlot(ctx, c.commitment)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}

	ts, err := c.BlockTime(ctx, slot)
	if err != nil {
		return 0, fmt.Errorf("block time %d: %w", slot, err)
	}
	return ts, nil
}

// BlockTime returns the block time of slot, using an in-memory cache.
func (c *ClusterClock) BlockTime(ctx context.Context, slot uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[slot]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	var blockTime *solana.UnixTimeSeconds
	err := withRetry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		var err error
		blockTime, err = c.rpc.GetBlockTime(ctx, slot)
		return err
	})
	if err != nil {
		return 0, err
	}
	if blockTime == nil || *blockTime < 0 {
		return 0, fmt.Errorf("slot %d has no block time", slot)
	}

	ts = uint64(*blockTime)
	c.mu.Lock()
	c.tsCache[slot] = ts
	c.mu.Unlock()

	c.logger.Debug("cluster time", zap.Uint64("slot", slot), zap.Uint64("ts", ts))
	return ts, nil
}
