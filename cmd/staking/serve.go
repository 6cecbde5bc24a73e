package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tierStaking/internal/api"
	"tierStaking/internal/metrics"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only ledger API and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			refresh, _ := cmd.Flags().GetDuration("refresh")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			server := api.NewServer(rt.cfg.Listen, rt.engine, rt.logger)
			rt.logger.Info("serve start",
				zap.String("listen", rt.cfg.Listen),
				zap.Duration("refresh", refresh),
			)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(ctx)
			})
			g.Go(func() error {
				return refreshLoop(ctx, rt, refresh)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().Duration("refresh", 5*time.Second, "interval for reloading ledger state written by other commands")
	return cmd
}

// refreshLoop reloads the persisted snapshot so the API follows operations
// committed by other CLI invocations.
func refreshLoop(ctx context.Context, rt *runtime, every time.Duration) error {
	updateGauges(ctx, rt)
	if every <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := rt.reload(ctx); err != nil {
				rt.logger.Warn("reload state", zap.Error(err))
				continue
			}
			updateGauges(ctx, rt)
		}
	}
}

func updateGauges(ctx context.Context, rt *runtime) {
	pool, ok := rt.engine.Pool()
	if !ok {
		return
	}
	metrics.TotalStaked.Set(float64(pool.TotalStaked))
	staking, rewards, err := rt.engine.Custody().VaultBalances(ctx, pool)
	if err != nil {
		return
	}
	metrics.VaultBalance.WithLabelValues("staking").Set(float64(staking))
	metrics.VaultBalance.WithLabelValues("reward").Set(float64(rewards))
}
