package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tierStaking/internal/audit"
)

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Replay the operation journal and check it against the ledger state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			rt, err := openRuntime(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := audit.NewAuditor(rt.logger).Run(ctx, rt.cfg.Journal, rt.engine.Snapshot())
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("audit found %d issues and %d malformed records", len(report.Issues), report.Malformed)
			}
			return nil
		},
	}
}
