package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/lifecycle"
)

func pruneCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove sinks and demands that are no longer needed, stale pathway members and orphan metabolites",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			engine, err := newFluxEngine()
			if err != nil {
				return err
			}
			m, err := loadModel(ctx, logger, false)
			if err != nil {
				return fmt.Errorf("prune: loading model: %w", err)
			}

			lm := lifecycle.NewManager(engine, logger)
			report, err := lm.Run(ctx, m, dryRun)
			if err != nil {
				return fmt.Errorf("prune: running lifecycle: %w", err)
			}

			fmt.Printf("Lifecycle report:\n")
			fmt.Printf("  Sinks removed:       %d %s\n", len(report.PrunedSinks), strings.Join(report.PrunedSinks, ", "))
			fmt.Printf("  Demands removed:     %d %s\n", len(report.PrunedDemands), strings.Join(report.PrunedDemands, ", "))
			fmt.Printf("  Stale members:       %d\n", report.StaleMembers)
			fmt.Printf("  Emptied pathways:    %d %s\n", len(report.EmptiedPathways), strings.Join(report.EmptiedPathways, ", "))
			fmt.Printf("  Orphan metabolites:  %d %s\n", len(report.OrphanMetabolites), strings.Join(report.OrphanMetabolites, ", "))
			if dryRun {
				fmt.Println("  (dry run, no changes applied)")
				return nil
			}
			if report.Total() == 0 {
				return nil
			}
			if err := saveModel(ctx, logger, m); err != nil {
				return fmt.Errorf("prune: saving model: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	return cmd
}
