package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func fluxTestCmd() *cobra.Command {
	var blockedOnly bool
	cmd := &cobra.Command{
		Use:   "flux-test [reaction...]",
		Short: "Check whether reactions can carry non-zero flux",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			c, cleanup, err := newCurator(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := loadModel(ctx, logger, false)
			if err != nil {
				return fmt.Errorf("flux-test: loading model: %w", err)
			}
			results, err := c.FluxTest(ctx, m, args)
			if err != nil {
				return fmt.Errorf("flux-test: %w", err)
			}

			blocked := 0
			for _, r := range results {
				status := "OK"
				if !r.CanCarry {
					status = "BLOCKED"
					blocked++
				} else if blockedOnly {
					continue
				}
				fmt.Printf("%-8s %s\n", status, r.Reaction)
			}
			fmt.Printf("\n%d of %d reactions blocked\n", blocked, len(results))
			return nil
		},
	}
	cmd.Flags().BoolVar(&blockedOnly, "blocked", false, "list blocked reactions only")
	return cmd
}

func optimizeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize the model objective with the configured flux engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			c, cleanup, err := newCurator(logger)
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := loadModel(ctx, logger, false)
			if err != nil {
				return fmt.Errorf("optimize: loading model: %w", err)
			}
			sol, err := c.Optimize(ctx, m)
			if err != nil {
				return fmt.Errorf("optimize: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sol)
			}
			fmt.Printf("Status:    %s\n", sol.Status)
			fmt.Printf("Objective: %g\n\n", sol.ObjectiveValue)
			ids := make([]string, 0, len(sol.Fluxes))
			for id := range sol.Fluxes {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				if v := sol.Fluxes[id]; v != 0 {
					fmt.Printf("  %-24s %g\n", id, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full solution as JSON")
	return cmd
}
