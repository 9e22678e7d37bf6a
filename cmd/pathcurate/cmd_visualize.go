package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func visualizeCmd() *cobra.Command {
	var (
		withFluxes bool
		output     string
	)
	cmd := &cobra.Command{
		Use:   "visualize [pathway-id]",
		Short: "Write drawing metadata for a pathway as JSON",
		Long: `Write the layout mapping (longest paths first), edges and, with --fluxes,
the flux of every member reaction from an optimization of the model.`,
		Args: cobra.ExactArgs(1),
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
				return fmt.Errorf("visualize: loading model: %w", err)
			}
			v, err := c.Visualize(ctx, m, args[0], withFluxes)
			if err != nil {
				return fmt.Errorf("visualize: %w", err)
			}

			w := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("visualize: creating output: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().BoolVar(&withFluxes, "fluxes", false, "optimize the model and attach fluxes")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; stdout when empty")
	return cmd
}
