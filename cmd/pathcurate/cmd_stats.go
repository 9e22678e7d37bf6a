package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/curator"
	"github.com/ajitpratap0/pathcurate/internal/summary"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show model statistics, or list stored models when --model is not set",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if modelRef == "" {
				st, err := newStore(logger)
				if err != nil {
					return fmt.Errorf("stats: opening model store: %w", err)
				}
				defer func() { _ = st.Close() }()
				infos, err := st.List(ctx)
				if err != nil {
					return fmt.Errorf("stats: listing models: %w", err)
				}
				fmt.Printf("Stored models: %d\n\n", len(infos))
				for _, info := range infos {
					fmt.Printf("  %-20s %6d metabolites %6d reactions %4d pathways  %s\n",
						info.ID, info.Metabolites, info.Reactions, info.Pathways, info.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			}

			m, err := loadModel(ctx, logger, false)
			if err != nil {
				return fmt.Errorf("stats: loading model: %w", err)
			}
			s := curator.StatsOf(m)
			fmt.Printf("Model: %s (%s)\n\n", s.ID, s.Name)
			fmt.Printf("  %-12s %d\n", "Metabolites", s.Metabolites)
			fmt.Printf("  %-12s %d\n", "Reactions", s.Reactions)
			fmt.Printf("  %-12s %d\n", "Exchanges", s.Exchanges)
			fmt.Printf("  %-12s %d\n", "Sinks", s.Sinks)
			fmt.Printf("  %-12s %d\n", "Demands", s.Demands)
			fmt.Printf("  %-12s %d\n", "Genes", s.Genes)
			fmt.Printf("  %-12s %d\n", "Pathways", s.Pathways)
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	var (
		output  string
		against string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Write a summary of the model, or of its changes against another model",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			m, err := loadModel(ctx, logger, false)
			if err != nil {
				return fmt.Errorf("summary: loading model: %w", err)
			}
			current := summary.FromModel(m, nil)
			diff := current
			if against != "" {
				saved := modelRef
				modelRef = against
				base, err := loadModel(ctx, logger, false)
				modelRef = saved
				if err != nil {
					return fmt.Errorf("summary: loading %s: %w", against, err)
				}
				diff = current.Diff(summary.FromModel(base, nil))
			}

			if output == "" {
				if err := summary.Write(os.Stdout, summary.FormatTXT, m, current, diff); err != nil {
					return err
				}
			} else if err := writeSummary(output, m, current, diff); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "summary file (.txt, .csv or .json); stdout when empty")
	cmd.Flags().StringVar(&against, "against", "", "model to diff against")
	return cmd
}
