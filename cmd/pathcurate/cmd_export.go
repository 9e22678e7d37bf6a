package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/graphdb"
	"github.com/ajitpratap0/pathcurate/internal/store"
)

func neo4jConfig() graphdb.Config {
	return graphdb.Config{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
		Timeout:  cfg.Neo4j.Timeout,
	}
}

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the model to Neo4j, or convert it to another document file",
		Long: `Without --output the model is written to the configured Neo4j database as
Metabolite, Reaction and Pathway nodes joined by CONSUMES, PRODUCES, CONTAINS
and FOLLOWS relationships. With --output it is written as a YAML or JSON
document instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			m, err := loadModel(ctx, logger, false)
			if err != nil {
				return fmt.Errorf("export: loading model: %w", err)
			}

			if output != "" {
				if err := store.WriteFile(output, m); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Printf("Wrote %s\n", output)
				return nil
			}

			if cfg.Neo4j.URI == "" {
				return errors.New("export: neo4j.uri is not configured (PATHCURATE_NEO4J_URI)")
			}
			client, err := graphdb.Connect(ctx, neo4jConfig(), logger)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer func() { _ = client.Close(ctx) }()

			stats, err := client.Export(ctx, m)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Printf("Exported %s: %d nodes, %d relationships\n", m.ID, stats.Nodes, stats.Relationships)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write a .yaml or .json document instead of exporting to Neo4j")
	return cmd
}
