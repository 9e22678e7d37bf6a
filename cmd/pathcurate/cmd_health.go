package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/graphdb"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the configured stores and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Model store
			st, err := newStore(logger)
			if err != nil {
				fmt.Printf("Model store: FAIL (%v)\n", err)
				allOK = false
			} else {
				if _, err := st.List(ctx); err != nil {
					fmt.Printf("Model store: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Printf("Model store: OK (%s)\n", cfg.Store.Dir)
				}
				_ = st.Close()
			}

			// Record cache
			if err := os.MkdirAll(cfg.CacheDir(), 0o755); err != nil {
				fmt.Printf("Record cache: FAIL (%v)\n", err)
				allOK = false
			} else {
				fmt.Printf("Record cache: OK (%s)\n", cfg.CacheDir())
			}

			// Cross-reference store
			if cfg.XRef.Enabled {
				if xs := openXRefs(logger); xs == nil {
					fmt.Println("XRef store: FAIL")
					allOK = false
				} else {
					n, _ := xs.Count(ctx)
					fmt.Printf("XRef store: OK (%d mappings)\n", n)
					_ = xs.Close()
				}
			} else {
				fmt.Println("XRef store: disabled")
			}

			// Flux engine
			if _, err := newFluxEngine(); err != nil {
				fmt.Printf("Flux engine: FAIL (%v)\n", err)
				allOK = false
			} else {
				fmt.Printf("Flux engine: OK (%s)\n", cfg.Flux.Method)
			}

			// Neo4j is optional
			if cfg.Neo4j.URI == "" {
				fmt.Println("Neo4j: not configured")
			} else if client, err := graphdb.Connect(ctx, neo4jConfig(), logger); err != nil {
				fmt.Printf("Neo4j: FAIL (%v)\n", err)
				allOK = false
			} else {
				fmt.Println("Neo4j: OK")
				_ = client.Close(ctx)
			}

			// Claude advisor is optional
			switch {
			case !cfg.Claude.Advisor:
				fmt.Println("Claude advisor: disabled")
			case cfg.Claude.APIKey == "":
				fmt.Println("Claude advisor: FAIL (no API key configured)")
				allOK = false
			default:
				fmt.Println("Claude advisor: OK")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
