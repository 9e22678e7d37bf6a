package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
)

func parseCmd() *cobra.Command {
	var (
		database string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "parse [identifier]",
		Short: "Fetch or read a record and print it in normalized form",
		Long: `Print the normalized record for a database identifier, fetched through the
cache, or for a local file with --file. The file format follows the extension
(.xml, .txt, .json) and is sniffed otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var recs []models.Record
			switch {
			case file != "":
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("parse: reading file: %w", err)
				}
				format, ok := parser.FormatForExt(filepath.Ext(file))
				if !ok {
					if format, err = parser.DetectFormat(raw); err != nil {
						return fmt.Errorf("parse: %w", err)
					}
				}
				db := database
				if db == "" {
					db = cfg.Curation.Database
				}
				if recs, err = parser.Parse(raw, format, db); err != nil {
					return fmt.Errorf("parse: %w", err)
				}
			case len(args) == 1:
				c, cleanup, err := newCurator(logger)
				if err != nil {
					return err
				}
				defer cleanup()
				rec, err := c.Record(ctx, args[0], database)
				if err != nil {
					return fmt.Errorf("parse: %w", err)
				}
				recs = []models.Record{rec}
			default:
				return fmt.Errorf("parse: give an identifier or --file")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "source database (default from config)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "parse a local file instead of fetching")
	return cmd
}
