package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/xref"
)

func openXRefStore() (*xref.Store, error) {
	if !cfg.XRef.Enabled {
		return nil, errors.New("xref store is disabled (xref.enabled)")
	}
	logger := newLogger()
	if xs := openXRefs(logger); xs != nil {
		return xs, nil
	}
	return nil, fmt.Errorf("opening xref store %s failed", cfg.XRef.Path)
}

func xrefCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xref",
		Short: "Manage the cross-reference store used for identity resolution",
	}
	cmd.AddCommand(xrefImportCmd(), xrefLookupCmd(), xrefInvalidateCmd())
	return cmd
}

func xrefImportCmd() *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "import [file.csv | -]",
		Short: "Import mappings from CSV, or seed them from --model",
		Long: `Import rows of "database,identifier,alias_database,alias_identifier".
Lines starting with # and a header row are skipped. Without a file the
cross-references of every metabolite in --model are linked pairwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			xs, err := openXRefStore()
			if err != nil {
				return err
			}
			defer func() { _ = xs.Close() }()

			if len(args) == 0 {
				m, err := loadModel(ctx, newLogger(), false)
				if err != nil {
					return fmt.Errorf("xref import: loading model: %w", err)
				}
				n, err := xs.SeedFromModel(ctx, m)
				if err != nil {
					return fmt.Errorf("xref import: %w", err)
				}
				fmt.Printf("Linked cross-references of %d metabolites from %s\n", n, m.ID)
				return nil
			}

			var r io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("xref import: opening file: %w", err)
				}
				defer func() { _ = f.Close() }()
				r = f
				if origin == "" {
					origin = "csv:" + args[0]
				}
			}
			if origin == "" {
				origin = "csv:stdin"
			}
			n, err := xs.ImportCSV(ctx, r, origin)
			if err != nil {
				return fmt.Errorf("xref import: %w", err)
			}
			fmt.Printf("Imported %d mappings (origin %s)\n", n, origin)
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "tag stored with the mappings, used by invalidate")
	return cmd
}

func xrefLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [database] [identifier]",
		Short: "List the known aliases of an identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			xs, err := openXRefStore()
			if err != nil {
				return err
			}
			defer func() { _ = xs.Close() }()

			aliases, err := xs.Lookup(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("xref lookup: %w", err)
			}
			if len(aliases) == 0 {
				fmt.Println("No aliases found.")
				return nil
			}
			for _, a := range aliases {
				fmt.Printf("%s:%s\n", a.Database, a.Identifier)
			}
			return nil
		},
	}
}

func xrefInvalidateCmd() *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Delete mappings of one origin, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			xs, err := openXRefStore()
			if err != nil {
				return err
			}
			defer func() { _ = xs.Close() }()

			n, err := xs.Invalidate(cmd.Context(), origin)
			if err != nil {
				return fmt.Errorf("xref invalidate: %w", err)
			}
			fmt.Printf("Deleted %d mappings\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin tag to delete (default: everything)")
	return cmd
}
