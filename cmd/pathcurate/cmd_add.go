package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/curator"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
	"github.com/ajitpratap0/pathcurate/internal/summary"
)

// mergeFlags are shared by the add commands.
type mergeFlags struct {
	database     string
	compartment  string
	ignoreFlux   []string
	replacements map[string]string
	summaryPath  string
	dryRun       bool
}

func (f *mergeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.database, "database", "d", "", "source database (default from config)")
	cmd.Flags().StringVarP(&f.compartment, "compartment", "c", "", "compartment for new entities (default from config)")
	cmd.Flags().StringSliceVar(&f.ignoreFlux, "ignore-flux", nil, "reactions exempt from dead-end repair")
	cmd.Flags().StringToStringVar(&f.replacements, "replace", nil, "identifier replacements, source=target")
	cmd.Flags().StringVar(&f.summaryPath, "summary", "", "write a change summary (.txt, .csv or .json)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "report the merge without saving the model")
}

// runMerge loads the model, applies op, reports and saves.
func runMerge(ctx context.Context, flags *mergeFlags, op func(context.Context, *curator.Curator, *models.Model) (*curator.Result, error)) error {
	logger := newLogger()

	c, cleanup, err := newCurator(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := loadModel(ctx, logger, true)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	before := summary.FromModel(m, nil)

	res, err := op(ctx, c, m)
	if err != nil {
		return err
	}
	after := summary.FromModel(m, nil)
	diff := after.Diff(before)

	if err := printResult(os.Stdout, res, diff); err != nil {
		return err
	}
	if flags.summaryPath != "" {
		if err := writeSummary(flags.summaryPath, m, after, diff); err != nil {
			return err
		}
	}
	if flags.dryRun {
		fmt.Println("(dry run, model not saved)")
		return nil
	}
	if err := saveModel(ctx, logger, m); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}
	logger.Info("model saved", "model", m.ID, "changes", diff.Changes())
	return nil
}

func printResult(w io.Writer, res *curator.Result, diff *summary.DataModel) error {
	if err := summary.Merge(w, res.Summary, cfg.Curation.ShowImbalance); err != nil {
		return err
	}
	for _, pw := range res.Warnings {
		fmt.Fprintf(w, "  [pathway/%s] %s\n", pw.Kind, pw.Message)
	}
	for _, n := range res.Notes {
		fmt.Fprintf(w, "  [advisor/%s] %s: %s\n", n.Severity, n.Subject, n.Text)
	}
	fmt.Fprintln(w)
	return summary.Console(w, diff)
}

func writeSummary(path string, m *models.Model, current, diff *summary.DataModel) error {
	format, err := summary.FormatForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary: %w", err)
	}
	if err := summary.Write(f, format, m, current, diff); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing summary: %w", err)
	}
	return f.Close()
}

func addPathwayCmd() *cobra.Command {
	var (
		flags mergeFlags
		avoid []string
	)
	cmd := &cobra.Command{
		Use:   "add-pathway [pathway-id]",
		Short: "Fetch a pathway and merge its reactions into the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.Context(), &flags, func(ctx context.Context, c *curator.Curator, m *models.Model) (*curator.Result, error) {
				return c.AddPathway(ctx, m, curator.PathwayRequest{
					ID:           args[0],
					Database:     flags.database,
					Compartment:  flags.compartment,
					Avoid:        avoid,
					IgnoreFlux:   flags.ignoreFlux,
					Replacements: flags.replacements,
				})
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&avoid, "avoid", nil, "reactions to leave out of the pathway")
	return cmd
}

// readEntries collects entries from --file (or - for stdin) and arguments.
func readEntries(path string, args []string) ([]parser.Entry, error) {
	var sources []io.Reader
	switch path {
	case "":
	case "-":
		sources = append(sources, os.Stdin)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening entries: %w", err)
		}
		defer func() { _ = f.Close() }()
		sources = append(sources, f)
	}
	if len(args) > 0 {
		sources = append(sources, strings.NewReader(strings.Join(args, "\n")))
	}
	var out []parser.Entry
	for _, r := range sources {
		entries, err := parser.ParseEntries(r)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no entries given")
	}
	return out, nil
}

func entriesCmd(use, short string, metabolitesOnly bool) *cobra.Command {
	var (
		flags       mergeFlags
		file        string
		pathwayID   string
		pathwayName string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: `Entries are read one per line from --file and from the arguments:

  C00002                              database identifier
  C00002, e                           database identifier in compartment e
  MET_A, Metabolite A, c, C6H12O6, 0  custom metabolite
  RXN_A, Reaction A | MET_A_c:-1, MET_B_c:1
  RXN_B | 2 A_c + B_c --> C_c         custom reaction

Blank lines and lines starting with # are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readEntries(file, args)
			if err != nil {
				return err
			}
			return runMerge(cmd.Context(), &flags, func(ctx context.Context, c *curator.Curator, m *models.Model) (*curator.Result, error) {
				req := curator.EntriesRequest{
					Entries:      entries,
					Database:     flags.database,
					Compartment:  flags.compartment,
					PathwayID:    pathwayID,
					PathwayName:  pathwayName,
					IgnoreFlux:   flags.ignoreFlux,
					Replacements: flags.replacements,
				}
				if metabolitesOnly {
					return c.AddMetabolites(ctx, m, req)
				}
				return c.AddReactions(ctx, m, req)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one entry per line (- for stdin)")
	if !metabolitesOnly {
		cmd.Flags().StringVar(&pathwayID, "group", "", "group the reactions into a linear pathway with this id")
		cmd.Flags().StringVar(&pathwayName, "group-name", "", "name of the pathway created by --group")
	}
	return cmd
}

func addReactionsCmd() *cobra.Command {
	return entriesCmd("add-reactions [entry...]", "Merge reactions and metabolites given as entries", false)
}

func addMetabolitesCmd() *cobra.Command {
	return entriesCmd("add-metabolites [entry...]", "Merge metabolites given as entries", true)
}
