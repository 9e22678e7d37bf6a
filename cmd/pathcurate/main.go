package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/advisor"
	"github.com/ajitpratap0/pathcurate/internal/config"
	"github.com/ajitpratap0/pathcurate/internal/curator"
	"github.com/ajitpratap0/pathcurate/internal/flux"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/retrieval"
	"github.com/ajitpratap0/pathcurate/internal/store"
	"github.com/ajitpratap0/pathcurate/internal/xref"
)

var (
	cfg              *config.Config
	modelRef         string
	forceSameVersion bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "pathcurate",
		Short: "pathcurate: pathway-centric curation of genome-scale metabolic models",
		Long: "pathcurate retrieves pathways, reactions and metabolites from BioCyc, KEGG and BiGG " +
			"and merges them into a metabolic model while checking identity, mass balance and flux.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("force-same-version") {
				cfg.Retrieval.ForceSameVersion = forceSameVersion
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&modelRef, "model", "m", "",
		"model file (.yaml, .yml, .json) or identifier in the model store")
	rootCmd.PersistentFlags().BoolVar(&forceSameVersion, "force-same-version", false,
		"fail when a database release differs from the one pinned in the cache (retrieval.force_same_version)")

	rootCmd.AddCommand(
		parseCmd(),
		addPathwayCmd(),
		addReactionsCmd(),
		addMetabolitesCmd(),
		fluxTestCmd(),
		optimizeCmd(),
		statsCmd(),
		summaryCmd(),
		visualizeCmd(),
		pruneCmd(),
		cacheCmd(),
		xrefCmd(),
		exportCmd(),
		healthCmd(),
		serveCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (store.Store, error) {
	return store.NewFileStore(cfg.Store.Dir, store.Format(cfg.Store.Format), logger)
}

func newCache(logger *slog.Logger) *retrieval.Cache {
	cache := retrieval.NewCache(cfg.CacheDir(), logger)
	cache.Versions().SetForce(cfg.Retrieval.ForceSameVersion)
	return cache
}

// newFetcher returns the cached fetcher and, unless offline, the HTTP
// fetcher behind it.
func newFetcher(cache *retrieval.Cache, logger *slog.Logger) (retrieval.Fetcher, *retrieval.HTTPFetcher, error) {
	if cfg.Retrieval.Offline {
		return retrieval.NewCachedFetcher(cache, nil, logger), nil, nil
	}
	httpFetcher, err := retrieval.NewHTTPFetcher(retrieval.Endpoints{
		BioCyc:    cfg.Retrieval.BioCycURL,
		PlantCyc:  cfg.Retrieval.PlantCycURL,
		KEGG:      cfg.Retrieval.KEGGURL,
		BiGG:      cfg.Retrieval.BiGGURL,
		BiGGModel: cfg.Retrieval.BiGGModel,
	}, retrieval.Credentials{
		User:     cfg.Retrieval.BioCycUser,
		Password: cfg.Retrieval.BioCycPassword,
	}, cfg.Retrieval.Timeout, logger)
	if err != nil {
		return nil, nil, err
	}
	return retrieval.NewCachedFetcher(cache, httpFetcher, logger), httpFetcher, nil
}

func newFluxEngine() (flux.Engine, error) {
	return flux.New(cfg.Flux.Method, cfg.Flux.Tolerance)
}

// openXRefs opens the cross-reference store. It returns nil when disabled or
// unavailable; merges then run without alias expansion.
func openXRefs(logger *slog.Logger) *xref.Store {
	if !cfg.XRef.Enabled {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.XRef.Path), 0o755); err != nil {
		logger.Warn("xref store unavailable, continuing without it", "error", err)
		return nil
	}
	xs, err := xref.Open(cfg.XRef.Path, logger)
	if err != nil {
		logger.Warn("xref store unavailable, continuing without it", "error", err)
		return nil
	}
	return xs
}

// newCurator wires the curator from configuration. The returned cleanup
// closes the resources it opened.
func newCurator(logger *slog.Logger) (*curator.Curator, func(), error) {
	cache := newCache(logger)
	fetcher, httpFetcher, err := newFetcher(cache, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating fetcher: %w", err)
	}
	engine, err := newFluxEngine()
	if err != nil {
		return nil, nil, err
	}

	deps := curator.Deps{
		Fetcher: fetcher,
		Genes:   retrieval.NewGeneFetcher(httpFetcher, cache, cfg.Curation.Genome, logger),
		Flux:    engine,
	}
	cleanup := func() {}
	if xs := openXRefs(logger); xs != nil {
		deps.XRefs = xs
		cleanup = func() { _ = xs.Close() }
	}
	if cfg.AdvisorEnabled() {
		deps.Advisor = advisor.NewClaudeAdvisor(cfg.Claude.APIKey, cfg.Claude.Model, logger)
	}

	c := curator.New(deps, curator.Options{
		Database:      cfg.Curation.Database,
		Compartment:   cfg.Curation.Compartment,
		Replacements:  cfg.Curation.Replacements,
		Concurrency:   cfg.Retrieval.Concurrency,
		StopImbalance: cfg.Curation.StopImbalance,
	}, logger)
	return c, cleanup, nil
}

// isModelFile reports whether ref names a document on disk rather than a
// stored model identifier.
func isModelFile(ref string) bool {
	_, err := store.FormatForPath(ref)
	return err == nil
}

func requireModel() error {
	if modelRef == "" {
		return errors.New("--model is required")
	}
	return nil
}

// loadModel reads the model named by --model. With create, a missing model
// starts out empty.
func loadModel(ctx context.Context, logger *slog.Logger, create bool) (*models.Model, error) {
	if err := requireModel(); err != nil {
		return nil, err
	}
	var (
		m   *models.Model
		err error
	)
	if isModelFile(modelRef) {
		m, err = store.ReadFile(modelRef)
	} else {
		st, openErr := newStore(logger)
		if openErr != nil {
			return nil, fmt.Errorf("opening model store: %w", openErr)
		}
		defer func() { _ = st.Close() }()
		m, err = st.Load(ctx, modelRef)
	}
	if errors.Is(err, store.ErrNotFound) && create {
		id := modelRef
		if isModelFile(modelRef) {
			base := filepath.Base(modelRef)
			id = base[:len(base)-len(filepath.Ext(base))]
		}
		logger.Info("starting new model", "model", id)
		return models.NewModel(id, id), nil
	}
	return m, err
}

// saveModel writes m back to where --model points.
func saveModel(ctx context.Context, logger *slog.Logger, m *models.Model) error {
	if isModelFile(modelRef) {
		return store.WriteFile(modelRef, m)
	}
	st, err := newStore(logger)
	if err != nil {
		return fmt.Errorf("opening model store: %w", err)
	}
	defer func() { _ = st.Close() }()
	return st.Save(ctx, m)
}
