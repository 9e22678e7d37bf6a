package main

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/pathcurate/internal/api"
	"github.com/ajitpratap0/pathcurate/internal/curator"
)

func serveCmd() *cobra.Command {
	var (
		addr            string
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve curation requests over HTTP/JSON",
		Long: "serve exposes pathway, reaction and flux operations on the model store. " +
			"Requests name a stored model with ?model= or fall back to --model or api.model_id.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			if addr == "" {
				addr = cfg.API.ListenAddr
			}
			if shutdownTimeout <= 0 {
				shutdownTimeout = cfg.API.ShutdownTimeout
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("serve: opening model store %s: %w", cfg.Store.Dir, err)
			}
			defer func() { _ = st.Close() }()

			c, cleanup, err := newCurator(logger)
			if err != nil {
				return fmt.Errorf("serve: preparing curator: %w", err)
			}
			defer cleanup()

			model := cfg.API.ModelID
			if modelRef != "" {
				model = modelRef
			}
			if cfg.API.AuthToken == "" {
				logger.Warn("curation API accepts unauthenticated writes; set PATHCURATE_API_AUTH_TOKEN or api.auth_token")
			}
			logger.Info("curation API configured",
				"store", cfg.Store.Dir, "cache", cfg.CacheDir(), "flux", cfg.Flux.Method,
				"database", cfg.Curation.Database, "offline", cfg.Retrieval.Offline)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("serve: listening on %s: %w", addr, err)
			}
			srv := api.NewServer(c, curator.NewWorkspace(st, logger), model, logger, cfg.API.AuthToken)
			if err := srv.Serve(cmd.Context(), ln, api.ServeOptions{
				WriteTimeout:    cfg.API.WriteTimeout,
				ShutdownTimeout: shutdownTimeout,
			}); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: api.listen_addr)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 0,
		"how long in-flight merges may finish after a stop signal (default: api.shutdown_timeout)")
	return cmd
}
