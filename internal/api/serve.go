package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ServeOptions tunes the HTTP listener. Zero values take the defaults below.
type ServeOptions struct {
	// WriteTimeout bounds a whole request; pathway merges with remote
	// retrieval and flux checks can take minutes.
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

const (
	defaultWriteTimeout    = 10 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

func (o ServeOptions) withDefaults() ServeOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
	return o
}

// Serve answers requests on ln until ctx is canceled, then drains in-flight
// merges for at most ShutdownTimeout. A canceled context is a clean stop and
// returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener, opts ServeOptions) error {
	opts = opts.withDefaults()
	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("curation API listening", "addr", ln.Addr().String(), "model", s.defaultModel, "auth", s.authToken != "")
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving curation API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("curation API stopping", "grace", opts.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			return fmt.Errorf("draining curation API: %w", err)
		}
		return nil
	})
	return g.Wait()
}
