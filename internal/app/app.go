// Package app provides the top-level application lifecycle for the floorline
// ingestion service. It wires together all dependencies (stores, caches,
// chain access, the oracle, the audit relay and the pipeline) and runs the
// long-lived loops until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/floorline/floorline/internal/config"
	"github.com/floorline/floorline/internal/feed"
)

// directoryRefreshEvery is how often the marketplace directory is reloaded
// from the source store, picking up sources registered by other nodes.
const directoryRefreshEvery = 5 * time.Minute

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the long-lived loops, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting ingestion service",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("feed", a.cfg.Feed.Enabled),
		slog.Bool("audit", a.cfg.Audit.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := deps.Directory.Refresh(ctx); err != nil {
		return fmt.Errorf("app: load marketplace directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(directoryRefreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := deps.Directory.Refresh(gctx); err != nil {
					a.logger.Warn("directory refresh failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	if a.cfg.Feed.Enabled {
		relay := feed.NewRelay(feed.RelayConfig{
			URL:        a.cfg.Feed.URL,
			BatchSize:  a.cfg.Feed.BatchSize,
			FlushEvery: a.cfg.Feed.FlushEvery.Duration,
		}, deps.Pipeline, a.logger)
		a.closers = append(a.closers, relay.Close)

		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
