// Package app wires polyhedge together and runs its long-lived loops: the
// hedge cycle ticker, the operator HTTP server, the executor's dedup janitor
// and the journal archiver.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyhedge/internal/config"
	"github.com/alanyoungcy/polyhedge/internal/domain"
)

const shutdownTimeout = 10 * time.Second

// App owns the configuration, the logger, and the cleanup functions run in
// reverse order on Close.
type App struct {
	cfg     *config.Config
	base    *slog.Logger
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		base:   logger,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies and blocks until ctx is cancelled or a loop
// fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "app: starting",
		slog.String("mode", a.cfg.Mode),
		slog.Duration("interval", a.cfg.Hedging.Interval.Duration),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.base)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.logger.InfoContext(ctx, "app: wired",
		slog.String("wallet", deps.Wallet),
		slog.Bool("dry_run", a.cfg.DryRun()),
		slog.Bool("server", deps.Server != nil),
		slog.Bool("archiver", deps.Archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runCycles(ctx, deps.Engine, a.cfg.Hedging.Interval.Duration)
	})
	g.Go(func() error {
		return deps.Executor.Run(ctx)
	})

	if deps.Server != nil {
		g.Go(deps.Server.Start)
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return deps.Server.Shutdown(sctx)
		})
	}

	if deps.Archiver != nil {
		retention := time.Duration(a.cfg.S3.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			return a.runArchiver(ctx, deps.Archiver, a.cfg.S3.ArchiveEvery.Duration, retention)
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. Repeated
// calls are no-ops.
func (a *App) Close() {
	a.logger.Info("app: shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type cycler interface {
	Execute(ctx context.Context) int
}

// runCycles runs one cycle immediately and then one per interval. Ticks
// that fire while a cycle is running are dropped, not queued.
func (a *App) runCycles(ctx context.Context, engine cycler, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		actions := engine.Execute(ctx)
		a.logger.DebugContext(ctx, "app: cycle done", slog.Int("actions", actions))

		select {
		case <-t.C:
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// runArchiver exports journal rows older than retention, once at start and
// then every interval. A failed run is logged and retried next interval.
func (a *App) runArchiver(ctx context.Context, arch domain.Archiver, every, retention time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		before := time.Now().Add(-retention).UTC()
		n, err := arch.ArchiveHedgeEvents(ctx, before)
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case err != nil:
			a.logger.ErrorContext(ctx, "app: archive hedge events",
				slog.Time("before", before),
				slog.String("error", err.Error()),
			)
		case n > 0:
			a.logger.InfoContext(ctx, "app: hedge events archived",
				slog.Int64("rows", n),
				slog.Time("before", before),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
