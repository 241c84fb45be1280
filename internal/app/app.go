// Package app provides the top-level application lifecycle. It wires the
// market store, streaming feeds, price enrichment, and the order gateway,
// then runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyfeed/internal/config"
	"github.com/alanyoungcy/polyfeed/internal/platform/polymarket"
)

const statsInterval = 30 * time.Second

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
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

// Run wires all dependencies, starts the streaming feeds and the price
// enricher, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.Int("assets", len(a.cfg.Feed.AssetIDs)),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Queue subscriptions before connecting; they flush on open.
	opts := polymarket.SubscribeOptions{InitialDump: a.cfg.Feed.InitialDump}
	if len(a.cfg.Feed.AssetIDs) > 0 {
		if err := deps.MarketFeed.Subscribe(ctx, a.cfg.Feed.AssetIDs, opts); err != nil {
			return fmt.Errorf("app: queue subscriptions: %w", err)
		}
	}
	if err := deps.MarketFeed.Connect(ctx); err != nil {
		return fmt.Errorf("app: connect market feed: %w", err)
	}
	a.closers = append(a.closers, func() { _ = deps.MarketFeed.Disconnect() })

	if deps.UserFeed != nil {
		if err := deps.UserFeed.Subscribe(ctx, a.cfg.Feed.UserMarkets, opts); err != nil {
			return fmt.Errorf("app: queue user subscriptions: %w", err)
		}
		if err := deps.UserFeed.Connect(ctx); err != nil {
			return fmt.Errorf("app: connect user feed: %w", err)
		}
		a.closers = append(a.closers, func() { _ = deps.UserFeed.Disconnect() })
	}

	g, runCtx := errgroup.WithContext(ctx)

	if deps.Enricher != nil {
		g.Go(func() error {
			if err := deps.Enricher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: enricher: %w", err)
			}
			return nil
		})
	}

	if deps.Mirror != nil {
		g.Go(func() error {
			if err := deps.Mirror.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: mirror: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		a.statsLoop(runCtx, deps)
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// statsLoop periodically logs feed counters until the context ends.
func (a *App) statsLoop(ctx context.Context, deps *Dependencies) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := deps.MarketFeed.Stats()
			a.logger.Info("feed stats",
				slog.Bool("connected", st.Connected),
				slog.Int64("messages", st.MessageCount),
				slog.Int("subscribed", st.Subscribed),
				slog.Int("snapshots", st.Snapshots),
				slog.Int("active_alerts", st.ActiveAlerts),
			)
		}
	}
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
