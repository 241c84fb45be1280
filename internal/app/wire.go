package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/polyfeed/internal/cache/redis"
	"github.com/alanyoungcy/polyfeed/internal/config"
	"github.com/alanyoungcy/polyfeed/internal/domain"
	"github.com/alanyoungcy/polyfeed/internal/executor"
	"github.com/alanyoungcy/polyfeed/internal/feed"
	"github.com/alanyoungcy/polyfeed/internal/market"
	"github.com/alanyoungcy/polyfeed/internal/platform/polymarket"
	"github.com/alanyoungcy/polyfeed/internal/service"
)

// Dependencies bundles every component the application lifecycle operates.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store     *market.Store
	Alerts    *market.AlertBook
	Observers *domain.Observers

	MarketFeed *feed.Feed
	UserFeed   *feed.Feed

	Clob     *polymarket.ClobClient
	Gateway  *executor.Gateway
	Enricher *service.PriceEnricher
	Mirror   *service.Mirror
}

// Wire constructs all concrete components from the given configuration and
// returns them together with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Store:     market.NewStore(),
		Alerts:    market.NewAlertBook(logger),
		Observers: &domain.Observers{},
	}

	creds := domain.StaticCredentials{
		APIKey:     cfg.Credentials.ApiKey,
		Secret:     cfg.Credentials.ApiSecret,
		Passphrase: cfg.Credentials.ApiPassphrase,
		Wallet:     common.HexToAddress(cfg.Credentials.WalletAddress),
	}

	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, creds)
	deps.Gateway = executor.NewGateway(
		deps.Clob,
		executor.NewLedger(),
		cfg.Executor.MaxWorkers,
		cfg.Executor.OrderTimeout.Duration,
		logger,
	)

	// --- Redis (optional mirror, bus, and shared rate limiter) ---
	var limiter domain.RateLimiter = service.NewLocalLimiter()
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		limiter = redis.NewRateLimiter(redisClient)
		deps.Mirror = service.NewMirror(
			redis.NewPriceCache(redisClient),
			redis.NewSignalBus(redisClient),
			logger,
		)
		deps.Observers.OnPriceUpdate = deps.Mirror.HandlePriceUpdate
		deps.Observers.OnTrade = deps.Mirror.HandleTrade
	}

	// --- Asynchronous price enrichment ---
	var enrichReq feed.EnrichRequester
	if cfg.Enrich.Enabled {
		deps.Enricher = service.NewPriceEnricher(deps.Clob, deps.Store, limiter, service.EnrichConfig{
			QueueSize:      cfg.Enrich.QueueSize,
			Limit:          cfg.Enrich.Limit,
			Window:         cfg.Enrich.Window.Duration,
			RequestTimeout: cfg.Enrich.RequestTimeout.Duration,
		}, logger)
		enrichReq = deps.Enricher
	}

	// --- Streaming feeds ---
	marketWS := polymarket.NewWSClient(cfg.Polymarket.WsHost, polymarket.ChannelMarket, creds, logger)
	deps.MarketFeed = feed.New(marketWS, deps.Store, deps.Alerts, deps.Observers, enrichReq, logger)

	if len(cfg.Feed.UserMarkets) > 0 {
		userWS := polymarket.NewWSClient(cfg.Polymarket.WsHost, polymarket.ChannelUser, creds, logger)
		deps.UserFeed = feed.New(userWS, deps.Store, deps.Alerts, deps.Observers, nil, logger)
	}

	return deps, cleanup, nil
}
