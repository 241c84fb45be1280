// Package service contains the components that sit between the raw feed
// and the market store but are not part of the hot streaming path.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/domain"
	"github.com/alanyoungcy/polyfeed/internal/market"
)

// PriceGetter fetches one side's top-of-book price from the venue REST API.
// "BUY" returns the price to buy at (best ask), "SELL" the price to sell
// at (best bid).
type PriceGetter interface {
	GetPrice(ctx context.Context, tokenID, side string) (float64, error)
}

// EnrichConfig tunes the asynchronous price enrichment.
type EnrichConfig struct {
	QueueSize      int
	Limit          int
	Window         time.Duration
	RequestTimeout time.Duration
}

func (c EnrichConfig) withDefaults() EnrichConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Limit <= 0 {
		c.Limit = 10
	}
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	return c
}

// PriceEnricher backfills quotes for tokens whose streamed payloads could
// not be decoded. Requests are queued without blocking the feed, deduped
// while in flight, and drained under a rate limit so a burst of schema
// misses cannot turn into a REST request storm.
type PriceEnricher struct {
	venue   PriceGetter
	store   *market.Store
	limiter domain.RateLimiter
	logger  *slog.Logger
	cfg     EnrichConfig

	requests chan string

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewPriceEnricher creates an enricher. The limiter must not be nil; use
// NewLocalLimiter when no shared Redis limiter is configured.
func NewPriceEnricher(venue PriceGetter, store *market.Store, limiter domain.RateLimiter, cfg EnrichConfig, logger *slog.Logger) *PriceEnricher {
	cfg = cfg.withDefaults()
	return &PriceEnricher{
		venue:    venue,
		store:    store,
		limiter:  limiter,
		logger:   logger.With(slog.String("component", "price_enricher")),
		cfg:      cfg,
		requests: make(chan string, cfg.QueueSize),
		pending:  make(map[string]struct{}),
	}
}

// Request queues a token for enrichment. It never blocks: tokens already
// queued or a full queue are dropped, the stream will surface the price
// again soon enough.
func (e *PriceEnricher) Request(tokenID string) {
	if tokenID == "" {
		return
	}

	e.mu.Lock()
	if _, dup := e.pending[tokenID]; dup {
		e.mu.Unlock()
		return
	}
	e.pending[tokenID] = struct{}{}
	e.mu.Unlock()

	select {
	case e.requests <- tokenID:
	default:
		e.clearPending(tokenID)
		e.logger.Debug("enrich queue full, dropping", slog.String("token_id", tokenID))
	}
}

// Run drains the request queue until ctx is cancelled.
func (e *PriceEnricher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tokenID := <-e.requests:
			if err := e.throttle(ctx); err != nil {
				return err
			}
			e.fetch(ctx, tokenID)
		}
	}
}

func (e *PriceEnricher) throttle(ctx context.Context) error {
	for {
		allowed, err := e.limiter.Allow(ctx, "enrich", e.cfg.Limit, e.cfg.Window)
		if err != nil {
			e.logger.Warn("rate limiter error", slog.String("error", err.Error()))
			allowed = true
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(50 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (e *PriceEnricher) fetch(ctx context.Context, tokenID string) {
	defer e.clearPending(tokenID)

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	// BUY price is the best ask, SELL price the best bid.
	ask, askErr := e.venue.GetPrice(reqCtx, tokenID, "BUY")
	bid, bidErr := e.venue.GetPrice(reqCtx, tokenID, "SELL")
	if askErr != nil && bidErr != nil {
		e.logger.Warn("price enrichment failed",
			slog.String("token_id", tokenID),
			slog.String("error", askErr.Error()),
		)
		return
	}

	var bidP, askP *float64
	if bidErr == nil && bid > 0 {
		bidP = &bid
	}
	if askErr == nil && ask > 0 {
		askP = &ask
	}
	if bidP == nil && askP == nil {
		return
	}

	e.store.ApplyQuote(tokenID, bidP, askP)
	e.logger.Debug("quote enriched", slog.String("token_id", tokenID))
}

func (e *PriceEnricher) clearPending(tokenID string) {
	e.mu.Lock()
	delete(e.pending, tokenID)
	e.mu.Unlock()
}
