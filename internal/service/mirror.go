package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// mirrorQueueSize bounds how many pending updates a stalled Redis can back
// up before new ones are dropped.
const mirrorQueueSize = 256

// mirrorWriteTimeout bounds each cache write and publish.
const mirrorWriteTimeout = 5 * time.Second

type mirrorEventKind int

const (
	mirrorPriceUpdate mirrorEventKind = iota
	mirrorTrade
)

type mirrorEvent struct {
	kind    mirrorEventKind
	tokenID string
	at      time.Time

	bestBid float64
	bestAsk float64
	spread  float64

	trade domain.TradeRecord
}

// Mirror copies streamed prices into an external cache and publishes
// update events on a signal bus, so out-of-process consumers can follow
// the feed without holding a websocket themselves. Handlers only enqueue:
// the Redis writes happen on the Run goroutine behind a bounded queue, so
// a slow or stalled sink never delays frame processing. Both sinks are
// best effort: overflow drops the update and failures are logged, never
// propagated into the stream.
type Mirror struct {
	cache  domain.PriceCache
	bus    domain.SignalBus
	logger *slog.Logger

	events chan mirrorEvent
}

// NewMirror creates a Mirror. Either sink may be nil to disable it.
func NewMirror(cache domain.PriceCache, bus domain.SignalBus, logger *slog.Logger) *Mirror {
	return &Mirror{
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "mirror")),
		events: make(chan mirrorEvent, mirrorQueueSize),
	}
}

// HandlePriceUpdate queues a best bid/ask change for mirroring. It never
// blocks; when the queue is full the update is dropped.
func (m *Mirror) HandlePriceUpdate(tokenID string, bestBid, bestAsk, spread float64) {
	m.enqueue(mirrorEvent{
		kind:    mirrorPriceUpdate,
		tokenID: tokenID,
		at:      time.Now(),
		bestBid: bestBid,
		bestAsk: bestAsk,
		spread:  spread,
	})
}

// HandleTrade queues a trade print for publishing. It never blocks.
func (m *Mirror) HandleTrade(tokenID string, trade domain.TradeRecord) {
	m.enqueue(mirrorEvent{
		kind:    mirrorTrade,
		tokenID: tokenID,
		trade:   trade,
	})
}

func (m *Mirror) enqueue(ev mirrorEvent) {
	select {
	case m.events <- ev:
	default:
		m.logger.Debug("mirror queue full, dropping", slog.String("token_id", ev.tokenID))
	}
}

// Run drains the queue until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.events:
			writeCtx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
			switch ev.kind {
			case mirrorPriceUpdate:
				m.mirrorPrice(writeCtx, ev)
			case mirrorTrade:
				m.publishTrade(writeCtx, ev)
			}
			cancel()
		}
	}
}

// mirrorPrice caches the mid price and publishes the full quote.
func (m *Mirror) mirrorPrice(ctx context.Context, ev mirrorEvent) {
	if m.cache != nil && ev.bestBid > 0 && ev.bestAsk > 0 {
		mid := (ev.bestBid + ev.bestAsk) / 2
		if err := m.cache.SetPrice(ctx, ev.tokenID, mid, ev.at); err != nil {
			m.logger.Warn("mirror price failed",
				slog.String("token_id", ev.tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	if m.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "price_update",
			"token_id":  ev.tokenID,
			"best_bid":  ev.bestBid,
			"best_ask":  ev.bestAsk,
			"spread":    ev.spread,
			"timestamp": ev.at.Format(time.RFC3339Nano),
		})
		if err := m.bus.Publish(ctx, "prices", evt); err != nil {
			m.logger.Warn("publish price update failed",
				slog.String("token_id", ev.tokenID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (m *Mirror) publishTrade(ctx context.Context, ev mirrorEvent) {
	if m.bus == nil {
		return
	}

	evt, _ := json.Marshal(map[string]any{
		"event":     "trade",
		"token_id":  ev.tokenID,
		"price":     ev.trade.Price,
		"size":      ev.trade.Size,
		"side":      ev.trade.Side,
		"timestamp": ev.trade.Timestamp.Format(time.RFC3339Nano),
	})
	if err := m.bus.Publish(ctx, "trades", evt); err != nil {
		m.logger.Warn("publish trade failed",
			slog.String("token_id", ev.tokenID),
			slog.String("error", err.Error()),
		)
	}
}
