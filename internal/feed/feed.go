// Package feed binds a websocket stream to the in-memory market state.
// It decodes each raw frame into normalized events, applies them to the
// store, notifies registered observers, and evaluates price alerts after
// every frame.
package feed

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/polyfeed/internal/domain"
	"github.com/alanyoungcy/polyfeed/internal/market"
	"github.com/alanyoungcy/polyfeed/internal/platform/polymarket"
)

// EnrichRequester receives token IDs whose frames could not be decoded
// into a quote, so their prices can be fetched out of band.
type EnrichRequester interface {
	Request(tokenID string)
}

// Stats extends the transport counters with feed-level state.
type Stats struct {
	polymarket.Stats
	ActiveAlerts int
	Snapshots    int
}

// Feed owns one websocket client and routes its frames into the store.
type Feed struct {
	ws        *polymarket.WSClient
	store     *market.Store
	alerts    *market.AlertBook
	observers *domain.Observers
	enrich    EnrichRequester
	logger    *slog.Logger
}

// New wires the feed to its websocket client. The enrich requester may be
// nil, in which case schema misses are only logged.
func New(ws *polymarket.WSClient, store *market.Store, alerts *market.AlertBook, observers *domain.Observers, enrich EnrichRequester, logger *slog.Logger) *Feed {
	f := &Feed{
		ws:        ws,
		store:     store,
		alerts:    alerts,
		observers: observers,
		enrich:    enrich,
		logger:    logger.With(slog.String("component", "feed")),
	}
	ws.OnFrame(f.handleFrame)
	ws.OnError(f.handleError)
	return f
}

// Connect opens the websocket and starts streaming.
func (f *Feed) Connect(ctx context.Context) error {
	return f.ws.Connect(ctx)
}

// Subscribe adds token IDs to the live subscription set. Before the
// connection is up, subscriptions are queued and flushed on connect.
func (f *Feed) Subscribe(ctx context.Context, tokenIDs []string, opts polymarket.SubscribeOptions) error {
	return f.ws.Subscribe(ctx, tokenIDs, opts)
}

// Unsubscribe removes one token ID from the subscription set.
func (f *Feed) Unsubscribe(ctx context.Context, tokenID string) error {
	return f.ws.Unsubscribe(ctx, tokenID)
}

// Disconnect tears the stream down. When it returns, no handler registered
// through this feed will fire again.
func (f *Feed) Disconnect() error {
	return f.ws.Disconnect()
}

// Stats reports transport counters plus alert and snapshot counts.
func (f *Feed) Stats() Stats {
	return Stats{
		Stats:        f.ws.Stats(),
		ActiveAlerts: f.alerts.ActiveCount(),
		Snapshots:    f.store.SnapshotCount(),
	}
}

// Snapshot returns the current state for one token, if any.
func (f *Feed) Snapshot(tokenID string) (domain.MarketSnapshot, bool) {
	return f.store.Snapshot(tokenID)
}

// AddAlert registers a fire-once price alert.
func (f *Feed) AddAlert(tokenID string, cond domain.AlertCondition, target float64, cb domain.AlertCallback) *domain.PriceAlert {
	return f.alerts.Add(tokenID, cond, target, cb)
}

func (f *Feed) handleFrame(raw []byte) {
	events := polymarket.ParseFrame(raw)
	for _, ev := range events {
		f.apply(ev)
	}
	f.alerts.Evaluate(f.store)
}

func (f *Feed) apply(ev polymarket.Event) {
	switch ev.Kind {
	case polymarket.EventAck:
		// Subscription acknowledgement, nothing to apply.

	case polymarket.EventQuote:
		f.store.ApplyQuote(ev.TokenID, ev.Bid, ev.Ask)
		if snap, ok := f.store.Snapshot(ev.TokenID); ok {
			f.observers.EmitPriceUpdate(ev.TokenID, snap.BestBid, snap.BestAsk, snap.Spread)
		}

	case polymarket.EventBook:
		if len(ev.Bids) > 0 {
			f.store.ReplaceLadder(ev.TokenID, "bids", ev.Bids)
		}
		if len(ev.Asks) > 0 {
			f.store.ReplaceLadder(ev.TokenID, "asks", ev.Asks)
		}
		f.observers.EmitOrderbook(ev.TokenID, ev.Raw)

	case polymarket.EventTrade:
		if ev.Trade != nil {
			f.store.RecordTrade(ev.TokenID, *ev.Trade)
			f.observers.EmitTrade(ev.TokenID, *ev.Trade)
		}

	case polymarket.EventLastTrade:
		f.store.ApplyLastTrade(ev.TokenID, ev.Price, ev.At)
		f.observers.EmitLastTrade(ev.TokenID, ev.Price, ev.Side)

	case polymarket.EventUserMessage:
		f.observers.EmitUserMessage(ev.Raw)

	case polymarket.EventError:
		f.logger.Warn("stream error frame", slog.String("error", ev.Err.Error()))
		f.observers.EmitError(ev.Err)

	case polymarket.EventSchemaMiss:
		f.logger.Debug("unrecognized price payload", slog.String("token_id", ev.TokenID))
		if f.enrich != nil && ev.TokenID != "" {
			f.enrich.Request(ev.TokenID)
		}
	}
}

func (f *Feed) handleError(err error) {
	f.logger.Warn("websocket error", slog.String("error", err.Error()))
	f.observers.EmitError(err)
}
