package polymarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// EventKind classifies a normalized streaming event.
type EventKind int

const (
	// EventAck is a subscription acknowledgment; no state change.
	EventAck EventKind = iota
	// EventQuote carries a best bid/ask change for one token.
	EventQuote
	// EventBook carries the raw orderbook frame plus any parsed ladders.
	EventBook
	// EventTrade carries one trade execution.
	EventTrade
	// EventLastTrade carries a standalone last-trade price. It is an
	// execution price, not a quote.
	EventLastTrade
	// EventUserMessage carries a verbatim private-channel trade/order frame.
	EventUserMessage
	// EventError carries a decode failure or a venue-reported error.
	EventError
	// EventSchemaMiss marks an entry where no known price field matched.
	// It degrades to a no-op update and may drive async enrichment.
	EventSchemaMiss
)

// Event is one typed domain event normalized from a raw inbound frame.
// Which fields are set depends on Kind.
type Event struct {
	Kind    EventKind
	TokenID string

	// EventQuote: nil means that side was absent from the frame.
	Bid *float64
	Ask *float64

	// EventBook: last-received ladders, nil when the frame carried none
	// for that side.
	Bids []domain.PriceLevel
	Asks []domain.PriceLevel

	// EventBook and EventUserMessage: the frame as received.
	Raw domain.RawFrame

	// EventTrade
	Trade *domain.TradeRecord

	// EventLastTrade
	Price float64
	Side  string
	At    time.Time

	// EventError
	Err error
}

// ParseFrame normalizes one decoded inbound frame into zero or more typed
// events. Dispatch, in priority order: an empty sequence is a subscription
// ack; a sequence is recursed per element; a price_changes collection is
// decoded per entry; a type-discriminated object is routed by type; any
// other object is checked for a private-channel event and otherwise
// discarded. Decode failures produce an EventError, never a silent drop.
func ParseFrame(raw []byte) []Event {
	return parseValue(bytes.TrimSpace(raw))
}

func parseValue(raw []byte) []Event {
	if len(raw) == 0 {
		return []Event{decodeError("empty frame")}
	}

	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return []Event{decodeError(err.Error())}
		}
		if len(items) == 0 {
			return []Event{{Kind: EventAck}}
		}
		var events []Event
		for _, item := range items {
			events = append(events, parseValue(bytes.TrimSpace(item))...)
		}
		return events
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return []Event{decodeError(err.Error())}
	}

	if _, ok := obj["price_changes"]; ok {
		return parsePriceChanges(obj)
	}
	if t, ok := obj["type"].(string); ok {
		return parseByType(t, obj, raw)
	}
	return parseOther(obj, raw)
}

// parsePriceChanges handles the venue's batched price_changes format:
// {"market": "...", "price_changes": [{"asset_id": "...", ...}, ...]}.
func parsePriceChanges(obj map[string]any) []Event {
	entries, _ := obj["price_changes"].([]any)

	var events []Event
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		asset, ok := entry["asset_id"].(string)
		if !ok || asset == "" {
			continue
		}

		bid, bidOK := probeQuote(entry, priceChangeBidProbes)
		ask, askOK := probeQuote(entry, priceChangeAskProbes)

		// Ladder fallback only when no scalar field matched.
		if !bidOK {
			bid, bidOK = ladderBest(entry["bids"])
		}
		if !askOK {
			ask, askOK = ladderBest(entry["asks"])
		}

		// A standalone price field is a last-trade execution price. It
		// goes through the last-trade path and must never be written
		// into best bid/ask.
		tradeSeen := false
		if pv, ok := entry["price"]; ok {
			if price, ok := asFloat(pv); ok {
				side, _ := entry["side"].(string)
				events = append(events, Event{
					Kind:    EventLastTrade,
					TokenID: asset,
					Price:   price,
					Side:    strings.ToLower(side),
					At:      entryTimestamp(entry),
				})
				tradeSeen = true
			}
		}

		switch {
		case bidOK || askOK:
			ev := Event{Kind: EventQuote, TokenID: asset}
			if bidOK {
				ev.Bid = &bid
			}
			if askOK {
				ev.Ask = &ask
			}
			events = append(events, ev)
		case !tradeSeen:
			// No recognized price shape at all: degrade to a no-op for
			// this entry and let enrichment fill the gap off-loop.
			events = append(events, Event{Kind: EventSchemaMiss, TokenID: asset})
		}
	}
	return events
}

// parseByType routes a frame with an explicit type discriminator.
func parseByType(msgType string, obj map[string]any, raw []byte) []Event {
	switch msgType {
	case "orderbook", "market", "orderbook_snapshot", "book":
		return parseBook(obj, raw)
	case "trade":
		return parseTrade(obj)
	case "subscription_success", "subscribed":
		return []Event{{Kind: EventAck}}
	case "error":
		msg, _ := obj["message"].(string)
		if msg == "" {
			msg = "unknown error"
		}
		return []Event{{Kind: EventError, Err: fmt.Errorf("polymarket/ws: venue error: %s", msg)}}
	default:
		return parseOther(obj, raw)
	}
}

// parseBook handles orderbook updates and snapshots (treated identically).
func parseBook(obj map[string]any, raw []byte) []Event {
	tokenID, ok := probeTokenID(obj)
	if !ok {
		return nil
	}

	bid, bidOK := probeQuote(obj, bookBidProbes)
	ask, askOK := probeQuote(obj, bookAskProbes)
	if !bidOK {
		bid, bidOK = ladderBest(obj["bids"])
	}
	if !askOK {
		ask, askOK = ladderBest(obj["asks"])
	}

	book := Event{
		Kind:    EventBook,
		TokenID: tokenID,
		Bids:    parseLadder(obj["bids"]),
		Asks:    parseLadder(obj["asks"]),
		Raw:     append(domain.RawFrame(nil), raw...),
	}
	events := []Event{book}

	if bidOK && bid > 0 || askOK && ask > 0 {
		ev := Event{Kind: EventQuote, TokenID: tokenID}
		if bidOK && bid > 0 {
			ev.Bid = &bid
		}
		if askOK && ask > 0 {
			ev.Ask = &ask
		}
		events = append(events, ev)
	}
	return events
}

// parseTrade handles a trade execution message.
func parseTrade(obj map[string]any) []Event {
	tokenID, ok := probeTokenID(obj)
	if !ok {
		return nil
	}

	trade := domain.TradeRecord{
		Side:      "unknown",
		Timestamp: entryTimestamp(obj),
	}
	if p, ok := asFloat(obj["price"]); ok {
		trade.Price = p
	}
	if s, ok := asFloat(obj["size"]); ok {
		trade.Size = s
	}
	if side, ok := obj["side"].(string); ok && side != "" {
		trade.Side = strings.ToLower(side)
	}
	trade.Maker, _ = obj["maker"].(string)
	trade.Taker, _ = obj["taker"].(string)

	return []Event{{Kind: EventTrade, TokenID: tokenID, Trade: &trade}}
}

// parseOther handles frames with no recognized shape. Private-channel
// trade/order events are forwarded verbatim; everything else is discarded
// after the field inspection above found nothing usable.
func parseOther(obj map[string]any, raw []byte) []Event {
	if et, ok := obj["event_type"].(string); ok {
		if et == "trade" || et == "order" {
			return []Event{{Kind: EventUserMessage, Raw: append(domain.RawFrame(nil), raw...)}}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Value helpers
// --------------------------------------------------------------------------

func decodeError(detail string) Event {
	return Event{Kind: EventError, Err: fmt.Errorf("%w: %s", domain.ErrDecodeFrame, detail)}
}

// parseLadder converts a raw ladder array into price levels, preserving
// order (best-first as received). Unparseable entries are skipped.
func parseLadder(v any) []domain.PriceLevel {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	levels := make([]domain.PriceLevel, 0, len(arr))
	for _, entry := range arr {
		price, ok := ladderEntryPrice(entry)
		if !ok {
			continue
		}
		lvl := domain.PriceLevel{Price: price}
		switch t := entry.(type) {
		case map[string]any:
			if s, ok := asFloat(t["size"]); ok {
				lvl.Size = s
			}
		case []any:
			if len(t) >= 2 {
				if s, ok := asFloat(t[1]); ok {
					lvl.Size = s
				}
			}
		}
		levels = append(levels, lvl)
	}
	if len(levels) == 0 {
		return nil
	}
	return levels
}

// entryTimestamp reads a millisecond "timestamp"/"ts" field, defaulting to
// now when absent or unparseable.
func entryTimestamp(obj map[string]any) time.Time {
	for _, field := range []string{"timestamp", "ts"} {
		if v, ok := obj[field]; ok {
			if ms, ok := asFloat(v); ok && ms > 0 {
				return time.UnixMilli(int64(ms))
			}
		}
	}
	return time.Now()
}

func parseFloatString(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
