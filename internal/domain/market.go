package domain

import (
	"encoding/json"
	"time"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market represents a Polymarket prediction market, as returned by the
// market-existence check on the CLOB API.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	Outcomes    [2]string // e.g. ["Yes","No"]
	TokenIDs    [2]string // ERC-1155 token IDs (76-digit strings)
	NegRisk     bool
	MinOrder    float64
	Status      MarketStatus
	EndDate     *time.Time
}

// MarketSnapshot is the per-token view of the best quotes and the most
// recent trade. One snapshot exists per token; it is created on the first
// update and mutated in place afterwards.
//
// Invariant: whenever both BestBid and BestAsk are set, Spread equals
// BestAsk - BestBid. The market store recomputes Spread inside the same
// critical section as any bid/ask write, so readers never observe a stale
// spread next to a fresh quote.
type MarketSnapshot struct {
	TokenID        string
	BestBid        float64
	BestAsk        float64
	Spread         float64
	LastTradePrice *float64
	LastTradeTime  *time.Time
	Volume         float64 // cumulative traded size seen this session
}

// PriceQuote bundles the current price tuple for a token.
type PriceQuote struct {
	TokenID string
	BestBid float64
	BestAsk float64
	Mid     float64
	Spread  float64
}

// PriceLevel is a single price+size entry in an orderbook ladder.
type PriceLevel struct {
	Price float64
	Size  float64
}

// BookDepth holds the last-received raw ladders for a token, best-first.
// Each side is replaced wholesale by the next update for that side; no
// merge or diff logic is applied.
type BookDepth struct {
	TokenID string
	Bids    []PriceLevel
	Asks    []PriceLevel
}

// TradeRecord is a single trade execution as reported by the venue.
type TradeRecord struct {
	Price     float64
	Size      float64
	Side      string // "buy", "sell", or "unknown"
	Timestamp time.Time
	Maker     string
	Taker     string
}

// RawFrame is one decoded but un-normalized message object from the
// streaming endpoint, forwarded verbatim to raw/user-message observers.
type RawFrame = json.RawMessage
