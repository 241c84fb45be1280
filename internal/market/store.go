// Package market owns the in-process market state: per-token snapshots,
// raw orderbook ladders, and bounded recent-trade history. Every mutation
// and every multi-field read runs inside one method-scoped critical
// section, so the bid/ask/spread triple is always observed consistently.
package market

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// Store is the mutable per-token market state. Snapshots are created on
// first update and never deleted during a session.
type Store struct {
	mu        sync.Mutex
	snapshots map[string]*domain.MarketSnapshot
	depth     map[string]*domain.BookDepth
	trades    map[string]*tradeRing
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		snapshots: make(map[string]*domain.MarketSnapshot),
		depth:     make(map[string]*domain.BookDepth),
		trades:    make(map[string]*tradeRing),
	}
}

// snapshotLocked returns the snapshot for tokenID, creating it if absent.
// Caller must hold s.mu.
func (s *Store) snapshotLocked(tokenID string) *domain.MarketSnapshot {
	snap, ok := s.snapshots[tokenID]
	if !ok {
		snap = &domain.MarketSnapshot{TokenID: tokenID}
		s.snapshots[tokenID] = snap
	}
	return snap
}

// ApplyQuote updates best bid and/or ask for a token. A nil side leaves
// that side untouched. Spread is recomputed in the same critical section
// whenever both sides are known.
func (s *Store) ApplyQuote(tokenID string, bestBid, bestAsk *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked(tokenID)
	if bestBid != nil {
		snap.BestBid = *bestBid
	}
	if bestAsk != nil {
		snap.BestAsk = *bestAsk
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.Spread = snap.BestAsk - snap.BestBid
	}
}

// ApplyLastTrade records a standalone last-trade price on an existing
// snapshot. It never touches best bid/ask (an execution price is not a
// quote) and never creates a snapshot on its own.
func (s *Store) ApplyLastTrade(tokenID string, price float64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tokenID]
	if !ok {
		return
	}
	snap.LastTradePrice = &price
	snap.LastTradeTime = &ts
}

// RecordTrade appends a trade to the token's bounded recent-trade ring and
// updates the snapshot's last-trade fields and cumulative volume.
func (s *Store) RecordTrade(tokenID string, trade domain.TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.trades[tokenID]
	if !ok {
		ring = newTradeRing(maxRecentTrades)
		s.trades[tokenID] = ring
	}
	ring.push(trade)

	snap := s.snapshotLocked(tokenID)
	price := trade.Price
	ts := trade.Timestamp
	snap.LastTradePrice = &price
	snap.LastTradeTime = &ts
	snap.Volume += trade.Size
}

// ReplaceLadder stores the last-received ladder for one side of a token's
// book, replacing the previous ladder for that side only.
func (s *Store) ReplaceLadder(tokenID, side string, levels []domain.PriceLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.depth[tokenID]
	if !ok {
		d = &domain.BookDepth{TokenID: tokenID}
		s.depth[tokenID] = d
	}
	switch side {
	case "bids":
		d.Bids = levels
	case "asks":
		d.Asks = levels
	}
}

// Snapshot returns a copy of the token's snapshot, or false if no update
// has been seen for it yet.
func (s *Store) Snapshot(tokenID string) (domain.MarketSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tokenID]
	if !ok {
		return domain.MarketSnapshot{}, false
	}
	return *snap, true
}

// Quote returns the consistent bid/ask/mid/spread tuple for a token.
func (s *Store) Quote(tokenID string) (domain.PriceQuote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tokenID]
	if !ok {
		return domain.PriceQuote{}, false
	}
	q := domain.PriceQuote{
		TokenID: tokenID,
		BestBid: snap.BestBid,
		BestAsk: snap.BestAsk,
		Spread:  snap.Spread,
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		q.Mid = (snap.BestBid + snap.BestAsk) / 2
	}
	return q, true
}

// Depth returns a copy of the last-received ladders for a token.
func (s *Store) Depth(tokenID string) (domain.BookDepth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.depth[tokenID]
	if !ok {
		return domain.BookDepth{}, false
	}
	out := domain.BookDepth{TokenID: tokenID}
	out.Bids = append(out.Bids, d.Bids...)
	out.Asks = append(out.Asks, d.Asks...)
	return out, true
}

// RecentTrades returns up to limit most recent trades for a token, oldest
// first. limit <= 0 returns the full retained window.
func (s *Store) RecentTrades(tokenID string, limit int) []domain.TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.trades[tokenID]
	if !ok {
		return nil
	}
	trades := ring.items()
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	return trades
}

// SnapshotCount reports how many tokens have a snapshot.
func (s *Store) SnapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}
