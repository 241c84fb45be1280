// Package executor implements the order layer: the local order ledger and
// the bounded-concurrency execution gateway that drives it.
package executor

import (
	"sync"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// Ledger is the local mirror of this account's open orders, keyed by
// venue-assigned order id. It is a mirror, not the authority: a refresh
// from the venue replaces its contents wholesale. Every mutation and read
// holds the single internal lock.
type Ledger struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{orders: make(map[string]domain.Order)}
}

// Insert records an order under its venue id. Orders without a venue id
// are ignored; an optimistic entry with no venue key cannot be reconciled.
func (l *Ledger) Insert(o domain.Order) {
	if o.VenueID == "" {
		return
	}
	l.mu.Lock()
	l.orders[o.VenueID] = o
	l.mu.Unlock()
}

// Remove deletes an order by venue id, returning the removed order.
func (l *Ledger) Remove(venueID string) (domain.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[venueID]
	if ok {
		delete(l.orders, venueID)
	}
	return o, ok
}

// Get returns an order by venue id.
func (l *Ledger) Get(venueID string) (domain.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[venueID]
	return o, ok
}

// List returns a copy of all tracked orders.
func (l *Ledger) List() []domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o)
	}
	return out
}

// ReplaceAll swaps the ledger contents for the venue-reported set, the
// venue being the source of truth. Local-only optimistic entries are
// discarded.
func (l *Ledger) ReplaceAll(orders []domain.Order) {
	next := make(map[string]domain.Order, len(orders))
	for _, o := range orders {
		if o.VenueID != "" {
			next[o.VenueID] = o
		}
	}
	l.mu.Lock()
	l.orders = next
	l.mu.Unlock()
}

// Len reports the number of tracked orders.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}
