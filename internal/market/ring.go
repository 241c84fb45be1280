package market

import "github.com/alanyoungcy/polyfeed/internal/domain"

// maxRecentTrades bounds the retained trade history per token. The oldest
// entry is evicted FIFO when a 101st trade arrives.
const maxRecentTrades = 100

// tradeRing is a fixed-capacity FIFO ring of trade records. Not
// goroutine-safe; the Store serializes access under its lock.
type tradeRing struct {
	buf   []domain.TradeRecord
	head  int // index of the oldest entry
	count int
}

func newTradeRing(capacity int) *tradeRing {
	return &tradeRing{buf: make([]domain.TradeRecord, capacity)}
}

// push appends a trade, evicting the oldest entry when full.
func (r *tradeRing) push(t domain.TradeRecord) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = t
		r.count++
		return
	}
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
}

// items returns the retained trades, oldest first.
func (r *tradeRing) items() []domain.TradeRecord {
	out := make([]domain.TradeRecord, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
