package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

func TestTradeRingFIFOEviction(t *testing.T) {
	r := newTradeRing(3)

	r.push(domain.TradeRecord{Price: 1})
	r.push(domain.TradeRecord{Price: 2})
	assert.Len(t, r.items(), 2)

	r.push(domain.TradeRecord{Price: 3})
	r.push(domain.TradeRecord{Price: 4})

	items := r.items()
	require.Len(t, items, 3)
	assert.InDelta(t, 2, items[0].Price, 1e-9)
	assert.InDelta(t, 3, items[1].Price, 1e-9)
	assert.InDelta(t, 4, items[2].Price, 1e-9)
}

func TestTradeRingWrapsRepeatedly(t *testing.T) {
	r := newTradeRing(3)
	for i := 1; i <= 10; i++ {
		r.push(domain.TradeRecord{Price: float64(i)})
	}

	items := r.items()
	require.Len(t, items, 3)
	assert.InDelta(t, 8, items[0].Price, 1e-9)
	assert.InDelta(t, 10, items[2].Price, 1e-9)
}

func TestTradeRingEmpty(t *testing.T) {
	r := newTradeRing(3)
	assert.Empty(t, r.items())
}
