package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

type fakeCache struct {
	mu     sync.Mutex
	err    error
	delay  time.Duration
	prices map[string]float64
}

func (f *fakeCache) SetPrice(_ context.Context, tokenID string, price float64, _ time.Time) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[tokenID] = price
	return nil
}

func (f *fakeCache) GetPrice(context.Context, string) (float64, time.Time, error) {
	return 0, time.Time{}, domain.ErrNotFound
}

func (f *fakeCache) price(tokenID string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[tokenID]
	return p, ok
}

type fakeBus struct {
	mu       sync.Mutex
	err      error
	channels []string
	payloads [][]byte
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeBus) published() ([]string, [][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.channels...), append([][]byte(nil), f.payloads...)
}

func startMirror(t *testing.T, m *Mirror) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestMirrorCachesMidAndPublishesQuote(t *testing.T) {
	cache := &fakeCache{}
	bus := &fakeBus{}
	m := NewMirror(cache, bus, testLogger())
	startMirror(t, m)

	m.HandlePriceUpdate("tok", 0.40, 0.60, 0.20)

	require.Eventually(t, func() bool {
		_, ok := cache.price("tok")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	mid, _ := cache.price("tok")
	assert.InDelta(t, 0.50, mid, 1e-9)

	channels, payloads := bus.published()
	require.Equal(t, []string{"prices"}, channels)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(payloads[0], &evt))
	assert.Equal(t, "price_update", evt["event"])
	assert.Equal(t, "tok", evt["token_id"])
	assert.InDelta(t, 0.40, evt["best_bid"].(float64), 1e-9)
	assert.InDelta(t, 0.60, evt["best_ask"].(float64), 1e-9)
}

func TestMirrorSkipsCacheOnOneSidedQuote(t *testing.T) {
	cache := &fakeCache{}
	bus := &fakeBus{}
	m := NewMirror(cache, bus, testLogger())
	startMirror(t, m)

	m.HandlePriceUpdate("tok", 0.40, 0, 0)

	// The quote is still published, only the mid cache is skipped.
	require.Eventually(t, func() bool {
		channels, _ := bus.published()
		return len(channels) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := cache.price("tok")
	assert.False(t, ok)
}

func TestMirrorPublishesTrade(t *testing.T) {
	bus := &fakeBus{}
	m := NewMirror(nil, bus, testLogger())
	startMirror(t, m)

	m.HandleTrade("tok", domain.TradeRecord{
		Price:     0.55,
		Size:      10,
		Side:      "buy",
		Timestamp: time.Unix(1_700_000_000, 0),
	})

	require.Eventually(t, func() bool {
		channels, _ := bus.published()
		return len(channels) == 1
	}, 2*time.Second, 10*time.Millisecond)

	channels, payloads := bus.published()
	require.Equal(t, []string{"trades"}, channels)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(payloads[0], &evt))
	assert.Equal(t, "trade", evt["event"])
	assert.Equal(t, "buy", evt["side"])
	assert.InDelta(t, 0.55, evt["price"].(float64), 1e-9)
}

// A stalled sink must never hold up the caller: handlers only enqueue, the
// writes happen on the Run goroutine.
func TestMirrorSlowSinkDoesNotBlockHandlers(t *testing.T) {
	cache := &fakeCache{delay: 300 * time.Millisecond}
	m := NewMirror(cache, nil, testLogger())
	startMirror(t, m)

	start := time.Now()
	for i := 0; i < 10; i++ {
		m.HandlePriceUpdate("tok", 0.40, 0.60, 0.20)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"handlers must return without waiting on the sink")
}

func TestMirrorDropsOnFullQueue(t *testing.T) {
	// No Run goroutine: the queue only fills.
	m := NewMirror(&fakeCache{}, nil, testLogger())

	for i := 0; i < mirrorQueueSize+10; i++ {
		m.HandlePriceUpdate("tok", 0.40, 0.60, 0.20)
	}

	assert.Len(t, m.events, mirrorQueueSize)
}

func TestMirrorSinkFailuresAreSwallowed(t *testing.T) {
	bus := &fakeBus{err: errors.New("down")}
	m := NewMirror(&fakeCache{err: errors.New("down")}, bus, testLogger())
	startMirror(t, m)

	m.HandlePriceUpdate("tok", 0.40, 0.60, 0.20)
	m.HandleTrade("tok", domain.TradeRecord{Price: 0.5})

	// Both events drain without anything surfacing.
	require.Eventually(t, func() bool {
		return len(m.events) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMirrorNilSinks(t *testing.T) {
	m := NewMirror(nil, nil, testLogger())
	startMirror(t, m)

	m.HandlePriceUpdate("tok", 0.40, 0.60, 0.20)
	m.HandleTrade("tok", domain.TradeRecord{})

	require.Eventually(t, func() bool {
		return len(m.events) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMirrorRunStopsOnContextCancel(t *testing.T) {
	m := NewMirror(nil, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
