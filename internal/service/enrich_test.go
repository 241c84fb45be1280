package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyfeed/internal/market"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakePrices scripts GetPrice responses per token/side.
type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64 // key tokenID+"/"+side
	errs   map[string]error
	calls  []string
}

func (f *fakePrices) GetPrice(ctx context.Context, tokenID, side string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tokenID + "/" + side
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return 0, err
	}
	return f.prices[key], nil
}

func (f *fakePrices) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestEnricherBackfillsQuote(t *testing.T) {
	venue := &fakePrices{prices: map[string]float64{
		"tok/BUY":  0.52,
		"tok/SELL": 0.48,
	}}
	store := market.NewStore()
	e := NewPriceEnricher(venue, store, NewLocalLimiter(), EnrichConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()

	e.Request("tok")

	require.Eventually(t, func() bool {
		q, ok := store.Quote("tok")
		return ok && q.BestBid > 0 && q.BestAsk > 0
	}, 2*time.Second, 10*time.Millisecond)

	q, _ := store.Quote("tok")
	assert.InDelta(t, 0.48, q.BestBid, 1e-9)
	assert.InDelta(t, 0.52, q.BestAsk, 1e-9)
	assert.InDelta(t, 0.04, q.Spread, 1e-9)

	cancel()
	<-done
}

func TestEnricherDedupesPendingRequests(t *testing.T) {
	venue := &fakePrices{prices: map[string]float64{"tok/BUY": 0.5, "tok/SELL": 0.4}}
	store := market.NewStore()
	e := NewPriceEnricher(venue, store, NewLocalLimiter(), EnrichConfig{}, testLogger())

	// Run is not started: requests stay queued.
	e.Request("tok")
	e.Request("tok")
	e.Request("tok")

	assert.Len(t, e.requests, 1)
}

func TestEnricherDropsWhenQueueFull(t *testing.T) {
	venue := &fakePrices{}
	store := market.NewStore()
	e := NewPriceEnricher(venue, store, NewLocalLimiter(), EnrichConfig{QueueSize: 2}, testLogger())

	e.Request("tok1")
	e.Request("tok2")
	e.Request("tok3") // dropped, queue full

	assert.Len(t, e.requests, 2)

	// The dropped token is requestable again, not stuck as pending.
	e.mu.Lock()
	_, pending := e.pending["tok3"]
	e.mu.Unlock()
	assert.False(t, pending)
}

func TestEnricherIgnoresEmptyToken(t *testing.T) {
	e := NewPriceEnricher(&fakePrices{}, market.NewStore(), NewLocalLimiter(), EnrichConfig{}, testLogger())
	e.Request("")
	assert.Empty(t, e.requests)
}

func TestEnricherPartialFailureStillApplies(t *testing.T) {
	venue := &fakePrices{
		prices: map[string]float64{"tok/SELL": 0.44},
		errs:   map[string]error{"tok/BUY": errors.New("upstream 500")},
	}
	store := market.NewStore()
	e := NewPriceEnricher(venue, store, NewLocalLimiter(), EnrichConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Request("tok")

	require.Eventually(t, func() bool {
		q, ok := store.Quote("tok")
		return ok && q.BestBid > 0
	}, 2*time.Second, 10*time.Millisecond)

	q, _ := store.Quote("tok")
	assert.InDelta(t, 0.44, q.BestBid, 1e-9)
	assert.Zero(t, q.BestAsk)
}

func TestEnricherTotalFailureLeavesStoreUntouched(t *testing.T) {
	venue := &fakePrices{errs: map[string]error{
		"tok/BUY":  errors.New("down"),
		"tok/SELL": errors.New("down"),
	}}
	store := market.NewStore()
	e := NewPriceEnricher(venue, store, NewLocalLimiter(), EnrichConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Request("tok")

	require.Eventually(t, func() bool {
		return venue.callCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := store.Quote("tok")
	assert.False(t, ok)
}

func TestEnricherHonoursRateLimit(t *testing.T) {
	venue := &fakePrices{prices: map[string]float64{}}
	store := market.NewStore()
	// One fetch (two venue calls) per generous window.
	e := NewPriceEnricher(venue, store, NewLocalLimiter(), EnrichConfig{
		Limit:  1,
		Window: 10 * time.Second,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Request("tok1")
	e.Request("tok2")

	require.Eventually(t, func() bool {
		return venue.callCount() == 2 // tok1 BUY + SELL
	}, 2*time.Second, 10*time.Millisecond)

	// tok2 stays throttled behind the window.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 2, venue.callCount())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	e := NewPriceEnricher(&fakePrices{}, market.NewStore(), NewLocalLimiter(), EnrichConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
