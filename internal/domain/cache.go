package domain

import (
	"context"
	"time"
)

// PriceCache mirrors the latest prices into an external cache. It is an
// optional sink: the in-process market store remains the source of truth
// for the streaming path.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error)
}

// RateLimiter throttles outbound venue calls, notably the asynchronous
// REST price enrichment.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus publishes market events to interested downstream consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
