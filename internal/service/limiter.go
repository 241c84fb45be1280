package service

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// LocalLimiter is an in-process sliding-window rate limiter, used when no
// shared Redis limiter is configured. Timestamps per key are pruned on
// every call, so memory stays bounded by the window.
type LocalLimiter struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	clock func() time.Time
}

// NewLocalLimiter creates an empty limiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		hits:  make(map[string][]time.Time),
		clock: time.Now,
	}
}

// Allow reports whether a request for key is permitted under the sliding
// window, counting it when permitted.
func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := l.clock()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.hits[key] = kept
		return false, nil
	}

	l.hits[key] = append(kept, now)
	return true, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*LocalLimiter)(nil)
