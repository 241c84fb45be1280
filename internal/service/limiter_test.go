package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiterAllowsUpToLimit(t *testing.T) {
	l := NewLocalLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "k", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i)
	}

	ok, err := l.Allow(ctx, "k", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLimiterWindowSlides(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocalLimiter()
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k", 1, time.Second)
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "k", 1, time.Second)
	require.False(t, ok)

	// Just inside the window: still denied.
	now = now.Add(900 * time.Millisecond)
	ok, _ = l.Allow(ctx, "k", 1, time.Second)
	assert.False(t, ok)

	// Past the window: the old hit ages out.
	now = now.Add(200 * time.Millisecond)
	ok, _ = l.Allow(ctx, "k", 1, time.Second)
	assert.True(t, ok)
}

func TestLocalLimiterKeysAreIndependent(t *testing.T) {
	l := NewLocalLimiter()
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "a", 1, time.Minute)
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "a", 1, time.Minute)
	require.False(t, ok)

	ok, _ = l.Allow(ctx, "b", 1, time.Minute)
	assert.True(t, ok)
}

func TestLocalLimiterPrunesOldHits(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocalLimiter()
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Allow(ctx, "k", 100, time.Second)
		now = now.Add(10 * time.Millisecond)
	}
	now = now.Add(2 * time.Second)
	l.Allow(ctx, "k", 100, time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.hits["k"], 1)
}
