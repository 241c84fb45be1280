package market

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func alertLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAlertAboveWatchesAsk(t *testing.T) {
	s := NewStore()
	b := NewAlertBook(alertLogger())

	var fired []float64
	b.Add("tok", domain.AlertAbove, 0.50, func(tokenID string, observed, target float64) {
		fired = append(fired, observed)
	})

	s.ApplyQuote("tok", fp(0.40), fp(0.45))
	b.Evaluate(s)
	assert.Empty(t, fired)

	// Boundary counts: observed >= target.
	s.ApplyQuote("tok", fp(0.48), fp(0.50))
	b.Evaluate(s)
	require.Len(t, fired, 1)
	assert.InDelta(t, 0.50, fired[0], 1e-9)
}

func TestAlertBelowWatchesBid(t *testing.T) {
	s := NewStore()
	b := NewAlertBook(alertLogger())

	var fired int
	b.Add("tok", domain.AlertBelow, 0.30, func(string, float64, float64) { fired++ })

	// The ask being low is irrelevant for a below alert.
	s.ApplyQuote("tok", fp(0.35), fp(0.29))
	b.Evaluate(s)
	assert.Zero(t, fired)

	s.ApplyQuote("tok", fp(0.30), fp(0.36))
	b.Evaluate(s)
	assert.Equal(t, 1, fired)
}

func TestAlertEqualsTolerance(t *testing.T) {
	s := NewStore()
	b := NewAlertBook(alertLogger())

	var fired int
	b.Add("tok", domain.AlertEquals, 0.50, func(string, float64, float64) { fired++ })

	s.ApplyQuote("tok", fp(0.48), fp(0.5002))
	b.Evaluate(s)
	assert.Zero(t, fired)

	s.ApplyQuote("tok", fp(0.48), fp(0.50005))
	b.Evaluate(s)
	assert.Equal(t, 1, fired)
}

func TestAlertFiresExactlyOnce(t *testing.T) {
	s := NewStore()
	b := NewAlertBook(alertLogger())

	var fired int
	a := b.Add("tok", domain.AlertAbove, 0.50, func(string, float64, float64) { fired++ })
	assert.Equal(t, 1, b.ActiveCount())

	s.ApplyQuote("tok", fp(0.50), fp(0.60))
	b.Evaluate(s)
	b.Evaluate(s)
	s.ApplyQuote("tok", fp(0.60), fp(0.70))
	b.Evaluate(s)

	assert.Equal(t, 1, fired)
	assert.True(t, a.Triggered)
	assert.Zero(t, b.ActiveCount())
}

func TestAlertSkipsTokensWithoutSnapshot(t *testing.T) {
	s := NewStore()
	b := NewAlertBook(alertLogger())

	var fired int
	b.Add("missing", domain.AlertAbove, 0.10, func(string, float64, float64) { fired++ })

	b.Evaluate(s)
	assert.Zero(t, fired)
	assert.Equal(t, 1, b.ActiveCount())
}

func TestAlertNilCallback(t *testing.T) {
	s := NewStore()
	b := NewAlertBook(alertLogger())

	a := b.Add("tok", domain.AlertAbove, 0.10, nil)
	s.ApplyQuote("tok", fp(0.20), fp(0.25))

	// Must not panic.
	b.Evaluate(s)
	assert.True(t, a.Triggered)
}
