package market

import (
	"log/slog"
	"math"
	"sync"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

// AlertBook holds registered price alerts and evaluates them against the
// store after each normalized update batch. Each alert fires at most once
// per session.
type AlertBook struct {
	mu     sync.Mutex
	alerts []*domain.PriceAlert
	logger *slog.Logger
}

// NewAlertBook creates an empty alert book.
func NewAlertBook(logger *slog.Logger) *AlertBook {
	return &AlertBook{logger: logger.With(slog.String("component", "alerts"))}
}

// Add registers a price alert. The returned pointer can be inspected by
// the caller but must not be mutated.
func (b *AlertBook) Add(tokenID string, cond domain.AlertCondition, target float64, cb domain.AlertCallback) *domain.PriceAlert {
	alert := &domain.PriceAlert{
		TokenID:   tokenID,
		Condition: cond,
		Target:    target,
		Callback:  cb,
	}
	b.mu.Lock()
	b.alerts = append(b.alerts, alert)
	b.mu.Unlock()
	return alert
}

// ActiveCount returns the number of untriggered alerts.
func (b *AlertBook) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, a := range b.alerts {
		if !a.Triggered {
			n++
		}
	}
	return n
}

// Evaluate scans all untriggered alerts against the store. On match the
// alert is marked triggered (idempotent, never re-fires) and its callback
// runs with the observed and target prices. A token without a snapshot is
// skipped, not an error.
func (b *AlertBook) Evaluate(store *Store) {
	b.mu.Lock()
	pending := make([]*domain.PriceAlert, 0, len(b.alerts))
	for _, a := range b.alerts {
		if !a.Triggered {
			pending = append(pending, a)
		}
	}
	b.mu.Unlock()

	for _, a := range pending {
		quote, ok := store.Quote(a.TokenID)
		if !ok {
			continue
		}

		// "below" watches the bid; "above" and "equals" watch the ask.
		observed := quote.BestAsk
		if a.Condition == domain.AlertBelow {
			observed = quote.BestBid
		}

		var match bool
		switch a.Condition {
		case domain.AlertAbove:
			match = observed >= a.Target
		case domain.AlertBelow:
			match = observed <= a.Target
		case domain.AlertEquals:
			match = math.Abs(observed-a.Target) < domain.EqualsTolerance
		}
		if !match {
			continue
		}

		b.mu.Lock()
		fire := !a.Triggered
		a.Triggered = true
		b.mu.Unlock()
		if !fire {
			continue
		}

		b.logger.Info("price alert fired",
			slog.String("token", a.TokenID),
			slog.String("condition", string(a.Condition)),
			slog.Float64("target", a.Target),
			slog.Float64("observed", observed),
		)
		if a.Callback != nil {
			a.Callback(a.TokenID, observed, a.Target)
		}
	}
}
