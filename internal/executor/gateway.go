package executor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

const (
	// defaultWorkers bounds how many order operations run concurrently.
	defaultWorkers = 5

	// defaultOpTimeout bounds each individual venue call. A timed-out
	// order fails alone; its siblings continue.
	defaultOpTimeout = 30 * time.Second
)

// VenueAPI is the synchronous remote trading interface the gateway drives.
// Implemented by polymarket.ClobClient.
type VenueAPI interface {
	PostOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOpenOrders(ctx context.Context) ([]domain.Order, error)
	GetMarket(ctx context.Context, conditionID string) (domain.Market, error)
}

// Gateway submits order operations to the venue through a bounded worker
// pool with a per-call timeout, reconciling the Ledger as results arrive.
// Failures are isolated per order: an aggregate call reports success only
// when every constituent succeeded, but always attempts every element.
type Gateway struct {
	venue   VenueAPI
	ledger  *Ledger
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// NewGateway creates a Gateway over the given venue and ledger. workers
// and timeout fall back to the defaults when zero.
func NewGateway(venue VenueAPI, ledger *Ledger, workers int, timeout time.Duration, logger *slog.Logger) *Gateway {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Gateway{
		venue:   venue,
		ledger:  ledger,
		workers: workers,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "gateway")),
	}
}

// NewOrder builds a pending order with a fresh client id, ready for Place.
func NewOrder(tokenID string, side domain.OrderSide, price, size float64) *domain.Order {
	return &domain.Order{
		ClientID:  uuid.New().String(),
		TokenID:   tokenID,
		Side:      side,
		Price:     price,
		Size:      size,
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Place submits each order independently through the worker pool. On
// acceptance an order transitions pending -> active, receives its venue
// id, and enters the Ledger; on rejection or timeout it transitions to
// failed and stays out. Every order is attempted regardless of earlier
// failures; the return value is true only if all succeeded.
func (g *Gateway) Place(ctx context.Context, orders []*domain.Order) bool {
	var failed atomic.Bool

	pool := new(errgroup.Group)
	pool.SetLimit(g.workers)

	for _, order := range orders {
		pool.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()

			result, err := g.venue.PostOrder(opCtx, *order)
			if err != nil || !result.Success {
				order.Status = domain.OrderStatusFailed
				failed.Store(true)
				g.logger.Warn("order placement failed",
					slog.String("client_id", order.ClientID),
					slog.String("token", order.TokenID),
					slog.String("side", string(order.Side)),
					slog.Any("error", err),
				)
				return nil
			}

			order.VenueID = result.OrderID
			order.Status = domain.OrderStatusActive
			g.ledger.Insert(*order)
			g.logger.Info("order placed",
				slog.String("order_id", order.VenueID),
				slog.String("token", order.TokenID),
				slog.String("side", string(order.Side)),
				slog.Float64("price", order.Price),
				slog.Float64("size", order.Size),
			)
			return nil
		})
	}
	_ = pool.Wait()

	return !failed.Load()
}

// Cancel requests cancellation of each venue order id with the same
// bounded-concurrency, per-id timeout semantics as Place. On confirmation
// the order leaves the Ledger as cancelled; on failure it remains
// untouched and the aggregate reports partial failure.
func (g *Gateway) Cancel(ctx context.Context, orderIDs []string) bool {
	var failed atomic.Bool

	pool := new(errgroup.Group)
	pool.SetLimit(g.workers)

	for _, id := range orderIDs {
		pool.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()

			if err := g.venue.CancelOrder(opCtx, id); err != nil {
				failed.Store(true)
				g.logger.Warn("order cancel failed",
					slog.String("order_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			}

			g.ledger.Remove(id)
			g.logger.Info("order cancelled", slog.String("order_id", id))
			return nil
		})
	}
	_ = pool.Wait()

	return !failed.Load()
}

// ListOpenOrders refreshes the Ledger from the venue's authoritative open
// order list, replacing local contents wholesale. When the venue call
// fails it falls back to the last locally-known Ledger contents instead
// of failing the caller.
func (g *Gateway) ListOpenOrders(ctx context.Context) []domain.Order {
	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	orders, err := g.venue.GetOpenOrders(opCtx)
	if err != nil {
		g.logger.Warn("open order refresh failed, serving local ledger",
			slog.String("error", err.Error()),
		)
		return g.ledger.List()
	}

	for i := range orders {
		if orders[i].Status == domain.OrderStatusPending {
			orders[i].Status = domain.OrderStatusActive
		}
	}
	g.ledger.ReplaceAll(orders)
	return g.ledger.List()
}

// GetMarket checks whether a market exists on the venue; no Ledger side
// effects. Absence is reported as domain.ErrNotFound.
func (g *Gateway) GetMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.venue.GetMarket(opCtx, conditionID)
}

// Ledger exposes the local order mirror.
func (g *Gateway) Ledger() *Ledger {
	return g.ledger
}
