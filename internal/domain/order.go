package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusFilled    OrderStatus = "filled"
)

// Order is a resting order against the venue. ClientID is assigned locally
// at creation; VenueID is assigned by the venue on acceptance and is the
// ledger key from then on.
type Order struct {
	ClientID  string
	VenueID   string
	TokenID   string
	Side      OrderSide
	Price     float64
	Size      float64
	Status    OrderStatus
	CreatedAt time.Time
}

// OrderResult wraps the venue response after order submission.
type OrderResult struct {
	Success bool
	OrderID string
	Status  OrderStatus
	Message string
}
