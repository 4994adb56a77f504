package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFilled    OrderStatus = "filled"
)

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusFilled
}

// Order is a maker's offer to give AmountGive of TokenGive in exchange for
// AmountGet of TokenGet. Everything but the status and the closing record
// (ClosedAt, Filler, Fee) is fixed at creation.
type Order struct {
	ID         uint64
	Maker      Address
	TokenGet   Address
	AmountGet  decimal.Decimal
	TokenGive  Address
	AmountGive decimal.Decimal
	Timestamp  time.Time
	Status     OrderStatus
	ClosedAt   *time.Time
	Filler     Address         // zero unless filled
	Fee        decimal.Decimal // charged to the filler in TokenGet
}

// IsOpen reports whether the order can still be cancelled or filled.
func (o Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

// TerminalError returns the error describing why a closed order cannot
// transition again, or nil while it is open.
func (o Order) TerminalError() error {
	switch o.Status {
	case OrderStatusFilled:
		return ErrAlreadyFilled
	case OrderStatusCancelled:
		return ErrAlreadyCancelled
	}
	return nil
}
