package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether an order buys or sells shares.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderKind is the execution kind of an order.
type OrderKind string

const (
	OrderKindMarket    OrderKind = "market"
	OrderKindLimit     OrderKind = "limit"
	OrderKindStop      OrderKind = "stop"
	OrderKindStopLimit OrderKind = "stop_limit"
)

// OrderStatus represents the lifecycle state of an order. Pending is the
// only non-terminal status.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// Valid reports whether s is a known side.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Valid reports whether k is a known execution kind.
func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindMarket, OrderKindLimit, OrderKindStop, OrderKindStopLimit:
		return true
	}
	return false
}

// Conditional reports whether orders of this kind wait for a price trigger.
func (k OrderKind) Conditional() bool {
	return k == OrderKindLimit || k == OrderKindStop || k == OrderKindStopLimit
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending
}

// Order is a single trade intent owned by a user.
type Order struct {
	OrderID        string
	UserID         string
	Symbol         string
	Side           OrderSide
	Kind           OrderKind
	Quantity       int64
	Price          decimal.Decimal // reference price at order time, fill price once filled
	LimitPrice     decimal.NullDecimal
	StopPrice      decimal.NullDecimal
	ReservedAmount decimal.Decimal // cash held for a pending buy
	Status         OrderStatus
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	FilledAt       *time.Time
	CancelledAt    *time.Time
	ExpiredAt      *time.Time
}

// ReservationPrice is the per-share price used to reserve cash for a buy:
// the limit price when present, otherwise the reference price.
func (o *Order) ReservationPrice() decimal.Decimal {
	if o.LimitPrice.Valid {
		return o.LimitPrice.Decimal
	}
	return o.Price
}

// Clone returns a copy of the order that shares no pointers with o.
func (o *Order) Clone() *Order {
	c := *o
	c.ExpiresAt = cloneTime(o.ExpiresAt)
	c.FilledAt = cloneTime(o.FilledAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	c.ExpiredAt = cloneTime(o.ExpiredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ValidateKindPrices checks that the trigger prices carried by an order match
// its execution kind: limit needs a limit price, stop a stop price and
// stop_limit both. Market orders carry neither.
func ValidateKindPrices(kind OrderKind, limit, stop decimal.NullDecimal) error {
	switch kind {
	case OrderKindMarket:
		if limit.Valid || stop.Valid {
			return &ValidationError{Message: "market orders must not include limit_price or stop_price"}
		}
	case OrderKindLimit:
		if !limit.Valid {
			return &ValidationError{Message: "limit_price is required for limit orders"}
		}
		if stop.Valid {
			return &ValidationError{Message: "limit orders must not include stop_price"}
		}
	case OrderKindStop:
		if !stop.Valid {
			return &ValidationError{Message: "stop_price is required for stop orders"}
		}
		if limit.Valid {
			return &ValidationError{Message: "stop orders must not include limit_price"}
		}
	case OrderKindStopLimit:
		if !limit.Valid || !stop.Valid {
			return &ValidationError{Message: "limit_price and stop_price are required for stop_limit orders"}
		}
	default:
		return &ValidationError{
			Message: fmt.Sprintf("Unknown order kind: %s. Must be one of: market, limit, stop, stop_limit", kind),
		}
	}
	for _, p := range []decimal.NullDecimal{limit, stop} {
		if p.Valid && !p.Decimal.IsPositive() {
			return &ValidationError{Message: "trigger prices must be greater than 0"}
		}
	}
	return nil
}

// Validate checks the structural invariants of an order.
func (o *Order) Validate() error {
	if !o.Side.Valid() {
		return &ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if o.Quantity <= 0 {
		return &ValidationError{Message: "quantity must be a positive integer"}
	}
	return ValidateKindPrices(o.Kind, o.LimitPrice, o.StopPrice)
}
