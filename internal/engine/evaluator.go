package engine

import (
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

// ShouldFill reports whether a pending order triggers at price.
//
//	kind        buy fills when          sell fills when
//	market      always                  always
//	limit       price <= limit          price >= limit
//	stop        price >= stop           price <= stop
//	stop_limit  stop <= price <= limit  limit <= price <= stop
//
// All comparisons are inclusive. Non-pending and expired orders never fill,
// and an order missing the trigger price its kind requires never fills.
func ShouldFill(o *domain.Order, price decimal.Decimal, now time.Time) bool {
	if o.Status != domain.OrderStatusPending || IsExpired(o, now) {
		return false
	}

	limit, stop := o.LimitPrice, o.StopPrice
	buy := o.Side == domain.OrderSideBuy

	switch o.Kind {
	case domain.OrderKindMarket:
		return true
	case domain.OrderKindLimit:
		if !limit.Valid {
			return false
		}
		if buy {
			return price.LessThanOrEqual(limit.Decimal)
		}
		return price.GreaterThanOrEqual(limit.Decimal)
	case domain.OrderKindStop:
		if !stop.Valid {
			return false
		}
		if buy {
			return price.GreaterThanOrEqual(stop.Decimal)
		}
		return price.LessThanOrEqual(stop.Decimal)
	case domain.OrderKindStopLimit:
		if !limit.Valid || !stop.Valid {
			return false
		}
		if buy {
			return price.GreaterThanOrEqual(stop.Decimal) && price.LessThanOrEqual(limit.Decimal)
		}
		return price.LessThanOrEqual(stop.Decimal) && price.GreaterThanOrEqual(limit.Decimal)
	}
	return false
}

// IsExpired reports whether a pending order's expiration is at or before
// now. Terminal orders are never expired.
func IsExpired(o *domain.Order, now time.Time) bool {
	if o.Status != domain.OrderStatusPending || o.ExpiresAt == nil {
		return false
	}
	return !o.ExpiresAt.After(now)
}
