package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding represents a user's position in a single symbol. A holding is
// removed once its quantity reaches zero, so Quantity is always positive
// while the record exists.
type Holding struct {
	Symbol      string
	Quantity    int64
	AverageCost decimal.Decimal
}

// Account is a user's cash account. Balance never goes negative.
type Account struct {
	UserID    string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// CostBasis returns the total amount paid for the position.
func (h *Holding) CostBasis() decimal.Decimal {
	return h.AverageCost.Mul(decimal.NewFromInt(h.Quantity))
}

// Blend returns the quantity-weighted average cost after buying qty more
// shares at price.
func (h *Holding) Blend(qty int64, price decimal.Decimal) decimal.Decimal {
	total := h.Quantity + qty
	return h.CostBasis().Add(Cost(price, qty)).Div(decimal.NewFromInt(total))
}
