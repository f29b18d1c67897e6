package engine

import (
	"context"
	"errors"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/shopspring/decimal"
)

var conditionalKinds = []domain.OrderKind{
	domain.OrderKindLimit,
	domain.OrderKindStop,
	domain.OrderKindStopLimit,
}

// PlaceParams describes a new conditional order.
type PlaceParams struct {
	UserID       string
	Symbol       string
	Side         domain.OrderSide
	Kind         domain.OrderKind
	Quantity     int64
	CurrentPrice decimal.Decimal
	LimitPrice   decimal.NullDecimal
	StopPrice    decimal.NullDecimal
	ExpiresAt    *time.Time
}

func (p PlaceParams) validate() error {
	if p.UserID == "" {
		return &domain.ValidationError{Message: "user_id is required"}
	}
	if p.Symbol == "" {
		return &domain.ValidationError{Message: "symbol is required"}
	}
	if !p.Side.Valid() {
		return &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if !p.Kind.Conditional() {
		return &domain.ValidationError{Message: "order_type must be one of: limit, stop, stop_limit"}
	}
	if p.Quantity <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if !p.CurrentPrice.IsPositive() {
		return &domain.ValidationError{Message: "current price must be greater than 0"}
	}
	return domain.ValidateKindPrices(p.Kind, p.LimitPrice, p.StopPrice)
}

// FailedFill is a triggered order whose execution failed during an
// evaluation pass. The order stays pending.
type FailedFill struct {
	OrderID string
	Err     error
}

// MatchResult is the outcome of one evaluation pass.
type MatchResult struct {
	Filled  []*domain.Order
	Expired []string
	Failed  []FailedFill
}

// Book holds conditional orders pending until a price snapshot triggers
// them. Buy orders reserve cash on placement; sell orders are checked
// against shares not already claimed by the user's other pending sells.
//
// Every mutating operation runs as one transaction under the executor's
// mutation lock.
type Book struct {
	exec   *Executor
	orders *store.OrderStore
}

// NewBook creates a Book that settles fills through exec.
func NewBook(exec *Executor) *Book {
	return &Book{
		exec:   exec,
		orders: exec.orders,
	}
}

// Place validates p, reserves capital and stores a new pending order.
// Nothing is mutated when it fails.
func (b *Book) Place(ctx context.Context, p PlaceParams) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	var placed *domain.Order
	err := b.exec.Atomically(func(tx *Tx) error {
		o := &domain.Order{
			UserID:     p.UserID,
			Symbol:     p.Symbol,
			Side:       p.Side,
			Kind:       p.Kind,
			Quantity:   p.Quantity,
			Price:      p.CurrentPrice,
			LimitPrice: p.LimitPrice,
			StopPrice:  p.StopPrice,
			Status:     domain.OrderStatusPending,
			ExpiresAt:  p.ExpiresAt,
		}

		// Step 1: Reserve cash for buys, check unclaimed shares for sells.
		switch p.Side {
		case domain.OrderSideBuy:
			cost := domain.Cost(o.ReservationPrice(), p.Quantity)
			if err := tx.Debit(p.UserID, cost); err != nil {
				return err
			}
			o.ReservedAmount = cost
		case domain.OrderSideSell:
			var held int64
			if h, ok := tx.Holding(p.UserID, p.Symbol); ok {
				held = h.Quantity
			}
			available := held - b.claimedShares(p.UserID, p.Symbol)
			if available < p.Quantity {
				return &domain.InsufficientSharesError{
					Symbol:    p.Symbol,
					Required:  p.Quantity,
					Available: max(available, 0),
				}
			}
		}

		// Step 2: Store the order.
		o.OrderID = b.exec.ids.NewID()
		o.CreatedAt = tx.Now()
		b.orders.Create(o)
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// claimedShares sums the quantities of the user's pending sells on symbol.
func (b *Book) claimedShares(userID, symbol string) int64 {
	var claimed int64
	for _, o := range b.orders.PendingByUser(userID, symbol, domain.OrderSideSell) {
		claimed += o.Quantity
	}
	return claimed
}

// Cancel cancels the user's pending order and releases any cash reserved
// for it. Orders owned by another user are reported as not found.
func (b *Book) Cancel(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cancelled *domain.Order
	err := b.exec.Atomically(func(tx *Tx) error {
		o, err := b.orders.Get(orderID)
		if err != nil || o.UserID != userID || !o.Kind.Conditional() {
			return &domain.OrderNotFoundError{ID: orderID}
		}

		switch o.Status {
		case domain.OrderStatusCancelled:
			return &domain.OrderAlreadyCancelledError{ID: orderID}
		case domain.OrderStatusExpired:
			return &domain.OrderExpiredError{ID: orderID}
		case domain.OrderStatusFilled:
			return &domain.OrderNotCancellableError{ID: orderID, Status: o.Status}
		}

		if err := b.release(tx, o); err != nil {
			return err
		}
		now := tx.Now()
		o.Status = domain.OrderStatusCancelled
		o.CancelledAt = &now
		if err := b.orders.Update(o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Evaluate checks every pending order against snapshot. Orders whose
// symbol has no price are skipped. Expired orders are expired and their
// reservations released; triggered orders are filled at the snapshot price.
//
// A failed fill leaves the order pending and never aborts the pass. The
// context is checked once before the pass starts; a started pass always
// processes every order pending at its start.
func (b *Book) Evaluate(ctx context.Context, snapshot map[string]decimal.Decimal) (MatchResult, error) {
	result := MatchResult{
		Filled:  []*domain.Order{},
		Expired: []string{},
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err := b.exec.Atomically(func(tx *Tx) error {
		now := tx.Now()
		for _, o := range b.orders.Pending() {
			price, ok := snapshot[o.Symbol]
			if !ok {
				continue
			}

			switch {
			case IsExpired(o, now):
				if err := b.expire(tx, o, now); err != nil {
					result.Failed = append(result.Failed, FailedFill{OrderID: o.OrderID, Err: err})
					continue
				}
				result.Expired = append(result.Expired, o.OrderID)
			case ShouldFill(o, price, now):
				if err := b.settle(tx, o, price, now); err != nil {
					result.Failed = append(result.Failed, FailedFill{OrderID: o.OrderID, Err: err})
					continue
				}
				result.Filled = append(result.Filled, o)
			}
		}
		return nil
	})
	return result, err
}

func (b *Book) expire(tx *Tx, o *domain.Order, now time.Time) error {
	if err := b.release(tx, o); err != nil {
		return err
	}
	o.Status = domain.OrderStatusExpired
	o.ExpiredAt = &now
	return b.orders.Update(o)
}

// settle executes a triggered order at price. For a buy the reservation is
// released and the real cost charged as one step; if the charge fails the
// reservation is taken again so the order stays pending with its cash held.
func (b *Book) settle(tx *Tx, o *domain.Order, price decimal.Decimal, now time.Time) error {
	switch o.Side {
	case domain.OrderSideBuy:
		if err := b.release(tx, o); err != nil {
			return err
		}
		if _, err := tx.Buy(o.UserID, o.Symbol, o.Quantity, price); err != nil {
			if rerr := tx.Debit(o.UserID, o.ReservedAmount); rerr != nil {
				return errors.Join(err, rerr)
			}
			return err
		}
	case domain.OrderSideSell:
		if _, err := tx.Sell(o.UserID, o.Symbol, o.Quantity, price); err != nil {
			return err
		}
	}

	o.Status = domain.OrderStatusFilled
	o.FilledAt = &now
	o.Price = price
	return b.orders.Update(o)
}

// release credits back the cash reserved for a buy.
func (b *Book) release(tx *Tx, o *domain.Order) error {
	if o.Side != domain.OrderSideBuy || o.ReservedAmount.IsZero() {
		return nil
	}
	return tx.Credit(o.UserID, o.ReservedAmount)
}

// Get returns an order by id.
func (b *Book) Get(orderID string) (*domain.Order, error) {
	return b.orders.Get(orderID)
}

// Pending returns the user's pending orders in placement order.
func (b *Book) Pending(userID string) []*domain.Order {
	return b.orders.PendingByUser(userID, "", "")
}

// Orders returns the user's conditional orders, newest first, optionally
// filtered by status.
func (b *Book) Orders(userID string, status domain.OrderStatus) []*domain.Order {
	orders, _ := b.orders.ListByUser(userID, store.OrderQuery{
		Status: status,
		Kinds:  conditionalKinds,
	})
	return orders
}

// ReservedCash returns the cash currently held for the user's pending buys.
func (b *Book) ReservedCash(userID string) decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.orders.PendingByUser(userID, "", domain.OrderSideBuy) {
		total = total.Add(o.ReservedAmount)
	}
	return total
}
