package engine

import (
	"context"
	"sync"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/shopspring/decimal"
)

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the time source used for order timestamps and
// expiration checks.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithIDGenerator overrides how order ids are generated.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Executor) {
		e.ids = g
	}
}

// Executor runs immediate market executions against the account and
// holdings ledgers. It owns the single mutation lock under which every
// ledger and order-book transaction runs.
type Executor struct {
	mu       sync.Mutex
	accounts *store.AccountStore
	holdings *store.HoldingStore
	orders   *store.OrderStore
	ids      IDGenerator
	now      func() time.Time
}

// NewExecutor creates an Executor over the given stores.
func NewExecutor(
	accounts *store.AccountStore,
	holdings *store.HoldingStore,
	orders *store.OrderStore,
	opts ...Option,
) *Executor {
	e := &Executor{
		accounts: accounts,
		holdings: holdings,
		orders:   orders,
		ids:      UUIDGenerator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Atomically runs fn while holding the mutation lock. Every ledger change
// made through tx is indivisible with respect to other transactions.
func (e *Executor) Atomically(fn func(tx *Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&Tx{e: e})
}

// MarketBuy buys qty shares of symbol at price for the user.
func (e *Executor) MarketBuy(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateExecution(qty, price); err != nil {
		return nil, err
	}
	var filled *domain.Order
	err := e.Atomically(func(tx *Tx) error {
		o, err := tx.Buy(userID, symbol, qty, price)
		filled = o
		return err
	})
	return filled, err
}

// MarketSell sells qty shares of symbol at price for the user.
func (e *Executor) MarketSell(ctx context.Context, userID, symbol string, qty int64, price decimal.Decimal) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateExecution(qty, price); err != nil {
		return nil, err
	}
	var filled *domain.Order
	err := e.Atomically(func(tx *Tx) error {
		o, err := tx.Sell(userID, symbol, qty, price)
		filled = o
		return err
	})
	return filled, err
}

func validateExecution(qty int64, price decimal.Decimal) error {
	if qty <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if !price.IsPositive() {
		return &domain.ValidationError{Message: "price must be greater than 0"}
	}
	return nil
}

// Tx exposes ledger operations to a function running under
// Executor.Atomically. A Tx must not be used after that function returns.
type Tx struct {
	e *Executor
}

// Now returns the executor's current time.
func (tx *Tx) Now() time.Time {
	return tx.e.now()
}

// Balance returns the user's cash balance.
func (tx *Tx) Balance(userID string) decimal.Decimal {
	return tx.e.accounts.Balance(userID)
}

// Debit removes amount from the user's balance, failing with
// *domain.InsufficientBalanceError before any mutation if funds are short.
func (tx *Tx) Debit(userID string, amount decimal.Decimal) error {
	balance := tx.e.accounts.Balance(userID)
	if balance.LessThan(amount) {
		return &domain.InsufficientBalanceError{Required: amount, Available: balance}
	}
	return tx.e.accounts.SetBalance(userID, balance.Sub(amount))
}

// Credit adds amount to the user's balance.
func (tx *Tx) Credit(userID string, amount decimal.Decimal) error {
	return tx.e.accounts.SetBalance(userID, tx.e.accounts.Balance(userID).Add(amount))
}

// Holding returns the user's position in symbol.
func (tx *Tx) Holding(userID, symbol string) (*domain.Holding, bool) {
	return tx.e.holdings.Get(userID, symbol)
}

// Buy debits price × qty, records a filled market order and blends the
// bought shares into the user's holding.
func (tx *Tx) Buy(userID, symbol string, qty int64, price decimal.Decimal) (*domain.Order, error) {
	if err := tx.Debit(userID, domain.Cost(price, qty)); err != nil {
		return nil, err
	}

	h, ok := tx.e.holdings.Get(userID, symbol)
	if ok {
		h.AverageCost = h.Blend(qty, price)
		h.Quantity += qty
	} else {
		h = &domain.Holding{Symbol: symbol, Quantity: qty, AverageCost: price}
	}
	tx.e.holdings.Put(userID, h)

	return tx.record(userID, symbol, domain.OrderSideBuy, qty, price), nil
}

// Sell credits price × qty, records a filled market order and reduces the
// user's holding, removing it when no shares remain. It fails with
// *domain.InsufficientSharesError if fewer than qty shares are held.
func (tx *Tx) Sell(userID, symbol string, qty int64, price decimal.Decimal) (*domain.Order, error) {
	h, ok := tx.e.holdings.Get(userID, symbol)
	if !ok || h.Quantity < qty {
		var held int64
		if ok {
			held = h.Quantity
		}
		return nil, &domain.InsufficientSharesError{Symbol: symbol, Required: qty, Available: held}
	}

	if err := tx.Credit(userID, domain.Cost(price, qty)); err != nil {
		return nil, err
	}

	h.Quantity -= qty
	if h.Quantity == 0 {
		tx.e.holdings.Remove(userID, symbol)
	} else {
		tx.e.holdings.Put(userID, h)
	}

	return tx.record(userID, symbol, domain.OrderSideSell, qty, price), nil
}

func (tx *Tx) record(userID, symbol string, side domain.OrderSide, qty int64, price decimal.Decimal) *domain.Order {
	now := tx.Now()
	o := &domain.Order{
		OrderID:   tx.e.ids.NewID(),
		UserID:    userID,
		Symbol:    symbol,
		Side:      side,
		Kind:      domain.OrderKindMarket,
		Quantity:  qty,
		Price:     price,
		Status:    domain.OrderStatusFilled,
		CreatedAt: now,
		FilledAt:  &now,
	}
	tx.e.orders.Create(o)
	return o
}
