package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/shopspring/decimal"
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:   true,
	domain.OrderStatusFilled:    true,
	domain.OrderStatusCancelled: true,
	domain.OrderStatusExpired:   true,
}

// OrderNotifier receives order lifecycle events. WebhookService
// implements it.
type OrderNotifier interface {
	Notify(event string, order *domain.Order)
}

// PlaceOrderRequest represents the input for a conditional order.
type PlaceOrderRequest struct {
	UserID     string
	Symbol     string
	Side       domain.OrderSide
	Kind       domain.OrderKind
	Quantity   int64
	LimitPrice decimal.NullDecimal
	StopPrice  decimal.NullDecimal
	ExpiresAt  *time.Time
}

// OrderService places, cancels and evaluates conditional orders and
// propagates the results to logs and webhooks.
type OrderService struct {
	book     *engine.Book
	stocks   *store.StockStore
	accounts *store.AccountStore
	notifier OrderNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new OrderService. notifier may be nil.
func NewOrderService(
	book *engine.Book,
	stocks *store.StockStore,
	accounts *store.AccountStore,
	notifier OrderNotifier,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		book:     book,
		stocks:   stocks,
		accounts: accounts,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Place validates the request, reads the symbol's current price and
// places the order on the book.
func (s *OrderService) Place(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}
	if err := validateSymbol(req.Symbol); err != nil {
		return nil, err
	}
	if !req.Side.Valid() {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if !req.Kind.Conditional() {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, stop, stop_limit", req.Kind),
		}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if req.LimitPrice.Valid {
		if _, err := domain.ParsePrice("limit_price", req.LimitPrice.Decimal); err != nil {
			return nil, err
		}
	}
	if req.StopPrice.Valid {
		if _, err := domain.ParsePrice("stop_price", req.StopPrice.Decimal); err != nil {
			return nil, err
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, &domain.ValidationError{Message: "expires_at must be a future timestamp"}
	}

	if !s.accounts.Exists(req.UserID) {
		return nil, domain.ErrAccountNotFound
	}
	stock, err := s.stocks.Get(req.Symbol)
	if err != nil {
		return nil, err
	}

	o, err := s.book.Place(ctx, engine.PlaceParams{
		UserID:       req.UserID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Kind:         req.Kind,
		Quantity:     req.Quantity,
		CurrentPrice: stock.Price,
		LimitPrice:   req.LimitPrice,
		StopPrice:    req.StopPrice,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order placed", orderAttrs(o)...)
	return o, nil
}

// Cancel cancels the user's pending order.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	o, err := s.book.Cancel(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order cancelled", orderAttrs(o)...)
	s.notify(domain.EventOrderCancelled, o)
	return o, nil
}

// Get returns an order by id.
func (s *OrderService) Get(orderID string) (*domain.Order, error) {
	return s.book.Get(orderID)
}

// Pending returns the user's pending orders in placement order.
func (s *OrderService) Pending(userID string) ([]*domain.Order, error) {
	if !s.accounts.Exists(userID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.book.Pending(userID), nil
}

// History returns the user's conditional orders, newest first. An empty
// status returns every order.
func (s *OrderService) History(userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	if !s.accounts.Exists(userID) {
		return nil, domain.ErrAccountNotFound
	}
	if status != "" && !ValidOrderStatuses[status] {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: pending, filled, cancelled, expired", status),
		}
	}
	return s.book.Orders(userID, status), nil
}

// Evaluate runs one evaluation pass over the book with snapshot and
// propagates fills and expirations. Symbols with a non-positive price are
// left out of the pass.
func (s *OrderService) Evaluate(ctx context.Context, snapshot map[string]decimal.Decimal) (engine.MatchResult, error) {
	prices := make(map[string]decimal.Decimal, len(snapshot))
	for symbol, price := range snapshot {
		if !price.IsPositive() {
			s.logger.WarnContext(ctx, "skipping non-positive price",
				slog.String("symbol", symbol),
				slog.String("price", price.String()),
			)
			continue
		}
		prices[symbol] = price
	}

	result, err := s.book.Evaluate(ctx, prices)

	for _, o := range result.Filled {
		s.logger.InfoContext(ctx, "order filled", orderAttrs(o)...)
		s.notify(domain.EventOrderFilled, o)
	}
	for _, id := range result.Expired {
		o, gerr := s.book.Get(id)
		if gerr != nil {
			continue
		}
		s.logger.InfoContext(ctx, "order expired", orderAttrs(o)...)
		s.notify(domain.EventOrderExpired, o)
	}
	for _, f := range result.Failed {
		s.logger.DebugContext(ctx, "order fill deferred",
			slog.String("order_id", f.OrderID),
			slog.String("error", f.Err.Error()),
		)
	}

	return result, err
}

// UpdatePrice records a new price for symbol and evaluates the book
// against it.
func (s *OrderService) UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) (*domain.Stock, engine.MatchResult, error) {
	if _, err := domain.ParsePrice("price", price); err != nil {
		return nil, engine.MatchResult{}, err
	}
	stock, err := s.stocks.UpdatePrice(symbol, price, s.now().UTC())
	if err != nil {
		return nil, engine.MatchResult{}, err
	}

	result, err := s.Evaluate(ctx, map[string]decimal.Decimal{symbol: price})
	return stock, result, err
}

// EvaluateAll evaluates the book against every registered price.
func (s *OrderService) EvaluateAll(ctx context.Context) (engine.MatchResult, error) {
	return s.Evaluate(ctx, s.stocks.Prices())
}

func (s *OrderService) notify(event string, o *domain.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(event, o)
}

func orderAttrs(o *domain.Order) []any {
	return []any{
		slog.String("order_id", o.OrderID),
		slog.String("user_id", o.UserID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.String("order_type", string(o.Kind)),
		slog.Int64("quantity", o.Quantity),
		slog.String("price", o.Price.StringFixed(2)),
		slog.String("status", string(o.Status)),
	}
}
