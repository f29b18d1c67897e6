package service

import (
	"context"
	"log/slog"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

// TradeRequest represents a market buy or sell at the current price.
type TradeRequest struct {
	UserID   string
	Symbol   string
	Side     domain.OrderSide
	Quantity int64
}

// TradingService executes market orders at the stock registry's price.
type TradingService struct {
	exec     *engine.Executor
	stocks   *store.StockStore
	accounts *store.AccountStore
	holdings *store.HoldingStore
	orders   *store.OrderStore
	logger   *slog.Logger
}

// NewTradingService creates a new TradingService.
func NewTradingService(
	exec *engine.Executor,
	stocks *store.StockStore,
	accounts *store.AccountStore,
	holdings *store.HoldingStore,
	orders *store.OrderStore,
	logger *slog.Logger,
) *TradingService {
	return &TradingService{
		exec:     exec,
		stocks:   stocks,
		accounts: accounts,
		holdings: holdings,
		orders:   orders,
		logger:   logger,
	}
}

// Execute validates the request and runs a market buy or sell.
func (s *TradingService) Execute(ctx context.Context, req TradeRequest) (*domain.Order, error) {
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}
	if err := validateSymbol(req.Symbol); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	switch req.Side {
	case domain.OrderSideBuy:
		return s.Buy(ctx, req.UserID, req.Symbol, req.Quantity)
	case domain.OrderSideSell:
		return s.Sell(ctx, req.UserID, req.Symbol, req.Quantity)
	}
	return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
}

// Buy purchases qty shares at the current price.
func (s *TradingService) Buy(ctx context.Context, userID, symbol string, qty int64) (*domain.Order, error) {
	stock, err := s.lookup(userID, symbol)
	if err != nil {
		return nil, err
	}
	o, err := s.exec.MarketBuy(ctx, userID, symbol, qty, stock.Price)
	if err != nil {
		return nil, err
	}
	s.logFill(ctx, o)
	return o, nil
}

// Sell sells qty shares at the current price.
func (s *TradingService) Sell(ctx context.Context, userID, symbol string, qty int64) (*domain.Order, error) {
	stock, err := s.lookup(userID, symbol)
	if err != nil {
		return nil, err
	}
	o, err := s.exec.MarketSell(ctx, userID, symbol, qty, stock.Price)
	if err != nil {
		return nil, err
	}
	s.logFill(ctx, o)
	return o, nil
}

func (s *TradingService) lookup(userID, symbol string) (*domain.Stock, error) {
	if !s.accounts.Exists(userID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.stocks.Get(symbol)
}

func (s *TradingService) logFill(ctx context.Context, o *domain.Order) {
	s.logger.InfoContext(ctx, "market order filled",
		slog.String("order_id", o.OrderID),
		slog.String("user_id", o.UserID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.Int64("quantity", o.Quantity),
		slog.String("price", o.Price.StringFixed(2)),
	)
}

// Holdings returns the user's holdings sorted by symbol.
func (s *TradingService) Holdings(userID string) []*domain.Holding {
	return s.holdings.List(userID)
}

// Orders returns the user's market order history, newest first.
func (s *TradingService) Orders(userID string) ([]*domain.Order, error) {
	if !s.accounts.Exists(userID) {
		return nil, domain.ErrAccountNotFound
	}
	orders, _ := s.orders.ListByUser(userID, store.OrderQuery{
		Kinds: []domain.OrderKind{domain.OrderKindMarket},
	})
	return orders, nil
}

// Stocks returns every listed stock sorted by symbol.
func (s *TradingService) Stocks() []*domain.Stock {
	return s.stocks.List()
}

// Stock returns a listed stock or a *domain.StockNotFoundError.
func (s *TradingService) Stock(symbol string) (*domain.Stock, error) {
	return s.stocks.Get(symbol)
}
