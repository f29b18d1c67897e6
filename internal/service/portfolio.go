package service

import (
	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/shopspring/decimal"
)

// HoldingValuation is a holding marked to the registry's current price.
type HoldingValuation struct {
	Symbol       string
	Quantity     int64
	AverageCost  decimal.Decimal
	CurrentPrice decimal.Decimal
	MarketValue  decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
}

// PortfolioSummary is a user's marked-to-market portfolio.
type PortfolioSummary struct {
	UserID          string
	Holdings        []HoldingValuation
	TotalValue      decimal.Decimal
	TotalCost       decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	CashBalance     decimal.Decimal
	ReservedCash    decimal.Decimal
}

// PortfolioService values holdings against the stock registry.
type PortfolioService struct {
	accounts *store.AccountStore
	holdings *store.HoldingStore
	stocks   *store.StockStore
	book     *engine.Book
}

// NewPortfolioService creates a new PortfolioService.
func NewPortfolioService(
	accounts *store.AccountStore,
	holdings *store.HoldingStore,
	stocks *store.StockStore,
	book *engine.Book,
) *PortfolioService {
	return &PortfolioService{
		accounts: accounts,
		holdings: holdings,
		stocks:   stocks,
		book:     book,
	}
}

// Summary values every holding of the user. Symbols missing from the
// registry are valued at zero.
func (s *PortfolioService) Summary(userID string) (*PortfolioSummary, error) {
	account, err := s.accounts.Get(userID)
	if err != nil {
		return nil, err
	}

	prices := s.stocks.Prices()
	summary := &PortfolioSummary{
		UserID:       userID,
		Holdings:     []HoldingValuation{},
		TotalValue:   decimal.Zero,
		TotalCost:    decimal.Zero,
		CashBalance:  account.Balance,
		ReservedCash: s.book.ReservedCash(userID),
	}

	for _, h := range s.holdings.List(userID) {
		v := valueHolding(h, prices[h.Symbol])
		summary.Holdings = append(summary.Holdings, v)
		summary.TotalValue = summary.TotalValue.Add(v.MarketValue)
		summary.TotalCost = summary.TotalCost.Add(h.CostBasis())
	}
	summary.TotalPnL = summary.TotalValue.Sub(summary.TotalCost)
	summary.TotalPnLPercent = domain.Percent(summary.TotalPnL, summary.TotalCost)

	return summary, nil
}

// Holding values a single position. It returns a *domain.StockNotFoundError
// when the user holds no shares of symbol or the symbol is not listed.
func (s *PortfolioService) Holding(userID, symbol string) (*HoldingValuation, error) {
	if !s.accounts.Exists(userID) {
		return nil, domain.ErrAccountNotFound
	}
	h, ok := s.holdings.Get(userID, symbol)
	if !ok {
		return nil, &domain.StockNotFoundError{Symbol: symbol}
	}
	stock, err := s.stocks.Get(symbol)
	if err != nil {
		return nil, err
	}

	v := valueHolding(h, stock.Price)
	return &v, nil
}

func valueHolding(h *domain.Holding, price decimal.Decimal) HoldingValuation {
	value := domain.Cost(price, h.Quantity)
	pnl := value.Sub(h.CostBasis())
	return HoldingValuation{
		Symbol:       h.Symbol,
		Quantity:     h.Quantity,
		AverageCost:  h.AverageCost,
		CurrentPrice: price,
		MarketValue:  value,
		PnL:          pnl,
		PnLPercent:   domain.Percent(price.Sub(h.AverageCost), h.AverageCost),
	}
}
