package store

import (
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

// StockStore is a thread-safe in-memory registry of tradable stocks,
// keyed by symbol.
type StockStore struct {
	mu     sync.RWMutex
	stocks map[string]*domain.Stock
}

// NewStockStore creates a StockStore seeded with the given stocks.
func NewStockStore(seed ...*domain.Stock) *StockStore {
	s := &StockStore{
		stocks: make(map[string]*domain.Stock, len(seed)),
	}
	for _, st := range seed {
		s.Put(st)
	}
	return s
}

// Put inserts or replaces a stock.
func (s *StockStore) Put(st *domain.Stock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *st
	s.stocks[st.Symbol] = &c
}

// Get returns a copy of the stock, or a *domain.StockNotFoundError.
func (s *StockStore) Get(symbol string) (*domain.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stocks[symbol]
	if !ok {
		return nil, &domain.StockNotFoundError{Symbol: symbol}
	}
	c := *st
	return &c, nil
}

// List returns copies of all stocks sorted by symbol.
func (s *StockStore) List() []*domain.Stock {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		c := *st
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// UpdatePrice sets a new price for symbol. The previous price becomes the
// previous close.
func (s *StockStore) UpdatePrice(symbol string, price decimal.Decimal, at time.Time) (*domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stocks[symbol]
	if !ok {
		return nil, &domain.StockNotFoundError{Symbol: symbol}
	}
	st.PreviousClose = st.Price
	st.Price = price
	st.UpdatedAt = at
	c := *st
	return &c, nil
}

// Prices returns a snapshot of every symbol's current price.
func (s *StockStore) Prices() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make(map[string]decimal.Decimal, len(s.stocks))
	for sym, st := range s.stocks {
		prices[sym] = st.Price
	}
	return prices
}

// Symbols returns every registered symbol in sorted order.
func (s *StockStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.stocks))
	for sym := range s.stocks {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
