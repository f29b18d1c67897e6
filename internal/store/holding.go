package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// HoldingStore is a thread-safe in-memory position ledger.
// Index: user_id → symbol → holding.
type HoldingStore struct {
	mu       sync.RWMutex
	holdings map[string]map[string]*domain.Holding
}

// NewHoldingStore creates an empty HoldingStore.
func NewHoldingStore() *HoldingStore {
	return &HoldingStore{
		holdings: make(map[string]map[string]*domain.Holding),
	}
}

// Get returns a copy of the user's holding in symbol.
func (s *HoldingStore) Get(userID, symbol string) (*domain.Holding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[userID][symbol]
	if !ok {
		return nil, false
	}
	c := *h
	return &c, true
}

// Quantity returns the number of shares of symbol held by the user.
func (s *HoldingStore) Quantity(userID, symbol string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if h, ok := s.holdings[userID][symbol]; ok {
		return h.Quantity
	}
	return 0
}

// Put stores h for the user. A holding with a non-positive quantity is
// removed instead of stored.
func (s *HoldingStore) Put(userID string, h *domain.Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.Quantity <= 0 {
		s.removeLocked(userID, h.Symbol)
		return
	}

	symbols := s.holdings[userID]
	if symbols == nil {
		symbols = make(map[string]*domain.Holding)
		s.holdings[userID] = symbols
	}
	c := *h
	symbols[h.Symbol] = &c
}

// Remove deletes the user's holding in symbol, if any.
func (s *HoldingStore) Remove(userID, symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(userID, symbol)
}

func (s *HoldingStore) removeLocked(userID, symbol string) {
	symbols, ok := s.holdings[userID]
	if !ok {
		return
	}
	delete(symbols, symbol)
	if len(symbols) == 0 {
		delete(s.holdings, userID)
	}
}

// List returns copies of all the user's holdings sorted by symbol.
func (s *HoldingStore) List(userID string) []*domain.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := s.holdings[userID]
	result := make([]*domain.Holding, 0, len(symbols))
	for _, h := range symbols {
		c := *h
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}
