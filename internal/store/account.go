package store

import (
	"fmt"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountStore is a thread-safe in-memory cash ledger keyed by user_id.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Create adds an account to the store. It returns
// domain.ErrAccountAlreadyExists if the user already has one.
func (s *AccountStore) Create(a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.UserID]; exists {
		return domain.ErrAccountAlreadyExists
	}
	acc := *a
	s.accounts[a.UserID] = &acc
	return nil
}

// Get returns a copy of the user's account, or domain.ErrAccountNotFound.
func (s *AccountStore) Get(userID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	acc := *a
	return &acc, nil
}

// Exists returns true if the user has an account.
func (s *AccountStore) Exists(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[userID]
	return ok
}

// Balance returns the user's cash balance. Users without an account
// have a zero balance.
func (s *AccountStore) Balance(userID string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return decimal.Zero
	}
	return a.Balance
}

// SetBalance replaces the user's cash balance, creating the ledger entry
// if needed. Negative balances are rejected without mutation.
func (s *AccountStore) SetBalance(userID string, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("balance for %s would become negative: %s", userID, balance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		a = &domain.Account{UserID: userID}
		s.accounts[userID] = a
	}
	a.Balance = balance
	return nil
}
