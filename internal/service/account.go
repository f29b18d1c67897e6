package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/shopspring/decimal"
)

var (
	userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

func validateUserID(userID string) error {
	if !userIDRegex.MatchString(userID) {
		return &domain.ValidationError{Message: "user_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	return nil
}

func validateSymbol(symbol string) error {
	if !symbolRegex.MatchString(symbol) {
		return &domain.ValidationError{Message: "symbol must match ^[A-Z]{1,10}$"}
	}
	return nil
}

// OpenAccountRequest represents the input for opening an account.
type OpenAccountRequest struct {
	UserID          string
	InitialCash     decimal.Decimal
	InitialHoldings []HoldingInput
}

// HoldingInput represents a starting position in an open-account request.
// A zero AverageCost is allowed for gifted shares.
type HoldingInput struct {
	Symbol      string
	Quantity    int64
	AverageCost decimal.Decimal
}

// BalanceResponse is a user's cash and share position.
type BalanceResponse struct {
	UserID       string
	CashBalance  decimal.Decimal
	ReservedCash decimal.Decimal
	Holdings     []HoldingBalance
	CreatedAt    time.Time
}

// HoldingBalance is a holding with the shares claimed by pending sells.
type HoldingBalance struct {
	Symbol            string
	Quantity          int64
	AverageCost       decimal.Decimal
	ReservedQuantity  int64
	AvailableQuantity int64
}

// AccountService opens accounts and reports balances.
type AccountService struct {
	accounts *store.AccountStore
	holdings *store.HoldingStore
	book     *engine.Book
	now      func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts *store.AccountStore, holdings *store.HoldingStore, book *engine.Book) *AccountService {
	return &AccountService{
		accounts: accounts,
		holdings: holdings,
		book:     book,
		now:      time.Now,
	}
}

// Open validates the request and creates the account with its starting
// cash and holdings.
func (s *AccountService) Open(req OpenAccountRequest) (*domain.Account, error) {
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}
	if req.InitialCash.IsNegative() {
		return nil, &domain.ValidationError{Message: "initial_cash must be >= 0"}
	}
	if err := domain.CheckCents(req.InitialCash); err != nil {
		return nil, &domain.ValidationError{Message: "initial_cash must have at most 2 decimal places"}
	}

	seen := make(map[string]bool, len(req.InitialHoldings))
	for _, h := range req.InitialHoldings {
		if !symbolRegex.MatchString(h.Symbol) {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding symbol must match ^[A-Z]{1,10}$, got %q", h.Symbol),
			}
		}
		if h.Quantity <= 0 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding quantity must be > 0 for symbol %s", h.Symbol),
			}
		}
		if h.AverageCost.IsNegative() {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding average_cost must be >= 0 for symbol %s", h.Symbol),
			}
		}
		if seen[h.Symbol] {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("duplicate symbol in initial_holdings: %s", h.Symbol),
			}
		}
		seen[h.Symbol] = true
	}

	account := &domain.Account{
		UserID:    req.UserID,
		Balance:   req.InitialCash,
		CreatedAt: s.now().UTC(),
	}
	if err := s.accounts.Create(account); err != nil {
		return nil, err
	}

	for _, h := range req.InitialHoldings {
		s.holdings.Put(req.UserID, &domain.Holding{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
		})
	}
	return account, nil
}

// Balance returns the user's cash, reserved cash and holdings.
func (s *AccountService) Balance(userID string) (*BalanceResponse, error) {
	account, err := s.accounts.Get(userID)
	if err != nil {
		return nil, err
	}

	claimed := make(map[string]int64)
	for _, o := range s.book.Pending(userID) {
		if o.Side == domain.OrderSideSell {
			claimed[o.Symbol] += o.Quantity
		}
	}

	list := s.holdings.List(userID)
	holdings := make([]HoldingBalance, 0, len(list))
	for _, h := range list {
		holdings = append(holdings, HoldingBalance{
			Symbol:            h.Symbol,
			Quantity:          h.Quantity,
			AverageCost:       h.AverageCost,
			ReservedQuantity:  claimed[h.Symbol],
			AvailableQuantity: h.Quantity - claimed[h.Symbol],
		})
	}

	return &BalanceResponse{
		UserID:       account.UserID,
		CashBalance:  account.Balance,
		ReservedCash: s.book.ReservedCash(userID),
		Holdings:     holdings,
		CreatedAt:    account.CreatedAt,
	}, nil
}
