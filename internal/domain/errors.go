package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInsufficientBalance   = errors.New("insufficient_balance")
	ErrInsufficientShares    = errors.New("insufficient_shares")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrOrderAlreadyCancelled = errors.New("order_already_cancelled")
	ErrStockNotFound         = errors.New("stock_not_found")
	ErrOrderExpired          = errors.New("order_expired")
	ErrOrderNotCancellable   = errors.New("order_not_cancellable")

	ErrAccountNotFound      = errors.New("account_not_found")
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrWebhookNotFound      = errors.New("webhook_not_found")
)

// ErrorKind tags the closed set of engine failures.
type ErrorKind string

const (
	KindInsufficientBalance   ErrorKind = "insufficient_balance"
	KindInsufficientShares    ErrorKind = "insufficient_shares"
	KindOrderNotFound         ErrorKind = "order_not_found"
	KindOrderAlreadyCancelled ErrorKind = "order_already_cancelled"
	KindStockNotFound         ErrorKind = "stock_not_found"
	KindOrderExpired          ErrorKind = "order_expired"
	KindOrderNotCancellable   ErrorKind = "order_not_cancellable"
)

// KindError is implemented by every typed engine error.
type KindError interface {
	error
	Kind() ErrorKind
}

// KindOf returns the kind of the first typed engine error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ke KindError
	if errors.As(err, &ke) {
		return ke.Kind(), true
	}
	return "", false
}

// InsufficientBalanceError is returned when a debit would drive a balance
// below zero.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance. Required: $%s, Available: $%s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Kind() ErrorKind      { return KindInsufficientBalance }
func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// InsufficientSharesError is returned when a sale exceeds the unreserved
// shares held.
type InsufficientSharesError struct {
	Symbol    string
	Required  int64
	Available int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("Insufficient shares of %s. Required: %d, Available: %d",
		e.Symbol, e.Required, e.Available)
}

func (e *InsufficientSharesError) Kind() ErrorKind      { return KindInsufficientShares }
func (e *InsufficientSharesError) Is(target error) bool { return target == ErrInsufficientShares }

type OrderNotFoundError struct {
	ID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("Order not found: %s", e.ID)
}

func (e *OrderNotFoundError) Kind() ErrorKind      { return KindOrderNotFound }
func (e *OrderNotFoundError) Is(target error) bool { return target == ErrOrderNotFound }

type OrderAlreadyCancelledError struct {
	ID string
}

func (e *OrderAlreadyCancelledError) Error() string {
	return fmt.Sprintf("Order already cancelled: %s", e.ID)
}

func (e *OrderAlreadyCancelledError) Kind() ErrorKind      { return KindOrderAlreadyCancelled }
func (e *OrderAlreadyCancelledError) Is(target error) bool { return target == ErrOrderAlreadyCancelled }

type StockNotFoundError struct {
	Symbol string
}

func (e *StockNotFoundError) Error() string {
	return fmt.Sprintf("Stock not found: %s", e.Symbol)
}

func (e *StockNotFoundError) Kind() ErrorKind      { return KindStockNotFound }
func (e *StockNotFoundError) Is(target error) bool { return target == ErrStockNotFound }

type OrderExpiredError struct {
	ID string
}

func (e *OrderExpiredError) Error() string {
	return fmt.Sprintf("Order expired: %s", e.ID)
}

func (e *OrderExpiredError) Kind() ErrorKind      { return KindOrderExpired }
func (e *OrderExpiredError) Is(target error) bool { return target == ErrOrderExpired }

// OrderNotCancellableError is returned when cancelling an order that has
// already been filled.
type OrderNotCancellableError struct {
	ID     string
	Status OrderStatus
}

func (e *OrderNotCancellableError) Error() string {
	return fmt.Sprintf("Order %s cannot be cancelled (status: %s)", e.ID, e.Status)
}

func (e *OrderNotCancellableError) Kind() ErrorKind      { return KindOrderNotCancellable }
func (e *OrderNotCancellableError) Is(target error) bool { return target == ErrOrderNotCancellable }

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
