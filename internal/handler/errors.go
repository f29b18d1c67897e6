package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
)

// writeServiceError maps service and engine errors to HTTP responses.
// Typed engine errors carry their details into the body.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		balanceErr    *domain.InsufficientBalanceError
		sharesErr     *domain.InsufficientSharesError
		notFoundErr   *domain.OrderNotFoundError
		cancelledErr  *domain.OrderAlreadyCancelledError
		expiredErr    *domain.OrderExpiredError
		notCancelErr  *domain.OrderNotCancellableError
		stockErr      *domain.StockNotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
	case errors.As(err, &balanceErr):
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:     string(domain.KindInsufficientBalance),
			Message:   balanceErr.Error(),
			Required:  money(balanceErr.Required),
			Available: money(balanceErr.Available),
		})
	case errors.As(err, &sharesErr):
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:     string(domain.KindInsufficientShares),
			Message:   sharesErr.Error(),
			Symbol:    sharesErr.Symbol,
			Required:  sharesErr.Required,
			Available: sharesErr.Available,
		})
	case errors.As(err, &notFoundErr):
		WriteJSON(w, http.StatusNotFound, errorResponse{
			Error:   string(domain.KindOrderNotFound),
			Message: notFoundErr.Error(),
			OrderID: notFoundErr.ID,
		})
	case errors.As(err, &cancelledErr):
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:   string(domain.KindOrderAlreadyCancelled),
			Message: cancelledErr.Error(),
			OrderID: cancelledErr.ID,
		})
	case errors.As(err, &expiredErr):
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:   string(domain.KindOrderExpired),
			Message: expiredErr.Error(),
			OrderID: expiredErr.ID,
		})
	case errors.As(err, &notCancelErr):
		WriteJSON(w, http.StatusConflict, errorResponse{
			Error:   string(domain.KindOrderNotCancellable),
			Message: notCancelErr.Error(),
			OrderID: notCancelErr.ID,
			Status:  string(notCancelErr.Status),
		})
	case errors.As(err, &stockErr):
		WriteJSON(w, http.StatusNotFound, errorResponse{
			Error:   string(domain.KindStockNotFound),
			Message: stockErr.Error(),
			Symbol:  stockErr.Symbol,
		})
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", "Account not found")
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		WriteError(w, http.StatusConflict, "account_already_exists", "Account already exists")
	case errors.Is(err, domain.ErrWebhookNotFound):
		WriteError(w, http.StatusNotFound, "webhook_not_found", "Webhook not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "The request could not be completed in time")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
