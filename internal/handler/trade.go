package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// TradeHandler handles market buys and sells.
type TradeHandler struct {
	tradingSvc *service.TradingService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradingSvc *service.TradingService) *TradeHandler {
	return &TradeHandler{tradingSvc: tradingSvc}
}

// tradeRequest is the JSON request body for POST /trades.
type tradeRequest struct {
	UserID   string `json:"user_id"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity int64  `json:"quantity"`
}

// Execute handles POST /trades.
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.tradingSvc.Execute(r.Context(), service.TradeRequest{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Side:     domain.OrderSide(req.Side),
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}
