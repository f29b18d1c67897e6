package handler

import (
	"net/http"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// OrderHandler handles HTTP requests for conditional order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// placeOrderRequest is the JSON request body for POST /orders. Prices
// accept either JSON numbers or decimal strings.
type placeOrderRequest struct {
	UserID     string              `json:"user_id"`
	Symbol     string              `json:"symbol"`
	Side       string              `json:"side"`
	OrderType  string              `json:"order_type"`
	Quantity   int64               `json:"quantity"`
	LimitPrice decimal.NullDecimal `json:"limit_price"`
	StopPrice  decimal.NullDecimal `json:"stop_price"`
	ExpiresAt  *string             `json:"expires_at"`
}

// orderResponse is the JSON representation of any order. Nullable fields
// are always present.
type orderResponse struct {
	OrderID        string   `json:"order_id"`
	UserID         string   `json:"user_id"`
	Symbol         string   `json:"symbol"`
	Side           string   `json:"side"`
	OrderType      string   `json:"order_type"`
	Quantity       int64    `json:"quantity"`
	Price          float64  `json:"price"`
	LimitPrice     *float64 `json:"limit_price"`
	StopPrice      *float64 `json:"stop_price"`
	ReservedAmount float64  `json:"reserved_amount"`
	Status         string   `json:"status"`
	ExpiresAt      *string  `json:"expires_at"`
	CreatedAt      string   `json:"created_at"`
	FilledAt       *string  `json:"filled_at"`
	CancelledAt    *string  `json:"cancelled_at"`
	ExpiredAt      *string  `json:"expired_at"`
}

// orderListResponse wraps a list of orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

// evaluateRequest is the JSON request body for POST /evaluations. An empty
// prices object evaluates against every listed stock.
type evaluateRequest struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

type failedFillResponse struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

// evaluationResponse reports the outcome of an evaluation pass.
type evaluationResponse struct {
	Filled  []orderResponse      `json:"filled"`
	Expired []string             `json:"expired"`
	Failed  []failedFillResponse `json:"failed"`
}

// Place handles POST /orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "expires_at must be a valid RFC 3339 timestamp")
			return
		}
		expiresAt = &t
	}

	order, err := h.orderSvc.Place(r.Context(), service.PlaceOrderRequest{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Side:       domain.OrderSide(req.Side),
		Kind:       domain.OrderKind(req.OrderType),
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.Get(chi.URLParam(r, "order_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Cancel handles DELETE /orders/{order_id}?user_id=.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	order, err := h.orderSvc.Cancel(r.Context(), chi.URLParam(r, "order_id"), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Evaluate handles POST /evaluations.
func (h *OrderHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	for symbol, price := range req.Prices {
		if !price.IsPositive() {
			WriteError(w, http.StatusBadRequest, "validation_error", "price for "+symbol+" must be greater than 0")
			return
		}
	}

	var (
		result engine.MatchResult
		err    error
	)
	if len(req.Prices) == 0 {
		result, err = h.orderSvc.EvaluateAll(r.Context())
	} else {
		result, err = h.orderSvc.Evaluate(r.Context(), req.Prices)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildEvaluationResponse(result))
}

func buildOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		OrderID:        o.OrderID,
		UserID:         o.UserID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		OrderType:      string(o.Kind),
		Quantity:       o.Quantity,
		Price:          money(o.Price),
		LimitPrice:     optMoney(o.LimitPrice),
		StopPrice:      optMoney(o.StopPrice),
		ReservedAmount: money(o.ReservedAmount),
		Status:         string(o.Status),
		ExpiresAt:      formatOptTime(o.ExpiresAt),
		CreatedAt:      formatTime(o.CreatedAt),
		FilledAt:       formatOptTime(o.FilledAt),
		CancelledAt:    formatOptTime(o.CancelledAt),
		ExpiredAt:      formatOptTime(o.ExpiredAt),
	}
}

func buildOrderResponses(orders []*domain.Order) []orderResponse {
	result := make([]orderResponse, len(orders))
	for i, o := range orders {
		result[i] = buildOrderResponse(o)
	}
	return result
}

func buildEvaluationResponse(res engine.MatchResult) evaluationResponse {
	resp := evaluationResponse{
		Filled:  buildOrderResponses(res.Filled),
		Expired: res.Expired,
		Failed:  make([]failedFillResponse, len(res.Failed)),
	}
	if resp.Expired == nil {
		resp.Expired = []string{}
	}
	for i, f := range res.Failed {
		resp.Failed[i] = failedFillResponse{OrderID: f.OrderID, Error: f.Err.Error()}
	}
	return resp
}
