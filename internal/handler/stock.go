package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// StockHandler handles HTTP requests for stock endpoints.
type StockHandler struct {
	tradingSvc *service.TradingService
	orderSvc   *service.OrderService
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(tradingSvc *service.TradingService, orderSvc *service.OrderService) *StockHandler {
	return &StockHandler{tradingSvc: tradingSvc, orderSvc: orderSvc}
}

// stockResponse is a single listed stock.
type stockResponse struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	UpdatedAt     string  `json:"updated_at"`
}

type stockListResponse struct {
	Stocks []stockResponse `json:"stocks"`
}

// updatePriceRequest is the JSON request body for PUT /stocks/{symbol}/price.
type updatePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// priceUpdateResponse is the stock after the update plus the evaluation
// pass it triggered.
type priceUpdateResponse struct {
	Stock      stockResponse      `json:"stock"`
	Evaluation evaluationResponse `json:"evaluation"`
}

// List handles GET /stocks.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	stocks := h.tradingSvc.Stocks()

	resp := stockListResponse{Stocks: make([]stockResponse, len(stocks))}
	for i, s := range stocks {
		resp.Stocks[i] = buildStockResponse(s)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /stocks/{symbol}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	stock, err := h.tradingSvc.Stock(chi.URLParam(r, "symbol"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildStockResponse(stock))
}

// UpdatePrice handles PUT /stocks/{symbol}/price.
func (h *StockHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	stock, result, err := h.orderSvc.UpdatePrice(r.Context(), chi.URLParam(r, "symbol"), req.Price)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, priceUpdateResponse{
		Stock:      buildStockResponse(stock),
		Evaluation: buildEvaluationResponse(result),
	})
}

func buildStockResponse(s *domain.Stock) stockResponse {
	return stockResponse{
		Symbol:        s.Symbol,
		Name:          s.Name,
		Price:         money(s.Price),
		PreviousClose: money(s.PreviousClose),
		Change:        money(s.Change()),
		ChangePercent: money(s.ChangePercent()),
		UpdatedAt:     formatTime(s.UpdatedAt),
	}
}
