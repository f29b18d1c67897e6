package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc   *service.AccountService
	orderSvc     *service.OrderService
	tradingSvc   *service.TradingService
	portfolioSvc *service.PortfolioService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	accountSvc *service.AccountService,
	orderSvc *service.OrderService,
	tradingSvc *service.TradingService,
	portfolioSvc *service.PortfolioService,
) *AccountHandler {
	return &AccountHandler{
		accountSvc:   accountSvc,
		orderSvc:     orderSvc,
		tradingSvc:   tradingSvc,
		portfolioSvc: portfolioSvc,
	}
}

// openAccountRequest is the JSON request body for POST /accounts.
type openAccountRequest struct {
	UserID          string          `json:"user_id"`
	InitialCash     decimal.Decimal `json:"initial_cash"`
	InitialHoldings []holdingInput  `json:"initial_holdings"`
}

// holdingInput is a single starting position in the open request.
type holdingInput struct {
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// balanceResponse is the JSON response for POST /accounts and
// GET /accounts/{user_id}/balance.
type balanceResponse struct {
	UserID       string                   `json:"user_id"`
	CashBalance  float64                  `json:"cash_balance"`
	ReservedCash float64                  `json:"reserved_cash"`
	Holdings     []holdingBalanceResponse `json:"holdings"`
	CreatedAt    string                   `json:"created_at"`
}

// holdingBalanceResponse is a single holding in the balance response.
type holdingBalanceResponse struct {
	Symbol            string  `json:"symbol"`
	Quantity          int64   `json:"quantity"`
	AverageCost       float64 `json:"average_cost"`
	ReservedQuantity  int64   `json:"reserved_quantity"`
	AvailableQuantity int64   `json:"available_quantity"`
}

// holdingValuationResponse is a single holding marked to market.
type holdingValuationResponse struct {
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
}

// portfolioResponse is the JSON response for GET /accounts/{user_id}/portfolio.
type portfolioResponse struct {
	UserID          string                     `json:"user_id"`
	Holdings        []holdingValuationResponse `json:"holdings"`
	TotalValue      float64                    `json:"total_value"`
	TotalCost       float64                    `json:"total_cost"`
	TotalPnL        float64                    `json:"total_pnl"`
	TotalPnLPercent float64                    `json:"total_pnl_percent"`
	CashBalance     float64                    `json:"cash_balance"`
	ReservedCash    float64                    `json:"reserved_cash"`
}

// Open handles POST /accounts.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	holdings := make([]service.HoldingInput, len(req.InitialHoldings))
	for i, hi := range req.InitialHoldings {
		holdings[i] = service.HoldingInput{
			Symbol:      hi.Symbol,
			Quantity:    hi.Quantity,
			AverageCost: hi.AverageCost,
		}
	}

	account, err := h.accountSvc.Open(service.OpenAccountRequest{
		UserID:          req.UserID,
		InitialCash:     req.InitialCash,
		InitialHoldings: holdings,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	balance, err := h.accountSvc.Balance(account.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildBalanceResponse(balance))
}

// Balance handles GET /accounts/{user_id}/balance.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.accountSvc.Balance(chi.URLParam(r, "user_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildBalanceResponse(balance))
}

// Portfolio handles GET /accounts/{user_id}/portfolio.
func (h *AccountHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.portfolioSvc.Summary(chi.URLParam(r, "user_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	holdings := make([]holdingValuationResponse, len(summary.Holdings))
	for i, v := range summary.Holdings {
		holdings[i] = buildValuationResponse(v)
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		UserID:          summary.UserID,
		Holdings:        holdings,
		TotalValue:      money(summary.TotalValue),
		TotalCost:       money(summary.TotalCost),
		TotalPnL:        money(summary.TotalPnL),
		TotalPnLPercent: money(summary.TotalPnLPercent),
		CashBalance:     money(summary.CashBalance),
		ReservedCash:    money(summary.ReservedCash),
	})
}

// Holding handles GET /accounts/{user_id}/portfolio/{symbol}.
func (h *AccountHandler) Holding(w http.ResponseWriter, r *http.Request) {
	v, err := h.portfolioSvc.Holding(chi.URLParam(r, "user_id"), chi.URLParam(r, "symbol"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildValuationResponse(*v))
}

// Orders handles GET /accounts/{user_id}/orders with an optional status
// filter.
func (h *AccountHandler) Orders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))

	orders, err := h.orderSvc.History(chi.URLParam(r, "user_id"), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, orderListResponse{Orders: buildOrderResponses(orders)})
}

// Trades handles GET /accounts/{user_id}/trades, the market order history.
func (h *AccountHandler) Trades(w http.ResponseWriter, r *http.Request) {
	orders, err := h.tradingSvc.Orders(chi.URLParam(r, "user_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, orderListResponse{Orders: buildOrderResponses(orders)})
}

func buildBalanceResponse(b *service.BalanceResponse) balanceResponse {
	holdings := make([]holdingBalanceResponse, len(b.Holdings))
	for i, h := range b.Holdings {
		holdings[i] = holdingBalanceResponse{
			Symbol:            h.Symbol,
			Quantity:          h.Quantity,
			AverageCost:       money(h.AverageCost),
			ReservedQuantity:  h.ReservedQuantity,
			AvailableQuantity: h.AvailableQuantity,
		}
	}

	return balanceResponse{
		UserID:       b.UserID,
		CashBalance:  money(b.CashBalance),
		ReservedCash: money(b.ReservedCash),
		Holdings:     holdings,
		CreatedAt:    formatTime(b.CreatedAt),
	}
}

func buildValuationResponse(v service.HoldingValuation) holdingValuationResponse {
	return holdingValuationResponse{
		Symbol:       v.Symbol,
		Quantity:     v.Quantity,
		AverageCost:  money(v.AverageCost),
		CurrentPrice: money(v.CurrentPrice),
		MarketValue:  money(v.MarketValue),
		PnL:          money(v.PnL),
		PnLPercent:   money(v.PnLPercent),
	}
}
