package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services bundles the services the router exposes.
type Services struct {
	Accounts  *service.AccountService
	Trading   *service.TradingService
	Orders    *service.OrderService
	Portfolio *service.PortfolioService
	Webhooks  *service.WebhookService
}

// NewRouter creates a chi router with all routes registered, request logging,
// panic recovery and Content-Type validation middleware.
func NewRouter(svc Services, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	accountH := NewAccountHandler(svc.Accounts, svc.Orders, svc.Trading, svc.Portfolio)
	tradeH := NewTradeHandler(svc.Trading)
	orderH := NewOrderHandler(svc.Orders)
	stockH := NewStockHandler(svc.Trading, svc.Orders)
	subH := NewSubscriptionHandler(svc.Webhooks)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/accounts", accountH.Open)
	r.Get("/accounts/{user_id}/balance", accountH.Balance)
	r.Get("/accounts/{user_id}/portfolio", accountH.Portfolio)
	r.Get("/accounts/{user_id}/portfolio/{symbol}", accountH.Holding)
	r.Get("/accounts/{user_id}/orders", accountH.Orders)
	r.Get("/accounts/{user_id}/trades", accountH.Trades)

	r.Get("/stocks", stockH.List)
	r.Get("/stocks/{symbol}", stockH.Get)
	r.Put("/stocks/{symbol}/price", stockH.UpdatePrice)

	r.Post("/trades", tradeH.Execute)

	r.Post("/orders", orderH.Place)
	r.Get("/orders/{order_id}", orderH.Get)
	r.Delete("/orders/{order_id}", orderH.Cancel)
	r.Post("/evaluations", orderH.Evaluate)

	r.Post("/webhooks", subH.Subscribe)
	r.Get("/webhooks", subH.List)
	r.Delete("/webhooks/{webhook_id}", subH.Unsubscribe)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
