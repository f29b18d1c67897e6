package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

func newTestWebhookService() (*WebhookService, *store.AccountStore) {
	accounts := store.NewAccountStore()
	ws := store.NewWebhookStore()
	svc := NewWebhookService(ws, accounts, 5*time.Second, discardLogger())
	return svc, accounts
}

func registerAccount(t *testing.T, accounts *store.AccountStore, id string) {
	t.Helper()
	err := accounts.Create(&domain.Account{
		UserID:    id,
		Balance:   dec("100000"),
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
}

// --- Upsert tests ---

func TestUpsert_Success_NewSubscriptions(t *testing.T) {
	svc, accounts := newTestWebhookService()
	registerAccount(t, accounts, "user-1")

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/hooks",
		Events: []string{"order.filled", "order.expired"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for new subscriptions")
	}
	if len(webhooks) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(webhooks))
	}
	if webhooks[0].Event != "order.filled" {
		t.Errorf("got event %q, want %q", webhooks[0].Event, "order.filled")
	}
	if webhooks[1].Event != "order.expired" {
		t.Errorf("got event %q, want %q", webhooks[1].Event, "order.expired")
	}
	if webhooks[0].URL != "https://example.com/hooks" {
		t.Errorf("got URL %q, want %q", webhooks[0].URL, "https://example.com/hooks")
	}
}

func TestUpsert_Success_UpdateExistingURL(t *testing.T) {
	svc, accounts := newTestWebhookService()
	registerAccount(t, accounts, "user-1")

	first, _, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/old",
		Events: []string{"order.filled"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/new",
		Events: []string{"order.filled"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false for URL update")
	}
	if len(webhooks) != 1 {
		t.Fatalf("got %d webhooks, want 1", len(webhooks))
	}
	if webhooks[0].URL != "https://example.com/new" {
		t.Errorf("got URL %q, want %q", webhooks[0].URL, "https://example.com/new")
	}
	if webhooks[0].WebhookID != first[0].WebhookID {
		t.Error("webhook_id should be stable across URL updates")
	}
}

func TestUpsert_Success_MixNewAndExisting(t *testing.T) {
	svc, accounts := newTestWebhookService()
	registerAccount(t, accounts, "user-1")

	if _, _, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/hooks",
		Events: []string{"order.filled"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/hooks",
		Events: []string{"order.filled", "order.cancelled"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true when at least one new subscription")
	}
	if len(webhooks) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(webhooks))
	}
}

func TestUpsert_Success_DeduplicateEvents(t *testing.T) {
	svc, accounts := newTestWebhookService()
	registerAccount(t, accounts, "user-1")

	webhooks, _, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/hooks",
		Events: []string{"order.filled", "order.filled", "order.filled"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(webhooks) != 1 {
		t.Fatalf("got %d webhooks, want 1 (duplicates should be deduplicated)", len(webhooks))
	}
}

func TestUpsert_AccountNotFound(t *testing.T) {
	svc, _ := newTestWebhookService()

	_, _, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "nonexistent",
		URL:    "https://example.com/hooks",
		Events: []string{"order.filled"},
	})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got error %v, want ErrAccountNotFound", err)
	}
}

func TestUpsert_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		events  []string
		wantMsg string
	}{
		{"empty url", "", []string{"order.filled"}, "url is required"},
		{"http scheme", "http://example.com/hooks", []string{"order.filled"}, "url must use https scheme"},
		{"too long", "https://example.com/" + strings.Repeat("a", 2049), []string{"order.filled"}, "url must be at most 2048 characters"},
		{"not a url", "not-a-url", []string{"order.filled"}, "url must be a valid absolute URL"},
		{"no events", "https://example.com/hooks", []string{}, "events must be a non-empty array"},
		{
			"unknown event", "https://example.com/hooks", []string{"trade.executed"},
			"Unknown event type: trade.executed. Must be one of: order.filled, order.expired, order.cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, accounts := newTestWebhookService()
			registerAccount(t, accounts, "user-1")

			_, _, err := svc.Upsert(UpsertWebhookRequest{UserID: "user-1", URL: tt.url, Events: tt.events})
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if ve.Message != tt.wantMsg {
				t.Errorf("got message %q, want %q", ve.Message, tt.wantMsg)
			}
		})
	}
}

// --- List / Delete tests ---

func TestList_EventFilter(t *testing.T) {
	svc, accounts := newTestWebhookService()
	registerAccount(t, accounts, "user-1")

	if _, _, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/hooks",
		Events: []string{"order.filled", "order.expired"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		event string
		want  int
	}{
		{"", 2},
		{"order.filled", 1},
		{"order.cancelled", 0},
	}
	for _, tt := range tests {
		webhooks, err := svc.List("user-1", tt.event)
		if err != nil {
			t.Fatalf("List(%q): unexpected error: %v", tt.event, err)
		}
		if len(webhooks) != tt.want {
			t.Errorf("List(%q) got %d webhooks, want %d", tt.event, len(webhooks), tt.want)
		}
	}

	var ve *domain.ValidationError
	if _, err := svc.List("user-1", "trade.executed"); !errors.As(err, &ve) {
		t.Errorf("got error %v, want ValidationError", err)
	}
}

func TestList_AccountNotFound(t *testing.T) {
	svc, _ := newTestWebhookService()

	if _, err := svc.List("nonexistent", ""); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got error %v, want ErrAccountNotFound", err)
	}
}

func TestDelete_OwnerOnly(t *testing.T) {
	svc, accounts := newTestWebhookService()
	registerAccount(t, accounts, "user-1")
	registerAccount(t, accounts, "user-2")

	webhooks, _, err := svc.Upsert(UpsertWebhookRequest{
		UserID: "user-1",
		URL:    "https://example.com/hooks",
		Events: []string{"order.filled"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := webhooks[0].WebhookID

	if err := svc.Delete("user-2", id); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("delete by another user: got %v, want ErrWebhookNotFound", err)
	}
	if err := svc.Delete("user-1", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := svc.List("user-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("got %d webhooks after delete, want 0", len(list))
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestWebhookService()

	if err := svc.Delete("user-1", "nonexistent-id"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Errorf("got error %v, want ErrWebhookNotFound", err)
	}
}

// --- Notify tests ---

// newDeliveryServer returns a TLS server recording every delivery and a
// WebhookService whose client trusts it.
func newDeliveryServer(t *testing.T, status int) (*httptest.Server, *WebhookService, *store.WebhookStore, func() ([]map[string]any, []http.Header)) {
	t.Helper()
	var mu sync.Mutex
	var received []map[string]any
	var headers []http.Header

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		mu.Lock()
		received = append(received, payload)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	ws := store.NewWebhookStore()
	svc := &WebhookService{
		store:    ws,
		accounts: store.NewAccountStore(),
		client:   server.Client(),
		logger:   discardLogger(),
	}

	return server, svc, ws, func() ([]map[string]any, []http.Header) {
		mu.Lock()
		defer mu.Unlock()
		return received, headers
	}
}

func filledOrder() *domain.Order {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	return &domain.Order{
		OrderID:    "ord-1",
		UserID:     "user-1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Kind:       domain.OrderKindStopLimit,
		Quantity:   10,
		Price:      dec("148.50"),
		LimitPrice: ndec("149"),
		StopPrice:  ndec("148"),
		Status:     domain.OrderStatusFilled,
		FilledAt:   &now,
	}
}

func TestNotify_OrderFilled_SendsCorrectPayload(t *testing.T) {
	server, svc, ws, received := newDeliveryServer(t, http.StatusOK)

	ws.Upsert(&domain.Webhook{
		WebhookID: "wh-1",
		UserID:    "user-1",
		Event:     domain.EventOrderFilled,
		URL:       server.URL + "/hooks",
	})

	svc.Notify(domain.EventOrderFilled, filledOrder())
	svc.Wait()

	payloads, headers := received()
	if len(payloads) != 1 {
		t.Fatalf("got %d requests, want 1", len(payloads))
	}

	payload := payloads[0]
	if payload["event"] != "order.filled" {
		t.Errorf("got event %v, want order.filled", payload["event"])
	}
	data, ok := payload["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data to be a map")
	}
	if data["order_id"] != "ord-1" || data["user_id"] != "user-1" {
		t.Errorf("got order_id %v user_id %v", data["order_id"], data["user_id"])
	}
	if data["order_type"] != "stop_limit" || data["status"] != "filled" {
		t.Errorf("got order_type %v status %v", data["order_type"], data["status"])
	}
	if data["price"] != 148.5 {
		t.Errorf("got price %v, want 148.5", data["price"])
	}
	if data["limit_price"] != 149.0 || data["stop_price"] != 148.0 {
		t.Errorf("got limit_price %v stop_price %v", data["limit_price"], data["stop_price"])
	}
	if data["quantity"] != float64(10) {
		t.Errorf("got quantity %v, want 10", data["quantity"])
	}

	h := headers[0]
	if h.Get("X-Webhook-Id") != "wh-1" {
		t.Errorf("got X-Webhook-Id %q, want %q", h.Get("X-Webhook-Id"), "wh-1")
	}
	if h.Get("X-Event-Type") != "order.filled" {
		t.Errorf("got X-Event-Type %q, want %q", h.Get("X-Event-Type"), "order.filled")
	}
	if h.Get("X-Delivery-Id") == "" {
		t.Error("expected X-Delivery-Id header to be set")
	}
	if h.Get("Content-Type") != "application/json" {
		t.Errorf("got Content-Type %q, want %q", h.Get("Content-Type"), "application/json")
	}
}

func TestNotify_LimitOrder_NullStopPrice(t *testing.T) {
	server, svc, ws, received := newDeliveryServer(t, http.StatusOK)

	ws.Upsert(&domain.Webhook{
		WebhookID: "wh-1",
		UserID:    "user-1",
		Event:     domain.EventOrderExpired,
		URL:       server.URL,
	})

	o := filledOrder()
	o.Kind = domain.OrderKindLimit
	o.StopPrice.Valid = false
	o.Status = domain.OrderStatusExpired
	svc.Notify(domain.EventOrderExpired, o)
	svc.Wait()

	payloads, _ := received()
	if len(payloads) != 1 {
		t.Fatalf("got %d requests, want 1", len(payloads))
	}
	data := payloads[0]["data"].(map[string]any)
	if v, ok := data["stop_price"]; !ok || v != nil {
		t.Errorf("got stop_price %v (present=%v), want null", v, ok)
	}
}

func TestNotify_NoSubscription_NoRequest(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ws := store.NewWebhookStore()
	svc := &WebhookService{store: ws, accounts: store.NewAccountStore(), client: server.Client(), logger: discardLogger()}

	// Subscribed to a different event only.
	ws.Upsert(&domain.Webhook{WebhookID: "wh-1", UserID: "user-1", Event: domain.EventOrderCancelled, URL: server.URL})

	svc.Notify(domain.EventOrderFilled, filledOrder())
	svc.Notify(domain.EventOrderExpired, filledOrder())
	svc.Wait()

	if n := count.Load(); n != 0 {
		t.Errorf("got %d requests, want 0 (no matching subscription)", n)
	}
}

func TestNotify_ServerError_SilentlyIgnored(t *testing.T) {
	server, svc, ws, received := newDeliveryServer(t, http.StatusInternalServerError)

	ws.Upsert(&domain.Webhook{
		WebhookID: "wh-err",
		UserID:    "user-1",
		Event:     domain.EventOrderFilled,
		URL:       server.URL + "/hooks",
	})

	svc.Notify(domain.EventOrderFilled, filledOrder())
	svc.Wait()

	if payloads, _ := received(); len(payloads) != 1 {
		t.Errorf("got %d requests, want 1", len(payloads))
	}
}
