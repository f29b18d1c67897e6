package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/google/uuid"
)

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	UserID string
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and order event dispatch.
type WebhookService struct {
	store    *store.WebhookStore
	accounts *store.AccountStore
	client   *http.Client
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	accounts *store.AccountStore,
	webhookTimeout time.Duration,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		store:    webhookStore,
		accounts: accounts,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if !s.accounts.Exists(req.UserID) {
		return nil, false, domain.ErrAccountNotFound
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	events := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !domain.ValidWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: " + strings.Join(webhookEventNames(), ", "),
			}
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(events))

	for _, event := range events {
		w, created := s.store.Upsert(&domain.Webhook{
			WebhookID: uuid.New().String(),
			UserID:    req.UserID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		})
		anyCreated = anyCreated || created
		webhooks = append(webhooks, w)
	}

	return webhooks, anyCreated, nil
}

// List returns the user's subscriptions. A non-empty event narrows the
// result to that event and must name a known event.
func (s *WebhookService) List(userID, event string) ([]*domain.Webhook, error) {
	if !s.accounts.Exists(userID) {
		return nil, domain.ErrAccountNotFound
	}
	if event == "" {
		return s.store.ListByUser(userID), nil
	}
	if !domain.ValidWebhookEvents[event] {
		return nil, &domain.ValidationError{
			Message: "Unknown event type: " + event + ". Must be one of: " + strings.Join(webhookEventNames(), ", "),
		}
	}
	if wh, ok := s.store.Subscription(userID, event); ok {
		return []*domain.Webhook{wh}, nil
	}
	return []*domain.Webhook{}, nil
}

// Delete removes one of the user's subscriptions. A subscription owned by
// someone else is reported as not found.
func (s *WebhookService) Delete(userID, webhookID string) error {
	wh, err := s.store.Get(webhookID)
	if err != nil {
		return err
	}
	if wh.UserID != userID {
		return domain.ErrWebhookNotFound
	}
	return s.store.Delete(webhookID)
}

// orderEventPayload is the JSON payload for every order.* webhook.
type orderEventPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      orderEventData `json:"data"`
}

type orderEventData struct {
	UserID     string   `json:"user_id"`
	OrderID    string   `json:"order_id"`
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	OrderType  string   `json:"order_type"`
	Quantity   int64    `json:"quantity"`
	Price      float64  `json:"price"`
	LimitPrice *float64 `json:"limit_price"`
	StopPrice  *float64 `json:"stop_price"`
	Status     string   `json:"status"`
}

// Notify dispatches event for order to the owning user's subscription, if
// any. Delivery is fire-and-forget.
func (s *WebhookService) Notify(event string, order *domain.Order) {
	wh, ok := s.store.Subscription(order.UserID, event)
	if !ok {
		return
	}

	payload := orderEventPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderEventData{
			UserID:     order.UserID,
			OrderID:    order.OrderID,
			Symbol:     order.Symbol,
			Side:       string(order.Side),
			OrderType:  string(order.Kind),
			Quantity:   order.Quantity,
			Price:      order.Price.InexactFloat64(),
			LimitPrice: nullFloat(order.LimitPrice.Valid, order.LimitPrice.Decimal.InexactFloat64()),
			StopPrice:  nullFloat(order.StopPrice.Valid, order.StopPrice.Decimal.InexactFloat64()),
			Status:     string(order.Status),
		},
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.deliver(wh, event, payload)
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (s *WebhookService) Wait() {
	s.inflight.Wait()
}

// deliver sends the webhook payload via HTTP POST with the required headers.
// Failures are logged at debug level and otherwise ignored.
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()
}

func webhookEventNames() []string {
	return []string{domain.EventOrderFilled, domain.EventOrderExpired, domain.EventOrderCancelled}
}

func nullFloat(valid bool, f float64) *float64 {
	if !valid {
		return nil
	}
	return &f
}
