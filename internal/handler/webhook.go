package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
)

// SubscriptionHandler serves the order event subscriptions of an account.
type SubscriptionHandler struct {
	webhookSvc *service.WebhookService
}

func NewSubscriptionHandler(webhookSvc *service.WebhookService) *SubscriptionHandler {
	return &SubscriptionHandler{webhookSvc: webhookSvc}
}

type subscribeRequest struct {
	UserID string   `json:"user_id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type subscriptionResponse struct {
	WebhookID string `json:"webhook_id"`
	UserID    string `json:"user_id"`
	Event     string `json:"event"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type subscriptionListResponse struct {
	Webhooks []subscriptionResponse `json:"webhooks"`
}

// Subscribe handles POST /webhooks. It answers 201 when at least one event
// gained a new subscription and 200 when every event was already covered.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	subs, created, err := h.webhookSvc.Upsert(service.UpsertWebhookRequest(req))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, buildSubscriptionList(subs))
}

// List handles GET /webhooks?user_id=[&event=].
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	subs, err := h.webhookSvc.List(userID, r.URL.Query().Get("event"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildSubscriptionList(subs))
}

// Unsubscribe handles DELETE /webhooks/{webhook_id}?user_id=.
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.webhookSvc.Delete(userID, chi.URLParam(r, "webhook_id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildSubscriptionList(subs []*domain.Webhook) subscriptionListResponse {
	resp := subscriptionListResponse{Webhooks: make([]subscriptionResponse, 0, len(subs))}
	for _, s := range subs {
		resp.Webhooks = append(resp.Webhooks, subscriptionResponse{
			WebhookID: s.WebhookID,
			UserID:    s.UserID,
			Event:     s.Event,
			URL:       s.URL,
			CreatedAt: formatTime(s.CreatedAt),
			UpdatedAt: formatTime(s.UpdatedAt),
		})
	}
	return resp
}
