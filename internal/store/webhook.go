package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhook subscriptions.
// At most one subscription exists per (user_id, event).
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook            // webhook_id → webhook
	byUser   map[string]map[string]*domain.Webhook // user_id → event → webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks: make(map[string]*domain.Webhook),
		byUser:   make(map[string]map[string]*domain.Webhook),
	}
}

// Upsert stores w unless the user already subscribes to w.Event, in which
// case the existing subscription keeps its id and takes the new URL.
// It returns the stored subscription and whether it was newly created.
func (s *WebhookStore) Upsert(w *domain.Webhook) (*domain.Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.byUser[w.UserID]
	if existing, ok := events[w.Event]; ok {
		if existing.URL != w.URL {
			existing.URL = w.URL
			existing.UpdatedAt = w.UpdatedAt
		}
		c := *existing
		return &c, false
	}

	if events == nil {
		events = make(map[string]*domain.Webhook)
		s.byUser[w.UserID] = events
	}
	stored := *w
	s.webhooks[w.WebhookID] = &stored
	events[w.Event] = &stored

	c := stored
	return &c, true
}

// Get returns a copy of the webhook, or domain.ErrWebhookNotFound.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	c := *w
	return &c, nil
}

// ListByUser returns the user's subscriptions ordered by event name.
func (s *WebhookStore) ListByUser(userID string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.byUser[userID]
	result := make([]*domain.Webhook, 0, len(events))
	for _, w := range events {
		c := *w
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Event < result[j].Event
	})
	return result
}

// Subscription returns the user's subscription to event, if any.
func (s *WebhookStore) Subscription(userID, event string) (*domain.Webhook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.byUser[userID][event]
	if !ok {
		return nil, false
	}
	c := *w
	return &c, true
}

// Delete removes a subscription by ID. It returns domain.ErrWebhookNotFound
// if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.webhooks, id)

	events := s.byUser[w.UserID]
	delete(events, w.Event)
	if len(events) == 0 {
		delete(s.byUser, w.UserID)
	}
	return nil
}
