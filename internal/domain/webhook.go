package domain

import "time"

// Webhook events emitted by the order service.
const (
	EventOrderFilled    = "order.filled"
	EventOrderExpired   = "order.expired"
	EventOrderCancelled = "order.cancelled"
)

// ValidWebhookEvents lists the events a user can subscribe to.
var ValidWebhookEvents = map[string]bool{
	EventOrderFilled:    true,
	EventOrderExpired:   true,
	EventOrderCancelled: true,
}

// Webhook represents a user's subscription to an order event.
type Webhook struct {
	WebhookID string
	UserID    string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
