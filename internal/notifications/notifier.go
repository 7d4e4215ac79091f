package notifications

import (
	"context"

	"github.com/customiseme/storefront-api/internal/domain"
)

// Kind names the email job variants the downstream worker understands.
type Kind string

const (
	// KindOrderConfirmation is sent to the customer once payment settles.
	KindOrderConfirmation Kind = "order-confirmation"
	// KindShippingUpdate is sent when an order first enters the shipped state.
	KindShippingUpdate Kind = "shipping-update"
	// KindWelcome greets first-time account holders after their first paid order.
	KindWelcome Kind = "welcome"
	// KindAdminAlert notifies operators of paid orders awaiting fulfilment.
	KindAdminAlert Kind = "admin-alert"
)

// Message is the payload handed to the email worker. Recipient and order
// details are embedded so the worker needs no database access.
type Message struct {
	Kind      Kind              `json:"kind"`
	Recipient string            `json:"recipient"`
	OrderID   string            `json:"orderId"`
	Order     *domain.Order     `json:"order,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Notifier enqueues email jobs for asynchronous delivery. Publish failures
// must not fail the triggering operation; callers log and continue.
type Notifier interface {
	Publish(ctx context.Context, msg Message) (string, error)
}

// NopNotifier discards all messages. Used when notifications are not configured.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(context.Context, Message) (string, error) { return "", nil }
