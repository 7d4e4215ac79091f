package payments

import (
	"context"
	"time"
)

// CheckoutLineItem is a display line forwarded to the payment provider. The
// amounts are server-verified before they reach this package.
type CheckoutLineItem struct {
	Name        string
	Description string
	SKU         string
	Quantity    int64
	UnitAmount  int64
}

// CheckoutSessionRequest carries everything needed to open a hosted payment page.
type CheckoutSessionRequest struct {
	OrderID        string
	CustomerEmail  string
	Currency       string
	SuccessURL     string
	CancelURL      string
	Items          []CheckoutLineItem
	Metadata       map[string]string
	IdempotencyKey string
}

// CheckoutSession is the provider-issued session the customer is redirected to.
type CheckoutSession struct {
	ID          string
	RedirectURL string
	ExpiresAt   time.Time
}

// CheckoutProvider opens hosted payment sessions with an external PSP.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}

// CompletedCheckout is the verified payload of a successful checkout event.
type CompletedCheckout struct {
	SessionID     string
	OrderID       string
	PaymentStatus string
	Completed     time.Time
}

// EventVerifier authenticates and decodes provider webhook payloads.
type EventVerifier interface {
	VerifyCheckoutCompleted(payload []byte, signatureHeader string) (CompletedCheckout, bool, error)
}
