package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// ErrMissingOrderID signals a checkout event whose metadata does not carry an
// order reference. Such events cannot be settled.
var ErrMissingOrderID = errors.New("payments: checkout event carries no order id")

// StripeEventVerifier authenticates Stripe webhook payloads against the
// endpoint signing secret and extracts settlement-relevant fields.
type StripeEventVerifier struct {
	secret    string
	tolerance time.Duration
}

// StripeVerifierOption customises StripeEventVerifier behaviour.
type StripeVerifierOption func(*StripeEventVerifier)

// WithSignatureTolerance overrides the allowed clock skew for signed payloads.
func WithSignatureTolerance(d time.Duration) StripeVerifierOption {
	return func(v *StripeEventVerifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// NewStripeEventVerifier constructs a verifier bound to the webhook signing secret.
func NewStripeEventVerifier(secret string, opts ...StripeVerifierOption) (*StripeEventVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("payments: webhook signing secret is required")
	}
	v := &StripeEventVerifier{
		secret:    secret,
		tolerance: webhook.DefaultTolerance,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// VerifyCheckoutCompleted validates the payload signature and decodes the
// event. The boolean result reports whether the event is a completed checkout;
// other event types verify successfully but are not relevant here.
func (v *StripeEventVerifier) VerifyCheckoutCompleted(payload []byte, signatureHeader string) (CompletedCheckout, bool, error) {
	if v == nil {
		return CompletedCheckout{}, false, errors.New("payments: verifier is nil")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance: v.tolerance,
	})
	if err != nil {
		return CompletedCheckout{}, false, fmt.Errorf("payments: verify webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return CompletedCheckout{}, false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return CompletedCheckout{}, false, fmt.Errorf("payments: decode checkout session: %w", err)
	}

	orderID := strings.TrimSpace(session.Metadata["orderId"])
	if orderID == "" {
		return CompletedCheckout{}, false, ErrMissingOrderID
	}

	completed := time.Unix(event.Created, 0).UTC()
	return CompletedCheckout{
		SessionID:     session.ID,
		OrderID:       orderID,
		PaymentStatus: string(session.PaymentStatus),
		Completed:     completed,
	}, true, nil
}
