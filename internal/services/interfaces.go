package services

import (
	"context"
	"errors"
	"time"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/repositories"
)

var (
	// ErrInvalidInput indicates the caller supplied a malformed request.
	ErrInvalidInput = errors.New("services: invalid input")
	// ErrUnknownProduct indicates a checkout line referenced a product that does not exist.
	ErrUnknownProduct = errors.New("services: unknown product")
	// ErrInsufficientStock indicates a checkout line exceeds the available stock.
	ErrInsufficientStock = errors.New("services: insufficient stock")
	// ErrOrderNotFound is returned for lookups that must not reveal whether the
	// order exists. A wrong email and a missing order produce this same error.
	ErrOrderNotFound = errors.New("services: order not found")
	// ErrBackendUnavailable indicates a transient storage or provider outage.
	ErrBackendUnavailable = errors.New("services: backend unavailable")
)

// CheckoutItemInput is a single client-submitted line. It intentionally
// carries no prices; all amounts are derived from the catalogue.
type CheckoutItemInput struct {
	ProductID     string
	Quantity      int64
	Customization map[string]string
}

// PricedOrder is the server-side pricing of a checkout request, in minor units.
type PricedOrder struct {
	Items    []domain.OrderItem
	Subtotal int64
	Tax      int64
	Shipping int64
	Total    int64
	Currency string
}

// PricingService derives authoritative prices for checkout submissions.
type PricingService interface {
	PriceItems(ctx context.Context, items []CheckoutItemInput) (PricedOrder, error)
}

// CheckoutRequest is a validated checkout submission.
type CheckoutRequest struct {
	Email           string
	UserID          string
	Items           []CheckoutItemInput
	ShippingAddress domain.Address
	SuccessURL      string
	CancelURL       string
}

// CheckoutResult reports the created order and the payment session the
// customer is redirected to.
type CheckoutResult struct {
	Order       domain.Order
	SessionID   string
	RedirectURL string
}

// OrderService owns order creation: price verification, id allocation,
// persistence, and opening the payment session.
type OrderService interface {
	CreateOrder(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
}

// SettlementOutcome reports what a settlement attempt did.
type SettlementOutcome struct {
	Order       domain.Order
	AlreadyPaid bool
}

// SettlementService applies verified payment events to orders.
type SettlementService interface {
	SettleCheckout(ctx context.Context, sessionID, orderID string, completedAt time.Time) (SettlementOutcome, error)
}

// StatusChangeRequest is an operator-initiated status update.
type StatusChangeRequest struct {
	Status            domain.OrderStatus
	TrackingNumber    string
	Carrier           string
	EstimatedDelivery *time.Time
}

// StatusService applies operator status changes and emits shipping
// notifications on the pending-to-shipped edge.
type StatusService interface {
	UpdateStatus(ctx context.Context, orderID string, req StatusChangeRequest) (repositories.StatusChange, error)
}

// TrackedOrder is the customer-facing projection returned by order tracking.
type TrackedOrder struct {
	Order domain.Order
}

// LookupService resolves customer order-tracking queries without revealing
// which order numbers exist.
type LookupService interface {
	TrackOrder(ctx context.Context, orderID, email string) (TrackedOrder, error)
}
