package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/customiseme/storefront-api/internal/domain"
)

// RepositoryError describes storage failures with enough granularity for callers
// to map them onto API semantics.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err represents a missing document.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err represents a conflicting write.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err represents a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// CounterRepository hands out monotonically increasing sequence numbers.
type CounterRepository interface {
	// Next atomically increments the named counter and returns the new value.
	Next(ctx context.Context, counterID string) (int64, error)
}

// SettlementResult reports the outcome of marking an order as paid.
// AlreadySettled is set when the order had previously left the pending state,
// in which case the stored document is returned unchanged.
type SettlementResult struct {
	Order          domain.Order
	AlreadySettled bool
}

// StatusUpdate carries an operator-initiated status change and optional
// fulfilment metadata recorded alongside it.
type StatusUpdate struct {
	Status            domain.OrderStatus
	TrackingNumber    string
	Carrier           string
	EstimatedDelivery *time.Time
}

// StatusChange reports the applied transition including the prior status, which
// callers use to detect edges such as entering the shipped state.
type StatusChange struct {
	Order    domain.Order
	Previous domain.OrderStatus
}

// OrderRepository persists orders and performs the transactional state changes
// the settlement and fulfilment flows depend on.
type OrderRepository interface {
	// Create allocates the next order sequence number and inserts the order
	// document in one atomic transaction. deriveID maps the allocated
	// sequence to the public order identifier; the counter increment and the
	// document write either both happen or neither does.
	Create(ctx context.Context, order domain.Order, deriveID func(seq int64) string) (domain.Order, error)
	// FindByID loads an order by its public identifier.
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// AttachPaymentSession records the payment session opened for the order.
	AttachPaymentSession(ctx context.Context, orderID, sessionID string) error
	// MarkPaid transitions a pending order to paid exactly once. Orders in
	// any other state are left untouched and reported as AlreadySettled.
	MarkPaid(ctx context.Context, orderID, paymentSessionID string, paidAt time.Time) (SettlementResult, error)
	// ApplyStatus updates the order status and fulfilment metadata atomically,
	// returning the previous status.
	ApplyStatus(ctx context.Context, orderID string, update StatusUpdate) (StatusChange, error)
}

// ProductRepository exposes read access to the catalogue used for price verification.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}
