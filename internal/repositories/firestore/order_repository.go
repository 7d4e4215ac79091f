package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/customiseme/storefront-api/internal/domain"
	pfirestore "github.com/customiseme/storefront-api/internal/platform/firestore"
	"github.com/customiseme/storefront-api/internal/repositories"
)

const (
	ordersCollection = "orders"
	orderCounterID   = "orderCounter"
)

// OrderRepository implements repositories.OrderRepository on Firestore. The
// order number doubles as the document id, so uniqueness is enforced by the
// backend on create.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[domain.Order]
	counters *CounterRepository
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, counters *CounterRepository) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	if counters == nil {
		return nil, errors.New("order repository requires counter repository")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[domain.Order](provider, ordersCollection, nil),
		counters: counters,
	}, nil
}

// Create allocates the next sequence number and inserts the order document in
// a single transaction. A crash between the counter increment and the order
// write cannot leave the two out of step; contention retries rerun both.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order, deriveID func(seq int64) string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if deriveID == nil {
		return domain.Order{}, errors.New("order id derivation is required")
	}

	var created domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		seq, err := r.counters.NextInTx(ctx, tx, orderCounterID)
		if err != nil {
			return err
		}

		id := strings.TrimSpace(deriveID(seq))
		if id == "" {
			return errors.New("derived order id is empty")
		}

		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Create(ref, order); err != nil {
			return err
		}

		created = order
		created.ID = id
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.create", err)
	}
	return created, nil
}

// AttachPaymentSession records the payment session id on the order. This is a
// best-effort annotation; settlement writes the authoritative value again.
func (r *OrderRepository) AttachPaymentSession(ctx context.Context, orderID, sessionID string) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session id is required")
	}
	_, err := r.orders.Update(ctx, strings.TrimSpace(orderID), []firestore.Update{
		{Path: "stripeSessionId", Value: sessionID},
	})
	return err
}

// FindByID loads an order by its public identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	order := doc.Data
	order.ID = doc.ID
	return order, nil
}

// MarkPaid transitions a pending order to paid inside a transaction. Orders
// that already left the pending state are returned unchanged with
// AlreadySettled set, which makes webhook redelivery harmless and prevents
// settlement from moving an order backward.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID, paymentSessionID string, paidAt time.Time) (repositories.SettlementResult, error) {
	if r == nil || r.provider == nil {
		return repositories.SettlementResult{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return repositories.SettlementResult{}, errors.New("order id is required")
	}

	var result repositories.SettlementResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var order domain.Order
		if err := snapshot.DataTo(&order); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}
		order.ID = snapshot.Ref.ID

		if order.Status != domain.OrderStatusPending {
			result = repositories.SettlementResult{Order: order, AlreadySettled: true}
			return nil
		}

		when := paidAt.UTC()
		updates := []firestore.Update{
			{Path: "status", Value: string(domain.OrderStatusPaid)},
			{Path: "paidAt", Value: when},
		}
		if trimmed := strings.TrimSpace(paymentSessionID); trimmed != "" {
			updates = append(updates, firestore.Update{Path: "stripeSessionId", Value: trimmed})
			order.StripeSessionID = trimmed
		}
		if err := tx.Update(ref, updates); err != nil {
			return err
		}

		order.Status = domain.OrderStatusPaid
		order.PaidAt = &when
		result = repositories.SettlementResult{Order: order}
		return nil
	})
	if err != nil {
		return repositories.SettlementResult{}, pfirestore.WrapError("orders.markPaid", err)
	}
	return result, nil
}

// ApplyStatus updates the order status and fulfilment metadata atomically,
// returning the previous status so callers can detect transition edges.
func (r *OrderRepository) ApplyStatus(ctx context.Context, orderID string, update repositories.StatusUpdate) (repositories.StatusChange, error) {
	if r == nil || r.provider == nil {
		return repositories.StatusChange{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return repositories.StatusChange{}, errors.New("order id is required")
	}
	if _, ok := domain.ParseOrderStatus(string(update.Status)); !ok {
		return repositories.StatusChange{}, fmt.Errorf("invalid order status %q", update.Status)
	}

	var change repositories.StatusChange
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var order domain.Order
		if err := snapshot.DataTo(&order); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}
		order.ID = snapshot.Ref.ID
		previous := order.Status

		updates := []firestore.Update{
			{Path: "status", Value: string(update.Status)},
		}
		if trimmed := strings.TrimSpace(update.TrackingNumber); trimmed != "" {
			updates = append(updates, firestore.Update{Path: "trackingNumber", Value: trimmed})
			order.TrackingNumber = trimmed
		}
		if trimmed := strings.TrimSpace(update.Carrier); trimmed != "" {
			updates = append(updates, firestore.Update{Path: "carrier", Value: trimmed})
			order.Carrier = trimmed
		}
		if update.EstimatedDelivery != nil {
			when := update.EstimatedDelivery.UTC()
			updates = append(updates, firestore.Update{Path: "estimatedDelivery", Value: when})
			order.EstimatedDelivery = &when
		}
		if err := tx.Update(ref, updates); err != nil {
			return err
		}

		order.Status = update.Status
		change = repositories.StatusChange{Order: order, Previous: previous}
		return nil
	})
	if err != nil {
		return repositories.StatusChange{}, pfirestore.WrapError("orders.applyStatus", err)
	}
	return change, nil
}
