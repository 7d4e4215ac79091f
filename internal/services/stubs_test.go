package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/notifications"
	"github.com/customiseme/storefront-api/internal/payments"
	"github.com/customiseme/storefront-api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

var errStubNotFound = &stubRepoError{notFound: true}

type stubProductRepo struct {
	products map[string]domain.Product
	err      error
}

func (s *stubProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	product.ID = productID
	return product, nil
}

// memOrderRepo is an in-memory repositories.OrderRepository with the same
// atomicity guarantees the Firestore implementation provides.
type memOrderRepo struct {
	mu      sync.Mutex
	seq     int64
	orders  map[string]domain.Order
	failOps map[string]error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:  make(map[string]domain.Order),
		failOps: make(map[string]error),
	}
}

func (m *memOrderRepo) Create(_ context.Context, order domain.Order, deriveID func(seq int64) string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOps["create"]; err != nil {
		return domain.Order{}, err
	}

	m.seq++
	id := deriveID(m.seq)
	if _, exists := m.orders[id]; exists {
		return domain.Order{}, &stubRepoError{conflict: true}
	}
	order.ID = id
	m.orders[id] = order
	return order, nil
}

func (m *memOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOps["find"]; err != nil {
		return domain.Order{}, err
	}
	order, ok := m.orders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.Order{}, errStubNotFound
	}
	return order, nil
}

func (m *memOrderRepo) AttachPaymentSession(_ context.Context, orderID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOps["attach"]; err != nil {
		return err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return errStubNotFound
	}
	order.StripeSessionID = sessionID
	m.orders[orderID] = order
	return nil
}

func (m *memOrderRepo) MarkPaid(_ context.Context, orderID, paymentSessionID string, paidAt time.Time) (repositories.SettlementResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOps["markPaid"]; err != nil {
		return repositories.SettlementResult{}, err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return repositories.SettlementResult{}, errStubNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return repositories.SettlementResult{Order: order, AlreadySettled: true}, nil
	}
	when := paidAt.UTC()
	order.Status = domain.OrderStatusPaid
	order.PaidAt = &when
	if paymentSessionID != "" {
		order.StripeSessionID = paymentSessionID
	}
	m.orders[orderID] = order
	return repositories.SettlementResult{Order: order}, nil
}

func (m *memOrderRepo) ApplyStatus(_ context.Context, orderID string, update repositories.StatusUpdate) (repositories.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOps["applyStatus"]; err != nil {
		return repositories.StatusChange{}, err
	}
	order, ok := m.orders[orderID]
	if !ok {
		return repositories.StatusChange{}, errStubNotFound
	}
	previous := order.Status
	order.Status = update.Status
	if update.TrackingNumber != "" {
		order.TrackingNumber = update.TrackingNumber
	}
	if update.Carrier != "" {
		order.Carrier = update.Carrier
	}
	if update.EstimatedDelivery != nil {
		when := update.EstimatedDelivery.UTC()
		order.EstimatedDelivery = &when
	}
	m.orders[orderID] = order
	return repositories.StatusChange{Order: order, Previous: previous}, nil
}

type stubCheckoutProvider struct {
	mu       sync.Mutex
	requests []payments.CheckoutSessionRequest
	err      error
}

func (s *stubCheckoutProvider) CreateCheckoutSession(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return payments.CheckoutSession{}, s.err
	}
	s.requests = append(s.requests, req)
	return payments.CheckoutSession{
		ID:          fmt.Sprintf("cs_test_%d", len(s.requests)),
		RedirectURL: "https://checkout.example.com/session",
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
	err      error
}

func (n *recordingNotifier) Publish(_ context.Context, msg notifications.Message) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.messages = append(n.messages, msg)
	return fmt.Sprintf("msg-%d", len(n.messages)), nil
}

func (n *recordingNotifier) byKind(kind notifications.Kind) []notifications.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifications.Message
	for _, msg := range n.messages {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}
