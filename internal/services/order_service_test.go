package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/platform/config"
)

func testOrdersConfig() config.OrdersConfig {
	return config.OrdersConfig{IDPrefix: "ORD", SequencePad: 3}
}

func validCheckoutRequest() CheckoutRequest {
	return CheckoutRequest{
		Email: "ada@example.com",
		Items: []CheckoutItemInput{{ProductID: "P1", Quantity: 3}},
		ShippingAddress: domain.Address{
			Name:     "Ada Lovelace",
			Street:   "1 Analytical Way",
			City:     "London",
			Postcode: "EC1A 1AA",
			Country:  "GB",
		},
		SuccessURL: "https://shop.example.com/thanks",
		CancelURL:  "https://shop.example.com/cart",
	}
}

func newTestOrderService(t *testing.T, repo *memOrderRepo, checkout *stubCheckoutProvider) OrderService {
	t.Helper()
	pricing := newTestPricingService(t, map[string]domain.Product{
		"P1": {Name: "Classic Mug", UnitPrice: 1000},
	})
	svc, err := NewOrderService(OrderServiceDeps{
		Pricing:  pricing,
		Orders:   repo,
		Checkout: checkout,
		Config:   testOrdersConfig(),
		Clock: func() time.Time {
			return time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func TestCreateOrderHappyPath(t *testing.T) {
	repo := newMemOrderRepo()
	checkout := &stubCheckoutProvider{}
	svc := newTestOrderService(t, repo, checkout)

	result, err := svc.CreateOrder(context.Background(), validCheckoutRequest())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	idPattern := regexp.MustCompile(`^ORD_001_[0-9A-Z]{5}$`)
	if !idPattern.MatchString(result.Order.ID) {
		t.Fatalf("order id %q does not match %v", result.Order.ID, idPattern)
	}
	if result.Order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %q, want pending", result.Order.Status)
	}
	if result.Order.Total != 4099 {
		t.Fatalf("total = %d, want 4099", result.Order.Total)
	}
	if result.SessionID == "" || result.RedirectURL == "" {
		t.Fatalf("expected payment session, got %+v", result)
	}
	if result.Order.StripeSessionID != result.SessionID {
		t.Fatalf("session %q not recorded on order (%q)", result.SessionID, result.Order.StripeSessionID)
	}

	stored, err := repo.FindByID(context.Background(), result.Order.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.StripeSessionID != result.SessionID {
		t.Fatalf("stored session = %q, want %q", stored.StripeSessionID, result.SessionID)
	}
}

func TestCreateOrderCheckoutLineItems(t *testing.T) {
	repo := newMemOrderRepo()
	checkout := &stubCheckoutProvider{}
	svc := newTestOrderService(t, repo, checkout)

	if _, err := svc.CreateOrder(context.Background(), validCheckoutRequest()); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if len(checkout.requests) != 1 {
		t.Fatalf("expected 1 session request, got %d", len(checkout.requests))
	}
	req := checkout.requests[0]
	if req.IdempotencyKey == "" {
		t.Fatal("expected idempotency key on session request")
	}
	// One product line plus synthetic VAT and Shipping lines.
	if len(req.Items) != 3 {
		t.Fatalf("expected 3 line items, got %d", len(req.Items))
	}
	var total int64
	for _, item := range req.Items {
		total += item.UnitAmount * item.Quantity
	}
	if total != 4099 {
		t.Fatalf("line item total = %d, want order total 4099", total)
	}
	last := req.Items[len(req.Items)-1]
	if last.Name != "Shipping" || last.UnitAmount != 499 {
		t.Fatalf("shipping line = %+v", last)
	}
	// The success redirect carries the order number for the thank-you page.
	if want := "https://shop.example.com/thanks?orderId=" + req.OrderID; req.SuccessURL != want {
		t.Fatalf("success url = %q, want %q", req.SuccessURL, want)
	}
	if req.CancelURL != "https://shop.example.com/cart" {
		t.Fatalf("cancel url = %q", req.CancelURL)
	}
}

func TestCreateOrderSequentialIDs(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newTestOrderService(t, repo, &stubCheckoutProvider{})

	for i, want := range []string{"ORD_001_", "ORD_002_", "ORD_003_"} {
		result, err := svc.CreateOrder(context.Background(), validCheckoutRequest())
		if err != nil {
			t.Fatalf("CreateOrder %d: %v", i, err)
		}
		if got := result.Order.ID[:len(want)]; got != want {
			t.Fatalf("order %d id = %q, want prefix %q", i, result.Order.ID, want)
		}
	}
}

func TestCreateOrderConcurrentIDsUnique(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newTestOrderService(t, repo, &stubCheckoutProvider{})

	const workers = 16
	var wg sync.WaitGroup
	ids := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.CreateOrder(context.Background(), validCheckoutRequest())
			if err != nil {
				errs <- err
				return
			}
			ids <- result.Order.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("CreateOrder: %v", err)
	}
	seen := make(map[string]bool, workers)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate order id %q", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d unique ids, got %d", workers, len(seen))
	}
}

func TestCreateOrderSessionFailureKeepsPendingOrder(t *testing.T) {
	repo := newMemOrderRepo()
	checkout := &stubCheckoutProvider{err: errors.New("stripe is down")}
	svc := newTestOrderService(t, repo, checkout)

	_, err := svc.CreateOrder(context.Background(), validCheckoutRequest())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}

	// The pending order survives the failed session so a settlement retry or a
	// later checkout attempt still has a document to land on.
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.orders) != 1 {
		t.Fatalf("expected 1 stored order, got %d", len(repo.orders))
	}
	for _, order := range repo.orders {
		if order.Status != domain.OrderStatusPending {
			t.Fatalf("stored status = %q, want pending", order.Status)
		}
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestOrderService(t, newMemOrderRepo(), &stubCheckoutProvider{})

	cases := []struct {
		name   string
		mutate func(*CheckoutRequest)
	}{
		{"missing email", func(r *CheckoutRequest) { r.Email = "" }},
		{"malformed email", func(r *CheckoutRequest) { r.Email = "not-an-email" }},
		{"empty cart", func(r *CheckoutRequest) { r.Items = nil }},
		{"missing address name", func(r *CheckoutRequest) { r.ShippingAddress.Name = "" }},
		{"missing street", func(r *CheckoutRequest) { r.ShippingAddress.Street = "" }},
		{"missing city", func(r *CheckoutRequest) { r.ShippingAddress.City = "" }},
		{"missing postcode", func(r *CheckoutRequest) { r.ShippingAddress.Postcode = "" }},
		{"missing country", func(r *CheckoutRequest) { r.ShippingAddress.Country = "" }},
		{"relative success url", func(r *CheckoutRequest) { r.SuccessURL = "/thanks" }},
		{"missing cancel url", func(r *CheckoutRequest) { r.CancelURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCheckoutRequest()
			tc.mutate(&req)
			if _, err := svc.CreateOrder(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCreateOrderPropagatesPricingErrors(t *testing.T) {
	pricing := newTestPricingService(t, map[string]domain.Product{})
	svc, err := NewOrderService(OrderServiceDeps{
		Pricing:  pricing,
		Orders:   newMemOrderRepo(),
		Checkout: &stubCheckoutProvider{},
		Config:   testOrdersConfig(),
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	if _, err := svc.CreateOrder(context.Background(), validCheckoutRequest()); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestCreateOrderRepositoryUnavailable(t *testing.T) {
	repo := newMemOrderRepo()
	repo.failOps["create"] = &stubRepoError{unavailable: true}
	svc := newTestOrderService(t, repo, &stubCheckoutProvider{})

	if _, err := svc.CreateOrder(context.Background(), validCheckoutRequest()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRandomIDSuffixAlphabet(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-Z]{5}$`)
	for i := 0; i < 64; i++ {
		suffix := randomIDSuffix()
		if !pattern.MatchString(suffix) {
			t.Fatalf("suffix %q does not match %v", suffix, pattern)
		}
	}
}

func TestDeriveOrderIDPadding(t *testing.T) {
	svc := &orderService{cfg: config.OrdersConfig{IDPrefix: "ORD", SequencePad: 3}}
	for _, tc := range []struct {
		seq  int64
		want string
	}{
		{1, "ORD_001_"},
		{42, "ORD_042_"},
		{1234, "ORD_1234_"},
	} {
		id := svc.deriveOrderID(tc.seq)
		if id[:len(tc.want)] != tc.want {
			t.Fatalf("deriveOrderID(%d) = %q, want prefix %q", tc.seq, id, tc.want)
		}
	}
}
