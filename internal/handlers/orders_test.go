package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/services"
)

type stubLookupService struct {
	lastOrderID string
	lastEmail   string
	tracked     services.TrackedOrder
	err         error
}

func (s *stubLookupService) TrackOrder(_ context.Context, orderID, email string) (services.TrackedOrder, error) {
	s.lastOrderID = orderID
	s.lastEmail = email
	if s.err != nil {
		return services.TrackedOrder{}, s.err
	}
	return s.tracked, nil
}

func newOrderRouter(svc services.LookupService) chi.Router {
	r := chi.NewRouter()
	NewOrderHandlers(svc).Routes(r)
	return r
}

func TestTrackOrderSuccess(t *testing.T) {
	eta := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)
	svc := &stubLookupService{
		tracked: services.TrackedOrder{
			Order: domain.Order{
				ID:                "ORD_001_AB12C",
				Email:             "ada@example.com",
				Total:             4099,
				Status:            domain.OrderStatusShipped,
				TrackingNumber:    "RM123456789GB",
				Carrier:           "Royal Mail",
				EstimatedDelivery: &eta,
				CreatedAt:         time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC),
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/track", strings.NewReader(`{"orderId":"ORD_001_AB12C","email":"ada@example.com"}`))
	rr := httptest.NewRecorder()
	newOrderRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Order map[string]any `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Order["id"] != "ORD_001_AB12C" {
		t.Fatalf("order id = %v", body.Order["id"])
	}
	if body.Order["trackingNumber"] != "RM123456789GB" {
		t.Fatalf("tracking = %v", body.Order["trackingNumber"])
	}
	if body.Order["estimatedDelivery"] != "2024-03-08T00:00:00Z" {
		t.Fatalf("eta = %v", body.Order["estimatedDelivery"])
	}
	// Tracking callers are unauthenticated; the projection must not leak
	// contact details or line items.
	for _, field := range []string{"email", "items", "shippingAddress", "subtotal"} {
		if _, leaked := body.Order[field]; leaked {
			t.Fatalf("tracking response leaked %q", field)
		}
	}

	if svc.lastOrderID != "ORD_001_AB12C" || svc.lastEmail != "ada@example.com" {
		t.Fatalf("service called with (%q, %q)", svc.lastOrderID, svc.lastEmail)
	}
}

func TestTrackOrderNotFound(t *testing.T) {
	svc := &stubLookupService{err: services.ErrOrderNotFound}

	req := httptest.NewRequest(http.MethodPost, "/track", strings.NewReader(`{"orderId":"ORD_999_ZZZZZ","email":"ada@example.com"}`))
	rr := httptest.NewRecorder()
	newOrderRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "order_not_found" {
		t.Fatalf("error code = %v", body["error"])
	}
}

func TestTrackOrderInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/track", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	newOrderRouter(&stubLookupService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestTrackOrderServiceMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/track", strings.NewReader(`{"orderId":"x","email":"y@example.com"}`))
	rr := httptest.NewRecorder()
	newOrderRouter(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
