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
	"github.com/customiseme/storefront-api/internal/platform/auth"
	"github.com/customiseme/storefront-api/internal/repositories"
	"github.com/customiseme/storefront-api/internal/services"
)

type stubStatusService struct {
	lastOrderID string
	lastRequest services.StatusChangeRequest
	change      repositories.StatusChange
	err         error
}

func (s *stubStatusService) UpdateStatus(_ context.Context, orderID string, req services.StatusChangeRequest) (repositories.StatusChange, error) {
	s.lastOrderID = orderID
	s.lastRequest = req
	if s.err != nil {
		return repositories.StatusChange{}, s.err
	}
	return s.change, nil
}

func newAdminRouter(svc services.StatusService) chi.Router {
	r := chi.NewRouter()
	NewAdminOrderHandlers(svc).Routes(r)
	return r
}

func TestAdminUpdateStatusSuccess(t *testing.T) {
	svc := &stubStatusService{
		change: repositories.StatusChange{
			Order: domain.Order{
				ID:             "ORD_001_AB12C",
				Status:         domain.OrderStatusShipped,
				TrackingNumber: "RM123456789GB",
				Carrier:        "Royal Mail",
			},
			Previous: domain.OrderStatusProcessing,
		},
	}

	body := `{"status":"shipped","trackingNumber":"RM123456789GB","carrier":"Royal Mail","estimatedDelivery":"2024-03-08T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPatch, "/orders/ORD_001_AB12C/status", strings.NewReader(body))
	rr := httptest.NewRecorder()
	newAdminRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Order          orderPayload `json:"order"`
		PreviousStatus string       `json:"previousStatus"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.Status != "shipped" {
		t.Fatalf("status = %q", resp.Order.Status)
	}
	if resp.PreviousStatus != "processing" {
		t.Fatalf("previous = %q", resp.PreviousStatus)
	}

	if svc.lastOrderID != "ORD_001_AB12C" {
		t.Fatalf("service order id = %q", svc.lastOrderID)
	}
	if svc.lastRequest.Status != domain.OrderStatusShipped {
		t.Fatalf("service status = %q", svc.lastRequest.Status)
	}
	wantETA := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)
	if svc.lastRequest.EstimatedDelivery == nil || !svc.lastRequest.EstimatedDelivery.Equal(wantETA) {
		t.Fatalf("eta = %v, want %v", svc.lastRequest.EstimatedDelivery, wantETA)
	}
}

func TestAdminUpdateStatusUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/orders/ORD_001_AB12C/status", strings.NewReader(`{"status":"dispatched"}`))
	rr := httptest.NewRecorder()
	newAdminRouter(&stubStatusService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminUpdateStatusBadTimestamp(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/orders/ORD_001_AB12C/status", strings.NewReader(`{"status":"shipped","estimatedDelivery":"next friday"}`))
	rr := httptest.NewRecorder()
	newAdminRouter(&stubStatusService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminUpdateStatusOrderNotFound(t *testing.T) {
	svc := &stubStatusService{err: services.ErrOrderNotFound}
	req := httptest.NewRequest(http.MethodPatch, "/orders/ORD_999_ZZZZZ/status", strings.NewReader(`{"status":"shipped"}`))
	rr := httptest.NewRecorder()
	newAdminRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminRoutesRequireAPIKey(t *testing.T) {
	svc := &stubStatusService{
		change: repositories.StatusChange{Order: domain.Order{ID: "ORD_001_AB12C", Status: domain.OrderStatusShipped}},
	}

	r := chi.NewRouter()
	r.Route("/admin", func(group chi.Router) {
		group.Use(auth.RequireAPIKeyMiddleware("X-Admin-Api-Key", "sekrit"))
		NewAdminOrderHandlers(svc).Routes(group)
	})

	body := `{"status":"shipped"}`

	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ORD_001_AB12C/status", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected status 401, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, "/admin/orders/ORD_001_AB12C/status", strings.NewReader(body))
	req.Header.Set("X-Admin-Api-Key", "wrong")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected status 401, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, "/admin/orders/ORD_001_AB12C/status", strings.NewReader(body))
	req.Header.Set("X-Admin-Api-Key", "sekrit")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("valid key: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
