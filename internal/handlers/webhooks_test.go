package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/payments"
	"github.com/customiseme/storefront-api/internal/services"
)

type stubEventVerifier struct {
	completed payments.CompletedCheckout
	relevant  bool
	err       error

	lastPayload   []byte
	lastSignature string
}

func (s *stubEventVerifier) VerifyCheckoutCompleted(payload []byte, signatureHeader string) (payments.CompletedCheckout, bool, error) {
	s.lastPayload = payload
	s.lastSignature = signatureHeader
	return s.completed, s.relevant, s.err
}

type stubSettlementService struct {
	lastSessionID string
	lastOrderID   string
	outcome       services.SettlementOutcome
	err           error
}

func (s *stubSettlementService) SettleCheckout(_ context.Context, sessionID, orderID string, _ time.Time) (services.SettlementOutcome, error) {
	s.lastSessionID = sessionID
	s.lastOrderID = orderID
	if s.err != nil {
		return services.SettlementOutcome{}, s.err
	}
	return s.outcome, nil
}

func newWebhookRouter(verifier payments.EventVerifier, settlement services.SettlementService) chi.Router {
	r := chi.NewRouter()
	NewWebhookHandlers(verifier, settlement).Routes(r)
	return r
}

func postStripeWebhook(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=stub")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestStripeWebhookSettlesOrder(t *testing.T) {
	verifier := &stubEventVerifier{
		completed: payments.CompletedCheckout{
			SessionID: "cs_test_1",
			OrderID:   "ORD_001_AB12C",
			Completed: time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC),
		},
		relevant: true,
	}
	settlement := &stubSettlementService{
		outcome: services.SettlementOutcome{
			Order: domain.Order{ID: "ORD_001_AB12C", Status: domain.OrderStatusPaid},
		},
	}

	rr := postStripeWebhook(t, newWebhookRouter(verifier, settlement), `{"type":"checkout.session.completed"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["orderId"] != "ORD_001_AB12C" {
		t.Fatalf("order id = %v", body["orderId"])
	}
	if body["alreadyPaid"] != false {
		t.Fatalf("alreadyPaid = %v", body["alreadyPaid"])
	}
	if settlement.lastSessionID != "cs_test_1" || settlement.lastOrderID != "ORD_001_AB12C" {
		t.Fatalf("settlement called with (%q, %q)", settlement.lastSessionID, settlement.lastOrderID)
	}
	if verifier.lastSignature != "t=1,v1=stub" {
		t.Fatalf("signature header = %q", verifier.lastSignature)
	}
}

func TestStripeWebhookBadSignature(t *testing.T) {
	verifier := &stubEventVerifier{err: errors.New("signature mismatch")}
	settlement := &stubSettlementService{}

	rr := postStripeWebhook(t, newWebhookRouter(verifier, settlement), `{}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "invalid_signature" {
		t.Fatalf("error code = %v", body["error"])
	}
	if settlement.lastOrderID != "" {
		t.Fatal("settlement must not run on a rejected signature")
	}
}

func TestStripeWebhookIgnoresIrrelevantEvents(t *testing.T) {
	verifier := &stubEventVerifier{relevant: false}
	settlement := &stubSettlementService{}

	rr := postStripeWebhook(t, newWebhookRouter(verifier, settlement), `{"type":"invoice.created"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if settlement.lastOrderID != "" {
		t.Fatal("settlement must not run for irrelevant events")
	}
}

func TestStripeWebhookMissingOrderIDAcknowledged(t *testing.T) {
	verifier := &stubEventVerifier{err: payments.ErrMissingOrderID}
	settlement := &stubSettlementService{}

	rr := postStripeWebhook(t, newWebhookRouter(verifier, settlement), `{"type":"checkout.session.completed"}`)

	// Acknowledge so the provider stops redelivering an unsettleable event.
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestStripeWebhookUnknownOrder(t *testing.T) {
	verifier := &stubEventVerifier{
		completed: payments.CompletedCheckout{SessionID: "cs_test_1", OrderID: "ORD_999_ZZZZZ"},
		relevant:  true,
	}
	settlement := &stubSettlementService{err: services.ErrOrderNotFound}

	rr := postStripeWebhook(t, newWebhookRouter(verifier, settlement), `{}`)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestStripeWebhookBackendUnavailableRetries(t *testing.T) {
	verifier := &stubEventVerifier{
		completed: payments.CompletedCheckout{SessionID: "cs_test_1", OrderID: "ORD_001_AB12C"},
		relevant:  true,
	}
	settlement := &stubSettlementService{err: services.ErrBackendUnavailable}

	rr := postStripeWebhook(t, newWebhookRouter(verifier, settlement), `{}`)

	// Non-2xx makes Stripe redeliver; settlement is idempotent on the retry.
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestStripeWebhookRedeliveryReportsAlreadyPaid(t *testing.T) {
	verifier := &stubEventVerifier{
		completed: payments.CompletedCheckout{SessionID: "cs_test_1", OrderID: "ORD_001_AB12C"},
		relevant:  true,
	}
	settlement := &stubSettlementService{
		outcome: services.SettlementOutcome{
			Order:       domain.Order{ID: "ORD_001_AB12C", Status: domain.OrderStatusPaid},
			AlreadyPaid: true,
		},
	}

	rr := postStripeWebhook(t, newWebhookRouter(verifier, settlement), `{}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["alreadyPaid"] != true {
		t.Fatalf("alreadyPaid = %v", body["alreadyPaid"])
	}
}

func TestStripeWebhookDependenciesMissing(t *testing.T) {
	rr := postStripeWebhook(t, newWebhookRouter(nil, nil), `{}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
