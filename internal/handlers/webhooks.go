package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/customiseme/storefront-api/internal/payments"
	"github.com/customiseme/storefront-api/internal/platform/httpx"
	"github.com/customiseme/storefront-api/internal/platform/requestctx"
	"github.com/customiseme/storefront-api/internal/services"
)

// Stripe caps event payloads well below this; anything larger is not a
// legitimate webhook delivery.
const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives payment provider callbacks and feeds verified
// checkout completions into settlement.
type WebhookHandlers struct {
	verifier   payments.EventVerifier
	settlement services.SettlementService
}

// NewWebhookHandlers constructs handlers backed by the event verifier and settlement service.
func NewWebhookHandlers(verifier payments.EventVerifier, settlement services.SettlementService) *WebhookHandlers {
	return &WebhookHandlers{
		verifier:   verifier,
		settlement: settlement,
	}
}

// Routes wires the webhook endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
}

func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.verifier == nil || h.settlement == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhooks_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	signature := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	completed, relevant, err := h.verifier.VerifyCheckoutCompleted(body, signature)
	if err != nil {
		if errors.Is(err, payments.ErrMissingOrderID) {
			// Nothing to settle; acknowledging stops Stripe from retrying an
			// event we can never act on.
			requestctx.Logger(ctx).Warn("checkout event missing order id")
			writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
			return
		}
		requestctx.Logger(ctx).Warn("webhook signature rejected", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	if !relevant {
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	outcome, err := h.settlement.SettleCheckout(ctx, completed.SessionID, completed.OrderID, completed.Completed)
	if err != nil {
		// Not-found and transient failures return non-2xx so the provider
		// redelivers; settlement is idempotent on the retry.
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"received":    true,
		"orderId":     outcome.Order.ID,
		"status":      string(outcome.Order.Status),
		"alreadyPaid": outcome.AlreadyPaid,
	})
}
