package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/platform/auth"
	"github.com/customiseme/storefront-api/internal/platform/httpx"
	"github.com/customiseme/storefront-api/internal/services"
)

// CheckoutHandlers exposes the checkout endpoint that turns a cart submission
// into a pending order and a hosted payment session.
type CheckoutHandlers struct {
	orders services.OrderService
}

// NewCheckoutHandlers constructs handlers backed by the order service.
func NewCheckoutHandlers(orders services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{orders: orders}
}

// Routes wires the checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createCheckout)
}

type checkoutItemPayload struct {
	ProductID     string            `json:"productId"`
	Quantity      int64             `json:"quantity"`
	Customization map[string]string `json:"customization,omitempty"`
}

type checkoutRequestPayload struct {
	Email           string                `json:"email"`
	Items           []checkoutItemPayload `json:"items"`
	ShippingAddress domain.Address        `json:"shippingAddress"`
	SuccessURL      string                `json:"successUrl"`
	CancelURL       string                `json:"cancelUrl"`
}

type checkoutResponse struct {
	Order       orderPayload `json:"order"`
	SessionID   string       `json:"sessionId"`
	CheckoutURL string       `json:"checkoutUrl"`
}

func (h *CheckoutHandlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var payload checkoutRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	req := services.CheckoutRequest{
		Email:           strings.TrimSpace(payload.Email),
		ShippingAddress: payload.ShippingAddress,
		SuccessURL:      payload.SuccessURL,
		CancelURL:       payload.CancelURL,
	}
	for _, item := range payload.Items {
		req.Items = append(req.Items, services.CheckoutItemInput{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}

	// A signed-in customer gets the order attached to their account; the
	// token email fills in when the form omitted one.
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		req.UserID = identity.UID
		if req.Email == "" {
			req.Email = identity.Email
		}
	}

	result, err := h.orders.CreateOrder(ctx, req)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Order:       buildOrderPayload(result.Order),
		SessionID:   result.SessionID,
		CheckoutURL: result.RedirectURL,
	})
}
