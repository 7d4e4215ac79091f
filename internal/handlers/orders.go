package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/platform/httpx"
	"github.com/customiseme/storefront-api/internal/services"
)

// OrderHandlers exposes the customer-facing order tracking endpoint.
type OrderHandlers struct {
	lookup services.LookupService
}

// NewOrderHandlers constructs handlers backed by the lookup service.
func NewOrderHandlers(lookup services.LookupService) *OrderHandlers {
	return &OrderHandlers{lookup: lookup}
}

// Routes wires the order endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/track", h.trackOrder)
}

type trackOrderRequest struct {
	OrderID string `json:"orderId"`
	Email   string `json:"email"`
}

type orderPayload struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	Items             []domain.OrderItem `json:"items"`
	Subtotal          int64              `json:"subtotal"`
	Tax               int64              `json:"tax"`
	Shipping          int64              `json:"shipping"`
	Total             int64              `json:"total"`
	Currency          string             `json:"currency"`
	Status            string             `json:"status"`
	ShippingAddress   domain.Address     `json:"shippingAddress"`
	TrackingNumber    string             `json:"trackingNumber,omitempty"`
	Carrier           string             `json:"carrier,omitempty"`
	EstimatedDelivery string             `json:"estimatedDelivery,omitempty"`
	CreatedAt         string             `json:"createdAt"`
	PaidAt            string             `json:"paidAt,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		Email:           order.Email,
		Items:           order.Items,
		Subtotal:        order.Subtotal,
		Tax:             order.Tax,
		Shipping:        order.Shipping,
		Total:           order.Total,
		Currency:        order.Currency,
		Status:          string(order.Status),
		ShippingAddress: order.ShippingAddress,
		TrackingNumber:  order.TrackingNumber,
		Carrier:         order.Carrier,
		CreatedAt:       formatTime(order.CreatedAt),
	}
	if order.EstimatedDelivery != nil {
		payload.EstimatedDelivery = formatTime(*order.EstimatedDelivery)
	}
	if order.PaidAt != nil {
		payload.PaidAt = formatTime(*order.PaidAt)
	}
	return payload
}

// trackedOrderPayload is the restricted projection returned to unauthenticated
// tracking callers: fulfilment progress only, no line items, amounts breakdown,
// or contact details.
type trackedOrderPayload struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Total             int64  `json:"total"`
	Currency          string `json:"currency"`
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	Carrier           string `json:"carrier,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
	CreatedAt         string `json:"createdAt"`
}

func buildTrackedOrderPayload(order domain.Order) trackedOrderPayload {
	payload := trackedOrderPayload{
		ID:             order.ID,
		Status:         string(order.Status),
		Total:          order.Total,
		Currency:       order.Currency,
		TrackingNumber: order.TrackingNumber,
		Carrier:        order.Carrier,
		CreatedAt:      formatTime(order.CreatedAt),
	}
	if order.EstimatedDelivery != nil {
		payload.EstimatedDelivery = formatTime(*order.EstimatedDelivery)
	}
	return payload
}

func (h *OrderHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.lookup == nil {
		httpx.WriteError(ctx, w, httpx.NewError("tracking_unavailable", "order tracking is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var payload trackOrderRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	tracked, err := h.lookup.TrackOrder(ctx, payload.OrderID, payload.Email)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"order": buildTrackedOrderPayload(tracked.Order),
	})
}
