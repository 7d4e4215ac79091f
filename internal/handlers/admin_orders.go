package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/platform/httpx"
	"github.com/customiseme/storefront-api/internal/services"
)

// AdminOrderHandlers exposes operator endpoints for order fulfilment.
type AdminOrderHandlers struct {
	status services.StatusService
}

// NewAdminOrderHandlers constructs handlers backed by the status service.
func NewAdminOrderHandlers(status services.StatusService) *AdminOrderHandlers {
	return &AdminOrderHandlers{status: status}
}

// Routes wires the operator order endpoints onto the provided router. The
// caller is expected to have mounted the API key middleware on the group.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Patch("/orders/{orderID}/status", h.updateStatus)
}

type updateStatusRequest struct {
	Status            string `json:"status"`
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	Carrier           string `json:"carrier,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.status == nil {
		httpx.WriteError(ctx, w, httpx.NewError("admin_unavailable", "order administration is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var payload updateStatusRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	eta, err := parseOptionalTime(payload.EstimatedDelivery)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "estimatedDelivery must be RFC 3339", http.StatusBadRequest))
		return
	}

	status, ok := domain.ParseOrderStatus(payload.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status", http.StatusBadRequest))
		return
	}

	change, err := h.status.UpdateStatus(ctx, orderID, services.StatusChangeRequest{
		Status:            status,
		TrackingNumber:    strings.TrimSpace(payload.TrackingNumber),
		Carrier:           strings.TrimSpace(payload.Carrier),
		EstimatedDelivery: eta,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"order":          buildOrderPayload(change.Order),
		"previousStatus": string(change.Previous),
	})
}
