package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/customiseme/storefront-api/internal/repositories"
)

// LookupServiceDeps bundles collaborators required to construct a lookup service.
type LookupServiceDeps struct {
	Orders repositories.OrderRepository
}

type lookupService struct {
	orders repositories.OrderRepository
}

// NewLookupService constructs the customer order-tracking resolver. A missing
// order and an email mismatch produce the identical ErrOrderNotFound so the
// endpoint cannot be used to probe which order numbers exist.
func NewLookupService(deps LookupServiceDeps) (LookupService, error) {
	if deps.Orders == nil {
		return nil, errors.New("lookup service: order repository is required")
	}
	return &lookupService{orders: deps.Orders}, nil
}

func (s *lookupService) TrackOrder(ctx context.Context, orderID, email string) (TrackedOrder, error) {
	orderID = strings.TrimSpace(orderID)
	email = strings.TrimSpace(email)
	if orderID == "" || email == "" {
		return TrackedOrder{}, fmt.Errorf("%w: order id and email are required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return TrackedOrder{}, ErrOrderNotFound
		}
		if repositories.IsUnavailable(err) {
			return TrackedOrder{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return TrackedOrder{}, err
	}

	if !strings.EqualFold(strings.TrimSpace(order.Email), email) {
		return TrackedOrder{}, ErrOrderNotFound
	}

	return TrackedOrder{Order: order}, nil
}
