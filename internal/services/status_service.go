package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/notifications"
	"github.com/customiseme/storefront-api/internal/platform/requestctx"
	"github.com/customiseme/storefront-api/internal/repositories"
)

// StatusServiceDeps bundles collaborators required to construct a status service.
type StatusServiceDeps struct {
	Orders   repositories.OrderRepository
	Notifier notifications.Notifier
}

type statusService struct {
	orders   repositories.OrderRepository
	notifier notifications.Notifier
}

// NewStatusService constructs the operator-facing status updater. Operators
// may set any status from any status; the service logs backward moves away
// from paid rather than rejecting them. The shipping notification fires on
// exactly the not-shipped to shipped edge.
func NewStatusService(deps StatusServiceDeps) (StatusService, error) {
	if deps.Orders == nil {
		return nil, errors.New("status service: order repository is required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}
	return &statusService{
		orders:   deps.Orders,
		notifier: notifier,
	}, nil
}

func (s *statusService) UpdateStatus(ctx context.Context, orderID string, req StatusChangeRequest) (repositories.StatusChange, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return repositories.StatusChange{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	status, ok := domain.ParseOrderStatus(string(req.Status))
	if !ok {
		return repositories.StatusChange{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}

	change, err := s.orders.ApplyStatus(ctx, orderID, repositories.StatusUpdate{
		Status:            status,
		TrackingNumber:    req.TrackingNumber,
		Carrier:           req.Carrier,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return repositories.StatusChange{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		if repositories.IsUnavailable(err) || repositories.IsConflict(err) {
			return repositories.StatusChange{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return repositories.StatusChange{}, err
	}

	logger := requestctx.Logger(ctx).With(
		zap.String("order_id", orderID),
		zap.String("previous", string(change.Previous)),
		zap.String("status", string(status)),
	)
	logger.Info("order status updated")

	if isBackwardFromPaid(change.Previous, status) {
		logger.Warn("order moved backward from a settled state")
	}

	if change.Previous != domain.OrderStatusShipped && status == domain.OrderStatusShipped {
		msg := notifications.Message{
			Kind:      notifications.KindShippingUpdate,
			Recipient: change.Order.Email,
			OrderID:   change.Order.ID,
			Order:     &change.Order,
		}
		if change.Order.TrackingNumber != "" {
			msg.Extra = map[string]string{
				"trackingNumber": change.Order.TrackingNumber,
				"carrier":        change.Order.Carrier,
			}
		}
		if _, err := s.notifier.Publish(ctx, msg); err != nil {
			logger.Error("shipping notification publish failed", zap.Error(err))
		}
	}

	return change, nil
}

func isBackwardFromPaid(previous, next domain.OrderStatus) bool {
	switch previous {
	case domain.OrderStatusPaid, domain.OrderStatusProcessing, domain.OrderStatusShipped:
		return next == domain.OrderStatusPending
	}
	return false
}
