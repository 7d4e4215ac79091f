package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/customiseme/storefront-api/internal/notifications"
	"github.com/customiseme/storefront-api/internal/platform/config"
	"github.com/customiseme/storefront-api/internal/platform/requestctx"
	"github.com/customiseme/storefront-api/internal/repositories"
)

// SettlementServiceDeps bundles collaborators required to construct a settlement service.
type SettlementServiceDeps struct {
	Orders   repositories.OrderRepository
	Notifier notifications.Notifier
	Config   config.NotificationsConfig
	Clock    func() time.Time
}

type settlementService struct {
	orders   repositories.OrderRepository
	notifier notifications.Notifier
	cfg      config.NotificationsConfig
	clock    func() time.Time
}

// NewSettlementService constructs the processor that flips orders to paid on
// verified payment events. Settlement is idempotent: redelivered events report
// success without touching the document again, and notifications go out only
// on the first transition.
func NewSettlementService(deps SettlementServiceDeps) (SettlementService, error) {
	if deps.Orders == nil {
		return nil, errors.New("settlement service: order repository is required")
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &settlementService{
		orders:   deps.Orders,
		notifier: notifier,
		cfg:      deps.Config,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *settlementService) SettleCheckout(ctx context.Context, sessionID, orderID string, completedAt time.Time) (SettlementOutcome, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return SettlementOutcome{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if completedAt.IsZero() {
		completedAt = s.clock()
	}

	result, err := s.orders.MarkPaid(ctx, orderID, sessionID, completedAt)
	if err != nil {
		if repositories.IsNotFound(err) {
			return SettlementOutcome{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		if repositories.IsUnavailable(err) || repositories.IsConflict(err) {
			return SettlementOutcome{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return SettlementOutcome{}, err
	}

	logger := requestctx.Logger(ctx).With(zap.String("order_id", orderID))

	if result.AlreadySettled {
		logger.Info("settlement event redelivered for settled order",
			zap.String("status", string(result.Order.Status)),
		)
		return SettlementOutcome{Order: result.Order, AlreadyPaid: true}, nil
	}

	logger.Info("order settled",
		zap.String("session_id", sessionID),
		zap.Int64("total", result.Order.Total),
	)

	// Notifications are published after the transaction committed; a publish
	// failure never fails the settlement.
	s.publishSettlementNotifications(ctx, logger, result)

	return SettlementOutcome{Order: result.Order}, nil
}

func (s *settlementService) publishSettlementNotifications(ctx context.Context, logger *zap.Logger, result repositories.SettlementResult) {
	order := result.Order

	messages := []notifications.Message{
		{
			Kind:      notifications.KindOrderConfirmation,
			Recipient: order.Email,
			OrderID:   order.ID,
			Order:     &order,
		},
	}
	if !order.IsGuest() {
		messages = append(messages, notifications.Message{
			Kind:      notifications.KindWelcome,
			Recipient: order.Email,
			OrderID:   order.ID,
		})
	}
	if admin := strings.TrimSpace(s.cfg.AdminEmail); admin != "" {
		messages = append(messages, notifications.Message{
			Kind:      notifications.KindAdminAlert,
			Recipient: admin,
			OrderID:   order.ID,
			Order:     &order,
		})
	}

	for _, msg := range messages {
		if _, err := s.notifier.Publish(ctx, msg); err != nil {
			logger.Error("notification publish failed",
				zap.String("kind", string(msg.Kind)),
				zap.Error(err),
			)
		}
	}
}
