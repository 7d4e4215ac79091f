package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/payments"
	"github.com/customiseme/storefront-api/internal/platform/config"
	"github.com/customiseme/storefront-api/internal/platform/requestctx"
	"github.com/customiseme/storefront-api/internal/repositories"
)

const idSuffixLength = 5

const idSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// OrderServiceDeps bundles collaborators required to construct an order service.
type OrderServiceDeps struct {
	Pricing  PricingService
	Orders   repositories.OrderRepository
	Checkout payments.CheckoutProvider
	Config   config.OrdersConfig
	Clock    func() time.Time
}

type orderService struct {
	pricing  PricingService
	orders   repositories.OrderRepository
	checkout payments.CheckoutProvider
	cfg      config.OrdersConfig
	clock    func() time.Time
}

// NewOrderService constructs the checkout pipeline: price verification, atomic
// id allocation plus persistence, and the hosted payment session.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Checkout == nil {
		return nil, errors.New("order service: checkout provider is required")
	}

	cfg := deps.Config
	if strings.TrimSpace(cfg.IDPrefix) == "" {
		cfg.IDPrefix = "ORD"
	}
	if cfg.SequencePad < 3 {
		cfg.SequencePad = 3
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &orderService{
		pricing:  deps.Pricing,
		orders:   deps.Orders,
		checkout: deps.Checkout,
		cfg:      cfg,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return CheckoutResult{}, err
	}

	priced, err := s.pricing.PriceItems(ctx, req.Items)
	if err != nil {
		return CheckoutResult{}, err
	}

	now := s.clock()
	order := domain.Order{
		UserID:          strings.TrimSpace(req.UserID),
		Email:           strings.TrimSpace(req.Email),
		Items:           priced.Items,
		Subtotal:        priced.Subtotal,
		Tax:             priced.Tax,
		Shipping:        priced.Shipping,
		Total:           priced.Total,
		Currency:        priced.Currency,
		Status:          domain.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
	}

	created, err := s.orders.Create(ctx, order, s.deriveOrderID)
	if err != nil {
		if repositories.IsUnavailable(err) || repositories.IsConflict(err) {
			return CheckoutResult{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return CheckoutResult{}, err
	}

	logger := requestctx.Logger(ctx).With(zap.String("order_id", created.ID))
	logger.Info("order created",
		zap.Int64("total", created.Total),
		zap.Int("items", len(created.Items)),
		zap.Bool("guest", created.IsGuest()),
	)

	session, err := s.checkout.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		OrderID:        created.ID,
		CustomerEmail:  created.Email,
		Currency:       created.Currency,
		SuccessURL:     appendOrderRef(req.SuccessURL, created.ID),
		CancelURL:      req.CancelURL,
		Items:          checkoutLineItems(created),
		IdempotencyKey: ulid.Make().String(),
	})
	if err != nil {
		// The pending order is left in place; an abandoned checkout is a
		// harmless terminal state.
		logger.Error("checkout session creation failed", zap.Error(err))
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := s.orders.AttachPaymentSession(ctx, created.ID, session.ID); err != nil {
		logger.Warn("unable to record payment session on order", zap.Error(err))
	} else {
		created.StripeSessionID = session.ID
	}

	return CheckoutResult{
		Order:       created,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	}, nil
}

func (s *orderService) deriveOrderID(seq int64) string {
	return fmt.Sprintf("%s_%0*d_%s", s.cfg.IDPrefix, s.cfg.SequencePad, seq, randomIDSuffix())
}

// randomIDSuffix makes order ids non-guessable from the sequence alone.
func randomIDSuffix() string {
	buf := make([]byte, idSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to ULID entropy; identifiers must still be generated.
		id := ulid.Make().String()
		return id[len(id)-idSuffixLength:]
	}
	for i, b := range buf {
		buf[i] = idSuffixAlphabet[int(b)%len(idSuffixAlphabet)]
	}
	return string(buf)
}

// checkoutLineItems mirrors the verified totals exactly: one line per product
// plus synthetic tax and shipping lines when non-zero.
func checkoutLineItems(order domain.Order) []payments.CheckoutLineItem {
	items := make([]payments.CheckoutLineItem, 0, len(order.Items)+2)
	for _, item := range order.Items {
		line := payments.CheckoutLineItem{
			Name:       item.Name,
			SKU:        item.ProductID,
			Quantity:   item.Quantity,
			UnitAmount: item.UnitPrice,
		}
		if isDualSided(item.Customization) {
			line.Description = "Printed front and back"
		}
		items = append(items, line)
	}
	if order.Tax > 0 {
		items = append(items, payments.CheckoutLineItem{Name: "VAT", Quantity: 1, UnitAmount: order.Tax})
	}
	if order.Shipping > 0 {
		items = append(items, payments.CheckoutLineItem{Name: "Shipping", Quantity: 1, UnitAmount: order.Shipping})
	}
	return items
}

func validateCheckoutRequest(req CheckoutRequest) error {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}
	addr := req.ShippingAddress
	switch {
	case strings.TrimSpace(addr.Name) == "":
		return fmt.Errorf("%w: shipping address name is required", ErrInvalidInput)
	case strings.TrimSpace(addr.Street) == "":
		return fmt.Errorf("%w: shipping address street is required", ErrInvalidInput)
	case strings.TrimSpace(addr.City) == "":
		return fmt.Errorf("%w: shipping address city is required", ErrInvalidInput)
	case strings.TrimSpace(addr.Postcode) == "":
		return fmt.Errorf("%w: shipping address postcode is required", ErrInvalidInput)
	case strings.TrimSpace(addr.Country) == "":
		return fmt.Errorf("%w: shipping address country is required", ErrInvalidInput)
	}
	if !isHTTPURL(req.SuccessURL) || !isHTTPURL(req.CancelURL) {
		return fmt.Errorf("%w: success and cancel urls must be absolute http(s) urls", ErrInvalidInput)
	}
	return nil
}

// appendOrderRef adds the order id to the success redirect so the thank-you
// page can show the order number without a separate lookup.
func appendOrderRef(rawURL, orderID string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("orderId", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}

func isHTTPURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")
}
