package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/customiseme/storefront-api/internal/domain"
	"github.com/customiseme/storefront-api/internal/platform/config"
	"github.com/customiseme/storefront-api/internal/repositories"
)

// Customization option recognised by the pricing rules. Orders printed on
// both sides attract a per-unit surcharge.
const (
	customizationPrintLocation = "printLocation"
	printLocationDualSided     = "Front & Back"
)

const maxLineQuantity = 10_000

// PricingServiceDeps bundles collaborators required to construct a pricing service.
type PricingServiceDeps struct {
	Products repositories.ProductRepository
	Config   config.PricingConfig
}

type pricingService struct {
	products repositories.ProductRepository
	cfg      config.PricingConfig
}

// NewPricingService constructs the authoritative price calculator. Client
// submitted prices never enter this path; every amount is recomputed from the
// catalogue so no monetary value reaching the payment provider originates
// from client input.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Products == nil {
		return nil, errors.New("pricing service: product repository is required")
	}
	return &pricingService{
		products: deps.Products,
		cfg:      deps.Config,
	}, nil
}

func (s *pricingService) PriceItems(ctx context.Context, items []CheckoutItemInput) (PricedOrder, error) {
	if len(items) == 0 {
		return PricedOrder{}, fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}

	priced := make([]domain.OrderItem, 0, len(items))
	var subtotal int64

	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return PricedOrder{}, fmt.Errorf("%w: item %d has no product id", ErrInvalidInput, i)
		}

		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		if quantity > maxLineQuantity {
			return PricedOrder{}, fmt.Errorf("%w: item %d quantity %d exceeds limit", ErrInvalidInput, i, quantity)
		}

		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return PricedOrder{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
			}
			if repositories.IsUnavailable(err) {
				return PricedOrder{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
			return PricedOrder{}, err
		}

		// Stock of zero means the product is not stock-tracked.
		if product.Stock > 0 && quantity > product.Stock {
			return PricedOrder{}, fmt.Errorf("%w: %s has %d in stock, requested %d", ErrInsufficientStock, productID, product.Stock, quantity)
		}

		// A bulk tier price is all-inclusive; the dual-sided surcharge only
		// applies on top of the standard catalogue price.
		unitPrice := product.UnitPrice
		if tier, ok := product.TierFor(quantity); ok {
			unitPrice = tier.TotalPrice / tier.Quantity
		} else if isDualSided(item.Customization) {
			unitPrice += s.cfg.DualSidedSurcharge
		}

		line := domain.OrderItem{
			ProductID:     productID,
			Name:          product.Name,
			Quantity:      quantity,
			UnitPrice:     unitPrice,
			Customization: copyCustomization(item.Customization),
		}
		priced = append(priced, line)
		subtotal += line.Total()
	}

	tax := subtotal * s.cfg.TaxRateBasisPoints / 10_000
	shipping := s.cfg.ShippingFee
	if subtotal >= s.cfg.FreeShippingThreshold {
		shipping = 0
	}

	return PricedOrder{
		Items:    priced,
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
		Currency: s.cfg.Currency,
	}, nil
}

func isDualSided(customization map[string]string) bool {
	if customization == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(customization[customizationPrintLocation]), printLocationDualSided)
}

func copyCustomization(customization map[string]string) map[string]string {
	if len(customization) == 0 {
		return nil
	}
	out := make(map[string]string, len(customization))
	for k, v := range customization {
		out[k] = v
	}
	return out
}
