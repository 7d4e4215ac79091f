package firestore

import (
	"context"
	"errors"
	"strings"

	"github.com/customiseme/storefront-api/internal/domain"
	pfirestore "github.com/customiseme/storefront-api/internal/platform/firestore"
)

const productsCollection = "products"

// ProductRepository implements repositories.ProductRepository on Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[domain.Product]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[domain.Product](provider, productsCollection, nil),
	}, nil
}

// FindByID loads a catalogue product by its identifier.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	product := doc.Data
	product.ID = doc.ID
	return product, nil
}
