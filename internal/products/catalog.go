// Package products is a read-only view of the catalog. Checkout snapshots
// prices from here; nothing in the fulfillment core writes product rows.
package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// Catalog resolves products for checkout pricing.
type Catalog interface {
	// GetActiveProducts loads the requested products keyed by id. A product
	// that is missing or inactive is an error, never a silent omission.
	GetActiveProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)

	// GetProducts loads products without the active check. Order items keep
	// referencing products after deactivation; ERP sync still needs them.
	GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type catalog struct {
	db *gorm.DB
}

// NewCatalog builds the catalog reader.
func NewCatalog(db *gorm.DB) (Catalog, error) {
	if db == nil {
		return nil, errors.New(errors.CodeInternal, "products: db handle is required")
	}
	return &catalog{db: db}, nil
}

func (c *catalog) GetActiveProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	byID, err := c.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range productIDs {
		if !byID[id].Active {
			return nil, errors.New(errors.CodeValidation, "product is not active").
				WithDetails(map[string]any{"product_id": id})
		}
	}
	return byID, nil
}

func (c *catalog) GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]models.Product{}, nil
	}

	var rows []models.Product
	err := c.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "products: load products")
	}

	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	for _, id := range productIDs {
		if _, ok := byID[id]; !ok {
			return nil, errors.New(errors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
	}
	return byID, nil
}
