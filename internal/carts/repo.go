package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
)

// Repository defines persistence operations for carts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Cart, error)
	MarkOrdered(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a carts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Cart, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id IN ?", ids).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) MarkOrdered(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":     enums.CartStatusOrdered,
			"ordered_at": at,
		}).Error
}
