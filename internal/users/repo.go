// Package users is the customer projection read by checkout and the ERP
// sync worker.
package users

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// Repository defines persistence operations for users.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetOdooCustomerID(ctx context.Context, id uuid.UUID, odooCustomerID int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the users repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "user not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "find user")
	}
	return &user, nil
}

func (r *repository) SetOdooCustomerID(ctx context.Context, id uuid.UUID, odooCustomerID int64) error {
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("odoo_customer_id", odooCustomerID).Error
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "update user odoo customer id")
	}
	return nil
}
