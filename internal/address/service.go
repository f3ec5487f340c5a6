// Package address resolves delivery destinations from the user's
// address book.
package address

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// Book exposes address lookups scoped to their owner.
type Book interface {
	GetAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
}

// Repository defines persistence operations for addresses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

type service struct {
	repo Repository
}

// NewService builds the address book.
func NewService(repo Repository) (Book, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "address: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	addr, err := s.repo.FindByID(ctx, addressID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "address not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "address: find address")
	}
	if addr.UserID != userID {
		return nil, errors.New(errors.CodeForbidden, "address does not belong to user")
	}
	return addr, nil
}
