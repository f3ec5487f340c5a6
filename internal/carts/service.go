// Package carts validates cart access for checkout and consumes carts
// once ordered.
package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// Service exposes the cart operations checkout depends on.
type Service interface {
	// GetCheckoutCarts loads every cart, verifying the user owns or was
	// granted access to each, that each is ACTIVE, and that none is empty.
	GetCheckoutCarts(ctx context.Context, userID uuid.UUID, cartIDs []uuid.UUID) ([]models.Cart, error)
	// ConsumeCarts marks the carts ORDERED inside the caller's transaction.
	ConsumeCarts(ctx context.Context, tx *gorm.DB, cartIDs []uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService builds the cart service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "carts: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetCheckoutCarts(ctx context.Context, userID uuid.UUID, cartIDs []uuid.UUID) ([]models.Cart, error) {
	if len(cartIDs) == 0 {
		return nil, errors.New(errors.CodeValidation, "at least one cart is required")
	}

	found, err := s.repo.FindByIDs(ctx, cartIDs)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "carts: find carts")
	}
	byID := make(map[uuid.UUID]models.Cart, len(found))
	for _, cart := range found {
		byID[cart.ID] = cart
	}

	out := make([]models.Cart, 0, len(cartIDs))
	for _, id := range cartIDs {
		cart, ok := byID[id]
		if !ok {
			return nil, errors.New(errors.CodeNotFound, "cart not found")
		}
		if !hasAccess(cart, userID) {
			return nil, errors.New(errors.CodeForbidden, "cart is not accessible to user")
		}
		if cart.Status != enums.CartStatusActive {
			return nil, errors.New(errors.CodeValidation, "cart is not active").
				WithDetails(map[string]any{"cart_id": cart.ID, "status": cart.Status})
		}
		if len(cart.Items) == 0 {
			return nil, errors.New(errors.CodeValidation, "cart is empty").
				WithDetails(map[string]any{"cart_id": cart.ID})
		}
		out = append(out, cart)
	}
	return out, nil
}

func (s *service) ConsumeCarts(ctx context.Context, tx *gorm.DB, cartIDs []uuid.UUID) error {
	if tx == nil {
		return errors.New(errors.CodeInternal, "carts: consume requires a transaction")
	}
	if err := s.repo.WithTx(tx).MarkOrdered(ctx, cartIDs, time.Now().UTC()); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "carts: mark ordered")
	}
	return nil
}

func hasAccess(cart models.Cart, userID uuid.UUID) bool {
	if cart.UserID == userID {
		return true
	}
	target := userID.String()
	for _, shared := range cart.SharedUserIDs {
		if shared == target {
			return true
		}
	}
	return false
}
