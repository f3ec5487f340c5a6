// Package inventory maintains the three-bucket quantity ledger per
// (product, store): available, on hold, reserved. Every mutation is a
// parameterization of Adjust and conserves the bucket sum.
package inventory

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

type service struct {
	repo Repository
}

// NewService builds the inventory ledger.
func NewService(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "inventory: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Adjust(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, delta Delta) (*models.InventoryRecord, error) {
	if tx == nil {
		return nil, errors.New(errors.CodeInternal, "inventory: adjust requires a transaction")
	}

	repo := s.repo.WithTx(tx)
	affected, err := repo.ApplyDelta(ctx, productID, storeID, delta)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "inventory: apply delta")
	}
	if affected == 0 {
		return nil, s.classifyRejection(ctx, repo, productID, storeID, delta)
	}

	record, err := repo.Get(ctx, productID, storeID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "inventory: reload record")
	}
	return record, nil
}

// classifyRejection turns a guarded-update miss into the precise typed
// error: a missing row or the first bucket that would go negative.
func (s *service) classifyRejection(ctx context.Context, repo Repository, productID, storeID uuid.UUID, delta Delta) error {
	record, err := repo.Get(ctx, productID, storeID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New(errors.CodeNotFound, "inventory record not found")
		}
		return errors.Wrap(errors.CodeDependency, err, "inventory: inspect record")
	}

	switch {
	case record.QuantityAvailable+delta.Available < 0:
		return errors.New(errors.CodeValidation, "insufficient stock")
	case record.QuantityOnHold+delta.OnHold < 0:
		return errors.New(errors.CodeValidation, "cannot release more than on hold")
	case record.QuantityReserved+delta.Reserved < 0:
		return errors.New(errors.CodeValidation, "cannot release more than reserved")
	default:
		// Guard failed against a state we can no longer observe.
		return errors.New(errors.CodeConflict, "inventory adjustment conflicted, retry")
	}
}

func (s *service) PlaceHold(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, errors.New(errors.CodeValidation, "hold quantity must be positive")
	}
	return s.Adjust(ctx, tx, productID, storeID, Delta{Available: -qty, OnHold: qty})
}

func (s *service) ReleaseHold(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, errors.New(errors.CodeValidation, "release quantity must be positive")
	}
	return s.Adjust(ctx, tx, productID, storeID, Delta{Available: qty, OnHold: -qty})
}

func (s *service) ConfirmReservation(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, errors.New(errors.CodeValidation, "confirm quantity must be positive")
	}
	return s.Adjust(ctx, tx, productID, storeID, Delta{OnHold: -qty, Reserved: qty})
}

func (s *service) FulfillOrder(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if qty <= 0 {
		return nil, errors.New(errors.CodeValidation, "fulfill quantity must be positive")
	}
	return s.Adjust(ctx, tx, productID, storeID, Delta{Reserved: -qty})
}

func (s *service) AvailableAt(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(productIDs))
	for _, id := range productIDs {
		out[id] = 0
	}
	records, err := s.repo.ListForStore(ctx, storeID, productIDs)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "inventory: list store stock")
	}
	for _, record := range records {
		out[record.ProductID] = record.QuantityAvailable
	}
	return out, nil
}
