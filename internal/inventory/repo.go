package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, productID, storeID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND store_id = ?", productID, storeID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ApplyDelta(ctx context.Context, productID, storeID uuid.UUID, delta Delta) (int64, error) {
	// One guarded statement: the row is read, checked, and written under
	// its write lock, which the enclosing transaction holds to commit.
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_records
		SET quantity_available = quantity_available + ?,
		    quantity_on_hold   = quantity_on_hold + ?,
		    quantity_reserved  = quantity_reserved + ?,
		    updated_at         = CURRENT_TIMESTAMP
		WHERE product_id = ? AND store_id = ?
		  AND quantity_available + ? >= 0
		  AND quantity_on_hold + ? >= 0
		  AND quantity_reserved + ? >= 0`,
		delta.Available, delta.OnHold, delta.Reserved,
		productID, storeID,
		delta.Available, delta.OnHold, delta.Reserved,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) ListForStore(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.InventoryRecord, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var records []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id IN ?", storeID, productIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
