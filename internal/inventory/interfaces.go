package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
)

// Delta is a signed adjustment across the three ledger buckets.
type Delta struct {
	Available int
	OnHold    int
	Reserved  int
}

// Repository defines persistence operations for inventory_records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, productID, storeID uuid.UUID) (*models.InventoryRecord, error)
	// ApplyDelta executes a single guarded update. The guard rejects any
	// resulting negative bucket; zero rows affected means the guard (or
	// the key) did not match.
	ApplyDelta(ctx context.Context, productID, storeID uuid.UUID, delta Delta) (int64, error)
	ListForStore(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.InventoryRecord, error)
}

// Ledger is the only mutation path for inventory quantities. Mutating
// operations must run inside the caller's transaction so the row stays
// locked until the surrounding work commits.
type Ledger interface {
	Adjust(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, delta Delta) (*models.InventoryRecord, error)
	PlaceHold(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error)
	ReleaseHold(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error)
	ConfirmReservation(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error)
	FulfillOrder(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error)
	// AvailableAt reports quantity_available per product at one store.
	// Products with no ledger row are reported as zero.
	AvailableAt(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
}
