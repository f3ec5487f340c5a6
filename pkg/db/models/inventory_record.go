package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord is the three-bucket quantity ledger per (product, store).
// All mutation goes through the inventory service under a row lock; the sum
// of the three buckets is conserved by every ledger operation.
type InventoryRecord struct {
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	StoreID           uuid.UUID `gorm:"column:store_id;type:uuid;primaryKey"`
	QuantityAvailable int       `gorm:"column:quantity_available;not null;default:0"`
	QuantityOnHold    int       `gorm:"column:quantity_on_hold;not null;default:0"`
	QuantityReserved  int       `gorm:"column:quantity_reserved;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
