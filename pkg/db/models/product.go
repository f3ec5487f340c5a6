package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the catalog snapshot the fulfillment core reads from.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string         `gorm:"column:name;not null"`
	SKU            string         `gorm:"column:sku;not null;uniqueIndex"`
	BasePriceCents int            `gorm:"column:base_price_cents;not null"`
	CategoryIDs    pq.StringArray `gorm:"column:category_ids;type:text[]"`
	Active         bool           `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
