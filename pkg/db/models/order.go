package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasfarre/ordercore-backend/pkg/enums"
)

// Order is created once per (checkout, fulfilling store) pair. Status only
// advances monotonically; rows are never deleted.
type Order struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID             uuid.UUID             `gorm:"column:store_id;type:uuid;not null;index"`
	AddressID           *uuid.UUID            `gorm:"column:address_id;type:uuid"`
	Status              enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	FulfillmentMode     enums.FulfillmentMode `gorm:"column:fulfillment_mode;type:fulfillment_mode;not null"`
	ServiceLevel        enums.ServiceLevel    `gorm:"column:service_level;type:service_level;not null;default:'standard'"`
	TotalAmountCents    int                   `gorm:"column:total_amount_cents;not null"`
	DeliveryChargeCents int                   `gorm:"column:delivery_charge_cents;not null;default:0"`
	PaymentReference    *string               `gorm:"column:payment_reference;index"`
	OdooSyncStatus      enums.ErpSyncStatus   `gorm:"column:odoo_sync_status;type:erp_sync_status;not null;default:'pending'"`
	OdooOrderID         *int64                `gorm:"column:odoo_order_id"`
	OdooLastRetryAt     *time.Time            `gorm:"column:odoo_last_retry_at"`
	OdooSyncError       *string               `gorm:"column:odoo_sync_error"`
	ConfirmedAt         *time.Time            `gorm:"column:confirmed_at"`
	CancelledAt         *time.Time            `gorm:"column:cancelled_at"`
	DeliveredAt         *time.Time            `gorm:"column:delivered_at"`
	Items               []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots one line of an order at its computed price. StoreID is
// denormalized and always equals the parent order's store.
type OrderItem struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	StoreID         uuid.UUID  `gorm:"column:store_id;type:uuid;not null"`
	Quantity        int        `gorm:"column:quantity;not null"`
	UnitPriceCents  int        `gorm:"column:unit_price_cents;not null"`
	TotalPriceCents int        `gorm:"column:total_price_cents;not null"`
	SourceCartID    *uuid.UUID `gorm:"column:source_cart_id;type:uuid"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
