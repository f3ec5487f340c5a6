package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lucasfarre/ordercore-backend/pkg/enums"
)

// Cart is a named, user-owned bag of items. Once ordered it is immutable and
// serves as the traceability link between an order and its originating
// selection.
type Cart struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Name          string           `gorm:"column:name;not null"`
	Status        enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	SharedUserIDs pq.StringArray   `gorm:"column:shared_user_ids;type:text[]"`
	OrderedAt     *time.Time       `gorm:"column:ordered_at"`
	Items         []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem is a (product, quantity) pair inside a cart.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
