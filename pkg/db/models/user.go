package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal customer projection the core needs.
type User struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string    `gorm:"column:email;not null;uniqueIndex"`
	Name           string    `gorm:"column:name;not null"`
	Phone          *string   `gorm:"column:phone"`
	Tier           string    `gorm:"column:tier;not null;default:'standard'"`
	OdooCustomerID *int64    `gorm:"column:odoo_customer_id"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Address is a delivery destination in the user's address book.
type Address struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Label     string    `gorm:"column:label"`
	Line1     string    `gorm:"column:line1;not null"`
	City      string    `gorm:"column:city"`
	Lat       float64   `gorm:"column:lat;not null"`
	Lng       float64   `gorm:"column:lng;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
