package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is a physical fulfillment location.
type Store struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	AllowsPickup bool      `gorm:"column:allows_pickup;not null;default:true"`
	AddressLine  string    `gorm:"column:address_line"`
	City         string    `gorm:"column:city"`
	Lat          float64   `gorm:"column:lat;not null"`
	Lng          float64   `gorm:"column:lng;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
