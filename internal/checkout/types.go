package checkout

import (
	"github.com/google/uuid"

	"github.com/lucasfarre/ordercore-backend/internal/planner"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
)

// Location names where the checkout fulfills: a pickup store or a
// delivery address.
type Location struct {
	Mode         enums.FulfillmentMode `json:"fulfillment_mode"`
	AddressID    *uuid.UUID            `json:"address_id,omitempty"`
	StoreID      *uuid.UUID            `json:"store_id,omitempty"`
	ServiceLevel enums.ServiceLevel    `json:"service_level,omitempty"`
}

// PreviewInput names the carts and destination to preview.
type PreviewInput struct {
	UserID   uuid.UUID   `json:"user_id"`
	CartIDs  []uuid.UUID `json:"cart_ids"`
	Location Location    `json:"location"`
}

// CreateOrderInput is PreviewInput plus the split decision. It is also
// the shape serialized into a payment transaction's deferred checkout
// payload, so field changes must stay additive.
type CreateOrderInput struct {
	UserID     uuid.UUID   `json:"user_id"`
	CartIDs    []uuid.UUID `json:"cart_ids"`
	Location   Location    `json:"location"`
	SplitOrder bool        `json:"split_order"`

	// PaymentReference links created orders to a settled payment. Empty
	// for direct (non-deferred) checkouts.
	PaymentReference string `json:"payment_reference,omitempty"`
}

// PreviewItem is one priced line of a store preview.
type PreviewItem struct {
	ProductID          uuid.UUID `json:"product_id"`
	Quantity           int       `json:"quantity"`
	UnitPriceCents     int64     `json:"unit_price_cents"`
	TotalPriceCents    int64     `json:"total_price_cents"`
	DiscountPercentage string    `json:"discount_percentage"`
}

// StorePreview is the priced slice of the plan assigned to one store.
type StorePreview struct {
	StoreID             uuid.UUID     `json:"store_id"`
	StoreName           string        `json:"store_name"`
	DistanceKM          float64       `json:"distance_km"`
	Items               []PreviewItem `json:"items"`
	SubtotalCents       int64         `json:"subtotal_cents"`
	DeliveryChargeCents int64         `json:"delivery_charge_cents"`
	TotalCents          int64         `json:"total_cents"`
}

// Preview is the non-mutating checkout quote. Totals satisfy
// TotalCents == SubtotalCents + DeliveryChargeCents.
type Preview struct {
	Mode                enums.FulfillmentMode `json:"fulfillment_mode"`
	ServiceLevel        enums.ServiceLevel    `json:"service_level"`
	Stores              []StorePreview        `json:"stores"`
	UnavailableItems    []planner.Item        `json:"unavailable_items,omitempty"`
	SubtotalCents       int64                 `json:"subtotal_cents"`
	DeliveryChargeCents int64                 `json:"delivery_charge_cents"`
	TotalCents          int64                 `json:"total_cents"`
	IsNearby            bool                  `json:"is_nearby"`
}

// CreateOrderResult reports the orders committed by create. Orders are
// ordered primary store first.
type CreateOrderResult struct {
	Orders  []models.Order `json:"orders"`
	Preview *Preview       `json:"preview"`
}
