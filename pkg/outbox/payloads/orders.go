// Package payloads holds the Data shapes carried inside outbox
// envelopes. These structs are the public contract with downstream
// consumers; change them additively.
package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is one item of an order as published to consumers.
type OrderLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// OrderCreatedEvent is published when an order row is first persisted,
// still in its pending state.
type OrderCreatedEvent struct {
	OrderID             uuid.UUID   `json:"order_id"`
	UserID              uuid.UUID   `json:"user_id"`
	StoreID             uuid.UUID   `json:"store_id"`
	FulfillmentMode     string      `json:"fulfillment_mode"`
	ServiceLevel        string      `json:"service_level,omitempty"`
	TotalAmountCents    int64       `json:"total_amount_cents"`
	DeliveryChargeCents int64       `json:"delivery_charge_cents"`
	Lines               []OrderLine `json:"lines"`
}

// OrderConfirmedEvent is published when payment settles and the order
// moves to confirmed.
type OrderConfirmedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	UserID           uuid.UUID `json:"user_id"`
	StoreID          uuid.UUID `json:"store_id"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// OrderCancelledEvent is published when a pending order is cancelled
// and its stock holds are released.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	StoreID     uuid.UUID `json:"store_id"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderShippedEvent is published when a packed delivery order leaves
// the store.
type OrderShippedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	StoreID uuid.UUID `json:"store_id"`
}

// OrderDeliveredEvent marks terminal completion of an order.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	StoreID     uuid.UUID `json:"store_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// PaymentSettledEvent is published once per successful gateway
// notification, after all deferred orders exist.
type PaymentSettledEvent struct {
	PaymentReference string      `json:"payment_reference"`
	NotificationID   string      `json:"notification_id"`
	AmountCents      int64       `json:"amount_cents"`
	OrderIDs         []uuid.UUID `json:"order_ids"`
	SettledAt        time.Time   `json:"settled_at"`
}

// PaymentFailedEvent is published when the gateway reports a terminal
// failure for a payment reference.
type PaymentFailedEvent struct {
	PaymentReference string `json:"payment_reference"`
	NotificationID   string `json:"notification_id"`
	Reason           string `json:"reason,omitempty"`
}

// ErpSyncRequestedEvent asks the sync worker to push an order to the
// ERP backend.
type ErpSyncRequestedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}
