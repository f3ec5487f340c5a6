// Package analytics consumes order lifecycle events from Pub/Sub and
// mirrors them into BigQuery. The sink is fire and forget from the
// order workflow's point of view; nothing in checkout or settlement
// waits on it.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox/payloads"
)

// Envelope is the consumer-side view of one published outbox event.
// Data stays raw until the event type picks a payload struct.
type Envelope struct {
	EventID       uuid.UUID                 `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   uuid.UUID                 `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Actor         outbox.ActorRef           `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// DecodeEnvelope parses a published message body.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.EventID == uuid.Nil {
		return nil, fmt.Errorf("event_id missing")
	}
	if !envelope.EventType.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", envelope.EventType)
	}
	return &envelope, nil
}

// OrderEventRow is one row of the order_events table.
type OrderEventRow struct {
	EventID             string    `bigquery:"event_id"`
	EventType           string    `bigquery:"event_type"`
	OrderID             string    `bigquery:"order_id"`
	UserID              string    `bigquery:"user_id"`
	StoreID             string    `bigquery:"store_id"`
	FulfillmentMode     string    `bigquery:"fulfillment_mode"`
	TotalAmountCents    int64     `bigquery:"total_amount_cents"`
	DeliveryChargeCents int64     `bigquery:"delivery_charge_cents"`
	ItemCount           int64     `bigquery:"item_count"`
	PaymentReference    string    `bigquery:"payment_reference"`
	OccurredAt          time.Time `bigquery:"occurred_at"`
}

// BuildOrderEventRow maps an envelope onto a BigQuery row. Event types
// outside the order lifecycle report ok=false and are skipped.
func BuildOrderEventRow(envelope *Envelope) (*OrderEventRow, bool, error) {
	row := &OrderEventRow{
		EventID:    envelope.EventID.String(),
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
	}

	switch envelope.EventType {
	case enums.EventOrderCreated:
		var data payloads.OrderCreatedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		row.OrderID = data.OrderID.String()
		row.UserID = data.UserID.String()
		row.StoreID = data.StoreID.String()
		row.FulfillmentMode = data.FulfillmentMode
		row.TotalAmountCents = data.TotalAmountCents
		row.DeliveryChargeCents = data.DeliveryChargeCents
		row.ItemCount = int64(len(data.Lines))
	case enums.EventOrderConfirmed:
		var data payloads.OrderConfirmedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		row.OrderID = data.OrderID.String()
		row.UserID = data.UserID.String()
		row.StoreID = data.StoreID.String()
		row.TotalAmountCents = data.TotalAmountCents
		row.PaymentReference = data.PaymentReference
		if row.OccurredAt.IsZero() {
			row.OccurredAt = data.ConfirmedAt
		}
	case enums.EventOrderCancelled:
		var data payloads.OrderCancelledEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		row.OrderID = data.OrderID.String()
		row.UserID = data.UserID.String()
		row.StoreID = data.StoreID.String()
	case enums.EventOrderShipped:
		var data payloads.OrderShippedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		row.OrderID = data.OrderID.String()
		row.StoreID = data.StoreID.String()
	case enums.EventOrderDelivered:
		var data payloads.OrderDeliveredEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", envelope.EventType, err)
		}
		row.OrderID = data.OrderID.String()
		row.StoreID = data.StoreID.String()
		if row.OccurredAt.IsZero() {
			row.OccurredAt = data.DeliveredAt
		}
	default:
		return nil, false, nil
	}

	return row, true, nil
}
