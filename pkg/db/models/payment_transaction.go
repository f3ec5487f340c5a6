package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lucasfarre/ordercore-backend/pkg/enums"
)

// PaymentTransaction is the payment domain's record of one gateway session.
// Status is written exactly once to a terminal value by the settlement
// workflow; the deferred checkout payload is present when orders are created
// only after payment succeeds.
type PaymentTransaction struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentReference string              `gorm:"column:payment_reference;not null;uniqueIndex:ux_payment_transactions_reference"`
	CartIDs          pq.StringArray      `gorm:"column:cart_ids;type:text[]"`
	AmountCents      int                 `gorm:"column:amount_cents;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'initiated'"`
	SaveCard         bool                `gorm:"column:save_card;not null;default:false"`
	DeferredCheckout json.RawMessage     `gorm:"column:deferred_checkout;type:jsonb"`
	ExpiresAt        time.Time           `gorm:"column:expires_at;not null"`
	SettledAt        *time.Time          `gorm:"column:settled_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// WebhookNotification is the idempotency ledger for gateway callbacks. A
// replayed notification id returns the stored result without re-running the
// settlement side effects.
type WebhookNotification struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	NotificationID   string              `gorm:"column:notification_id;not null;uniqueIndex:ux_webhook_notifications_notification_id"`
	PaymentReference string              `gorm:"column:payment_reference;not null;index"`
	AttemptNumber    int                 `gorm:"column:attempt_number;not null;default:1"`
	Status           enums.WebhookStatus `gorm:"column:status;type:webhook_status;not null;default:'received'"`
	Result           json.RawMessage     `gorm:"column:result;type:jsonb"`
	ProcessedAt      *time.Time          `gorm:"column:processed_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
