package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasfarre/ordercore-backend/pkg/enums"
)

// ActorRef identifies who caused an event. A zero ActorRef means the
// event was produced by a background process rather than a user action.
type ActorRef struct {
	UserID uuid.UUID `json:"user_id,omitempty"`
	Kind   string    `json:"kind,omitempty"`
}

// PayloadEnvelope is the wire shape written into the outbox payload
// column and published verbatim to Pub/Sub. Consumers switch on
// EventType and decode Data into the matching payloads struct.
type PayloadEnvelope struct {
	EventID       uuid.UUID                 `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   uuid.UUID                 `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Actor         ActorRef                  `json:"actor,omitempty"`
	Data          any                       `json:"data"`
}
