// Package outbox implements the transactional outbox used to publish
// domain events. Events are inserted in the same database transaction
// that performs the state change; a separate publisher process drains
// unpublished rows to Pub/Sub.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// DomainEvent is the input to Emit. Payload is any JSON-serializable
// value, conventionally one of the structs in payloads.
type DomainEvent struct {
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         ActorRef
	Payload       any
}

// Emitter records domain events inside an ongoing transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type service struct {
	repo Repository
}

// NewService builds the outbox emitter.
func NewService(repo Repository) (Emitter, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "outbox: repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New(errors.CodeInternal, "outbox: emit requires a transaction")
	}
	if !event.EventType.IsValid() {
		return errors.New(errors.CodeInternal, "outbox: unknown event type")
	}
	if !event.AggregateType.IsValid() {
		return errors.New(errors.CodeInternal, "outbox: unknown aggregate type")
	}
	if event.AggregateID == uuid.Nil {
		return errors.New(errors.CodeInternal, "outbox: aggregate id is required")
	}

	eventID := event.EventID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	envelope := PayloadEnvelope{
		EventID:       eventID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    time.Now().UTC(),
		Actor:         event.Actor,
		Data:          event.Payload,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "outbox: marshal event payload")
	}

	record := &models.OutboxEvent{
		ID:            eventID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}
	if err := s.repo.Insert(ctx, tx, record); err != nil {
		if db.IsUniqueViolation(err, "outbox_events_pkey") {
			// Same event emitted twice in a retried handler; first write wins.
			return nil
		}
		return errors.Wrap(errors.CodeDependency, err, "outbox: insert event")
	}
	return nil
}
