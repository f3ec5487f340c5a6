package analytics

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/lucasfarre/ordercore-backend/pkg/logger"
)

const (
	dedupeScope = "analytics"
	dedupeTTL   = 24 * time.Hour
)

// rowWriter is the BigQuery sink the consumer writes through.
type rowWriter interface {
	InsertOrderEvent(ctx context.Context, row OrderEventRow) error
}

// dedupeStore keeps a short-lived processed-event set. Nil disables
// deduplication; the sink tolerates duplicate rows.
type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Consumer drains the order events subscription into BigQuery.
type Consumer struct {
	subscriber *gcppubsub.Subscriber
	writer     rowWriter
	dedupe     dedupeStore
	logger     *logger.Logger
}

// NewConsumer wires the analytics sink.
func NewConsumer(subscriber *gcppubsub.Subscriber, writer rowWriter, dedupe dedupeStore, logg *logger.Logger) (*Consumer, error) {
	if subscriber == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if writer == nil {
		return nil, errors.New("analytics writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{subscriber: subscriber, writer: writer, dedupe: dedupe, logger: logg}, nil
}

// Run consumes messages until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscriber.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed
// messages are acked and dropped; transient failures are nacked for
// redelivery.
func (c *Consumer) process(ctx context.Context, body []byte) bool {
	envelope, err := DecodeEnvelope(body)
	if err != nil {
		c.logger.Warn(c.logger.WithField(ctx, "decode_error", err.Error()), "dropping malformed analytics message")
		return true
	}

	ctx = c.logger.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID.String(),
		"event_type": string(envelope.EventType),
	})

	var dedupeKey string
	if c.dedupe != nil {
		dedupeKey = c.dedupe.IdempotencyKey(dedupeScope, envelope.EventID.String())
		fresh, err := c.dedupe.SetNX(ctx, dedupeKey, time.Now().UTC().Format(time.RFC3339), dedupeTTL)
		if err != nil {
			c.logger.Error(ctx, "analytics dedupe check failed", err)
			return false
		}
		if !fresh {
			c.logger.Info(ctx, "analytics event already processed")
			return true
		}
	}

	row, ok, err := BuildOrderEventRow(envelope)
	if err != nil {
		c.logger.Warn(c.logger.WithField(ctx, "decode_error", err.Error()), "dropping undecodable analytics payload")
		return true
	}
	if !ok {
		return true
	}

	if err := c.writer.InsertOrderEvent(ctx, *row); err != nil {
		c.logger.Error(ctx, "bigquery insert failed", err)
		if c.dedupe != nil {
			// Let the redelivery pass the dedupe gate.
			if delErr := c.dedupe.Del(context.WithoutCancel(ctx), dedupeKey); delErr != nil {
				c.logger.Error(ctx, "releasing dedupe key", delErr)
			}
		}
		return false
	}

	c.logger.Info(ctx, "order event recorded")
	return true
}
