package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
)

// Repository persists outbox rows. Insert runs inside the caller's
// transaction; the fetch/mark methods are used by the publisher and
// run on their own connection.
type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, publishErr error) error
}

type repository struct {
	conn *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{conn: conn}
}

func (r *repository) Insert(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) error {
	return tx.WithContext(ctx).Create(event).Error
}

func (r *repository) FetchUnpublished(ctx context.Context, limit int, maxAttempts int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := r.conn.WithContext(ctx).
		Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.conn.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": now,
			"last_error":   nil,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, publishErr error) error {
	msg := "publish failed"
	if publishErr != nil {
		msg = publishErr.Error()
	}
	return r.conn.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    msg,
		}).Error
}
