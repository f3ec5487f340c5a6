package payments

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// Repository defines persistence for payment transactions and the
// webhook idempotency ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateTransaction(ctx context.Context, transaction *models.PaymentTransaction) error
	FindTransactionByReference(ctx context.Context, paymentReference string) (*models.PaymentTransaction, error)
	// SettleTransaction writes the terminal status once. It refuses to
	// overwrite a transaction that already left the initiated state.
	SettleTransaction(ctx context.Context, paymentReference string, status enums.PaymentStatus, settledAt time.Time) error

	FindNotification(ctx context.Context, notificationID string) (*models.WebhookNotification, error)
	CreateNotification(ctx context.Context, notification *models.WebhookNotification) error
	IncrementNotificationAttempt(ctx context.Context, notificationID string) error
	MarkNotificationProcessed(ctx context.Context, notificationID string, result json.RawMessage, processedAt time.Time) error
	MarkNotificationFailed(ctx context.Context, notificationID string, result json.RawMessage) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the payments repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) CreateTransaction(ctx context.Context, transaction *models.PaymentTransaction) error {
	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "create payment transaction")
	}
	return nil
}

func (r *repository) FindTransactionByReference(ctx context.Context, paymentReference string) (*models.PaymentTransaction, error) {
	var transaction models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("payment_reference = ?", paymentReference).
		First(&transaction).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "payment transaction not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "find payment transaction")
	}
	return &transaction, nil
}

func (r *repository) SettleTransaction(ctx context.Context, paymentReference string, status enums.PaymentStatus, settledAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("payment_reference = ? AND status = ?", paymentReference, enums.PaymentStatusInitiated).
		Updates(map[string]any{
			"status":     status,
			"settled_at": settledAt,
		})
	if result.Error != nil {
		return errors.Wrap(errors.CodeDependency, result.Error, "settle payment transaction")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.CodeConflict, "payment transaction already settled")
	}
	return nil
}

func (r *repository) FindNotification(ctx context.Context, notificationID string) (*models.WebhookNotification, error) {
	var notification models.WebhookNotification
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&notification).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "webhook notification not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "find webhook notification")
	}
	return &notification, nil
}

func (r *repository) CreateNotification(ctx context.Context, notification *models.WebhookNotification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "create webhook notification")
	}
	return nil
}

func (r *repository) IncrementNotificationAttempt(ctx context.Context, notificationID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.WebhookNotification{}).
		Where("notification_id = ?", notificationID).
		Update("attempt_number", gorm.Expr("attempt_number + 1")).Error
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "increment webhook attempt")
	}
	return nil
}

func (r *repository) MarkNotificationProcessed(ctx context.Context, notificationID string, result json.RawMessage, processedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.WebhookNotification{}).
		Where("notification_id = ?", notificationID).
		Updates(map[string]any{
			"status":       enums.WebhookStatusProcessed,
			"result":       result,
			"processed_at": processedAt,
		}).Error
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "mark webhook processed")
	}
	return nil
}

func (r *repository) MarkNotificationFailed(ctx context.Context, notificationID string, result json.RawMessage) error {
	err := r.db.WithContext(ctx).
		Model(&models.WebhookNotification{}).
		Where("notification_id = ?", notificationID).
		Updates(map[string]any{
			"status": enums.WebhookStatusFailed,
			"result": result,
		}).Error
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "mark webhook failed")
	}
	return nil
}
