package orders

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListByPaymentReference(ctx context.Context, paymentReference string) ([]models.Order, error)
	UpdateFields(ctx context.Context, orderID uuid.UUID, fields map[string]any) error
	ListFailedErpSync(ctx context.Context, limit int) ([]models.Order, error)
	MarkErpSynced(ctx context.Context, orderID uuid.UUID, odooOrderID int64) error
	MarkErpSyncFailed(ctx context.Context, orderID uuid.UUID, syncErr string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the orders repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return errors.Wrap(errors.CodeDependency, err, "create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "order not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "find order")
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (r *repository) ListByPaymentReference(ctx context.Context, paymentReference string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_reference = ?", paymentReference).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list orders by payment reference")
	}
	return orders, nil
}

func (r *repository) UpdateFields(ctx context.Context, orderID uuid.UUID, fields map[string]any) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(fields).Error
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "update order")
	}
	return nil
}

func (r *repository) ListFailedErpSync(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("odoo_sync_status = ?", enums.ErpSyncStatusFailed).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list failed erp syncs")
	}
	return orders, nil
}

func (r *repository) MarkErpSynced(ctx context.Context, orderID uuid.UUID, odooOrderID int64) error {
	return r.UpdateFields(ctx, orderID, map[string]any{
		"odoo_sync_status": enums.ErpSyncStatusSynced,
		"odoo_order_id":    odooOrderID,
		"odoo_sync_error":  nil,
	})
}

func (r *repository) MarkErpSyncFailed(ctx context.Context, orderID uuid.UUID, syncErr string) error {
	return r.UpdateFields(ctx, orderID, map[string]any{
		"odoo_sync_status":   enums.ErpSyncStatusFailed,
		"odoo_sync_error":    syncErr,
		"odoo_last_retry_at": time.Now().UTC(),
	})
}
