// Package erpsync mirrors confirmed orders into the ERP. Settlement hands
// order ids to an in-process queue; a worker drains it and performs the
// customer upsert, order creation, and confirmation against Odoo. Failed
// syncs are recorded on the order and retried only by the operator sweep.
package erpsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/metrics"
	"github.com/lucasfarre/ordercore-backend/pkg/odoo"
)

const (
	jobSync  = "erp_sync"
	jobSweep = "erp_retry_sweep"

	sweepLockName  = "erp-retry-sweep"
	sweepBatchSize = 50

	// deliveryLineRef is the ERP product reference for the delivery charge
	// line; it has no counterpart in the local catalog.
	deliveryLineRef = "delivery"
)

// Service is the ERP synchronization consumer.
type Service interface {
	// Enqueue hands an order to the worker queue. It never blocks; a full
	// queue drops the hand-off and the order stays on pending sync status
	// for the operator sweep.
	Enqueue(orderID uuid.UUID) bool

	// Run drains the queue until the context is cancelled.
	Run(ctx context.Context)

	// Sync mirrors one order into the ERP and records the outcome on the
	// order row.
	Sync(ctx context.Context, orderID uuid.UUID) error

	// RetryFailed re-runs Sync for orders stuck on failed status. Only one
	// sweep runs at a time across instances.
	RetryFailed(ctx context.Context) error
}

type orderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListFailedErpSync(ctx context.Context, limit int) ([]models.Order, error)
	MarkErpSynced(ctx context.Context, orderID uuid.UUID, odooOrderID int64) error
	MarkErpSyncFailed(ctx context.Context, orderID uuid.UUID, syncErr string) error
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetOdooCustomerID(ctx context.Context, id uuid.UUID, odooCustomerID int64) error
}

type productCatalog interface {
	GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// erpClient is the slice of the Odoo client this worker uses.
type erpClient interface {
	UpsertCustomer(ctx context.Context, params odoo.CustomerParams) (int64, error)
	CreateOrFindOrder(ctx context.Context, params odoo.OrderParams) (int64, error)
	ConfirmOrder(ctx context.Context, orderID int64) error
}

// sweepLock guards the retry sweep across instances. Nil disables locking.
type sweepLock interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

type service struct {
	orders  orderStore
	users   userStore
	catalog productCatalog
	erp     erpClient
	lock    sweepLock
	jobs    *metrics.JobMetrics
	logger  *logger.Logger

	queue             chan uuid.UUID
	sweepLockTTL      time.Duration
	deliveryProductID uuid.UUID
}

// NewService wires the sync worker. The redis lock and job metrics are
// optional.
func NewService(
	orderRepo orderStore,
	userRepo userStore,
	catalog productCatalog,
	erp erpClient,
	lock sweepLock,
	jobs *metrics.JobMetrics,
	cfg config.ErpSyncConfig,
	checkoutCfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	switch {
	case orderRepo == nil:
		return nil, errors.New(errors.CodeInternal, "erpsync: order repository is required")
	case userRepo == nil:
		return nil, errors.New(errors.CodeInternal, "erpsync: user repository is required")
	case catalog == nil:
		return nil, errors.New(errors.CodeInternal, "erpsync: product catalog is required")
	case erp == nil:
		return nil, errors.New(errors.CodeInternal, "erpsync: erp client is required")
	case logg == nil:
		return nil, errors.New(errors.CodeInternal, "erpsync: logger is required")
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	sweepTTL := cfg.RetrySweepLock
	if sweepTTL <= 0 {
		sweepTTL = 30 * time.Minute
	}

	var deliveryProductID uuid.UUID
	if checkoutCfg.DeliveryProductID != "" {
		parsed, err := uuid.Parse(checkoutCfg.DeliveryProductID)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "erpsync: invalid delivery product id")
		}
		deliveryProductID = parsed
	}

	return &service{
		orders:            orderRepo,
		users:             userRepo,
		catalog:           catalog,
		erp:               erp,
		lock:              lock,
		jobs:              jobs,
		logger:            logg,
		queue:             make(chan uuid.UUID, queueSize),
		sweepLockTTL:      sweepTTL,
		deliveryProductID: deliveryProductID,
	}, nil
}

func (s *service) Enqueue(orderID uuid.UUID) bool {
	select {
	case s.queue <- orderID:
		return true
	default:
		ctx := s.logger.WithOrderID(context.Background(), orderID.String())
		s.logger.Warn(ctx, "erp sync queue full, order left for retry sweep")
		return false
	}
}

func (s *service) Run(ctx context.Context) {
	s.logger.Info(ctx, "erp sync worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "erp sync worker stopped")
			return
		case orderID := <-s.queue:
			if err := s.Sync(ctx, orderID); err != nil {
				s.logger.Error(s.logger.WithOrderID(ctx, orderID.String()), "erp sync failed", err)
			}
		}
	}
}

func (s *service) Sync(ctx context.Context, orderID uuid.UUID) error {
	ctx = s.logger.WithOrderID(ctx, orderID.String())
	started := time.Now()

	err := s.sync(ctx, orderID)
	if s.jobs != nil {
		s.jobs.ObserveDuration(jobSync, time.Since(started))
		if err != nil {
			s.jobs.IncFailure(jobSync)
		} else {
			s.jobs.IncSuccess(jobSync)
		}
	}
	if err != nil {
		if markErr := s.orders.MarkErpSyncFailed(ctx, orderID, err.Error()); markErr != nil {
			s.logger.Error(ctx, "recording erp sync failure", markErr)
		}
		return err
	}
	return nil
}

func (s *service) sync(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.OdooSyncStatus == enums.ErpSyncStatusSynced {
		return nil
	}

	customerID, err := s.resolveCustomer(ctx, order.UserID)
	if err != nil {
		return err
	}

	lines, err := s.buildLines(ctx, order)
	if err != nil {
		return err
	}

	odooOrderID, err := s.erp.CreateOrFindOrder(ctx, odoo.OrderParams{
		ClientOrderRef: clientOrderRef(order.ID),
		CustomerID:     customerID,
		Lines:          lines,
	})
	if err != nil {
		return err
	}
	if err := s.erp.ConfirmOrder(ctx, odooOrderID); err != nil {
		return err
	}

	if err := s.orders.MarkErpSynced(ctx, orderID, odooOrderID); err != nil {
		return err
	}
	s.logger.Info(ctx, "order synced to erp")
	return nil
}

// resolveCustomer returns the cached Odoo partner id or upserts one.
func (s *service) resolveCustomer(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.OdooCustomerID != nil {
		return *user.OdooCustomerID, nil
	}

	params := odoo.CustomerParams{
		ExternalRef: user.ID.String(),
		Name:        user.Name,
		Email:       user.Email,
	}
	if user.Phone != nil {
		params.Phone = *user.Phone
	}
	customerID, err := s.erp.UpsertCustomer(ctx, params)
	if err != nil {
		return 0, err
	}
	if err := s.users.SetOdooCustomerID(ctx, user.ID, customerID); err != nil {
		return 0, err
	}
	return customerID, nil
}

func (s *service) buildLines(ctx context.Context, order *models.Order) ([]odoo.OrderLine, error) {
	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if s.deliveryProductID != uuid.Nil && item.ProductID == s.deliveryProductID {
			continue
		}
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	lines := make([]odoo.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		if s.deliveryProductID != uuid.Nil && item.ProductID == s.deliveryProductID {
			lines = append(lines, odoo.OrderLine{
				ProductRef: deliveryLineRef,
				Name:       "Delivery charge",
				Quantity:   1,
				UnitPrice:  centsToUnits(item.TotalPriceCents),
			})
			continue
		}
		product := products[item.ProductID]
		lines = append(lines, odoo.OrderLine{
			ProductRef: product.SKU,
			Name:       product.Name,
			Quantity:   item.Quantity,
			UnitPrice:  centsToUnits(item.UnitPriceCents),
		})
	}
	return lines, nil
}

func (s *service) RetryFailed(ctx context.Context) error {
	if s.lock != nil {
		key := s.lock.LockKey(sweepLockName)
		acquired, err := s.lock.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.sweepLockTTL)
		if err != nil {
			return errors.Wrap(errors.CodeDependency, err, "erpsync: acquire sweep lock")
		}
		if !acquired {
			return errors.New(errors.CodeConflict, "erp retry sweep is already running")
		}
		defer func() {
			if err := s.lock.Del(context.WithoutCancel(ctx), key); err != nil {
				s.logger.Error(ctx, "releasing sweep lock", err)
			}
		}()
	}

	started := time.Now()
	failed, err := s.orders.ListFailedErpSync(ctx, sweepBatchSize)
	if err != nil {
		return err
	}

	var errs error
	for _, order := range failed {
		if err := s.Sync(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}

	if s.jobs != nil {
		s.jobs.ObserveDuration(jobSweep, time.Since(started))
		if errs != nil {
			s.jobs.IncFailure(jobSweep)
		} else {
			s.jobs.IncSuccess(jobSweep)
		}
	}
	if errs != nil {
		return errors.Wrap(errors.CodeDependency, errs, "erpsync: retry sweep completed with failures")
	}
	s.logger.Info(ctx, "erp retry sweep completed")
	return nil
}

// clientOrderRef is deterministic per order so replays reuse the same
// sale order instead of creating duplicates.
func clientOrderRef(orderID uuid.UUID) string {
	return "ordercore-" + orderID.String()
}

func centsToUnits(cents int) float64 {
	return float64(cents) / 100
}
