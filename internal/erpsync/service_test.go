package erpsync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/internal/orders"
	"github.com/lucasfarre/ordercore-backend/internal/products"
	"github.com/lucasfarre/ordercore-backend/internal/users"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/metrics"
	"github.com/lucasfarre/ordercore-backend/pkg/odoo"
)

type fakeErp struct {
	upserts   []odoo.CustomerParams
	orders    []odoo.OrderParams
	confirmed []int64

	customerID int64
	orderID    int64
	orderErr   error
	confirmErr error
}

func (f *fakeErp) UpsertCustomer(_ context.Context, params odoo.CustomerParams) (int64, error) {
	f.upserts = append(f.upserts, params)
	return f.customerID, nil
}

func (f *fakeErp) CreateOrFindOrder(_ context.Context, params odoo.OrderParams) (int64, error) {
	if f.orderErr != nil {
		return 0, f.orderErr
	}
	f.orders = append(f.orders, params)
	f.orderID++
	return f.orderID, nil
}

func (f *fakeErp) ConfirmOrder(_ context.Context, orderID int64) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, orderID)
	return nil
}

type fakeLock struct {
	deny     bool
	acquired []string
	released []string
}

func (f *fakeLock) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.deny {
		return false, nil
	}
	f.acquired = append(f.acquired, key)
	return true, nil
}

func (f *fakeLock) Del(_ context.Context, keys ...string) error {
	f.released = append(f.released, keys...)
	return nil
}

func (f *fakeLock) LockKey(name string) string { return "oc:lock:" + name }

type harness struct {
	svc               Service
	db                *gorm.DB
	erp               *fakeErp
	lock              *fakeLock
	deliveryProductID uuid.UUID
}

func setupErpSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL,
  phone TEXT,
  tier TEXT NOT NULL DEFAULT 'standard',
  odoo_customer_id INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  sku TEXT NOT NULL,
  base_price_cents INTEGER NOT NULL,
  category_ids TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  address_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  fulfillment_mode TEXT NOT NULL,
  service_level TEXT NOT NULL DEFAULT 'standard',
  total_amount_cents INTEGER NOT NULL,
  delivery_charge_cents INTEGER NOT NULL DEFAULT 0,
  payment_reference TEXT,
  odoo_sync_status TEXT NOT NULL DEFAULT 'pending',
  odoo_order_id INTEGER,
  odoo_last_retry_at DATETIME,
  odoo_sync_error TEXT,
  confirmed_at DATETIME,
  cancelled_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_price_cents INTEGER NOT NULL,
  source_cart_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, gdb.Exec(ddl).Error)
	return gdb
}

func newHarness(t *testing.T, cfg config.ErpSyncConfig) *harness {
	t.Helper()

	gdb := setupErpSyncTestDB(t)
	erp := &fakeErp{customerID: 501}
	lock := &fakeLock{}
	deliveryProductID := uuid.New()

	catalog, err := products.NewCatalog(gdb)
	require.NoError(t, err)

	svc, err := NewService(
		orders.NewRepository(gdb),
		users.NewRepository(gdb),
		catalog,
		erp,
		lock,
		metrics.NewJobMetrics(prometheus.NewRegistry()),
		cfg,
		config.CheckoutConfig{DeliveryProductID: deliveryProductID.String()},
		logger.New(logger.Options{ServiceName: "erpsync-test"}),
	)
	require.NoError(t, err)

	return &harness{svc: svc, db: gdb, erp: erp, lock: lock, deliveryProductID: deliveryProductID}
}

func (h *harness) seedUser(t *testing.T, odooCustomerID *int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.db.Create(&models.User{
		ID:             id,
		Email:          id.String() + "@example.com",
		Name:           "Buyer",
		Tier:           "standard",
		OdooCustomerID: odooCustomerID,
	}).Error)
	return id
}

func (h *harness) seedProduct(t *testing.T, name, sku string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.db.Create(&models.Product{
		ID: id, Name: name, SKU: sku, BasePriceCents: 500, Active: true,
	}).Error)
	return id
}

// seedOrder creates a confirmed order with one line per (productID, qty,
// unitCents) triple.
func (h *harness) seedOrder(t *testing.T, userID uuid.UUID, syncStatus enums.ErpSyncStatus, lines ...[3]any) uuid.UUID {
	t.Helper()

	orderID := uuid.New()
	storeID := uuid.New()
	order := &models.Order{
		ID:               orderID,
		UserID:           userID,
		StoreID:          storeID,
		Status:           enums.OrderStatusConfirmed,
		FulfillmentMode:  enums.FulfillmentModePickup,
		ServiceLevel:     enums.ServiceLevelStandard,
		TotalAmountCents: 1000,
		OdooSyncStatus:   syncStatus,
	}
	for _, line := range lines {
		productID := line[0].(uuid.UUID)
		quantity := line[1].(int)
		unitCents := line[2].(int)
		order.Items = append(order.Items, models.OrderItem{
			ID:              uuid.New(),
			OrderID:         orderID,
			ProductID:       productID,
			StoreID:         storeID,
			Quantity:        quantity,
			UnitPriceCents:  unitCents,
			TotalPriceCents: quantity * unitCents,
		})
	}
	require.NoError(t, h.db.Create(order).Error)
	return orderID
}

func (h *harness) orderRow(t *testing.T, orderID uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.db.First(&order, "id = ?", orderID).Error)
	return &order
}

func TestSyncUpsertsCustomerAndConfirmsOrder(t *testing.T) {
	h := newHarness(t, config.ErpSyncConfig{})
	ctx := context.Background()

	userID := h.seedUser(t, nil)
	productID := h.seedProduct(t, "Widget", "WID-1")
	orderID := h.seedOrder(t, userID, enums.ErpSyncStatusPending,
		[3]any{productID, 2, 500},
		[3]any{h.deliveryProductID, 1, 300},
	)

	require.NoError(t, h.svc.Sync(ctx, orderID))

	require.Len(t, h.erp.upserts, 1)
	require.Equal(t, userID.String(), h.erp.upserts[0].ExternalRef)

	require.Len(t, h.erp.orders, 1)
	params := h.erp.orders[0]
	require.Equal(t, "ordercore-"+orderID.String(), params.ClientOrderRef)
	require.Equal(t, int64(501), params.CustomerID)
	require.Len(t, params.Lines, 2)
	require.Equal(t, odoo.OrderLine{ProductRef: "WID-1", Name: "Widget", Quantity: 2, UnitPrice: 5}, params.Lines[0])
	require.Equal(t, odoo.OrderLine{ProductRef: "delivery", Name: "Delivery charge", Quantity: 1, UnitPrice: 3}, params.Lines[1])

	require.Equal(t, []int64{1}, h.erp.confirmed)

	order := h.orderRow(t, orderID)
	require.Equal(t, enums.ErpSyncStatusSynced, order.OdooSyncStatus)
	require.NotNil(t, order.OdooOrderID)
	require.Equal(t, int64(1), *order.OdooOrderID)

	// The partner id is cached on the user row.
	var user models.User
	require.NoError(t, h.db.First(&user, "id = ?", userID).Error)
	require.NotNil(t, user.OdooCustomerID)
	require.Equal(t, int64(501), *user.OdooCustomerID)

	// A second sync of an already-synced order is a no-op.
	require.NoError(t, h.svc.Sync(ctx, orderID))
	require.Len(t, h.erp.orders, 1)
	require.Len(t, h.erp.confirmed, 1)
}

func TestSyncUsesCachedCustomerID(t *testing.T) {
	h := newHarness(t, config.ErpSyncConfig{})
	ctx := context.Background()

	cached := int64(77)
	userID := h.seedUser(t, &cached)
	productID := h.seedProduct(t, "Widget", "WID-1")
	orderID := h.seedOrder(t, userID, enums.ErpSyncStatusPending, [3]any{productID, 1, 500})

	require.NoError(t, h.svc.Sync(ctx, orderID))
	require.Empty(t, h.erp.upserts)
	require.Equal(t, int64(77), h.erp.orders[0].CustomerID)
}

func TestSyncFailureRecordsError(t *testing.T) {
	h := newHarness(t, config.ErpSyncConfig{})
	ctx := context.Background()

	userID := h.seedUser(t, nil)
	productID := h.seedProduct(t, "Widget", "WID-1")
	orderID := h.seedOrder(t, userID, enums.ErpSyncStatusPending, [3]any{productID, 1, 500})

	h.erp.orderErr = pkgerrors.New(pkgerrors.CodeDependency, "odoo unavailable")

	err := h.svc.Sync(ctx, orderID)
	require.Error(t, err)

	order := h.orderRow(t, orderID)
	require.Equal(t, enums.ErpSyncStatusFailed, order.OdooSyncStatus)
	require.NotNil(t, order.OdooSyncError)
	require.Contains(t, *order.OdooSyncError, "odoo unavailable")
	require.NotNil(t, order.OdooLastRetryAt)
}

func TestRetryFailedSweepsFailedOrders(t *testing.T) {
	h := newHarness(t, config.ErpSyncConfig{})
	ctx := context.Background()

	userID := h.seedUser(t, nil)
	productID := h.seedProduct(t, "Widget", "WID-1")
	first := h.seedOrder(t, userID, enums.ErpSyncStatusFailed, [3]any{productID, 1, 500})
	second := h.seedOrder(t, userID, enums.ErpSyncStatusFailed, [3]any{productID, 2, 500})
	pending := h.seedOrder(t, userID, enums.ErpSyncStatusPending, [3]any{productID, 3, 500})

	require.NoError(t, h.svc.RetryFailed(ctx))

	require.Equal(t, enums.ErpSyncStatusSynced, h.orderRow(t, first).OdooSyncStatus)
	require.Equal(t, enums.ErpSyncStatusSynced, h.orderRow(t, second).OdooSyncStatus)
	// The sweep only touches failed orders.
	require.Equal(t, enums.ErpSyncStatusPending, h.orderRow(t, pending).OdooSyncStatus)

	require.Equal(t, []string{"oc:lock:erp-retry-sweep"}, h.lock.acquired)
	require.Equal(t, []string{"oc:lock:erp-retry-sweep"}, h.lock.released)
}

func TestRetryFailedAggregatesErrorsAndReleasesLock(t *testing.T) {
	h := newHarness(t, config.ErpSyncConfig{})
	ctx := context.Background()

	userID := h.seedUser(t, nil)
	productID := h.seedProduct(t, "Widget", "WID-1")
	orderID := h.seedOrder(t, userID, enums.ErpSyncStatusFailed, [3]any{productID, 1, 500})

	h.erp.orderErr = pkgerrors.New(pkgerrors.CodeDependency, "odoo unavailable")

	err := h.svc.RetryFailed(ctx)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Contains(t, err.Error(), orderID.String())
	require.Len(t, h.lock.released, 1)
}

func TestRetryFailedRefusesWhenLockHeld(t *testing.T) {
	h := newHarness(t, config.ErpSyncConfig{})
	h.lock.deny = true

	err := h.svc.RetryFailed(context.Background())
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Empty(t, h.lock.released)
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	h := newHarness(t, config.ErpSyncConfig{QueueSize: 1})

	require.True(t, h.svc.Enqueue(uuid.New()))
	require.False(t, h.svc.Enqueue(uuid.New()))
}
