package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/internal/inventory"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox"
	"github.com/lucasfarre/ordercore-backend/pkg/pagination"
)

type captureEmitter struct {
	events []outbox.DomainEvent
}

func (c *captureEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type harness struct {
	svc     Service
	db      *gorm.DB
	emitter *captureEmitter
	ledger  inventory.Ledger

	deliveryProductID uuid.UUID
}

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
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
);
CREATE TABLE IF NOT EXISTS inventory_records (
  product_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  quantity_available INTEGER NOT NULL DEFAULT 0,
  quantity_on_hold INTEGER NOT NULL DEFAULT 0,
  quantity_reserved INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME,
  PRIMARY KEY (product_id, store_id)
);`
	require.NoError(t, gdb.Exec(ddl).Error)
	return gdb
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gdb := setupOrdersTestDB(t)
	ledger, err := inventory.NewService(inventory.NewRepository(gdb))
	require.NoError(t, err)

	emitter := &captureEmitter{}
	deliveryProductID := uuid.New()

	svc, err := NewService(
		db.FromGorm(gdb),
		NewRepository(gdb),
		ledger,
		emitter,
		config.CheckoutConfig{DeliveryProductID: deliveryProductID.String()},
		logger.New(logger.Options{ServiceName: "orders-test"}),
	)
	require.NoError(t, err)

	return &harness{
		svc:               svc,
		db:                gdb,
		emitter:           emitter,
		ledger:            ledger,
		deliveryProductID: deliveryProductID,
	}
}

func (h *harness) seedOrder(t *testing.T, status enums.OrderStatus, mode enums.FulfillmentMode, items []models.OrderItem) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		StoreID:          uuid.New(),
		Status:           status,
		FulfillmentMode:  mode,
		ServiceLevel:     enums.ServiceLevelStandard,
		TotalAmountCents: 1000,
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
		items[i].StoreID = order.StoreID
	}
	order.Items = items
	require.NoError(t, h.db.Create(order).Error)
	return order
}

func (h *harness) seedStock(t *testing.T, productID, storeID uuid.UUID, available, onHold, reserved int) {
	t.Helper()
	err := h.db.Exec(
		`INSERT INTO inventory_records (product_id, store_id, quantity_available, quantity_on_hold, quantity_reserved)
		 VALUES (?, ?, ?, ?, ?)`,
		productID, storeID, available, onHold, reserved,
	).Error
	require.NoError(t, err)
}

func (h *harness) stock(t *testing.T, productID, storeID uuid.UUID) *models.InventoryRecord {
	t.Helper()
	record, err := inventory.NewRepository(h.db).Get(context.Background(), productID, storeID)
	require.NoError(t, err)
	return record
}

func operator() Actor {
	return Actor{UserID: uuid.New(), Role: enums.RoleOperator}
}

func TestConfirmPendingOrderConfirmsReservations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusPending, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 3, UnitPriceCents: 200, TotalPriceCents: 600},
	})
	h.seedStock(t, productID, order.StoreID, 7, 3, 0)

	updated, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed, operator())
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, updated.Status)
	require.NotNil(t, updated.ConfirmedAt)

	record := h.stock(t, productID, order.StoreID)
	require.Equal(t, 0, record.QuantityOnHold)
	require.Equal(t, 3, record.QuantityReserved)

	require.Len(t, h.emitter.events, 1)
	require.Equal(t, enums.EventOrderConfirmed, h.emitter.events[0].EventType)
	require.Equal(t, order.ID, h.emitter.events[0].AggregateID)
}

func TestShipRequiresPackedOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusConfirmed, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 1, UnitPriceCents: 100, TotalPriceCents: 100},
	})
	h.seedStock(t, productID, order.StoreID, 0, 0, 1)

	_, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, operator())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	require.Equal(t, "Order must be PACKED to be SHIPPED", typed.Message())

	reloaded, err := NewRepository(h.db).FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, reloaded.Status)
	require.Equal(t, 1, h.stock(t, productID, order.StoreID).QuantityReserved)
	require.Empty(t, h.emitter.events)
}

func TestShipPackedDeliveryFulfillsReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusPacked, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 3, UnitPriceCents: 100, TotalPriceCents: 300},
	})
	h.seedStock(t, productID, order.StoreID, 4, 0, 3)

	updated, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, operator())
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipped, updated.Status)

	record := h.stock(t, productID, order.StoreID)
	require.Equal(t, 0, record.QuantityReserved)
	require.Equal(t, 4, record.QuantityAvailable)

	require.Len(t, h.emitter.events, 1)
	require.Equal(t, enums.EventOrderShipped, h.emitter.events[0].EventType)
}

func TestPickupOrderDeliveredFromPacked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusPacked, enums.FulfillmentModePickup, []models.OrderItem{
		{ProductID: productID, Quantity: 2, UnitPriceCents: 100, TotalPriceCents: 200},
	})
	h.seedStock(t, productID, order.StoreID, 0, 0, 2)

	_, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, operator())
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	updated, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered, operator())
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)
	require.Equal(t, 0, h.stock(t, productID, order.StoreID).QuantityReserved)

	require.Len(t, h.emitter.events, 1)
	require.Equal(t, enums.EventOrderDelivered, h.emitter.events[0].EventType)
}

func TestDeliveryOrderMustShipBeforeDelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusPacked, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 1, UnitPriceCents: 100, TotalPriceCents: 100},
	})
	h.seedStock(t, productID, order.StoreID, 0, 0, 1)

	_, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered, operator())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, "Order must be SHIPPED to be DELIVERED", typed.Message())
}

func TestCancelPendingReleasesHolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusPending, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 2, UnitPriceCents: 100, TotalPriceCents: 200},
	})
	h.seedStock(t, productID, order.StoreID, 5, 2, 0)

	updated, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, operator())
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, updated.Status)
	require.NotNil(t, updated.CancelledAt)

	record := h.stock(t, productID, order.StoreID)
	require.Equal(t, 7, record.QuantityAvailable)
	require.Equal(t, 0, record.QuantityOnHold)

	require.Len(t, h.emitter.events, 1)
	require.Equal(t, enums.EventOrderCancelled, h.emitter.events[0].EventType)
}

func TestCancelAfterConfirmationRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusPacked,
	} {
		order := h.seedOrder(t, status, enums.FulfillmentModeDelivery, []models.OrderItem{
			{ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 100, TotalPriceCents: 100},
		})

		_, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, operator())
		require.Error(t, err, status)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
		require.Equal(t, fmt.Sprintf("cannot cancel a %s order", status), typed.Message())
	}
}

func TestSameStatusIsIdempotentNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusConfirmed, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 1, UnitPriceCents: 100, TotalPriceCents: 100},
	})
	h.seedStock(t, productID, order.StoreID, 0, 0, 1)

	updated, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed, operator())
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, updated.Status)
	require.Empty(t, h.emitter.events)
	require.Equal(t, 1, h.stock(t, productID, order.StoreID).QuantityReserved)
}

func TestDeliveryChargeLineNeverTouchesLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusPending, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 1, UnitPriceCents: 100, TotalPriceCents: 100},
		{ProductID: h.deliveryProductID, Quantity: 1, UnitPriceCents: 450, TotalPriceCents: 450},
	})
	// No inventory row exists for the delivery charge product. Confirming
	// still succeeds because that line is skipped.
	h.seedStock(t, productID, order.StoreID, 0, 1, 0)

	updated, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed, operator())
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, updated.Status)
}

func TestCustomerAccessRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	productID := uuid.New()
	order := h.seedOrder(t, enums.OrderStatusPending, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: productID, Quantity: 1, UnitPriceCents: 100, TotalPriceCents: 100},
	})
	h.seedStock(t, productID, order.StoreID, 5, 1, 0)

	stranger := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, stranger)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	owner := Actor{UserID: order.UserID, Role: enums.RoleCustomer}
	_, err = h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed, owner)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	updated, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, owner)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, updated.Status)
}

func TestTerminalOrdersRejectFurtherTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order := h.seedOrder(t, enums.OrderStatusCancelled, enums.FulfillmentModeDelivery, []models.OrderItem{
		{ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 100, TotalPriceCents: 100},
	})

	_, err := h.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed, operator())
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestListUserOrdersPaginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		order := &models.Order{
			ID:               uuid.New(),
			UserID:           userID,
			StoreID:          uuid.New(),
			Status:           enums.OrderStatusPending,
			FulfillmentMode:  enums.FulfillmentModePickup,
			ServiceLevel:     enums.ServiceLevelStandard,
			TotalAmountCents: 100,
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, h.db.Create(order).Error)
	}

	page, next, err := h.svc.ListUserOrders(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	require.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, next2, err := h.svc.ListUserOrders(ctx, userID, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Empty(t, next2)
}
