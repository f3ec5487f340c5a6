// Package orders owns the order state machine. Every transition runs in
// a single transaction together with its inventory effects and outbox
// event, so a crash never leaves an order half-moved.
package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/internal/inventory"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox/payloads"
	"github.com/lucasfarre/ordercore-backend/pkg/pagination"
)

// Actor identifies who requested a transition.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// Service is the public surface of the order state machine.
type Service interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	// UpdateStatus moves an order to next. A request for the status the
	// order already has is a no-op and returns the order unchanged.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus, actor Actor) (*models.Order, error)
}

type service struct {
	db                *db.Client
	repo              Repository
	ledger            inventory.Ledger
	emitter           outbox.Emitter
	logger            *logger.Logger
	deliveryProductID uuid.UUID
}

// NewService wires the order state machine.
func NewService(
	client *db.Client,
	repo Repository,
	ledger inventory.Ledger,
	emitter outbox.Emitter,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, errors.New(errors.CodeInternal, "orders: db client is required")
	}
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "orders: repository is required")
	}
	if ledger == nil {
		return nil, errors.New(errors.CodeInternal, "orders: inventory ledger is required")
	}
	if emitter == nil {
		return nil, errors.New(errors.CodeInternal, "orders: outbox emitter is required")
	}
	if logg == nil {
		return nil, errors.New(errors.CodeInternal, "orders: logger is required")
	}

	deliveryProductID := uuid.Nil
	if cfg.DeliveryProductID != "" {
		parsed, err := uuid.Parse(cfg.DeliveryProductID)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "orders: invalid delivery product id")
		}
		deliveryProductID = parsed
	}

	return &service{
		db:                client,
		repo:              repo,
		ledger:            ledger,
		emitter:           emitter,
		logger:            logg,
		deliveryProductID: deliveryProductID,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role == enums.RoleCustomer && order.UserID != actor.UserID {
		return nil, errors.New(errors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", errors.Wrap(errors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	orders, err := s.repo.ListByUser(ctx, userID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return orders, nextCursor, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus, actor Actor) (*models.Order, error) {
	if !next.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown order status").WithDetails(next.String())
	}

	ctx = s.logger.WithOrderID(ctx, orderID.String())

	var updated *models.Order
	transitioned := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		if actor.Role == enums.RoleCustomer {
			if order.UserID != actor.UserID {
				return errors.New(errors.CodeForbidden, "order does not belong to user")
			}
			if next != enums.OrderStatusCancelled {
				return errors.New(errors.CodeForbidden, "customers can only cancel orders")
			}
		}

		if order.Status == next {
			updated = order
			return nil
		}

		if err := s.applyTransition(ctx, tx, repo, order, next, actor); err != nil {
			return err
		}
		updated = order
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.logger.Info(ctx, fmt.Sprintf("order transitioned to %s", next))
	}
	return updated, nil
}

func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, next enums.OrderStatus, actor Actor) error {
	if order.Status.IsTerminal() {
		return errors.New(errors.CodeStateConflict, fmt.Sprintf("order is already %s", order.Status))
	}

	now := time.Now().UTC()

	switch next {
	case enums.OrderStatusConfirmed:
		if order.Status != enums.OrderStatusPending {
			return transitionError(enums.OrderStatusPending, next)
		}
		if err := s.forEachLedgerItem(ctx, tx, order, s.ledger.ConfirmReservation); err != nil {
			return err
		}
		if err := repo.UpdateFields(ctx, order.ID, map[string]any{
			"status":       next,
			"confirmed_at": now,
		}); err != nil {
			return err
		}
		order.Status = next
		order.ConfirmedAt = &now
		return s.emit(ctx, tx, order, actor, enums.EventOrderConfirmed, payloads.OrderConfirmedEvent{
			OrderID:          order.ID,
			UserID:           order.UserID,
			StoreID:          order.StoreID,
			PaymentReference: derefString(order.PaymentReference),
			TotalAmountCents: int64(order.TotalAmountCents),
			ConfirmedAt:      now,
		})

	case enums.OrderStatusProcessing:
		if order.Status != enums.OrderStatusConfirmed {
			return transitionError(enums.OrderStatusConfirmed, next)
		}
		if err := repo.UpdateFields(ctx, order.ID, map[string]any{"status": next}); err != nil {
			return err
		}
		order.Status = next
		return nil

	case enums.OrderStatusPacked:
		if order.Status != enums.OrderStatusProcessing {
			return transitionError(enums.OrderStatusProcessing, next)
		}
		if err := repo.UpdateFields(ctx, order.ID, map[string]any{"status": next}); err != nil {
			return err
		}
		order.Status = next
		return nil

	case enums.OrderStatusShipped:
		if order.FulfillmentMode == enums.FulfillmentModePickup {
			return errors.New(errors.CodeStateConflict, "pickup orders cannot be shipped")
		}
		if order.Status != enums.OrderStatusPacked {
			return transitionError(enums.OrderStatusPacked, next)
		}
		if err := s.forEachLedgerItem(ctx, tx, order, s.ledger.FulfillOrder); err != nil {
			return err
		}
		if err := repo.UpdateFields(ctx, order.ID, map[string]any{"status": next}); err != nil {
			return err
		}
		order.Status = next
		return s.emit(ctx, tx, order, actor, enums.EventOrderShipped, payloads.OrderShippedEvent{
			OrderID: order.ID,
			StoreID: order.StoreID,
		})

	case enums.OrderStatusDelivered:
		if order.FulfillmentMode == enums.FulfillmentModePickup {
			if order.Status != enums.OrderStatusPacked {
				return transitionError(enums.OrderStatusPacked, next)
			}
			if err := s.forEachLedgerItem(ctx, tx, order, s.ledger.FulfillOrder); err != nil {
				return err
			}
		} else if order.Status != enums.OrderStatusShipped {
			return transitionError(enums.OrderStatusShipped, next)
		}
		if err := repo.UpdateFields(ctx, order.ID, map[string]any{
			"status":       next,
			"delivered_at": now,
		}); err != nil {
			return err
		}
		order.Status = next
		order.DeliveredAt = &now
		return s.emit(ctx, tx, order, actor, enums.EventOrderDelivered, payloads.OrderDeliveredEvent{
			OrderID:     order.ID,
			StoreID:     order.StoreID,
			DeliveredAt: now,
		})

	case enums.OrderStatusCancelled:
		if order.Status != enums.OrderStatusPending {
			return errors.New(errors.CodeStateConflict, fmt.Sprintf("cannot cancel a %s order", order.Status))
		}
		if err := s.forEachLedgerItem(ctx, tx, order, s.ledger.ReleaseHold); err != nil {
			return err
		}
		if err := repo.UpdateFields(ctx, order.ID, map[string]any{
			"status":       next,
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		order.Status = next
		order.CancelledAt = &now
		return s.emit(ctx, tx, order, actor, enums.EventOrderCancelled, payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			StoreID:     order.StoreID,
			CancelledAt: now,
		})

	case enums.OrderStatusPending:
		return errors.New(errors.CodeStateConflict, "order cannot return to PENDING")
	}

	return errors.New(errors.CodeValidation, "unknown order status").WithDetails(next.String())
}

type ledgerOp func(ctx context.Context, tx *gorm.DB, productID, storeID uuid.UUID, qty int) (*models.InventoryRecord, error)

// forEachLedgerItem applies op to every stocked line. The delivery
// charge line is synthetic and never touches the ledger. Items are
// visited in product id order so concurrent transitions acquire row
// locks in the same sequence.
func (s *service) forEachLedgerItem(ctx context.Context, tx *gorm.DB, order *models.Order, op ledgerOp) error {
	items := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if s.deliveryProductID != uuid.Nil && item.ProductID == s.deliveryProductID {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})

	for _, item := range items {
		if _, err := op(ctx, tx, item.ProductID, item.StoreID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, eventType enums.OutboxEventType, payload any) error {
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.ActorRef{UserID: actor.UserID, Kind: string(actor.Role)},
		Payload:       payload,
	})
}

func transitionError(required, target enums.OrderStatus) error {
	return errors.New(
		errors.CodeStateConflict,
		fmt.Sprintf("Order must be %s to be %s", strings.ToUpper(required.String()), strings.ToUpper(target.String())),
	)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
