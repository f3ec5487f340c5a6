// Package checkout composes the planner, the pricing engine and the
// inventory ledger into the preview/create flow. Preview never writes;
// create commits one order per assigned store.
package checkout

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/internal/address"
	"github.com/lucasfarre/ordercore-backend/internal/carts"
	"github.com/lucasfarre/ordercore-backend/internal/inventory"
	"github.com/lucasfarre/ordercore-backend/internal/orders"
	"github.com/lucasfarre/ordercore-backend/internal/planner"
	"github.com/lucasfarre/ordercore-backend/internal/pricing"
	"github.com/lucasfarre/ordercore-backend/internal/products"
	"github.com/lucasfarre/ordercore-backend/internal/users"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox"
	"github.com/lucasfarre/ordercore-backend/pkg/outbox/payloads"
)

// Service is the checkout orchestrator.
type Service interface {
	// Preview quotes a checkout without touching inventory or writing rows.
	Preview(ctx context.Context, input PreviewInput) (*Preview, error)
	// CreateOrder re-validates the preview and commits one order per
	// assigned store, placing inventory holds and consuming the carts.
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
}

type service struct {
	db      *db.Client
	carts   carts.Service
	book    address.Book
	planner planner.Planner
	pricer  pricing.Engine
	catalog products.Catalog
	users   users.Repository
	ledger  inventory.Ledger
	orders  orders.Repository
	emitter outbox.Emitter
	tariff  *tariff
	logger  *logger.Logger

	deliveryProductID uuid.UUID
}

// NewService wires the checkout orchestrator.
func NewService(
	client *db.Client,
	cartSvc carts.Service,
	book address.Book,
	plan planner.Planner,
	pricer pricing.Engine,
	catalog products.Catalog,
	userRepo users.Repository,
	ledger inventory.Ledger,
	orderRepo orders.Repository,
	emitter outbox.Emitter,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	switch {
	case client == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: db client is required")
	case cartSvc == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: cart service is required")
	case book == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: address book is required")
	case plan == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: planner is required")
	case pricer == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: pricing engine is required")
	case catalog == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: product catalog is required")
	case userRepo == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: users repository is required")
	case ledger == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: inventory ledger is required")
	case orderRepo == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: order repository is required")
	case emitter == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: outbox emitter is required")
	case logg == nil:
		return nil, errors.New(errors.CodeInternal, "checkout: logger is required")
	}

	tariff, err := newTariff(cfg)
	if err != nil {
		return nil, err
	}

	deliveryProductID := uuid.Nil
	if cfg.DeliveryProductID != "" {
		parsed, err := uuid.Parse(cfg.DeliveryProductID)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "checkout: invalid delivery product id")
		}
		deliveryProductID = parsed
	}

	return &service{
		db:                client,
		carts:             cartSvc,
		book:              book,
		planner:           plan,
		pricer:            pricer,
		catalog:           catalog,
		users:             userRepo,
		ledger:            ledger,
		orders:            orderRepo,
		emitter:           emitter,
		tariff:            tariff,
		logger:            logg,
		deliveryProductID: deliveryProductID,
	}, nil
}

func (s *service) Preview(ctx context.Context, input PreviewInput) (*Preview, error) {
	preview, _, err := s.buildPreview(ctx, input)
	return preview, err
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	ctx = s.logger.WithUserID(ctx, input.UserID.String())

	preview, lines, err := s.buildPreview(ctx, PreviewInput{
		UserID:   input.UserID,
		CartIDs:  input.CartIDs,
		Location: input.Location,
	})
	if err != nil {
		return nil, err
	}

	if len(preview.UnavailableItems) > 0 {
		return nil, errors.New(errors.CodeValidation, "some items are not available at any store").
			WithDetails(preview.UnavailableItems)
	}
	if preview.Mode == enums.FulfillmentModePickup && input.SplitOrder {
		return nil, errors.New(errors.CodeValidation, "split orders are not supported for pickup")
	}
	if preview.Mode == enums.FulfillmentModeDelivery && len(preview.Stores) > 1 && !input.SplitOrder {
		return nil, errors.New(errors.CodeValidation, "order spans multiple stores, retry with split_order enabled").
			WithDetails(preview)
	}

	// Stores commit in store-id order so concurrent checkouts touching the
	// same stores acquire their locks in one total order.
	commits := make([]StorePreview, len(preview.Stores))
	copy(commits, preview.Stores)
	sort.Slice(commits, func(i, j int) bool {
		return commits[i].StoreID.String() < commits[j].StoreID.String()
	})

	created := make(map[uuid.UUID]models.Order, len(commits))
	for i, store := range commits {
		lastStore := i == len(commits)-1
		order, err := s.commitStoreOrder(ctx, input, preview, store, lines, lastStore)
		if err != nil {
			if len(created) == 0 {
				return nil, err
			}
			// Stores already committed stay committed. Surface which ones so
			// the caller can reconcile.
			return nil, errors.Wrap(errors.CodeDependency, err, "checkout: order creation failed after partial commit").
				WithDetails(map[string]any{
					"committed_store_ids": committedIDs(created),
					"failed_store_id":     store.StoreID,
				})
		}
		created[store.StoreID] = *order
	}

	result := &CreateOrderResult{Preview: preview}
	for _, store := range preview.Stores {
		result.Orders = append(result.Orders, created[store.StoreID])
	}
	s.logger.Info(ctx, "checkout committed")
	return result, nil
}

// line carries the pricing and cart provenance of one aggregated item.
type line struct {
	productID      uuid.UUID
	quantity       int
	unitPriceCents int64
	discount       string
	sourceCartID   uuid.UUID
}

func (s *service) buildPreview(ctx context.Context, input PreviewInput) (*Preview, map[uuid.UUID]line, error) {
	if !input.Location.Mode.IsValid() {
		return nil, nil, errors.New(errors.CodeValidation, "unknown fulfillment mode")
	}
	level := input.Location.ServiceLevel
	if level == "" {
		level = enums.ServiceLevelStandard
	}
	if !level.IsValid() {
		return nil, nil, errors.New(errors.CodeValidation, "unknown service level")
	}

	checkoutCarts, err := s.carts.GetCheckoutCarts(ctx, input.UserID, input.CartIDs)
	if err != nil {
		return nil, nil, err
	}

	items, sources := aggregateCartItems(checkoutCarts)

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	productsByID, err := s.catalog.GetActiveProducts(ctx, productIDs)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.buildPlan(ctx, input, items)
	if err != nil {
		return nil, nil, err
	}

	requests := make([]pricing.PriceRequest, 0, len(items))
	for _, item := range items {
		product := productsByID[item.ProductID]
		requests = append(requests, pricing.PriceRequest{
			ProductID:      item.ProductID,
			BasePriceCents: int64(product.BasePriceCents),
			Quantity:       item.Quantity,
			CategoryIDs:    product.CategoryIDs,
		})
	}
	priced, err := s.pricer.PriceBulk(ctx, requests, user.Tier)
	if err != nil {
		return nil, nil, errors.Wrap(errors.CodeDependency, err, "checkout: pricing engine")
	}
	if len(priced) != len(requests) {
		return nil, nil, errors.New(errors.CodeDependency, "checkout: pricing engine returned mismatched results")
	}

	lines := make(map[uuid.UUID]line, len(items))
	for i, item := range items {
		lines[item.ProductID] = line{
			productID:      item.ProductID,
			quantity:       item.Quantity,
			unitPriceCents: priced[i].FinalPriceCents,
			discount:       priced[i].DiscountPercentage,
			sourceCartID:   sources[item.ProductID],
		}
	}

	preview := &Preview{
		Mode:             plan.Mode,
		ServiceLevel:     level,
		UnavailableItems: plan.UnavailableItems,
		IsNearby:         plan.IsNearby,
	}

	deliveryCharge := int64(0)
	if plan.Mode == enums.FulfillmentModeDelivery && len(plan.Assignments) > 0 {
		deliveryCharge = s.tariff.DeliveryCharge(plan.PrimaryDistanceKM, plan.IsNearby, level)
	}

	for i, assignment := range plan.Assignments {
		store := StorePreview{
			StoreID:    assignment.Store.ID,
			StoreName:  assignment.Store.Name,
			DistanceKM: assignment.DistanceKM,
		}
		for _, item := range assignment.Items {
			priced := lines[item.ProductID]
			total := priced.unitPriceCents * int64(item.Quantity)
			store.Items = append(store.Items, PreviewItem{
				ProductID:          item.ProductID,
				Quantity:           item.Quantity,
				UnitPriceCents:     priced.unitPriceCents,
				TotalPriceCents:    total,
				DiscountPercentage: priced.discount,
			})
			store.SubtotalCents += total
		}
		// The delivery charge rides on the primary (nearest) store.
		if i == 0 {
			store.DeliveryChargeCents = deliveryCharge
		}
		store.TotalCents = store.SubtotalCents + store.DeliveryChargeCents
		preview.Stores = append(preview.Stores, store)
		preview.SubtotalCents += store.SubtotalCents
	}
	preview.DeliveryChargeCents = deliveryCharge
	preview.TotalCents = preview.SubtotalCents + deliveryCharge

	return preview, lines, nil
}

func (s *service) buildPlan(ctx context.Context, input PreviewInput, items []planner.Item) (*planner.Plan, error) {
	switch input.Location.Mode {
	case enums.FulfillmentModePickup:
		if input.Location.StoreID == nil {
			return nil, errors.New(errors.CodeValidation, "pickup requires a store id")
		}
		return s.planner.PlanPickup(ctx, *input.Location.StoreID, items)
	case enums.FulfillmentModeDelivery:
		if input.Location.AddressID == nil {
			return nil, errors.New(errors.CodeValidation, "delivery requires an address id")
		}
		addr, err := s.book.GetAddress(ctx, *input.Location.AddressID, input.UserID)
		if err != nil {
			return nil, err
		}
		return s.planner.PlanDelivery(ctx, addr.Lat, addr.Lng, items)
	}
	return nil, errors.New(errors.CodeValidation, "unknown fulfillment mode")
}

func (s *service) commitStoreOrder(
	ctx context.Context,
	input CreateOrderInput,
	preview *Preview,
	store StorePreview,
	lines map[uuid.UUID]line,
	consumeCarts bool,
) (*models.Order, error) {
	var committed *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		order := &models.Order{
			ID:                  uuid.New(),
			UserID:              input.UserID,
			StoreID:             store.StoreID,
			AddressID:           input.Location.AddressID,
			Status:              enums.OrderStatusPending,
			FulfillmentMode:     preview.Mode,
			ServiceLevel:        preview.ServiceLevel,
			TotalAmountCents:    int(store.TotalCents),
			DeliveryChargeCents: int(store.DeliveryChargeCents),
		}
		if input.PaymentReference != "" {
			ref := input.PaymentReference
			order.PaymentReference = &ref
		}

		// Items sort by product id; holds below follow the same order.
		items := make([]PreviewItem, len(store.Items))
		copy(items, store.Items)
		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductID.String() < items[j].ProductID.String()
		})

		eventLines := make([]payloads.OrderLine, 0, len(items))
		for _, item := range items {
			sourceCartID := lines[item.ProductID].sourceCartID
			order.Items = append(order.Items, models.OrderItem{
				ID:              uuid.New(),
				OrderID:         order.ID,
				ProductID:       item.ProductID,
				StoreID:         store.StoreID,
				Quantity:        item.Quantity,
				UnitPriceCents:  int(item.UnitPriceCents),
				TotalPriceCents: int(item.TotalPriceCents),
				SourceCartID:    &sourceCartID,
			})
			eventLines = append(eventLines, payloads.OrderLine{
				ProductID:      item.ProductID,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
			})
		}
		if store.DeliveryChargeCents > 0 && s.deliveryProductID != uuid.Nil {
			order.Items = append(order.Items, models.OrderItem{
				ID:              uuid.New(),
				OrderID:         order.ID,
				ProductID:       s.deliveryProductID,
				StoreID:         store.StoreID,
				Quantity:        1,
				UnitPriceCents:  int(store.DeliveryChargeCents),
				TotalPriceCents: int(store.DeliveryChargeCents),
			})
		}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		for _, item := range items {
			if _, err := s.ledger.PlaceHold(ctx, tx, item.ProductID, store.StoreID, item.Quantity); err != nil {
				return err
			}
		}
		if consumeCarts {
			if err := s.carts.ConsumeCarts(ctx, tx, input.CartIDs); err != nil {
				return err
			}
		}

		err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorRef{UserID: input.UserID, Kind: string(enums.RoleCustomer)},
			Payload: payloads.OrderCreatedEvent{
				OrderID:             order.ID,
				UserID:              order.UserID,
				StoreID:             order.StoreID,
				FulfillmentMode:     string(order.FulfillmentMode),
				ServiceLevel:        string(order.ServiceLevel),
				TotalAmountCents:    int64(order.TotalAmountCents),
				DeliveryChargeCents: int64(order.DeliveryChargeCents),
				Lines:               eventLines,
			},
		})
		if err != nil {
			return err
		}

		committed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// aggregateCartItems sums quantities per product across carts, keeping
// first-seen order. The returned sources map records which cart first
// contributed each product for order-item traceability.
func aggregateCartItems(checkoutCarts []models.Cart) ([]planner.Item, map[uuid.UUID]uuid.UUID) {
	var items []planner.Item
	index := make(map[uuid.UUID]int)
	sources := make(map[uuid.UUID]uuid.UUID)

	for _, cart := range checkoutCarts {
		for _, cartItem := range cart.Items {
			if at, ok := index[cartItem.ProductID]; ok {
				items[at].Quantity += cartItem.Quantity
				continue
			}
			index[cartItem.ProductID] = len(items)
			sources[cartItem.ProductID] = cart.ID
			items = append(items, planner.Item{ProductID: cartItem.ProductID, Quantity: cartItem.Quantity})
		}
	}
	return items, sources
}

func committedIDs(created map[uuid.UUID]models.Order) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(created))
	for storeID := range created {
		out = append(out, storeID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
