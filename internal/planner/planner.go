// Package planner maps cart items plus a fulfillment target onto one
// or more fulfilling stores. Pickup is all-or-nothing at the named
// store; delivery splits greedily across stores in ascending-distance
// order.
package planner

import (
	"context"

	"github.com/google/uuid"

	"github.com/lucasfarre/ordercore-backend/internal/stores"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// Item is one (product, quantity) line to place.
type Item struct {
	ProductID uuid.UUID
	Quantity  int
}

// Assignment is the set of items one store will fulfill.
type Assignment struct {
	Store      models.Store
	DistanceKM float64
	Items      []Item
}

// Plan is the planner output. Assignments ∪ UnavailableItems always
// equals the input item set with no duplicates.
type Plan struct {
	Mode              enums.FulfillmentMode
	Assignments       []Assignment
	UnavailableItems  []Item
	PrimaryDistanceKM float64
	IsNearby          bool
}

// storeDirectory is the subset of the store directory the planner needs.
type storeDirectory interface {
	GetActiveStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	NearestStores(ctx context.Context, lat, lng, radiusKM float64) ([]stores.StoreDistance, error)
	DefaultStores(ctx context.Context, lat, lng float64) ([]stores.StoreDistance, error)
}

// stockReader reports available quantity per product at one store.
type stockReader interface {
	AvailableAt(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// Planner builds fulfillment plans.
type Planner interface {
	PlanPickup(ctx context.Context, storeID uuid.UUID, items []Item) (*Plan, error)
	PlanDelivery(ctx context.Context, lat, lng float64, items []Item) (*Plan, error)
}

type service struct {
	directory storeDirectory
	stock     stockReader
	radiusKM  float64
}

// NewService builds the store selection planner.
func NewService(directory storeDirectory, stock stockReader, cfg config.CheckoutConfig) (Planner, error) {
	if directory == nil {
		return nil, errors.New(errors.CodeInternal, "planner: store directory is required")
	}
	if stock == nil {
		return nil, errors.New(errors.CodeInternal, "planner: stock reader is required")
	}
	return &service{
		directory: directory,
		stock:     stock,
		radiusKM:  cfg.StoreSearchRadiusKM,
	}, nil
}

func (s *service) PlanPickup(ctx context.Context, storeID uuid.UUID, items []Item) (*Plan, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	store, err := s.directory.GetActiveStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !store.AllowsPickup {
		return nil, errors.New(errors.CodeValidation, "store does not allow pickup")
	}

	available, err := s.stock.AvailableAt(ctx, store.ID, productIDs(items))
	if err != nil {
		return nil, err
	}

	// No splitting for pickup: every item either fits at this store or
	// is reported unavailable.
	assigned := make([]Item, 0, len(items))
	unavailable := []Item{}
	for _, item := range items {
		if available[item.ProductID] >= item.Quantity {
			assigned = append(assigned, item)
		} else {
			unavailable = append(unavailable, item)
		}
	}

	plan := &Plan{
		Mode:             enums.FulfillmentModePickup,
		UnavailableItems: unavailable,
		IsNearby:         true,
	}
	if len(assigned) > 0 {
		plan.Assignments = []Assignment{{Store: *store, Items: assigned}}
	}
	return plan, nil
}

func (s *service) PlanDelivery(ctx context.Context, lat, lng float64, items []Item) (*Plan, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	candidates, err := s.directory.NearestStores(ctx, lat, lng, s.radiusKM)
	if err != nil {
		return nil, err
	}
	isNearby := len(candidates) > 0
	if !isNearby {
		candidates, err = s.directory.DefaultStores(ctx, lat, lng)
		if err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.CodeNotFound, "no fulfilling stores available")
	}

	plan := &Plan{
		Mode:              enums.FulfillmentModeDelivery,
		PrimaryDistanceKM: candidates[0].DistanceKM,
		IsNearby:          isNearby,
	}

	// Visit stores strictly in ascending-distance order; an item is
	// assigned whole to the first store that stocks its full quantity
	// and is never re-balanced afterwards.
	remaining := append([]Item(nil), items...)
	for _, candidate := range candidates {
		if len(remaining) == 0 {
			break
		}
		available, err := s.stock.AvailableAt(ctx, candidate.Store.ID, productIDs(remaining))
		if err != nil {
			return nil, err
		}

		taken := make([]Item, 0, len(remaining))
		left := make([]Item, 0, len(remaining))
		for _, item := range remaining {
			if available[item.ProductID] >= item.Quantity {
				taken = append(taken, item)
			} else {
				left = append(left, item)
			}
		}
		if len(taken) > 0 {
			plan.Assignments = append(plan.Assignments, Assignment{
				Store:      candidate.Store,
				DistanceKM: candidate.DistanceKM,
				Items:      taken,
			})
		}
		remaining = left
	}

	plan.UnavailableItems = remaining
	return plan, nil
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return errors.New(errors.CodeValidation, "at least one item is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return errors.New(errors.CodeValidation, "item quantity must be positive")
		}
		if _, dup := seen[item.ProductID]; dup {
			return errors.New(errors.CodeValidation, "duplicate product in item list")
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func productIDs(items []Item) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		out = append(out, item.ProductID)
	}
	return out
}
