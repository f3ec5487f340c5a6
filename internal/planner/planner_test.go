package planner

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lucasfarre/ordercore-backend/internal/stores"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
)

type stubDirectory struct {
	byID     map[uuid.UUID]*models.Store
	nearest  []stores.StoreDistance
	defaults []stores.StoreDistance
}

func (s *stubDirectory) GetActiveStore(_ context.Context, id uuid.UUID) (*models.Store, error) {
	store, ok := s.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	if !store.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is not active")
	}
	return store, nil
}

func (s *stubDirectory) NearestStores(context.Context, float64, float64, float64) ([]stores.StoreDistance, error) {
	return s.nearest, nil
}

func (s *stubDirectory) DefaultStores(context.Context, float64, float64) ([]stores.StoreDistance, error) {
	return s.defaults, nil
}

type stubStock struct {
	// store -> product -> available
	levels map[uuid.UUID]map[uuid.UUID]int
}

func (s *stubStock) AvailableAt(_ context.Context, storeID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(productIDs))
	for _, id := range productIDs {
		out[id] = s.levels[storeID][id]
	}
	return out, nil
}

func storeWithID(id uuid.UUID, name string, pickup bool) *models.Store {
	return &models.Store{ID: id, Name: name, Active: true, AllowsPickup: pickup}
}

func newPlanner(t *testing.T, dir *stubDirectory, stock *stubStock) Planner {
	t.Helper()
	p, err := NewService(dir, stock, config.CheckoutConfig{StoreSearchRadiusKM: 25})
	require.NoError(t, err)
	return p
}

func TestPlanPickupAllOrNothing(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()

	dir := &stubDirectory{byID: map[uuid.UUID]*models.Store{
		storeID: storeWithID(storeID, "Centro", true),
	}}
	stock := &stubStock{levels: map[uuid.UUID]map[uuid.UUID]int{
		storeID: {productA: 10, productB: 0},
	}}

	p := newPlanner(t, dir, stock)
	plan, err := p.PlanPickup(context.Background(), storeID, []Item{
		{ProductID: productA, Quantity: 2},
		{ProductID: productB, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 1)
	require.Len(t, plan.Assignments[0].Items, 1)
	require.Equal(t, productA, plan.Assignments[0].Items[0].ProductID)
	require.Len(t, plan.UnavailableItems, 1)
	require.Equal(t, productB, plan.UnavailableItems[0].ProductID)
}

func TestPlanPickupRejectsNonPickupStore(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	dir := &stubDirectory{byID: map[uuid.UUID]*models.Store{
		storeID: storeWithID(storeID, "Solo Envios", false),
	}}
	p := newPlanner(t, dir, &stubStock{})

	_, err := p.PlanPickup(context.Background(), storeID, []Item{{ProductID: uuid.New(), Quantity: 1}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPlanDeliverySplitsAcrossStoresNearestFirst(t *testing.T) {
	t.Parallel()

	s1 := uuid.New() // nearer
	s2 := uuid.New()
	productA := uuid.New()
	productB := uuid.New()

	dir := &stubDirectory{nearest: []stores.StoreDistance{
		{Store: models.Store{ID: s1, Name: "S1", Active: true}, DistanceKM: 2.0},
		{Store: models.Store{ID: s2, Name: "S2", Active: true}, DistanceKM: 8.5},
	}}
	stock := &stubStock{levels: map[uuid.UUID]map[uuid.UUID]int{
		s1: {productA: 5, productB: 0},
		s2: {productA: 0, productB: 5},
	}}

	p := newPlanner(t, dir, stock)
	plan, err := p.PlanDelivery(context.Background(), -34.6, -58.4, []Item{
		{ProductID: productA, Quantity: 2},
		{ProductID: productB, Quantity: 1},
	})
	require.NoError(t, err)
	require.True(t, plan.IsNearby)
	require.InDelta(t, 2.0, plan.PrimaryDistanceKM, 1e-9)
	require.Len(t, plan.Assignments, 2)
	require.Equal(t, s1, plan.Assignments[0].Store.ID)
	require.Equal(t, productA, plan.Assignments[0].Items[0].ProductID)
	require.Equal(t, s2, plan.Assignments[1].Store.ID)
	require.Equal(t, productB, plan.Assignments[1].Items[0].ProductID)
	require.Empty(t, plan.UnavailableItems)
}

func TestPlanDeliverySplitCompleteness(t *testing.T) {
	t.Parallel()

	s1 := uuid.New()
	s2 := uuid.New()
	items := make([]Item, 0, 6)
	levels := map[uuid.UUID]map[uuid.UUID]int{s1: {}, s2: {}}
	for i := 0; i < 6; i++ {
		id := uuid.New()
		items = append(items, Item{ProductID: id, Quantity: 2})
		switch i % 3 {
		case 0:
			levels[s1][id] = 5
		case 1:
			levels[s2][id] = 5
		default:
			// stocked nowhere
		}
	}

	dir := &stubDirectory{nearest: []stores.StoreDistance{
		{Store: models.Store{ID: s1, Active: true}, DistanceKM: 1},
		{Store: models.Store{ID: s2, Active: true}, DistanceKM: 3},
	}}

	p := newPlanner(t, dir, &stubStock{levels: levels})
	plan, err := p.PlanDelivery(context.Background(), 0, 0, items)
	require.NoError(t, err)

	seen := map[uuid.UUID]int{}
	total := 0
	for _, assignment := range plan.Assignments {
		for _, item := range assignment.Items {
			seen[item.ProductID]++
			total++
		}
	}
	for _, item := range plan.UnavailableItems {
		seen[item.ProductID]++
		total++
	}
	require.Equal(t, len(items), total)
	for _, item := range items {
		require.Equal(t, 1, seen[item.ProductID])
	}
}

func TestPlanDeliveryFallsBackToDefaultStores(t *testing.T) {
	t.Parallel()

	fallback := uuid.New()
	product := uuid.New()

	dir := &stubDirectory{
		nearest: nil,
		defaults: []stores.StoreDistance{
			{Store: models.Store{ID: fallback, Active: true}, DistanceKM: 140},
		},
	}
	stock := &stubStock{levels: map[uuid.UUID]map[uuid.UUID]int{
		fallback: {product: 3},
	}}

	p := newPlanner(t, dir, stock)
	plan, err := p.PlanDelivery(context.Background(), -34.6, -58.4, []Item{{ProductID: product, Quantity: 1}})
	require.NoError(t, err)
	require.False(t, plan.IsNearby)
	require.Len(t, plan.Assignments, 1)
	require.Equal(t, fallback, plan.Assignments[0].Store.ID)
}

func TestPlanDeliveryNoStoresAtAll(t *testing.T) {
	t.Parallel()

	p := newPlanner(t, &stubDirectory{}, &stubStock{})
	_, err := p.PlanDelivery(context.Background(), 0, 0, []Item{{ProductID: uuid.New(), Quantity: 1}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestValidateItemsRejectsDuplicatesAndNonPositive(t *testing.T) {
	t.Parallel()

	p := newPlanner(t, &stubDirectory{}, &stubStock{})
	product := uuid.New()

	_, err := p.PlanDelivery(context.Background(), 0, 0, []Item{
		{ProductID: product, Quantity: 1},
		{ProductID: product, Quantity: 2},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = p.PlanDelivery(context.Background(), 0, 0, []Item{{ProductID: uuid.New(), Quantity: 0}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = p.PlanDelivery(context.Background(), 0, 0, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
