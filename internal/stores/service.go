// Package stores is the store directory: active-store lookup and the
// geo index the planner queries for nearest fulfilling locations.
package stores

import (
	"context"
	stdErrors "errors"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

const earthRadiusKM = 6371.0

// Directory exposes read-only store lookups.
type Directory interface {
	GetActiveStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	// NearestStores returns active stores within radiusKM of the point,
	// ordered ascending by distance.
	NearestStores(ctx context.Context, lat, lng, radiusKM float64) ([]StoreDistance, error)
	// DefaultStores resolves the configured fallback set, with distances
	// computed from the same query point.
	DefaultStores(ctx context.Context, lat, lng float64) ([]StoreDistance, error)
}

type service struct {
	repo            Repository
	defaultStoreIDs []uuid.UUID
}

// NewService builds the store directory.
func NewService(repo Repository, cfg config.CheckoutConfig) (Directory, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInternal, "stores: repository is required")
	}

	defaults := make([]uuid.UUID, 0, len(cfg.DefaultStoreIDs))
	for _, raw := range cfg.DefaultStoreIDs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		id, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, err, "stores: invalid default store id")
		}
		defaults = append(defaults, id)
	}

	return &service{repo: repo, defaultStoreIDs: defaults}, nil
}

func (s *service) GetActiveStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, "store not found")
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "stores: find store")
	}
	if !store.Active {
		return nil, errors.New(errors.CodeValidation, "store is not active")
	}
	return store, nil
}

func (s *service) NearestStores(ctx context.Context, lat, lng, radiusKM float64) ([]StoreDistance, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "stores: list active")
	}

	out := make([]StoreDistance, 0, len(active))
	for _, store := range active {
		distance := haversineKM(lat, lng, store.Lat, store.Lng)
		if radiusKM > 0 && distance > radiusKM {
			continue
		}
		out = append(out, StoreDistance{Store: store, DistanceKM: distance})
	}
	sortByDistance(out)
	return out, nil
}

func (s *service) DefaultStores(ctx context.Context, lat, lng float64) ([]StoreDistance, error) {
	if len(s.defaultStoreIDs) == 0 {
		return nil, nil
	}
	found, err := s.repo.FindByIDs(ctx, s.defaultStoreIDs)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "stores: find defaults")
	}

	out := make([]StoreDistance, 0, len(found))
	for _, store := range found {
		if !store.Active {
			continue
		}
		out = append(out, StoreDistance{
			Store:      store,
			DistanceKM: haversineKM(lat, lng, store.Lat, store.Lng),
		})
	}
	sortByDistance(out)
	return out, nil
}

func sortByDistance(stores []StoreDistance) {
	sort.SliceStable(stores, func(i, j int) bool {
		return stores[i].DistanceKM < stores[j].DistanceKM
	})
}

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
