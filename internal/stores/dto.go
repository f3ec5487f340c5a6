package stores

import "github.com/lucasfarre/ordercore-backend/pkg/db/models"

// StoreDistance pairs a store with its geodesic distance from a query point.
type StoreDistance struct {
	Store      models.Store
	DistanceKM float64
}
