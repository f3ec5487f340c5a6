package stores

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/config"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
)

func setupStoresTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS stores (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  allows_pickup INTEGER NOT NULL DEFAULT 1,
  address_line TEXT,
  city TEXT,
  lat REAL NOT NULL,
  lng REAL NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedStore(t *testing.T, db *gorm.DB, id uuid.UUID, name string, active bool, lat, lng float64) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO stores (id, name, active, allows_pickup, lat, lng) VALUES (?, ?, ?, 1, ?, ?)`,
		id, name, active, lat, lng,
	).Error
	require.NoError(t, err)
}

func TestGetActiveStoreRejectsInactive(t *testing.T) {
	db := setupStoresTestDB(t)
	svc, err := NewService(NewRepository(db), config.CheckoutConfig{})
	require.NoError(t, err)

	activeID := uuid.New()
	inactiveID := uuid.New()
	seedStore(t, db, activeID, "Centro", true, -34.60, -58.38)
	seedStore(t, db, inactiveID, "Clausurado", false, -34.61, -58.40)

	ctx := context.Background()
	store, err := svc.GetActiveStore(ctx, activeID)
	require.NoError(t, err)
	require.Equal(t, "Centro", store.Name)

	_, err = svc.GetActiveStore(ctx, inactiveID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.GetActiveStore(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNearestStoresOrdersByDistanceAndHonorsRadius(t *testing.T) {
	db := setupStoresTestDB(t)
	svc, err := NewService(NewRepository(db), config.CheckoutConfig{})
	require.NoError(t, err)

	// Query point at Buenos Aires Obelisco.
	queryLat, queryLng := -34.6037, -58.3816

	near := uuid.New()
	mid := uuid.New()
	far := uuid.New()
	inactive := uuid.New()
	seedStore(t, db, mid, "Palermo", true, -34.5889, -58.4298)      // ~4.7km
	seedStore(t, db, near, "Microcentro", true, -34.6083, -58.3712) // ~1.1km
	seedStore(t, db, far, "La Plata", true, -34.9215, -57.9545)     // ~52km
	seedStore(t, db, inactive, "Cerrado", false, -34.6040, -58.3815)

	got, err := svc.NearestStores(context.Background(), queryLat, queryLng, 25)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, near, got[0].Store.ID)
	require.Equal(t, mid, got[1].Store.ID)
	require.Less(t, got[0].DistanceKM, got[1].DistanceKM)
}

func TestDefaultStoresFallback(t *testing.T) {
	db := setupStoresTestDB(t)

	fallback := uuid.New()
	seedStore(t, db, fallback, "Deposito Central", true, -34.70, -58.50)

	svc, err := NewService(NewRepository(db), config.CheckoutConfig{
		DefaultStoreIDs: []string{fallback.String()},
	})
	require.NoError(t, err)

	got, err := svc.DefaultStores(context.Background(), -34.60, -58.38)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, fallback, got[0].Store.ID)
	require.Greater(t, got[0].DistanceKM, 0.0)
}
