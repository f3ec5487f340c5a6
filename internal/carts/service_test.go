package carts

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucasfarre/ordercore-backend/pkg/db/models"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
)

func setupCartsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  shared_user_ids TEXT,
  ordered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedCart(t *testing.T, db *gorm.DB, cartID, userID uuid.UUID, status string, sharedWith []string, items int) {
	t.Helper()
	shared := "{}"
	if len(sharedWith) > 0 {
		shared = "{" + sharedWith[0] + "}"
	}
	require.NoError(t, db.Exec(
		`INSERT INTO carts (id, user_id, name, status, shared_user_ids) VALUES (?, ?, ?, ?, ?)`,
		cartID, userID, "weekly", status, shared,
	).Error)
	for i := 0; i < items; i++ {
		require.NoError(t, db.Exec(
			`INSERT INTO cart_items (id, cart_id, product_id, quantity) VALUES (?, ?, ?, ?)`,
			uuid.New(), cartID, uuid.New(), i+1,
		).Error)
	}
}

func TestGetCheckoutCartsValidations(t *testing.T) {
	db := setupCartsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()

	owner := uuid.New()
	viewer := uuid.New()
	stranger := uuid.New()

	owned := uuid.New()
	sharedCart := uuid.New()
	inactive := uuid.New()
	empty := uuid.New()
	seedCart(t, db, owned, owner, "active", nil, 2)
	seedCart(t, db, sharedCart, owner, "active", []string{viewer.String()}, 1)
	seedCart(t, db, inactive, owner, "ordered", nil, 1)
	seedCart(t, db, empty, owner, "active", nil, 0)

	carts, err := svc.GetCheckoutCarts(ctx, owner, []uuid.UUID{owned})
	require.NoError(t, err)
	require.Len(t, carts, 1)
	require.Len(t, carts[0].Items, 2)

	// Shared access counts as access.
	carts, err = svc.GetCheckoutCarts(ctx, viewer, []uuid.UUID{sharedCart})
	require.NoError(t, err)
	require.Len(t, carts, 1)

	_, err = svc.GetCheckoutCarts(ctx, stranger, []uuid.UUID{owned})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.GetCheckoutCarts(ctx, owner, []uuid.UUID{inactive})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.GetCheckoutCarts(ctx, owner, []uuid.UUID{empty})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.GetCheckoutCarts(ctx, owner, []uuid.UUID{uuid.New()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.GetCheckoutCarts(ctx, owner, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestConsumeCartsMarksOrdered(t *testing.T) {
	db := setupCartsTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	ctx := context.Background()

	owner := uuid.New()
	cartID := uuid.New()
	seedCart(t, db, cartID, owner, "active", nil, 1)

	require.NoError(t, svc.ConsumeCarts(ctx, db, []uuid.UUID{cartID}))

	var cart models.Cart
	require.NoError(t, db.Where("id = ?", cartID).First(&cart).Error)
	require.Equal(t, enums.CartStatusOrdered, cart.Status)
	require.NotNil(t, cart.OrderedAt)
}
