package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPriceBulkPreservesOrder(t *testing.T) {
	t.Parallel()

	eng := NewEngine()
	items := []PriceRequest{
		{ProductID: uuid.New(), BasePriceCents: 1000, Quantity: 1},
		{ProductID: uuid.New(), BasePriceCents: 250, Quantity: 3},
		{ProductID: uuid.New(), BasePriceCents: 79900, Quantity: 1},
	}

	results, err := eng.PriceBulk(context.Background(), items, "standard")
	require.NoError(t, err)
	require.Len(t, results, len(items))
	for i := range items {
		require.Equal(t, items[i].ProductID, results[i].ProductID)
		require.Equal(t, items[i].BasePriceCents, results[i].FinalPriceCents)
	}
}

func TestPriceBulkAppliesTierDiscount(t *testing.T) {
	t.Parallel()

	eng := NewEngine()
	results, err := eng.PriceBulk(context.Background(), []PriceRequest{
		{ProductID: uuid.New(), BasePriceCents: 1000, Quantity: 1},
	}, "premium")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(950), results[0].FinalPriceCents)
	require.Equal(t, "5", results[0].DiscountPercentage)
	require.Len(t, results[0].AppliedDiscounts, 1)
}

func TestPriceBulkRejectsNegativeBase(t *testing.T) {
	t.Parallel()

	eng := NewEngine()
	_, err := eng.PriceBulk(context.Background(), []PriceRequest{
		{ProductID: uuid.New(), BasePriceCents: -1, Quantity: 1},
	}, "standard")
	require.Error(t, err)
}
