// Package pricing computes final unit prices for checkout. The engine
// is a collaborator boundary: checkout consumes it as a black box and
// only relies on the response being order-preserving.
package pricing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// PriceRequest is one cart line to price.
type PriceRequest struct {
	ProductID      uuid.UUID
	BasePriceCents int64
	Quantity       int
	CategoryIDs    []string
}

// AppliedDiscount names one discount included in the final price.
type AppliedDiscount struct {
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
}

// PriceResult mirrors one request entry, same position.
type PriceResult struct {
	ProductID          uuid.UUID
	BasePriceCents     int64
	FinalPriceCents    int64
	DiscountPercentage string
	AppliedDiscounts   []AppliedDiscount
}

// Engine prices cart lines in bulk. Results preserve request order.
type Engine interface {
	PriceBulk(ctx context.Context, items []PriceRequest, customerTier string) ([]PriceResult, error)
}

// tierDiscounts are flat percentage discounts per customer tier.
var tierDiscounts = map[string]decimal.Decimal{
	"premium": decimal.NewFromFloat(5),
	"vip":     decimal.NewFromFloat(10),
}

type engine struct{}

// NewEngine builds the default tier-based pricing engine.
func NewEngine() Engine {
	return engine{}
}

func (engine) PriceBulk(_ context.Context, items []PriceRequest, customerTier string) ([]PriceResult, error) {
	out := make([]PriceResult, 0, len(items))
	discount, hasDiscount := tierDiscounts[customerTier]

	for _, item := range items {
		if item.BasePriceCents < 0 {
			return nil, errors.New(errors.CodeValidation, "base price cannot be negative")
		}

		result := PriceResult{
			ProductID:          item.ProductID,
			BasePriceCents:     item.BasePriceCents,
			FinalPriceCents:    item.BasePriceCents,
			DiscountPercentage: "0",
		}
		if hasDiscount {
			base := decimal.NewFromInt(item.BasePriceCents)
			factor := decimal.NewFromInt(100).Sub(discount).Div(decimal.NewFromInt(100))
			result.FinalPriceCents = base.Mul(factor).Round(0).IntPart()
			result.DiscountPercentage = discount.String()
			result.AppliedDiscounts = []AppliedDiscount{
				{Name: "tier:" + customerTier, Percentage: discount.String()},
			}
		}
		out = append(out, result)
	}
	return out, nil
}
