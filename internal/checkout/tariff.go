package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/enums"
	"github.com/lucasfarre/ordercore-backend/pkg/errors"
)

// serviceLevelFactors scale the delivery charge per service level.
var serviceLevelFactors = map[enums.ServiceLevel]decimal.Decimal{
	enums.ServiceLevelStandard: decimal.NewFromInt(1),
	enums.ServiceLevelPremium:  decimal.RequireFromString("1.2"),
	enums.ServiceLevelPriority: decimal.RequireFromString("1.5"),
}

// tariff computes the delivery charge from checkout configuration.
type tariff struct {
	baseCents decimal.Decimal
	perKM     decimal.Decimal
	flatCents decimal.Decimal
}

func newTariff(cfg config.CheckoutConfig) (*tariff, error) {
	perKM, err := decimal.NewFromString(cfg.DeliveryPerKMCents)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "checkout: invalid per-km delivery rate")
	}
	return &tariff{
		baseCents: decimal.NewFromInt(int64(cfg.DeliveryBaseCents)),
		perKM:     perKM,
		flatCents: decimal.NewFromInt(int64(cfg.FallbackFlatCents)),
	}, nil
}

// DeliveryCharge returns the charge in cents. Nearby deliveries pay
// base + distance * rate; fallback stores pay the flat tier. Both are
// scaled by the service level factor and rounded half-up to a cent.
func (t *tariff) DeliveryCharge(distanceKM float64, isNearby bool, level enums.ServiceLevel) int64 {
	factor, ok := serviceLevelFactors[level]
	if !ok {
		factor = serviceLevelFactors[enums.ServiceLevelStandard]
	}

	var raw decimal.Decimal
	if isNearby {
		raw = t.baseCents.Add(t.perKM.Mul(decimal.NewFromFloat(distanceKM)))
	} else {
		raw = t.flatCents
	}
	return raw.Mul(factor).Round(0).IntPart()
}
