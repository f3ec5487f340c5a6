package enums

import "fmt"

// FulfillmentMode distinguishes pickup from delivery orders.
type FulfillmentMode string

const (
	FulfillmentModePickup   FulfillmentMode = "pickup"
	FulfillmentModeDelivery FulfillmentMode = "delivery"
)

var validFulfillmentModes = []FulfillmentMode{
	FulfillmentModePickup,
	FulfillmentModeDelivery,
}

// IsValid reports whether the value is a known FulfillmentMode.
func (f FulfillmentMode) IsValid() bool {
	for _, candidate := range validFulfillmentModes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfillmentMode converts raw input into a FulfillmentMode.
func ParseFulfillmentMode(value string) (FulfillmentMode, error) {
	for _, candidate := range validFulfillmentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment mode %q", value)
}

// ServiceLevel scales the delivery charge.
type ServiceLevel string

const (
	ServiceLevelStandard ServiceLevel = "standard"
	ServiceLevelPremium  ServiceLevel = "premium"
	ServiceLevelPriority ServiceLevel = "priority"
)

var validServiceLevels = []ServiceLevel{
	ServiceLevelStandard,
	ServiceLevelPremium,
	ServiceLevelPriority,
}

// IsValid reports whether the value is a known ServiceLevel.
func (s ServiceLevel) IsValid() bool {
	for _, candidate := range validServiceLevels {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseServiceLevel converts raw input into a ServiceLevel, defaulting empty
// input to standard.
func ParseServiceLevel(value string) (ServiceLevel, error) {
	if value == "" {
		return ServiceLevelStandard, nil
	}
	for _, candidate := range validServiceLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service level %q", value)
}
