package enums

import "fmt"

// PaymentStatus maps to the payment_status enum in Postgres.
type PaymentStatus string

const (
	PaymentStatusInitiated           PaymentStatus = "initiated"
	PaymentStatusSuccess             PaymentStatus = "success"
	PaymentStatusFailed              PaymentStatus = "failed"
	PaymentStatusUnknownGatewayError PaymentStatus = "unknown_gateway_error"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusInitiated,
	PaymentStatusSuccess,
	PaymentStatusFailed,
	PaymentStatusUnknownGatewayError,
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the settlement workflow already wrote a final status.
func (p PaymentStatus) IsTerminal() bool {
	return p != PaymentStatusInitiated
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// WebhookStatus tracks the lifecycle of a gateway notification record.
type WebhookStatus string

const (
	WebhookStatusReceived  WebhookStatus = "received"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

var validWebhookStatuses = []WebhookStatus{
	WebhookStatusReceived,
	WebhookStatusProcessed,
	WebhookStatusFailed,
}

// IsValid reports whether the value is a known WebhookStatus.
func (w WebhookStatus) IsValid() bool {
	for _, candidate := range validWebhookStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}
