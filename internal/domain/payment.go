package domain

import "github.com/google/uuid"

// ChargeRequest asks the payment gateway to collect a third-party inspection fee.
type ChargeRequest struct {
	InspectionID uuid.UUID
	AmountCents  int64
	Currency     string
	Description  string

	// IdempotencyKey makes retried charges collapse into one.
	IdempotencyKey string

	// PaymentMethod is an optional gateway-specific method reference.
	PaymentMethod string
}

// PaymentResult is the gateway's answer to a charge or status query.
type PaymentResult struct {
	Reference string
	Status    PaymentStatus
}

// IsValid returns true if the payment status is a recognized value.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}
