// Package payment integrates external payment processors and drives
// booking confirmation and cancellation from their outcomes.
package payment

import (
	"context"
)

// Gateway is the boundary to an external payment processor. A non-nil
// error from Charge or Refund marks a transport problem or timeout
// and may be retried; a response with Approved=false is a definitive
// decline and must not be.
type Gateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error)
	Refund(ctx context.Context, transactionID string, amountCents uint32) error
	Name() string
}

// ChargeRequest describes one charge attempt. BookingID doubles as
// the idempotency key, so resubmitting the same booking can never
// capture twice.
type ChargeRequest struct {
	BookingID   uint64
	AmountCents uint32
	Currency    string
	Description string
}

// ChargeResponse is the processor's decision on a charge.
type ChargeResponse struct {
	Approved      bool
	TransactionID string
	DeclineReason string
}
