package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
)

// StripeGateway charges through Stripe payment intents. Amounts are
// already in cents, which is exactly what the Stripe API expects.
type StripeGateway struct{}

// NewStripeGateway configures the Stripe client with the account's
// secret key and returns the gateway.
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

// Charge creates and settles a payment intent for the booking. The
// booking ID is sent as the idempotency key, so a retried call can
// never capture the same booking twice. Card errors come back as
// declines; anything else is a transport error the caller may retry.
func (g *StripeGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(req.AmountCents)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(req.Description),
		Metadata: map[string]string{
			"booking_id": fmt.Sprintf("%d", req.BookingID),
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(fmt.Sprintf("booking-%d", req.BookingID))

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &ChargeResponse{Approved: false, DeclineReason: stripeErr.Msg}, nil
		}
		return nil, fmt.Errorf("stripe charge: %w", err)
	}

	// Settlement is synchronous here; anything short of an immediate
	// success counts as a decline.
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &ChargeResponse{
			Approved:      false,
			DeclineReason: fmt.Sprintf("payment intent status %s", pi.Status),
		}, nil
	}
	return &ChargeResponse{Approved: true, TransactionID: pi.ID}, nil
}

// Refund returns the given amount against an earlier payment intent.
func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amountCents uint32) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(int64(amountCents)),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(fmt.Sprintf("refund-%s", transactionID))

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("stripe refund: %w", err)
	}
	return nil
}

// Name identifies the gateway in logs.
func (g *StripeGateway) Name() string { return "stripe" }
