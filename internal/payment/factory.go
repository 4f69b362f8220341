package payment

import (
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a payment gateway.
type Options struct {
	Kind            string  // "mock" or "stripe"
	StripeSecretKey string  // required for the stripe gateway
	MockSuccessRate float64 // approval probability for the mock
	MockDelay       time.Duration
}

// NewGateway builds the gateway named by opts.Kind. An empty kind
// falls back to the mock so a bare development setup works without
// any payment credentials.
func NewGateway(opts Options) (Gateway, error) {
	switch strings.ToLower(opts.Kind) {
	case "", "mock":
		return NewMockGateway(opts.MockSuccessRate, opts.MockDelay), nil
	case "stripe":
		if opts.StripeSecretKey == "" {
			return nil, fmt.Errorf("stripe gateway requires a secret key")
		}
		return NewStripeGateway(opts.StripeSecretKey), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", opts.Kind)
	}
}
