package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_ApprovesAndRefunds(t *testing.T) {
	g := NewMockGateway(1, 0)
	ctx := context.Background()

	resp, err := g.Charge(ctx, &ChargeRequest{BookingID: 1, AmountCents: 2500, Currency: "USD"})
	require.NoError(t, err)
	assert.True(t, resp.Approved)
	assert.True(t, strings.HasPrefix(resp.TransactionID, "mock_txn_"))

	assert.NoError(t, g.Refund(ctx, resp.TransactionID, 2500))
	assert.Error(t, g.Refund(ctx, resp.TransactionID, 2600), "refund above the charged amount")
	assert.Error(t, g.Refund(ctx, "mock_txn_nope", 100), "unknown transaction")
}

func TestMockGateway_Declines(t *testing.T) {
	g := NewMockGateway(0, 0)

	resp, err := g.Charge(context.Background(), &ChargeRequest{BookingID: 2, AmountCents: 1000})
	require.NoError(t, err)
	assert.False(t, resp.Approved)
	assert.NotEmpty(t, resp.DeclineReason)
	assert.Empty(t, resp.TransactionID)
}

func TestMockGateway_DelayHonorsContext(t *testing.T) {
	g := NewMockGateway(1, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.Charge(ctx, &ChargeRequest{BookingID: 3, AmountCents: 1000})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestMockGateway_SetSuccessRate(t *testing.T) {
	g := NewMockGateway(1, 0)
	g.SetSuccessRate(0)

	resp, err := g.Charge(context.Background(), &ChargeRequest{BookingID: 4, AmountCents: 1000})
	require.NoError(t, err)
	assert.False(t, resp.Approved)
}

func TestNewGateway_Factory(t *testing.T) {
	g, err := NewGateway(Options{Kind: ""})
	require.NoError(t, err)
	assert.IsType(t, &MockGateway{}, g)

	g, err = NewGateway(Options{Kind: "MOCK", MockSuccessRate: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "mock", g.Name())

	_, err = NewGateway(Options{Kind: "stripe"})
	assert.Error(t, err, "stripe without a key")

	g, err = NewGateway(Options{Kind: "stripe", StripeSecretKey: "sk_test_x"})
	require.NoError(t, err)
	assert.Equal(t, "stripe", g.Name())

	_, err = NewGateway(Options{Kind: "paypal"})
	assert.Error(t, err)
}
