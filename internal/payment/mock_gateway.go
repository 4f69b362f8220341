package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// declineReasons is what the mock picks from when a simulated charge
// is declined.
var declineReasons = []string{
	"insufficient funds",
	"card declined",
	"card expired",
	"suspected fraud",
}

// MockGateway simulates a payment processor for development and
// tests. It approves charges with a configurable probability and
// remembers issued transactions so refunds can be validated.
type MockGateway struct {
	mu          sync.RWMutex
	successRate float64
	delay       time.Duration

	txs sync.Map // transactionID -> amountCents
}

// NewMockGateway returns a mock that approves the given fraction of
// charges (0..1). Rates outside that range fall back to 1.
func NewMockGateway(successRate float64, delay time.Duration) *MockGateway {
	if successRate < 0 || successRate > 1 {
		successRate = 1
	}
	return &MockGateway{successRate: successRate, delay: delay}
}

// Charge simulates a charge. The optional delay is context aware so
// callers with deadlines are not held hostage by the simulation.
func (g *MockGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.RLock()
	rate := g.successRate
	g.mu.RUnlock()

	if rand.Float64() >= rate {
		return &ChargeResponse{
			Approved:      false,
			DeclineReason: declineReasons[rand.Intn(len(declineReasons))],
		}, nil
	}

	txID := fmt.Sprintf("mock_txn_%s", uuid.New().String()[:8])
	g.txs.Store(txID, req.AmountCents)
	return &ChargeResponse{Approved: true, TransactionID: txID}, nil
}

// Refund reverses a previously issued mock transaction.
func (g *MockGateway) Refund(ctx context.Context, transactionID string, amountCents uint32) error {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	charged, ok := g.txs.Load(transactionID)
	if !ok {
		return fmt.Errorf("unknown transaction %q", transactionID)
	}
	if amountCents > charged.(uint32) {
		return fmt.Errorf("refund of %d exceeds charged amount %d", amountCents, charged.(uint32))
	}
	return nil
}

// Name identifies the gateway in logs.
func (g *MockGateway) Name() string { return "mock" }

// SetSuccessRate adjusts the approval probability at runtime. Tests
// use it to force declines.
func (g *MockGateway) SetSuccessRate(rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.successRate = rate
}
