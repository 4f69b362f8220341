package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/engine"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

const (
	// processTimeout bounds one whole payment attempt including all
	// gateway retries and the booking confirmation that follows.
	processTimeout = 2 * time.Minute

	// refundTimeout bounds one refund job, retries included.
	refundTimeout = time.Minute
)

// Config tunes the coordinator's retry and refund behaviour.
type Config struct {
	MaxRetries int           // gateway retries after the first attempt; default 3
	Backoff    time.Duration // first retry delay, doubled per attempt; default 2s
	Currency   string        // ISO currency code sent to the gateway; default USD
	QueueSize  int           // refund queue capacity; default 256
}

// Coordinator drives payments end to end: it claims a booking's
// payment, charges the gateway with retries, and translates the
// outcome into a booking confirmation or cancellation. It also runs
// the background worker that executes refunds handed over by the
// reservation engine, so it satisfies engine's Refunder.
//
// The coordinator writes only payment_status and payment_ref (the
// latter through ConfirmBooking); booking_status transitions stay
// inside the engine.
type Coordinator struct {
	gateway  Gateway
	engine   *engine.Engine
	bookings repository.BookingStore
	logger   *zap.Logger
	cfg      Config

	refundCh chan refundJob
	stopCh   chan struct{}

	inflight sync.WaitGroup // running payment attempts
	wg       sync.WaitGroup // refund worker

	mu      sync.Mutex
	running bool
}

type refundJob struct {
	bookingID   uint64
	paymentRef  string
	amountCents uint32
}

// New builds a coordinator. Call Start before submitting payments so
// refunds have a worker to land on.
func New(gateway Gateway, eng *engine.Engine, bookings repository.BookingStore, logger *zap.Logger, cfg Config) *Coordinator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Coordinator{
		gateway:  gateway,
		engine:   eng,
		bookings: bookings,
		logger:   logger,
		cfg:      cfg,
		refundCh: make(chan refundJob, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the refund worker.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("payment coordinator already running")
	}
	c.running = true

	c.logger.Info("payment coordinator started",
		zap.String("gateway", c.gateway.Name()),
		zap.Int("max_retries", c.cfg.MaxRetries),
		zap.Duration("backoff", c.cfg.Backoff))

	c.wg.Add(1)
	go c.refundLoop()
	return nil
}

// Stop waits for in-flight payments, then drains the refund queue
// and stops the worker.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.inflight.Wait()
	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("payment coordinator stopped")
}

// Submit checks that the booking can be paid, claims its payment by
// moving payment_status from PENDING to PROCESSING, and schedules the
// charge on a background goroutine. The claim is a conditional
// update, so two concurrent submits for the same booking admit only
// one processor.
func (c *Coordinator) Submit(ctx context.Context, bookingID, userID uint64) error {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: booking %d", engine.ErrNotFound, bookingID)
		}
		return err
	}
	if b.UserID != userID {
		return fmt.Errorf("%w: booking %d belongs to another user", engine.ErrUnauthorized, bookingID)
	}
	switch b.BookingStatus {
	case model.BookingPending:
	case model.BookingConfirmed:
		return fmt.Errorf("%w: booking %d", engine.ErrAlreadyConfirmed, bookingID)
	default:
		return fmt.Errorf("%w: booking %d is %s", engine.ErrTerminal, bookingID, b.BookingStatus)
	}
	if b.Expired(time.Now().UTC()) {
		return fmt.Errorf("%w: booking %d", engine.ErrExpired, bookingID)
	}

	applied, err := c.bookings.UpdatePaymentStatus(ctx, b.ID, model.PaymentPending, model.PaymentProcessing)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: payment for booking %d already in progress", engine.ErrConflict, bookingID)
	}

	c.inflight.Add(1)
	go c.process(b)
	return nil
}

// process runs one claimed payment to completion. It deliberately
// detaches from the submitting request's context: the charge outcome
// must be applied even if the client went away.
func (c *Coordinator) process(b *model.Booking) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	resp, err := c.chargeWithRetry(ctx, b)
	if err != nil {
		c.logger.Error("charge abandoned after retries",
			zap.Uint64("booking_id", b.ID),
			zap.String("gateway", c.gateway.Name()),
			zap.Error(err))
		c.fail(ctx, b, "gateway unreachable")
		return
	}
	if !resp.Approved {
		c.logger.Info("charge declined",
			zap.Uint64("booking_id", b.ID),
			zap.String("reason", resp.DeclineReason))
		c.fail(ctx, b, resp.DeclineReason)
		return
	}

	if _, err := c.engine.ConfirmBooking(ctx, b.ID, resp.TransactionID); err != nil {
		c.compensate(ctx, b, resp.TransactionID, err)
		return
	}
	c.logger.Info("payment completed",
		zap.Uint64("booking_id", b.ID),
		zap.String("payment_ref", resp.TransactionID),
		zap.Uint32("amount_cents", b.TotalAmountCents))
}

// chargeWithRetry calls the gateway up to 1+MaxRetries times,
// sleeping Backoff, 2*Backoff, 4*Backoff... between attempts.
// Declines are returned immediately; only transport errors and
// timeouts are retried.
func (c *Coordinator) chargeWithRetry(ctx context.Context, b *model.Booking) (*ChargeResponse, error) {
	req := &ChargeRequest{
		BookingID:   b.ID,
		AmountCents: b.TotalAmountCents,
		Currency:    c.cfg.Currency,
		Description: fmt.Sprintf("booking %d, show %d", b.ID, b.ShowID),
	}

	backoff := c.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := c.gateway.Charge(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("charge attempt failed",
			zap.Uint64("booking_id", b.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

// fail marks the payment FAILED and cancels the booking on the
// user's behalf, releasing its seats. The booking may have expired
// in the meantime; the reaper owns that transition, so a failed
// cancel here is only logged.
func (c *Coordinator) fail(ctx context.Context, b *model.Booking, reason string) {
	if _, err := c.bookings.UpdatePaymentStatus(ctx, b.ID, model.PaymentProcessing, model.PaymentFailed); err != nil {
		c.logger.Error("mark payment failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
	if _, err := c.engine.CancelBooking(ctx, b.ID, b.UserID); err != nil {
		c.logger.Warn("cancel after failed payment",
			zap.Uint64("booking_id", b.ID),
			zap.String("decline_reason", reason),
			zap.Error(err))
	}
}

// compensate handles an approved charge whose booking could not be
// confirmed, typically because the hold expired or was cancelled
// while the gateway was charging. The money goes back.
func (c *Coordinator) compensate(ctx context.Context, b *model.Booking, transactionID string, confirmErr error) {
	expected := errors.Is(confirmErr, engine.ErrExpired) || errors.Is(confirmErr, engine.ErrTerminal)
	if expected {
		c.logger.Warn("booking gone before confirmation, refunding charge",
			zap.Uint64("booking_id", b.ID),
			zap.String("payment_ref", transactionID),
			zap.Error(confirmErr))
	} else {
		c.logger.Error("confirm failed after approved charge, refunding charge",
			zap.Uint64("booking_id", b.ID),
			zap.String("payment_ref", transactionID),
			zap.Error(confirmErr))
	}
	if _, err := c.bookings.UpdatePaymentStatus(ctx, b.ID, model.PaymentProcessing, model.PaymentRefunded); err != nil {
		c.logger.Error("mark payment refunded", zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
	c.EnqueueRefund(b.ID, transactionID, b.TotalAmountCents)
}

// EnqueueRefund hands a refund to the background worker without
// blocking the caller. The engine invokes this after releasing the
// show mutex when a confirmed booking is cancelled inside the refund
// window.
func (c *Coordinator) EnqueueRefund(bookingID uint64, paymentRef string, amountCents uint32) {
	job := refundJob{bookingID: bookingID, paymentRef: paymentRef, amountCents: amountCents}
	select {
	case c.refundCh <- job:
	default:
		// Queue full; hand off without blocking the engine.
		go func() { c.refundCh <- job }()
	}
}

func (c *Coordinator) refundLoop() {
	defer c.wg.Done()
	for {
		select {
		case job := <-c.refundCh:
			c.refund(job)
		case <-c.stopCh:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case job := <-c.refundCh:
					c.refund(job)
				default:
					return
				}
			}
		}
	}
}

// refund executes one refund against the gateway with the same
// backoff policy as charges. A refund that still fails after all
// retries is logged at error level for operator follow-up; the
// booking already records REFUNDED.
func (c *Coordinator) refund(job refundJob) {
	ctx, cancel := context.WithTimeout(context.Background(), refundTimeout)
	defer cancel()

	backoff := c.cfg.Backoff
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.logger.Error("refund abandoned",
					zap.Uint64("booking_id", job.bookingID),
					zap.String("payment_ref", job.paymentRef),
					zap.Error(ctx.Err()))
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err := c.gateway.Refund(ctx, job.paymentRef, job.amountCents); err != nil {
			c.logger.Warn("refund attempt failed",
				zap.Uint64("booking_id", job.bookingID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		c.logger.Info("refund issued",
			zap.Uint64("booking_id", job.bookingID),
			zap.String("payment_ref", job.paymentRef),
			zap.Uint32("amount_cents", job.amountCents))
		return
	}
	c.logger.Error("refund abandoned after retries",
		zap.Uint64("booking_id", job.bookingID),
		zap.String("payment_ref", job.paymentRef))
}
