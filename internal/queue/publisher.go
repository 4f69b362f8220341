package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

const publishTimeout = 5 * time.Second

// Publisher emits booking lifecycle events to RabbitMQ. It satisfies
// the engine's event sink: publishing is fire-and-forget on a
// background goroutine, failures are logged and never reach the
// booking flow. Each publish dials its own short-lived connection,
// which keeps the publisher stateless across broker restarts.
type Publisher struct {
	url    string
	logger *zap.Logger
}

// NewPublisher builds a publisher for the given AMQP URL.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// BookingConfirmed publishes a booking.confirmed event.
func (p *Publisher) BookingConfirmed(b *model.Booking) {
	ev := BookingConfirmedEvent{
		EventID:          uuid.NewString(),
		BookingID:        b.ID,
		UserID:           b.UserID,
		ShowID:           b.ShowID,
		ShowSeatIDs:      b.SeatIDs(),
		TotalAmountCents: b.TotalAmountCents,
		ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if b.PaymentRef != nil {
		ev.PaymentRef = *b.PaymentRef
	}
	go p.publish(ConfirmedQueue, ev)
}

// BookingCancelled publishes a booking.cancelled event.
func (p *Publisher) BookingCancelled(b *model.Booking, refunded bool) {
	ev := BookingCancelledEvent{
		EventID:          uuid.NewString(),
		BookingID:        b.ID,
		UserID:           b.UserID,
		ShowID:           b.ShowID,
		ShowSeatIDs:      b.SeatIDs(),
		TotalAmountCents: b.TotalAmountCents,
		Refunded:         refunded,
		CancelledAt:      time.Now().UTC().Format(time.RFC3339),
	}
	go p.publish(CancelledQueue, ev)
}

// publish declares the durable queue and sends one persistent JSON
// message to it through the default exchange.
func (p *Publisher) publish(queueName string, event any) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("event publish: dial broker", zap.String("queue", queueName), zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("event publish: open channel", zap.String("queue", queueName), zap.Error(err))
		return
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		p.logger.Warn("event publish: queue declare", zap.String("queue", queueName), zap.Error(err))
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("event publish: marshal", zap.String("queue", queueName), zap.Error(err))
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.logger.Warn("event publish: publish", zap.String("queue", queueName), zap.Error(err))
		return
	}
}
