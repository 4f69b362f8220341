package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer listens on the booking event queues and appends each event
// to logs/booking.log as one human-readable line. It runs a reconnect
// loop with capped backoff and survives malformed messages by
// rejecting them without requeue.
type Consumer struct {
	url    string
	logger *zap.Logger
	logDir string

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewConsumer builds a consumer for the given AMQP URL. Events land
// in logs/booking.log under the working directory.
func NewConsumer(url string, logger *zap.Logger) *Consumer {
	return &Consumer{
		url:    url,
		logger: logger,
		logDir: "logs",
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the consume loop in the background.
func (c *Consumer) Start() {
	go c.run()
}

// Stop ends the loop, closing the active connection so a blocked
// consume returns, and waits for the goroutine to exit.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
	<-c.done
}

func (c *Consumer) setConn(conn *amqp.Connection) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Consumer) run() {
	defer close(c.done)

	backoff := time.Second
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("booking consumer: dial broker",
				zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		c.setConn(conn)

		err = c.consumeLoop(conn)
		_ = conn.Close()
		c.setConn(nil)
		if err == nil {
			// Stop was requested inside the loop.
			return
		}
		c.logger.Warn("booking consumer: consume loop ended, reconnecting", zap.Error(err))
		select {
		case <-c.stopCh:
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("booking consumer: set QoS", zap.Error(err))
	}

	for _, name := range []string{ConfirmedQueue, CancelledQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	confirmed, err := ch.Consume(ConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ConfirmedQueue, err)
	}
	cancelled, err := ch.Consume(CancelledQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", CancelledQueue, err)
	}

	for {
		select {
		case <-c.stopCh:
			return nil
		case d, ok := <-confirmed:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(d, formatConfirmed)
		case d, ok := <-cancelled:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(d, formatCancelled)
		}
	}
}

func (c *Consumer) handle(d amqp.Delivery, format func([]byte) (string, error)) {
	line, err := format(d.Body)
	if err == nil {
		err = c.appendLine(line)
	}
	if err != nil {
		c.logger.Warn("booking consumer: handle message", zap.Error(err))
		_ = d.Nack(false, false) // reject without requeue to avoid tight loops
		return
	}
	_ = d.Ack(false)
}

func formatConfirmed(body []byte) (string, error) {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	return fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | user_id=%d | show_id=%d | total=%d cents | payment_ref=%s | seats=%s\n",
		ev.ConfirmedAt, ev.BookingID, ev.UserID, ev.ShowID, ev.TotalAmountCents, ev.PaymentRef, joinIDs(ev.ShowSeatIDs)), nil
}

func formatCancelled(body []byte) (string, error) {
	var ev BookingCancelledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	return fmt.Sprintf("[%s] Booking cancelled | booking_id=%d | user_id=%d | show_id=%d | refunded=%t | seats=%s\n",
		ev.CancelledAt, ev.BookingID, ev.UserID, ev.ShowID, ev.Refunded, joinIDs(ev.ShowSeatIDs)), nil
}

func (c *Consumer) appendLine(line string) error {
	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.logDir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func joinIDs(ids []uint64) string {
	if len(ids) == 0 {
		return "[]"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
