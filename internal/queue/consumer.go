package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PaymentHandler is implemented by the reservation lifecycle coordinator.
// Handlers must be idempotent: the payment saga delivers at least once and
// redeliveries of terminal-state events are expected.
type PaymentHandler interface {
	HandlePaymentAuthorized(ctx context.Context, ev PaymentAuthorized) error
	HandlePaymentCompleted(ctx context.Context, ev PaymentCompleted) error
	HandlePaymentFailed(ctx context.Context, ev PaymentFailed) error
	HandleOrderCancelled(ctx context.Context, ev OrderCancelled) error
	HandleRefundProcessed(ctx context.Context, ev RefundProcessed) error
}

// Consumer listens on the durable payment.events queue and dispatches each
// message to the coordinator. It runs a reconnect loop with exponential
// backoff and keeps consuming until the context is cancelled; a failed
// message is rejected without requeue so a poison message cannot wedge the
// queue.
type Consumer struct {
	url     string
	handler PaymentHandler
	log     *slog.Logger
}

func NewConsumer(url string, handler PaymentHandler, log *slog.Logger) *Consumer {
	return &Consumer{url: url, handler: handler, log: log}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("payment consumer dial failed", "err", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil {
			c.log.Warn("payment consume loop ended", "err", err)
		}
		_ = conn.Close()
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("payment consumer set QoS failed", "err", err)
	}

	if _, err := ch.QueueDeclare(PaymentEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(PaymentEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.dispatch(ctx, d.Body); err != nil {
				c.log.Error("payment event handling failed", "err", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	switch env.Type {
	case TypePaymentAuthorized:
		var ev PaymentAuthorized
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return c.handler.HandlePaymentAuthorized(ctx, ev)
	case TypePaymentCompleted:
		var ev PaymentCompleted
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return c.handler.HandlePaymentCompleted(ctx, ev)
	case TypePaymentFailed:
		var ev PaymentFailed
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return c.handler.HandlePaymentFailed(ctx, ev)
	case TypeOrderCancelled:
		var ev OrderCancelled
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return c.handler.HandleOrderCancelled(ctx, ev)
	case TypeRefundProcessed:
		var ev RefundProcessed
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return c.handler.HandleRefundProcessed(ctx, ev)
	default:
		c.log.Warn("unknown payment event type", "type", env.Type)
		return nil
	}
}
