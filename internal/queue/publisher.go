package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
)

// Publisher emits reservation lifecycle events to the durable
// reservation.events queue. Messages are persistent so they survive broker
// restarts. The coordinator only publishes after a successful persisted
// state transition; a publish failure is logged and returned so the caller
// can decide whether to ignore it.
type Publisher struct {
	url string
	log *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Publish wraps the event in an envelope and sends it. Each call dials a
// fresh connection; publish volume here is one message per reservation
// transition, so connection reuse has not been worth the bookkeeping.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	body, err := json.Marshal(Envelope{
		Type:       ev.EventType(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error("rabbitmq dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error("rabbitmq channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(ReservationEventsQueue, true, false, false, false, nil); err != nil {
		p.log.Error("rabbitmq queue declare failed", "err", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.EventType(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", ReservationEventsQueue, false, false, pub); err != nil {
		p.log.Error("rabbitmq publish failed", "type", ev.EventType(), "err", err)
		return err
	}
	return nil
}
