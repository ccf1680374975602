// Package queue defines the message payloads exchanged with the external
// payment flow and carries them over RabbitMQ. Delivery is at-least-once in
// both directions, so every inbound handler must be idempotent.
package queue

import (
	"encoding/json"
	"time"
)

// Queue names. Inbound events are produced by the payment saga; outbound
// events are consumed by notification, audit and minting services.
const (
	PaymentEventsQueue     = "payment.events"
	ReservationEventsQueue = "reservation.events"
)

// Inbound event types.
const (
	TypePaymentAuthorized = "payment.authorized"
	TypePaymentCompleted  = "payment.completed"
	TypePaymentFailed     = "payment.failed"
	TypeOrderCancelled    = "order.cancelled"
	TypeRefundProcessed   = "refund.processed"
)

// Envelope wraps every message on both queues so consumers can dispatch on
// the type before decoding the payload.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// PaymentAuthorized buys time for payment completion: the reservation's
// hold deadline is extended.
type PaymentAuthorized struct {
	ReservationID string `json:"reservation_id"`
	OrderID       string `json:"order_id"`
}

// PaymentCompleted confirms the reservation with the gateway's reference.
type PaymentCompleted struct {
	ReservationID    string `json:"reservation_id"`
	OrderID          string `json:"order_id"`
	PaymentReference string `json:"payment_reference"`
}

// PaymentFailed cancels the reservation and releases its holds.
type PaymentFailed struct {
	ReservationID string `json:"reservation_id"`
	OrderID       string `json:"order_id"`
	Reason        string `json:"reason"`
}

// RestockLine names a quantity of one ticket type to return to the pool.
type RestockLine struct {
	TicketTypeID string   `json:"ticket_type_id"`
	Quantity     int      `json:"quantity"`
	UnitIDs      []string `json:"unit_ids,omitempty"`
}

// OrderCancelled cancels the reservation when present and restocks the
// listed tickets.
type OrderCancelled struct {
	ReservationID    string        `json:"reservation_id,omitempty"`
	EventID          string        `json:"event_id"`
	TicketsToRestock []RestockLine `json:"tickets_to_restock"`
}

// RefundProcessed moves a confirmed reservation to refunded and restocks
// the refunded lines.
type RefundProcessed struct {
	ReservationID string        `json:"reservation_id"`
	OrderID       string        `json:"order_id"`
	EventID       string        `json:"event_id"`
	RefundedLines []RestockLine `json:"refunded_lines"`
}
