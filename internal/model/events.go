package model

import "time"

// Event is an effect produced by a successful aggregate transition. The
// coordinator publishes effects only after the transition has been
// persisted, which keeps the aggregate free of any messaging transport.
type Event interface {
	EventType() string
}

// ReservationCreated fires when a new hold has been persisted.
type ReservationCreated struct {
	ReservationID string     `json:"reservation_id"`
	EventID       string     `json:"event_id"`
	BuyerID       string     `json:"buyer_id"`
	Lines         []LineItem `json:"line_items"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

func (ReservationCreated) EventType() string { return "reservation.created" }

// ReservationConfirmed fires when payment completed in time and the
// underlying inventory was permanently consumed.
type ReservationConfirmed struct {
	ReservationID string     `json:"reservation_id"`
	EventID       string     `json:"event_id"`
	BuyerID       string     `json:"buyer_id"`
	Lines         []LineItem `json:"line_items"`
	TotalCents    int64      `json:"total_amount_cents"`
	PaymentRef    string     `json:"payment_reference"`
}

func (ReservationConfirmed) EventType() string { return "reservation.confirmed" }

// ReservationCancelled fires on user or system abort; the listed units have
// been released back to the pool.
type ReservationCancelled struct {
	ReservationID   string   `json:"reservation_id"`
	EventID         string   `json:"event_id"`
	ReleasedUnitIDs []string `json:"released_unit_ids"`
	Reason          string   `json:"reason"`
}

func (ReservationCancelled) EventType() string { return "reservation.cancelled" }

// ReservationExpired fires when the sweeper (or a direct expiry) releases a
// hold whose deadline passed unconfirmed.
type ReservationExpired struct {
	ReservationID   string   `json:"reservation_id"`
	EventID         string   `json:"event_id"`
	ReleasedUnitIDs []string `json:"released_unit_ids"`
}

func (ReservationExpired) EventType() string { return "reservation.expired" }

// ReservationRefunded fires on a post-confirmation reversal. It carries the
// refunded lines so the coordinator can signal a restock.
type ReservationRefunded struct {
	ReservationID string     `json:"reservation_id"`
	EventID       string     `json:"event_id"`
	Lines         []LineItem `json:"line_items"`
	Reason        string     `json:"reason"`
}

func (ReservationRefunded) EventType() string { return "reservation.refunded" }

// InventoryChanged fires whenever the permanent availability of a ticket
// type moves (consume on confirm, restock on refund or order cancellation).
type InventoryChanged struct {
	EventID          string `json:"event_id"`
	TicketTypeID     string `json:"ticket_type_id,omitempty"`
	PreviousQuantity int64  `json:"previous_quantity"`
	NewQuantity      int64  `json:"new_quantity"`
	Reason           string `json:"reason"`
}

func (InventoryChanged) EventType() string { return "inventory.changed" }
