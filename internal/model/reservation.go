package model

import (
	"errors"
	"time"
)

// Status enumerates the reservation lifecycle states. A reservation starts
// as PENDING and ends in exactly one of the terminal states; terminal rows
// are never deleted so the full history stays auditable.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
	StatusRefunded  Status = "REFUNDED"
)

// Terminal reports whether no further transitions are allowed from s,
// other than CONFIRMED -> REFUNDED.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// LineItem is one ticket-type line within a reservation. The unit price is
// captured at hold time so later rule changes cannot alter what the buyer
// owes. UnitIDs are the inventory units (seats or GA slots) backing the line.
type LineItem struct {
	TicketTypeID   string   `json:"ticket_type_id"`
	TicketTypeName string   `json:"ticket_type_name"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	Quantity       int      `json:"quantity"`
	DiscountCents  int64    `json:"discount_cents"`
	TotalCents     int64    `json:"total_cents"`
	UnitIDs        []string `json:"unit_ids"`
}

// Reservation is one buyer's hold on inventory for one event. All money is
// integer cents. Version is the optimistic-concurrency counter: every write
// must supply the version it read and the store rejects stale writes.
type Reservation struct {
	ID            string
	Number        string
	BuyerID       string
	EventID       string
	Lines         []LineItem
	Currency      string
	SubtotalCents int64
	FeeCents      int64
	DiscountCents int64
	TotalCents    int64
	Status        Status
	AppliedRuleID string
	PaymentRef    string
	FailureReason string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
	Version       int64
}

// NewReservation builds a pending reservation from priced line items and
// starts the expiry clock at now + ttl. Quantities must be positive and the
// discount may not exceed the subtotal; both are rejected before any side
// effect.
func NewReservation(id, number, buyerID, eventID, currency string, lines []LineItem, feeCents, discountCents int64, appliedRuleID string, now time.Time, ttl time.Duration) (*Reservation, []Event, error) {
	if len(lines) == 0 {
		return nil, nil, errors.New("reservation requires at least one line item")
	}
	var subtotal int64
	for i := range lines {
		if lines[i].Quantity <= 0 {
			return nil, nil, errors.New("line item quantity must be positive")
		}
		if lines[i].UnitPriceCents < 0 {
			return nil, nil, errors.New("line item unit price must not be negative")
		}
		lines[i].TotalCents = lines[i].UnitPriceCents * int64(lines[i].Quantity)
		subtotal += lines[i].TotalCents
	}
	if feeCents < 0 || discountCents < 0 {
		return nil, nil, errors.New("fees and discount must not be negative")
	}
	if discountCents > subtotal {
		return nil, nil, errors.New("discount exceeds subtotal")
	}

	r := &Reservation{
		ID:            id,
		Number:        number,
		BuyerID:       buyerID,
		EventID:       eventID,
		Lines:         lines,
		Currency:      currency,
		SubtotalCents: subtotal,
		FeeCents:      feeCents,
		DiscountCents: discountCents,
		TotalCents:    subtotal + feeCents - discountCents,
		Status:        StatusPending,
		AppliedRuleID: appliedRuleID,
		CreatedAt:     now.UTC(),
		ExpiresAt:     now.UTC().Add(ttl),
		Version:       1,
	}
	created := ReservationCreated{
		ReservationID: r.ID,
		EventID:       r.EventID,
		BuyerID:       r.BuyerID,
		Lines:         r.Lines,
		ExpiresAt:     r.ExpiresAt,
	}
	return r, []Event{created}, nil
}

// UnitIDs returns every inventory unit backing this reservation.
func (r *Reservation) UnitIDs() []string {
	var ids []string
	for _, l := range r.Lines {
		ids = append(ids, l.UnitIDs...)
	}
	return ids
}

// Expired reports whether the hold deadline has passed at the given instant.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Confirm moves a pending reservation to CONFIRMED, recording the payment
// reference. The hold must still be live: confirming after the deadline
// fails with ErrReservationExpired and the payment must be reversed upstream.
func (r *Reservation) Confirm(paymentRef string, now time.Time) ([]Event, error) {
	if r.Status != StatusPending {
		return nil, &InvalidTransitionError{From: r.Status, To: StatusConfirmed}
	}
	if r.Expired(now) {
		return nil, ErrReservationExpired
	}
	at := now.UTC()
	r.Status = StatusConfirmed
	r.PaymentRef = paymentRef
	r.ConfirmedAt = &at
	return []Event{ReservationConfirmed{
		ReservationID: r.ID,
		EventID:       r.EventID,
		BuyerID:       r.BuyerID,
		Lines:         r.Lines,
		TotalCents:    r.TotalCents,
		PaymentRef:    paymentRef,
	}}, nil
}

// Cancel aborts a pending reservation. It is allowed any time before a
// terminal state, including after the deadline has passed but before the
// sweeper got to it.
func (r *Reservation) Cancel(reason string, now time.Time) ([]Event, error) {
	if r.Status != StatusPending {
		return nil, &InvalidTransitionError{From: r.Status, To: StatusCancelled}
	}
	at := now.UTC()
	r.Status = StatusCancelled
	r.FailureReason = reason
	r.CancelledAt = &at
	return []Event{ReservationCancelled{
		ReservationID:   r.ID,
		EventID:         r.EventID,
		ReleasedUnitIDs: r.UnitIDs(),
		Reason:          reason,
	}}, nil
}

// Extend pushes the hold deadline forward by d. The deadline is only ever
// extended, never reduced, and only while the hold is still live.
func (r *Reservation) Extend(d time.Duration, now time.Time) ([]Event, error) {
	if r.Status != StatusPending {
		return nil, &InvalidTransitionError{From: r.Status, To: StatusPending}
	}
	if r.Expired(now) {
		return nil, ErrReservationExpired
	}
	if d <= 0 {
		return nil, errors.New("extension must be positive")
	}
	r.ExpiresAt = r.ExpiresAt.Add(d)
	return nil, nil
}

// Expire forces a past-deadline pending reservation to EXPIRED. Expiring an
// already-expired reservation is an idempotent no-op.
func (r *Reservation) Expire(now time.Time) ([]Event, error) {
	if r.Status == StatusExpired {
		return nil, nil
	}
	if r.Status != StatusPending {
		return nil, &InvalidTransitionError{From: r.Status, To: StatusExpired}
	}
	if !r.Expired(now) {
		return nil, ErrReservationNotExpired
	}
	r.Status = StatusExpired
	return []Event{ReservationExpired{
		ReservationID:   r.ID,
		EventID:         r.EventID,
		ReleasedUnitIDs: r.UnitIDs(),
	}}, nil
}

// Refund reverses a confirmed reservation after an external refund has been
// processed. The original units were permanently consumed at confirm time,
// so the caller signals a restock instead of releasing holds.
func (r *Reservation) Refund(reason string, now time.Time) ([]Event, error) {
	if r.Status != StatusConfirmed {
		return nil, &InvalidTransitionError{From: r.Status, To: StatusRefunded}
	}
	r.Status = StatusRefunded
	r.FailureReason = reason
	return []Event{ReservationRefunded{
		ReservationID: r.ID,
		EventID:       r.EventID,
		Lines:         r.Lines,
		Reason:        reason,
	}}, nil
}
