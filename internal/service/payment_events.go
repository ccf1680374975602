package service

import (
	"context"
	"errors"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/queue"
)

// The payment saga delivers at least once and its events can arrive
// out of order, so every handler re-derives the decision from the current
// reservation state. A redelivered event that finds the reservation already
// in the matching terminal state is a successful no-op, logged at Debug.

// HandlePaymentAuthorized extends the hold to buy time for payment
// completion. An expired or terminal reservation is left alone; the
// eventual completion will be rejected with the real state.
func (c *Coordinator) HandlePaymentAuthorized(ctx context.Context, ev queue.PaymentAuthorized) error {
	_, err := c.Extend(ctx, ev.ReservationID, c.cfg.AuthExtension)
	if c.noop(err, "payment authorized", ev.ReservationID) {
		return nil
	}
	return err
}

// HandlePaymentCompleted confirms the reservation. Completion after expiry
// must not confirm: the hold is gone and the upstream saga owns the payment
// reversal, so this only reports the state and acknowledges.
func (c *Coordinator) HandlePaymentCompleted(ctx context.Context, ev queue.PaymentCompleted) error {
	_, err := c.Confirm(ctx, ev.ReservationID, ev.PaymentReference)
	if c.noop(err, "payment completed", ev.ReservationID) {
		return nil
	}
	if errors.Is(err, model.ErrReservationExpired) {
		c.log.Warn("payment completed after hold expiry, not confirming",
			"reservation_id", ev.ReservationID, "order_id", ev.OrderID)
		return nil
	}
	return err
}

// HandlePaymentFailed cancels the reservation and releases its holds.
func (c *Coordinator) HandlePaymentFailed(ctx context.Context, ev queue.PaymentFailed) error {
	_, err := c.Cancel(ctx, ev.ReservationID, ev.Reason)
	if c.noop(err, "payment failed", ev.ReservationID) {
		return nil
	}
	return err
}

// HandleOrderCancelled cancels the reservation when one is referenced and
// restocks the listed tickets. The restock runs only when the cancel
// transition actually fired: on a redelivery the reservation is already
// terminal and the tickets were restocked the first time, so running it
// again would drift the availability counters. Without a reservation
// reference there is no transition to anchor the dedupe on and the restock
// runs as instructed.
func (c *Coordinator) HandleOrderCancelled(ctx context.Context, ev queue.OrderCancelled) error {
	if ev.ReservationID != "" {
		_, err := c.Cancel(ctx, ev.ReservationID, "order cancelled")
		if c.noop(err, "order cancelled", ev.ReservationID) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	c.restock(ctx, ev.EventID, ev.TicketsToRestock, "order_cancelled")
	return nil
}

// HandleRefundProcessed moves a confirmed reservation to refunded; the
// refund transition itself restocks the consumed units.
func (c *Coordinator) HandleRefundProcessed(ctx context.Context, ev queue.RefundProcessed) error {
	if ev.ReservationID == "" {
		c.log.Warn("refund processed without reservation reference", "order_id", ev.OrderID)
		return nil
	}
	_, err := c.Refund(ctx, ev.ReservationID, "refund processed")
	if c.noop(err, "refund processed", ev.ReservationID) {
		return nil
	}
	return err
}

// noop reports whether err is the signature of a redelivered event hitting
// a reservation that already finished the transition.
func (c *Coordinator) noop(err error, event, reservationID string) bool {
	var invalid *model.InvalidTransitionError
	if errors.As(err, &invalid) && invalid.From.Terminal() {
		c.log.Debug("event redelivered against terminal reservation, ignoring",
			"event", event, "reservation_id", reservationID, "status", string(invalid.From))
		return true
	}
	return false
}

// restock returns cancelled or refunded inventory to the pool outside of a
// reservation transition (the OrderCancelled path, where the upstream order
// may not map to a live reservation).
func (c *Coordinator) restock(ctx context.Context, eventID string, lines []queue.RestockLine, reason string) {
	for _, l := range lines {
		if len(l.UnitIDs) > 0 {
			if err := c.locker.Restock(ctx, l.UnitIDs); err != nil {
				c.log.Error("restock failed", "event_id", eventID, "ticket_type_id", l.TicketTypeID, "err", err)
				continue
			}
		}
		prev, cur, err := c.counters.Increment(ctx, eventID, l.TicketTypeID, l.Quantity)
		if err != nil {
			c.log.Error("inventory counter adjustment failed", "event_id", eventID, "ticket_type_id", l.TicketTypeID, "err", err)
			continue
		}
		c.publish(ctx, []model.Event{model.InventoryChanged{
			EventID:          eventID,
			TicketTypeID:     l.TicketTypeID,
			PreviousQuantity: prev,
			NewQuantity:      cur,
			Reason:           reason,
		}})
	}
}
