// Package service orchestrates the reservation lifecycle: it translates
// buyer commands and asynchronous payment events into guarded aggregate
// transitions and keeps the inventory lock keyspace consistent with the
// outcome.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/clock"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/lock"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/pricing"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/utils"
)

// ErrInvalidInput marks malformed commands (non-positive quantity, missing
// units). They are rejected before any side effect.
var ErrInvalidInput = errors.New("invalid reservation input")

// ReservationStore is the persistence port for the reservation aggregate.
// Update must reject stale versions with model.ErrConcurrencyConflict.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	Get(ctx context.Context, id string) (*model.Reservation, error)
	Update(ctx context.Context, res *model.Reservation) error
	ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// RuleStore supplies pricing rules and tracks per-buyer redemptions.
type RuleStore interface {
	ActiveByEvent(ctx context.Context, eventID string) ([]model.PricingRule, error)
	UsedRuleIDsByBuyer(ctx context.Context, eventID, buyerID string) (map[string]struct{}, error)
	RecordUse(ctx context.Context, ruleID, buyerID, reservationID string, at time.Time) error
}

// EventPublisher emits lifecycle events after a successful persisted
// transition.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// Config carries the tunable business parameters.
type Config struct {
	HoldTTL       time.Duration // hold duration for new reservations
	AuthExtension time.Duration // extension granted on payment authorization
	FeeCents      int64         // flat service fee per ticket
	Currency      string
}

// Coordinator drives every reservation transition. It never holds a lock
// across an external call other than the single atomic TryAcquire; races
// between a user command and the sweeper are resolved purely through the
// aggregate's version counter.
type Coordinator struct {
	store     ReservationStore
	rules     RuleStore
	locker    lock.Locker
	counters  lock.Counters
	publisher EventPublisher
	clk       clock.Clock
	log       *slog.Logger
	cfg       Config
}

func NewCoordinator(store ReservationStore, rules RuleStore, locker lock.Locker, counters lock.Counters, publisher EventPublisher, clk clock.Clock, log *slog.Logger, cfg Config) *Coordinator {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 15 * time.Minute
	}
	if cfg.AuthExtension <= 0 {
		cfg.AuthExtension = 10 * time.Minute
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Coordinator{
		store:     store,
		rules:     rules,
		locker:    locker,
		counters:  counters,
		publisher: publisher,
		clk:       clk,
		log:       log,
		cfg:       cfg,
	}
}

// CreateLine is one requested ticket-type line. Every ticket maps to exactly
// one inventory unit, so len(UnitIDs) must equal Quantity.
type CreateLine struct {
	TicketTypeID   string
	TicketTypeName string
	UnitPriceCents int64
	Quantity       int
	UnitIDs        []string
}

// CreateInput is the buyer's create command.
type CreateInput struct {
	BuyerID         string
	EventID         string
	Lines           []CreateLine
	DiscountCode    string
	CustomerSegment string
}

func validateCreate(in CreateInput) error {
	if in.BuyerID == "" || in.EventID == "" || len(in.Lines) == 0 {
		return ErrInvalidInput
	}
	seen := make(map[string]struct{})
	for _, l := range in.Lines {
		if l.TicketTypeID == "" || l.Quantity <= 0 || l.UnitPriceCents < 0 {
			return ErrInvalidInput
		}
		if len(l.UnitIDs) != l.Quantity {
			return ErrInvalidInput
		}
		for _, u := range l.UnitIDs {
			if u == "" {
				return ErrInvalidInput
			}
			if _, dup := seen[u]; dup {
				return ErrInvalidInput
			}
			seen[u] = struct{}{}
		}
	}
	return nil
}

// Create acquires holds on every requested unit, prices the order, persists
// the pending reservation and starts its expiry clock. Any failure after
// acquisition — including the caller's context expiring — releases the
// holds before returning, so partial holds are never left behind.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	now := c.clk.Now()
	id := uuid.NewString()

	var units []string
	for _, l := range in.Lines {
		units = append(units, l.UnitIDs...)
	}
	if err := c.locker.TryAcquire(ctx, units, id, c.cfg.HoldTTL); err != nil {
		return nil, err
	}
	release := func() {
		// Compensation must not die with the request context.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.locker.Release(rctx, units, id); err != nil {
			c.log.Error("failed to release holds after aborted create", "reservation_id", id, "err", err)
		}
	}

	rules, err := c.rules.ActiveByEvent(ctx, in.EventID)
	if err != nil {
		release()
		return nil, err
	}
	used, err := c.rules.UsedRuleIDsByBuyer(ctx, in.EventID, in.BuyerID)
	if err != nil {
		release()
		return nil, err
	}

	orderLines := make([]pricing.OrderLine, len(in.Lines))
	for i, l := range in.Lines {
		orderLines[i] = pricing.OrderLine{
			TicketTypeID:   l.TicketTypeID,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
		}
	}
	result := pricing.Evaluate(rules, pricing.Input{
		Lines:            orderLines,
		DiscountCode:     in.DiscountCode,
		CustomerSegment:  in.CustomerSegment,
		BuyerUsedRuleIDs: used,
		AsOf:             now,
	})
	if in.DiscountCode != "" && result.Rejection != "" {
		release()
		return nil, &pricing.RejectedError{Reason: result.Rejection}
	}

	var totalQty int
	lines := make([]model.LineItem, len(in.Lines))
	for i, l := range in.Lines {
		lines[i] = model.LineItem{
			TicketTypeID:   l.TicketTypeID,
			TicketTypeName: l.TicketTypeName,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
			DiscountCents:  result.Lines[i].DiscountCents,
			UnitIDs:        l.UnitIDs,
		}
		totalQty += l.Quantity
	}
	appliedRuleID := ""
	if result.AppliedRule != nil {
		appliedRuleID = result.AppliedRule.ID
	}

	res, effects, err := model.NewReservation(
		id, utils.NewReservationNumber(now), in.BuyerID, in.EventID, c.cfg.Currency,
		lines, c.cfg.FeeCents*int64(totalQty), result.DiscountCents, appliedRuleID,
		now, c.cfg.HoldTTL,
	)
	if err != nil {
		release()
		return nil, err
	}
	if err := c.store.Create(ctx, res); err != nil {
		release()
		return nil, err
	}
	c.publish(ctx, effects)
	return res, nil
}

// Get returns the reservation as persisted. Reads never mutate state; an
// expired-but-unswept reservation still reads as PENDING until the sweeper
// or a conflicting command transitions it.
func (c *Coordinator) Get(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	return c.store.Get(ctx, id)
}

// maxTransitionRetries bounds the re-read loop when a transition loses a
// version race (for example a user cancel racing the sweeper).
const maxTransitionRetries = 3

// transition re-reads the aggregate, applies fn and persists, retrying on
// version conflicts. after runs exactly once following a successful write,
// before the effects are published.
func (c *Coordinator) transition(ctx context.Context, id string, fn func(*model.Reservation) ([]model.Event, error), after func(*model.Reservation) error) (*model.Reservation, error) {
	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		res, err := c.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		effects, err := fn(res)
		if err != nil {
			return res, err
		}
		if effects == nil {
			// Idempotent no-op (e.g. expiring an already-expired hold).
			return res, nil
		}
		if err := c.store.Update(ctx, res); err != nil {
			if errors.Is(err, model.ErrConcurrencyConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if after != nil {
			if err := after(res); err != nil {
				return nil, err
			}
		}
		c.publish(ctx, effects)
		return res, nil
	}
	return nil, lastErr
}

// Confirm finalizes a pending reservation after payment completed in time.
// The inventory holds become a permanent decrement and the applied rule's
// usage counter moves. Consumption happens before the write: if any hold
// has meanwhile been lost to another buyer the confirm fails with
// lock.ErrUnitConflict and nothing is persisted, so two reservations can
// never both confirm the same unit even when a Redis TTL lapses ahead of
// the aggregate deadline.
func (c *Coordinator) Confirm(ctx context.Context, id, paymentRef string) (*model.Reservation, error) {
	now := c.clk.Now()
	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		res, err := c.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		effects, err := res.Confirm(paymentRef, now)
		if err != nil {
			return res, err
		}
		if err := c.locker.Consume(ctx, res.UnitIDs(), res.ID); err != nil {
			return nil, err
		}
		if err := c.store.Update(ctx, res); err != nil {
			if errors.Is(err, model.ErrConcurrencyConflict) {
				// Consume is idempotent for this owner, safe to redo.
				lastErr = err
				continue
			}
			return nil, err
		}
		if res.AppliedRuleID != "" {
			if err := c.rules.RecordUse(ctx, res.AppliedRuleID, res.BuyerID, res.ID, now); err != nil {
				return nil, err
			}
		}
		c.adjustInventory(ctx, res.EventID, res.Lines, -1, "reservation_confirmed")
		c.publish(ctx, effects)
		return res, nil
	}
	return nil, lastErr
}

// Cancel aborts a pending reservation and releases its holds.
func (c *Coordinator) Cancel(ctx context.Context, id, reason string) (*model.Reservation, error) {
	now := c.clk.Now()
	return c.transition(ctx, id,
		func(res *model.Reservation) ([]model.Event, error) {
			return res.Cancel(reason, now)
		},
		func(res *model.Reservation) error {
			return c.locker.Release(ctx, res.UnitIDs(), res.ID)
		},
	)
}

// Extend pushes the hold deadline forward and extends the underlying unit
// holds to match.
func (c *Coordinator) Extend(ctx context.Context, id string, d time.Duration) (*model.Reservation, error) {
	now := c.clk.Now()
	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		res, err := c.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := res.Extend(d, now); err != nil {
			return res, err
		}
		if err := c.store.Update(ctx, res); err != nil {
			if errors.Is(err, model.ErrConcurrencyConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if err := c.locker.Extend(ctx, res.UnitIDs(), res.ID, d); err != nil {
			return nil, err
		}
		return res, nil
	}
	return nil, lastErr
}

// Expire forces a past-deadline reservation through the expire transition
// and releases its holds. Already-expired reservations are a no-op. The
// sweeper goes through here so it obeys the same guards as everyone else.
func (c *Coordinator) Expire(ctx context.Context, id string) (*model.Reservation, error) {
	now := c.clk.Now()
	return c.transition(ctx, id,
		func(res *model.Reservation) ([]model.Event, error) {
			return res.Expire(now)
		},
		func(res *model.Reservation) error {
			return c.locker.Release(ctx, res.UnitIDs(), res.ID)
		},
	)
}

// Refund reverses a confirmed reservation. The units were permanently
// consumed at confirm time, so they are restocked rather than released.
func (c *Coordinator) Refund(ctx context.Context, id, reason string) (*model.Reservation, error) {
	now := c.clk.Now()
	return c.transition(ctx, id,
		func(res *model.Reservation) ([]model.Event, error) {
			return res.Refund(reason, now)
		},
		func(res *model.Reservation) error {
			if err := c.locker.Restock(ctx, res.UnitIDs()); err != nil {
				return err
			}
			c.adjustInventory(ctx, res.EventID, res.Lines, 1, "refund_processed")
			return nil
		},
	)
}

// adjustInventory moves the per-ticket-type availability counters and
// publishes one InventoryChanged per line. Counter errors are logged, not
// fatal: the reservation transition has already been persisted.
func (c *Coordinator) adjustInventory(ctx context.Context, eventID string, lines []model.LineItem, direction int, reason string) {
	for _, l := range lines {
		var prev, cur int64
		var err error
		if direction < 0 {
			prev, cur, err = c.counters.Decrement(ctx, eventID, l.TicketTypeID, l.Quantity)
		} else {
			prev, cur, err = c.counters.Increment(ctx, eventID, l.TicketTypeID, l.Quantity)
		}
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

func (c *Coordinator) publish(ctx context.Context, effects []model.Event) {
	for _, ev := range effects {
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.log.Error("event publish failed", "type", ev.EventType(), "err", err)
		}
	}
}
