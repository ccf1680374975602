// Package lock implements the inventory hold keyspace: short-lived exclusive
// claims on inventory units (seats or GA slots) that stop two concurrent
// checkouts from reserving the same unit. Acquisition is all-or-nothing and
// linearizable; release is idempotent.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrUnitConflict is the expected outcome when any requested unit already
// has a live hold or was permanently consumed. Callers map it to a
// "no longer available" response, not a fault.
var ErrUnitConflict = errors.New("inventory unit unavailable")

// Locker grants and releases holds on sets of inventory units.
type Locker interface {
	// TryAcquire atomically holds every unit or none of them. It must stay
	// safe under arbitrary concurrent callers racing for the same units.
	TryAcquire(ctx context.Context, unitIDs []string, ownerID string, ttl time.Duration) error

	// Release drops the owner's holds if present. Releasing units that are
	// not held (or held by someone else) is a no-op.
	Release(ctx context.Context, unitIDs []string, ownerID string) error

	// Extend pushes the expiry of the owner's live holds forward by extra.
	// Units not currently held by the owner are skipped.
	Extend(ctx context.Context, unitIDs []string, ownerID string, extra time.Duration) error

	// Consume converts the owner's holds into permanent consumption. The
	// units stay unavailable until Restock. All-or-nothing like TryAcquire:
	// if any unit's hold has meanwhile lapsed and been claimed by another
	// owner, nothing is consumed and ErrUnitConflict is returned. Units the
	// owner already consumed count as held, so redelivered confirms are a
	// no-op.
	Consume(ctx context.Context, unitIDs []string, ownerID string) error

	// Restock returns permanently consumed units to the pool (refund path).
	Restock(ctx context.Context, unitIDs []string) error

	// AreHeld is an advisory read; eventual consistency is acceptable here.
	AreHeld(ctx context.Context, unitIDs []string) (bool, error)
}

// Counters tracks per-ticket-type availability so that consume/restock can
// report previous and new quantities for InventoryChanged events.
type Counters interface {
	Set(ctx context.Context, eventID, ticketTypeID string, quantity int64) error
	Decrement(ctx context.Context, eventID, ticketTypeID string, n int) (prev, cur int64, err error)
	Increment(ctx context.Context, eventID, ticketTypeID string, n int) (prev, cur int64, err error)
}
