package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerLocker shields the lock store behind a circuit breaker so a Redis
// outage fails fast instead of piling up reservation requests. A unit
// conflict is a business outcome and must not count as a failure.
type BreakerLocker struct {
	next Locker
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerLocker(next Locker, log *slog.Logger) *BreakerLocker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inventory-lock",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("lock store breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerLocker{next: next, cb: cb}
}

func (b *BreakerLocker) exec(fn func() error) error {
	res, err := b.cb.Execute(func() (interface{}, error) {
		err := fn()
		if errors.Is(err, ErrUnitConflict) {
			return err, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	if e, ok := res.(error); ok {
		return e
	}
	return nil
}

func (b *BreakerLocker) TryAcquire(ctx context.Context, unitIDs []string, ownerID string, ttl time.Duration) error {
	return b.exec(func() error { return b.next.TryAcquire(ctx, unitIDs, ownerID, ttl) })
}

func (b *BreakerLocker) Release(ctx context.Context, unitIDs []string, ownerID string) error {
	return b.exec(func() error { return b.next.Release(ctx, unitIDs, ownerID) })
}

func (b *BreakerLocker) Extend(ctx context.Context, unitIDs []string, ownerID string, extra time.Duration) error {
	return b.exec(func() error { return b.next.Extend(ctx, unitIDs, ownerID, extra) })
}

func (b *BreakerLocker) Consume(ctx context.Context, unitIDs []string, ownerID string) error {
	return b.exec(func() error { return b.next.Consume(ctx, unitIDs, ownerID) })
}

func (b *BreakerLocker) Restock(ctx context.Context, unitIDs []string) error {
	return b.exec(func() error { return b.next.Restock(ctx, unitIDs) })
}

func (b *BreakerLocker) AreHeld(ctx context.Context, unitIDs []string) (bool, error) {
	var held bool
	err := b.exec(func() error {
		var err error
		held, err = b.next.AreHeld(ctx, unitIDs)
		return err
	})
	return held, err
}
