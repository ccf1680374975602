package lock

import (
	"context"
	"sync"
	"time"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/clock"
)

type holdEntry struct {
	owner     string
	expiresAt time.Time
}

// MemoryLocker is a mutex-guarded Locker for tests and single-process dev
// runs. It honours the same contract as the Redis implementation, including
// lazy expiry of stale holds.
type MemoryLocker struct {
	mu    sync.Mutex
	clk   clock.Clock
	holds map[string]holdEntry
	sold  map[string]string
}

func NewMemoryLocker(clk clock.Clock) *MemoryLocker {
	return &MemoryLocker{
		clk:   clk,
		holds: make(map[string]holdEntry),
		sold:  make(map[string]string),
	}
}

func (l *MemoryLocker) live(unit string, now time.Time) (holdEntry, bool) {
	h, ok := l.holds[unit]
	if !ok {
		return holdEntry{}, false
	}
	if now.After(h.expiresAt) {
		delete(l.holds, unit)
		return holdEntry{}, false
	}
	return h, true
}

func (l *MemoryLocker) TryAcquire(_ context.Context, unitIDs []string, ownerID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	for _, u := range unitIDs {
		if _, held := l.live(u, now); held {
			return ErrUnitConflict
		}
		if _, soldOut := l.sold[u]; soldOut {
			return ErrUnitConflict
		}
	}
	for _, u := range unitIDs {
		l.holds[u] = holdEntry{owner: ownerID, expiresAt: now.Add(ttl)}
	}
	return nil
}

func (l *MemoryLocker) Release(_ context.Context, unitIDs []string, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range unitIDs {
		if h, ok := l.holds[u]; ok && h.owner == ownerID {
			delete(l.holds, u)
		}
	}
	return nil
}

func (l *MemoryLocker) Extend(_ context.Context, unitIDs []string, ownerID string, extra time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	for _, u := range unitIDs {
		if h, held := l.live(u, now); held && h.owner == ownerID {
			h.expiresAt = h.expiresAt.Add(extra)
			l.holds[u] = h
		}
	}
	return nil
}

func (l *MemoryLocker) Consume(_ context.Context, unitIDs []string, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	for _, u := range unitIDs {
		if h, held := l.live(u, now); held && h.owner != ownerID {
			return ErrUnitConflict
		}
		if soldTo, ok := l.sold[u]; ok && soldTo != ownerID {
			return ErrUnitConflict
		}
	}
	for _, u := range unitIDs {
		delete(l.holds, u)
		l.sold[u] = ownerID
	}
	return nil
}

func (l *MemoryLocker) Restock(_ context.Context, unitIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range unitIDs {
		delete(l.sold, u)
	}
	return nil
}

func (l *MemoryLocker) AreHeld(_ context.Context, unitIDs []string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clk.Now()
	for _, u := range unitIDs {
		if _, held := l.live(u, now); !held {
			return false, nil
		}
	}
	return true, nil
}

// MemoryCounters mirrors RedisCounters for tests and dev runs.
type MemoryCounters struct {
	mu     sync.Mutex
	counts map[string]map[string]int64
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{counts: make(map[string]map[string]int64)}
}

func (c *MemoryCounters) Set(_ context.Context, eventID, ticketTypeID string, quantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[eventID] == nil {
		c.counts[eventID] = make(map[string]int64)
	}
	c.counts[eventID][ticketTypeID] = quantity
	return nil
}

func (c *MemoryCounters) Decrement(_ context.Context, eventID, ticketTypeID string, n int) (int64, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[eventID] == nil {
		c.counts[eventID] = make(map[string]int64)
	}
	prev := c.counts[eventID][ticketTypeID]
	cur := prev - int64(n)
	c.counts[eventID][ticketTypeID] = cur
	return prev, cur, nil
}

func (c *MemoryCounters) Increment(_ context.Context, eventID, ticketTypeID string, n int) (int64, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[eventID] == nil {
		c.counts[eventID] = make(map[string]int64)
	}
	prev := c.counts[eventID][ticketTypeID]
	cur := prev + int64(n)
	c.counts[eventID][ticketTypeID] = cur
	return prev, cur, nil
}
