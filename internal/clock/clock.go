// Package clock abstracts the current time so that expiry and pricing
// decisions can be tested against a fixed instant.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current UTC time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock pinned to an instant that only moves when told to,
// for tests.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock pinned to t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
