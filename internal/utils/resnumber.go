// Package utils provides small helpers shared across the service.
package utils

import (
	"crypto/rand"
	"time"
)

const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReservationNumber derives the human-readable reservation number shown
// to buyers and support staff, e.g. "RSV-20260823-7KQ2MX". The random
// suffix uses an alphabet without easily confused characters. The number is
// display-only; uniqueness is anchored by the reservation ID.
func NewReservationNumber(now time.Time) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in much deeper trouble;
		// fall back to a time-derived suffix rather than refusing the sale.
		n := now.UnixNano()
		for i := range b {
			b[i] = byte(n >> uint(i*5))
		}
	}
	for i := range b {
		b[i] = numberAlphabet[int(b[i])%len(numberAlphabet)]
	}
	return "RSV-" + now.UTC().Format("20060102") + "-" + string(b)
}
