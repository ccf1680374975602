// Package repository provides MySQL persistence for the reservation and
// pricing-rule aggregates. These sentinel values let handlers and the
// coordinator distinguish the expected failure scenarios without inspecting
// driver errors.
package repository

import "errors"

// ErrReservationNotFound is returned when no reservation exists with the
// requested ID. Handlers translate this into an HTTP 404 response.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrRuleNotFound is returned when no pricing rule exists with the
// requested ID.
var ErrRuleNotFound = errors.New("pricing rule not found")

// ErrDuplicateDiscountCode is returned when creating or updating a
// discount-code rule whose code already exists for the same event.
// Handlers translate this into an HTTP 409 response.
var ErrDuplicateDiscountCode = errors.New("discount code already exists for event")
