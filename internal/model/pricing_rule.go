package model

import (
	"fmt"
	"strings"
	"time"
)

// RuleKind discriminates the pricing rule variants. A single record carries
// kind-specific optional fields; Validate rejects illegal combinations at
// construction so a discount-code rule without a code can never be stored.
type RuleKind string

const (
	RuleKindBase     RuleKind = "BASE"
	RuleKindTime     RuleKind = "TIME"
	RuleKindQuantity RuleKind = "QUANTITY"
	RuleKindCode     RuleKind = "CODE"
	RuleKindDynamic  RuleKind = "DYNAMIC"
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	// DiscountFixed subtracts DiscountValue cents, capped at the subtotal.
	DiscountFixed DiscountType = "FIXED"
	// DiscountPercentage subtracts DiscountValue percent of the subtotal,
	// then applies MaxDiscountCents as a ceiling when set.
	DiscountPercentage DiscountType = "PERCENTAGE"
)

// PricingRule is one discount/pricing policy scoped to an event. It is
// read-only during evaluation; only CurrentUses moves, and only when a
// reservation that applied the rule is confirmed.
//
// Zero values mean "unset" for the optional constraints: MaxDiscountCents,
// MinOrderCents, MinQuantity, MaxQuantity and MaxUses are ignored when 0,
// and a nil EffectiveTo leaves the window open-ended.
type PricingRule struct {
	ID               string
	EventID          string
	Kind             RuleKind
	Name             string
	Priority         int
	Active           bool
	EffectiveFrom    time.Time
	EffectiveTo      *time.Time
	DiscountType     DiscountType
	DiscountValue    int64
	MaxDiscountCents int64
	MinOrderCents    int64
	Code             string
	MinQuantity      int
	MaxQuantity      int
	SingleUse        bool
	MaxUses          int
	CurrentUses      int
	TicketTypeIDs    []string
	Segments         []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate enforces the rule invariants. It returns an error wrapping
// ErrInvalidRule so callers can map the failure to a bad-request response
// before any side effect.
func (r *PricingRule) Validate() error {
	switch r.Kind {
	case RuleKindBase, RuleKindTime, RuleKindQuantity, RuleKindCode, RuleKindDynamic:
	default:
		return fmt.Errorf("unknown rule kind %q: %w", r.Kind, ErrInvalidRule)
	}
	switch r.DiscountType {
	case DiscountFixed:
		if r.DiscountValue <= 0 {
			return fmt.Errorf("fixed discount must be positive cents: %w", ErrInvalidRule)
		}
	case DiscountPercentage:
		if r.DiscountValue <= 0 || r.DiscountValue > 100 {
			return fmt.Errorf("percentage discount must be in 1..100: %w", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("unknown discount type %q: %w", r.DiscountType, ErrInvalidRule)
	}
	if r.EffectiveTo != nil && !r.EffectiveTo.After(r.EffectiveFrom) {
		return fmt.Errorf("effective window must end after it starts: %w", ErrInvalidRule)
	}
	if r.Kind == RuleKindCode && strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("discount-code rule requires a code: %w", ErrInvalidRule)
	}
	if r.Kind != RuleKindCode && r.Code != "" {
		return fmt.Errorf("only discount-code rules may carry a code: %w", ErrInvalidRule)
	}
	if r.MinQuantity < 0 || r.MaxQuantity < 0 {
		return fmt.Errorf("quantity bounds must not be negative: %w", ErrInvalidRule)
	}
	if r.MinQuantity > 0 && r.MaxQuantity > 0 && r.MinQuantity > r.MaxQuantity {
		return fmt.Errorf("min quantity exceeds max quantity: %w", ErrInvalidRule)
	}
	if r.MaxDiscountCents < 0 || r.MinOrderCents < 0 {
		return fmt.Errorf("discount cap and minimum order must not be negative: %w", ErrInvalidRule)
	}
	if r.MaxUses < 0 || r.CurrentUses < 0 {
		return fmt.Errorf("usage counters must not be negative: %w", ErrInvalidRule)
	}
	if r.MaxUses > 0 && r.CurrentUses > r.MaxUses {
		return fmt.Errorf("current uses exceed max uses: %w", ErrInvalidRule)
	}
	return nil
}

// InWindow reports whether at falls inside [EffectiveFrom, EffectiveTo).
// A nil EffectiveTo means the window never closes.
func (r *PricingRule) InWindow(at time.Time) bool {
	if at.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || at.Before(*r.EffectiveTo)
}

// WindowOverlaps reports whether the effective windows of two rules overlap.
// An absent end means unbounded: two ranges overlap unless one provably
// ends before the other starts.
func (r *PricingRule) WindowOverlaps(other *PricingRule) bool {
	if r.EffectiveTo != nil && !r.EffectiveTo.After(other.EffectiveFrom) {
		return false
	}
	if other.EffectiveTo != nil && !other.EffectiveTo.After(r.EffectiveFrom) {
		return false
	}
	return true
}

// TargetsEverything reports whether the rule has no ticket-type restriction
// and therefore implicitly targets every line of the order.
func (r *PricingRule) TargetsEverything() bool {
	return len(r.TicketTypeIDs) == 0
}

// TargetsTicketType reports whether the rule applies to the given ticket
// type, either explicitly or by having no restriction.
func (r *PricingRule) TargetsTicketType(id string) bool {
	if r.TargetsEverything() {
		return true
	}
	for _, t := range r.TicketTypeIDs {
		if t == id {
			return true
		}
	}
	return false
}

// AllowsSegment reports whether the supplied customer segment satisfies the
// rule's segment restriction. An empty restriction allows any segment.
func (r *PricingRule) AllowsSegment(segment string) bool {
	if len(r.Segments) == 0 {
		return true
	}
	for _, s := range r.Segments {
		if s == segment {
			return true
		}
	}
	return false
}

// CodeMatches performs the case-insensitive exact match required for
// discount-code rules.
func (r *PricingRule) CodeMatches(code string) bool {
	return r.Code != "" && strings.EqualFold(r.Code, strings.TrimSpace(code))
}
