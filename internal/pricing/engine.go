// Package pricing evaluates an event's configured rules against a candidate
// order. Evaluation is a pure function of its inputs so the same order, rule
// set and as-of instant always price identically, which keeps reservation
// totals auditable after the rules change.
package pricing

import (
	"sort"
	"time"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
)

// RejectionReason explains why a requested discount did not apply. The
// buyer-facing flow shows these verbatim, so they stay machine-readable.
type RejectionReason string

const (
	RejectionInactive           RejectionReason = "inactive"
	RejectionOutOfWindow        RejectionReason = "out_of_window"
	RejectionUsageExhausted     RejectionReason = "usage_exhausted"
	RejectionCodeMismatch       RejectionReason = "code_mismatch"
	RejectionBelowMinimum       RejectionReason = "below_minimum"
	RejectionQuantityOutOfRange RejectionReason = "quantity_out_of_range"
	RejectionNoTargetingMatch   RejectionReason = "no_targeting_match"
)

// RejectedError is returned when a buyer-supplied discount code could not
// be applied. The reason is user-presentable.
type RejectedError struct {
	Reason RejectionReason
}

func (e *RejectedError) Error() string {
	return "discount code not applicable: " + string(e.Reason)
}

// OrderLine is one ticket-type line of the candidate order.
type OrderLine struct {
	TicketTypeID   string
	UnitPriceCents int64
	Quantity       int
}

// Input carries everything Evaluate needs. BuyerUsedRuleIDs is the set of
// single-use rules this buyer has already redeemed; it is supplied by the
// caller so evaluation itself stays side-effect free.
type Input struct {
	Lines            []OrderLine
	DiscountCode     string
	CustomerSegment  string
	BuyerUsedRuleIDs map[string]struct{}
	AsOf             time.Time
}

// LineDiscount is the per-line share of the order discount.
type LineDiscount struct {
	TicketTypeID  string
	SubtotalCents int64
	DiscountCents int64
}

// Result is the outcome of one evaluation. Rejection is set only when a
// discount code was supplied and could not be applied.
type Result struct {
	AppliedRule   *model.PricingRule
	DiscountCents int64
	Lines         []LineDiscount
	Rejection     RejectionReason
}

// Evaluate prices the order against the given rules. When a discount code is
// supplied only code rules are considered and a structured rejection reason
// is returned if none applies; otherwise the automatic (non-code) rules
// compete and the applicable one with the highest priority wins. Admin-time
// conflict detection guarantees the priorities of overlapping rules are
// distinct, so the winner is unambiguous.
func Evaluate(rules []model.PricingRule, in Input) Result {
	subtotal, totalQty := orderTotals(in.Lines)
	res := Result{Lines: zeroBreakdown(in.Lines)}

	wantCode := in.DiscountCode != ""
	var best *model.PricingRule
	var firstRejection RejectionReason
	codeSeen := false

	for i := range rules {
		r := &rules[i]
		if wantCode != (r.Kind == model.RuleKindCode) {
			continue
		}
		if wantCode {
			if !r.CodeMatches(in.DiscountCode) {
				continue
			}
			codeSeen = true
		}
		if reason := applicability(r, in, subtotal, totalQty); reason != "" {
			if wantCode && firstRejection == "" {
				firstRejection = reason
			}
			continue
		}
		if best == nil || r.Priority > best.Priority {
			best = r
		}
	}

	if best == nil {
		if wantCode {
			if !codeSeen {
				res.Rejection = RejectionCodeMismatch
			} else {
				res.Rejection = firstRejection
			}
		}
		return res
	}

	res.AppliedRule = best
	res.DiscountCents, res.Lines = applyDiscount(best, in.Lines)
	return res
}

// applicability runs the eligibility checks in a fixed order and returns
// the first failure, or "" when the rule applies.
func applicability(r *model.PricingRule, in Input, subtotal int64, totalQty int) RejectionReason {
	if !r.Active {
		return RejectionInactive
	}
	if !r.InWindow(in.AsOf) {
		return RejectionOutOfWindow
	}
	if r.MaxUses > 0 && r.CurrentUses >= r.MaxUses {
		return RejectionUsageExhausted
	}
	if r.SingleUse {
		if _, used := in.BuyerUsedRuleIDs[r.ID]; used {
			return RejectionUsageExhausted
		}
	}
	if r.MinOrderCents > 0 && subtotal < r.MinOrderCents {
		return RejectionBelowMinimum
	}
	if r.MinQuantity > 0 && totalQty < r.MinQuantity {
		return RejectionQuantityOutOfRange
	}
	if r.MaxQuantity > 0 && totalQty > r.MaxQuantity {
		return RejectionQuantityOutOfRange
	}
	if !r.TargetsEverything() {
		matched := false
		for _, l := range in.Lines {
			if r.TargetsTicketType(l.TicketTypeID) {
				matched = true
				break
			}
		}
		if !matched {
			return RejectionNoTargetingMatch
		}
	}
	if !r.AllowsSegment(in.CustomerSegment) {
		return RejectionNoTargetingMatch
	}
	return ""
}

// applyDiscount computes the order-level discount for the winning rule and
// distributes it across the targeted lines proportionally to each line's
// share of the targeted subtotal, using largest-remainder rounding so the
// per-line cents sum exactly to the order discount.
func applyDiscount(r *model.PricingRule, lines []OrderLine) (int64, []LineDiscount) {
	breakdown := zeroBreakdown(lines)

	var targetedSubtotal int64
	targeted := make([]int, 0, len(lines))
	for i, l := range lines {
		if r.TargetsTicketType(l.TicketTypeID) {
			targeted = append(targeted, i)
			targetedSubtotal += breakdown[i].SubtotalCents
		}
	}
	if targetedSubtotal == 0 {
		return 0, breakdown
	}

	var discount int64
	switch r.DiscountType {
	case model.DiscountFixed:
		discount = r.DiscountValue
		if discount > targetedSubtotal {
			discount = targetedSubtotal
		}
	case model.DiscountPercentage:
		discount = targetedSubtotal * r.DiscountValue / 100
		if r.MaxDiscountCents > 0 && discount > r.MaxDiscountCents {
			discount = r.MaxDiscountCents
		}
	}
	if discount <= 0 {
		return 0, breakdown
	}

	// Floor each targeted share, then hand the leftover cents to the lines
	// with the largest remainders (index order breaks remainder ties).
	type share struct {
		idx       int
		remainder int64
	}
	shares := make([]share, 0, len(targeted))
	var assigned int64
	for _, i := range targeted {
		num := discount * breakdown[i].SubtotalCents
		breakdown[i].DiscountCents = num / targetedSubtotal
		assigned += breakdown[i].DiscountCents
		shares = append(shares, share{idx: i, remainder: num % targetedSubtotal})
	}
	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].remainder > shares[b].remainder
	})
	for k := int64(0); k < discount-assigned; k++ {
		breakdown[shares[k%int64(len(shares))].idx].DiscountCents++
	}
	return discount, breakdown
}

func orderTotals(lines []OrderLine) (int64, int) {
	var subtotal int64
	var qty int
	for _, l := range lines {
		subtotal += l.UnitPriceCents * int64(l.Quantity)
		qty += l.Quantity
	}
	return subtotal, qty
}

func zeroBreakdown(lines []OrderLine) []LineDiscount {
	out := make([]LineDiscount, len(lines))
	for i, l := range lines {
		out[i] = LineDiscount{
			TicketTypeID:  l.TicketTypeID,
			SubtotalCents: l.UnitPriceCents * int64(l.Quantity),
		}
	}
	return out
}
