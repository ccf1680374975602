package pricing

import (
	"testing"
	"time"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
)

func timeRule(id string, priority int, from time.Time, to *time.Time, targets ...string) model.PricingRule {
	return model.PricingRule{
		ID:            id,
		EventID:       "event-1",
		Kind:          model.RuleKindTime,
		Name:          id,
		Priority:      priority,
		Active:        true,
		EffectiveFrom: from,
		EffectiveTo:   to,
		DiscountType:  model.DiscountFixed,
		DiscountValue: 100,
		TicketTypeIDs: targets,
	}
}

func hasConflict(conflicts []Conflict, typ ConflictType, ruleID string) bool {
	for _, c := range conflicts {
		if c.Type == typ && c.ConflictingRuleID == ruleID {
			return true
		}
	}
	return false
}

func TestDetectConflictsPriorityTie(t *testing.T) {
	existing := []model.PricingRule{timeRule("a", 5, asOf, nil, "ga")}
	cand := timeRule("b", 5, asOf.Add(time.Hour), nil, "vip")

	conflicts := DetectConflicts(&cand, existing)
	if !hasConflict(conflicts, ConflictPriorityTie, "a") {
		t.Fatalf("expected priority tie, got %+v", conflicts)
	}
	// Disjoint targeting: the tie is the only conflict.
	if hasConflict(conflicts, ConflictTargetOverlap, "a") {
		t.Errorf("disjoint targeting reported as overlap: %+v", conflicts)
	}
}

func TestDetectConflictsDuplicateCode(t *testing.T) {
	mk := func(id, code string) model.PricingRule {
		r := timeRule(id, 1, asOf, nil, "ga")
		r.Kind = model.RuleKindCode
		r.Code = code
		return r
	}
	existing := []model.PricingRule{mk("a", "SAVE10")}
	cand := mk("b", "save10")
	cand.Priority = 2
	cand.TicketTypeIDs = []string{"vip"}

	conflicts := DetectConflicts(&cand, existing)
	if !hasConflict(conflicts, ConflictDuplicateCode, "a") {
		t.Fatalf("case-insensitive duplicate code not detected: %+v", conflicts)
	}
}

func TestDetectConflictsTargetOverlap(t *testing.T) {
	existing := []model.PricingRule{timeRule("a", 1, asOf, nil, "ga", "vip")}

	t.Run("shared ticket type", func(t *testing.T) {
		cand := timeRule("b", 2, asOf, nil, "vip")
		if !hasConflict(DetectConflicts(&cand, existing), ConflictTargetOverlap, "a") {
			t.Error("shared ticket type not detected")
		}
	})

	t.Run("universal targeting overlaps anything", func(t *testing.T) {
		cand := timeRule("b", 2, asOf, nil)
		if !hasConflict(DetectConflicts(&cand, existing), ConflictTargetOverlap, "a") {
			t.Error("universal candidate not flagged")
		}
	})
}

func TestDetectConflictsSkips(t *testing.T) {
	to := asOf.Add(time.Hour)

	t.Run("different kinds", func(t *testing.T) {
		existing := []model.PricingRule{timeRule("a", 1, asOf, nil)}
		cand := timeRule("b", 1, asOf, nil)
		cand.Kind = model.RuleKindQuantity
		if got := DetectConflicts(&cand, existing); len(got) != 0 {
			t.Errorf("different kinds conflicted: %+v", got)
		}
	})

	t.Run("disjoint windows", func(t *testing.T) {
		existing := []model.PricingRule{timeRule("a", 1, asOf, &to)}
		cand := timeRule("b", 1, to, nil)
		if got := DetectConflicts(&cand, existing); len(got) != 0 {
			t.Errorf("disjoint windows conflicted: %+v", got)
		}
	})

	t.Run("inactive rules", func(t *testing.T) {
		inactive := timeRule("a", 1, asOf, nil)
		inactive.Active = false
		cand := timeRule("b", 1, asOf, nil)
		if got := DetectConflicts(&cand, []model.PricingRule{inactive}); len(got) != 0 {
			t.Errorf("inactive existing rule conflicted: %+v", got)
		}
		activeExisting := []model.PricingRule{timeRule("c", 1, asOf, nil)}
		cand.Active = false
		if got := DetectConflicts(&cand, activeExisting); len(got) != 0 {
			t.Errorf("inactive candidate conflicted: %+v", got)
		}
	})

	t.Run("self on update", func(t *testing.T) {
		existing := []model.PricingRule{timeRule("a", 1, asOf, nil)}
		cand := timeRule("a", 1, asOf, nil)
		if got := DetectConflicts(&cand, existing); len(got) != 0 {
			t.Errorf("candidate conflicted with itself: %+v", got)
		}
	})
}
