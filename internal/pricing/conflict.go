package pricing

import (
	"fmt"
	"strings"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
)

// ConflictType classifies why two rules cannot coexist.
type ConflictType string

const (
	ConflictPriorityTie   ConflictType = "priority_tie"
	ConflictDuplicateCode ConflictType = "duplicate_code"
	ConflictTargetOverlap ConflictType = "target_overlap"
)

// Conflict describes one incompatibility between a candidate rule and an
// existing rule. Administrative writes are rejected while any conflict
// exists, which is what keeps evaluation-time tie-breaks unambiguous.
type Conflict struct {
	Type              ConflictType `json:"type"`
	ConflictingRuleID string       `json:"conflicting_rule_id"`
	Description       string       `json:"description"`
}

// ConflictError carries the full conflict list back to the admin caller.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pricing rule conflicts with %d existing rule(s)", len(e.Conflicts))
}

// DetectConflicts checks a candidate rule against the event's existing rules.
// Two active rules of the same kind with overlapping effective windows
// conflict when they share a priority, carry the same discount code, or
// their targeting overlaps (no restriction targets everything and therefore
// overlaps with anything narrower). The candidate itself is skipped on
// update.
func DetectConflicts(candidate *model.PricingRule, existing []model.PricingRule) []Conflict {
	var out []Conflict
	if !candidate.Active {
		return out
	}
	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID || !other.Active {
			continue
		}
		if other.Kind != candidate.Kind || !candidate.WindowOverlaps(other) {
			continue
		}
		if candidate.Priority == other.Priority {
			out = append(out, Conflict{
				Type:              ConflictPriorityTie,
				ConflictingRuleID: other.ID,
				Description:       fmt.Sprintf("rule %q shares priority %d over an overlapping window", other.Name, other.Priority),
			})
		}
		if candidate.Kind == model.RuleKindCode && strings.EqualFold(candidate.Code, other.Code) {
			out = append(out, Conflict{
				Type:              ConflictDuplicateCode,
				ConflictingRuleID: other.ID,
				Description:       fmt.Sprintf("code %q is already active in an overlapping window", other.Code),
			})
		}
		if targetingOverlaps(candidate, other) {
			out = append(out, Conflict{
				Type:              ConflictTargetOverlap,
				ConflictingRuleID: other.ID,
				Description:       fmt.Sprintf("targeting overlaps with rule %q over an overlapping window", other.Name),
			})
		}
	}
	return out
}

func targetingOverlaps(a, b *model.PricingRule) bool {
	if a.TargetsEverything() || b.TargetsEverything() {
		return true
	}
	for _, t := range a.TicketTypeIDs {
		for _, u := range b.TicketTypeIDs {
			if t == u {
				return true
			}
		}
	}
	return false
}
