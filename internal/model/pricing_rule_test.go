package model

import (
	"errors"
	"testing"
	"time"
)

func validCodeRule() PricingRule {
	to := testNow.Add(48 * time.Hour)
	return PricingRule{
		ID:            "rule-1",
		EventID:       "event-1",
		Kind:          RuleKindCode,
		Name:          "Early bird",
		Active:        true,
		EffectiveFrom: testNow.Add(-time.Hour),
		EffectiveTo:   &to,
		DiscountType:  DiscountPercentage,
		DiscountValue: 10,
		Code:          "SAVE10",
	}
}

func TestPricingRuleValidate(t *testing.T) {
	t.Run("valid rule passes", func(t *testing.T) {
		r := validCodeRule()
		if err := r.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*PricingRule)
	}{
		{"unknown kind", func(r *PricingRule) { r.Kind = "WEEKLY" }},
		{"unknown discount type", func(r *PricingRule) { r.DiscountType = "POINTS" }},
		{"zero percentage", func(r *PricingRule) { r.DiscountValue = 0 }},
		{"percentage over 100", func(r *PricingRule) { r.DiscountValue = 150 }},
		{"fixed must be positive", func(r *PricingRule) { r.DiscountType = DiscountFixed; r.DiscountValue = 0 }},
		{"window ends before start", func(r *PricingRule) {
			to := r.EffectiveFrom.Add(-time.Minute)
			r.EffectiveTo = &to
		}},
		{"code rule without code", func(r *PricingRule) { r.Code = "" }},
		{"non-code rule with code", func(r *PricingRule) { r.Kind = RuleKindTime }},
		{"min quantity above max", func(r *PricingRule) { r.MinQuantity = 5; r.MaxQuantity = 2 }},
		{"negative discount cap", func(r *PricingRule) { r.MaxDiscountCents = -1 }},
		{"uses above max", func(r *PricingRule) { r.MaxUses = 2; r.CurrentUses = 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validCodeRule()
			tc.mutate(&r)
			if err := r.Validate(); !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("err = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestInWindow(t *testing.T) {
	r := validCodeRule()
	if !r.InWindow(r.EffectiveFrom) {
		t.Error("window start should be inside")
	}
	if r.InWindow(*r.EffectiveTo) {
		t.Error("window end is exclusive")
	}
	if r.InWindow(r.EffectiveFrom.Add(-time.Second)) {
		t.Error("before start should be outside")
	}

	r.EffectiveTo = nil
	if !r.InWindow(testNow.Add(1000 * time.Hour)) {
		t.Error("open-ended window should never close")
	}
}

func TestWindowOverlaps(t *testing.T) {
	mk := func(from time.Time, to *time.Time) PricingRule {
		return PricingRule{EffectiveFrom: from, EffectiveTo: to}
	}
	t1 := testNow
	t2 := testNow.Add(time.Hour)
	t3 := testNow.Add(2 * time.Hour)

	a := mk(t1, &t2)
	b := mk(t2, &t3)
	if a.WindowOverlaps(&b) {
		t.Error("adjacent windows should not overlap")
	}
	c := mk(t1, &t3)
	d := mk(t2, nil)
	if !c.WindowOverlaps(&d) {
		t.Error("bounded window should overlap open-ended one starting inside it")
	}
	e := mk(t1, nil)
	f := mk(t3, nil)
	if !e.WindowOverlaps(&f) {
		t.Error("two open-ended windows always overlap")
	}
}

func TestTargeting(t *testing.T) {
	r := validCodeRule()
	if !r.TargetsEverything() || !r.TargetsTicketType("anything") {
		t.Error("unrestricted rule should target every ticket type")
	}

	r.TicketTypeIDs = []string{"vip"}
	if r.TargetsTicketType("ga") {
		t.Error("restricted rule matched an untargeted type")
	}
	if !r.TargetsTicketType("vip") {
		t.Error("restricted rule missed its own type")
	}

	if !r.AllowsSegment("") {
		t.Error("unrestricted segments should allow anyone")
	}
	r.Segments = []string{"member"}
	if r.AllowsSegment("guest") || !r.AllowsSegment("member") {
		t.Error("segment restriction misapplied")
	}
}

func TestCodeMatches(t *testing.T) {
	r := validCodeRule()
	if !r.CodeMatches("save10") || !r.CodeMatches("  SAVE10 ") {
		t.Error("code match should be case-insensitive and trimmed")
	}
	if r.CodeMatches("SAVE20") {
		t.Error("different code matched")
	}
	r.Code = ""
	if r.CodeMatches("") {
		t.Error("empty code must never match")
	}
}
