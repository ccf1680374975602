package pricing

import (
	"testing"
	"time"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
)

var asOf = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func codeRule(id, code string, pct int64, maxDiscount int64) model.PricingRule {
	return model.PricingRule{
		ID:               id,
		EventID:          "event-1",
		Kind:             model.RuleKindCode,
		Active:           true,
		EffectiveFrom:    asOf.Add(-time.Hour),
		DiscountType:     model.DiscountPercentage,
		DiscountValue:    pct,
		MaxDiscountCents: maxDiscount,
		Code:             code,
	}
}

func TestEvaluateNoRules(t *testing.T) {
	res := Evaluate(nil, Input{
		Lines: []OrderLine{{TicketTypeID: "ga", UnitPriceCents: 5000, Quantity: 2}},
		AsOf:  asOf,
	})
	if res.AppliedRule != nil || res.DiscountCents != 0 || res.Rejection != "" {
		t.Fatalf("expected zero-discount pass, got %+v", res)
	}
	if res.Lines[0].SubtotalCents != 10000 {
		t.Errorf("line subtotal = %d", res.Lines[0].SubtotalCents)
	}
}

func TestEvaluatePercentageWithCap(t *testing.T) {
	// 10% of $200 is $20, equal to the cap; the buyer saves exactly $20.
	rules := []model.PricingRule{codeRule("r1", "SAVE10", 10, 2000)}
	res := Evaluate(rules, Input{
		Lines:        []OrderLine{{TicketTypeID: "ga", UnitPriceCents: 10000, Quantity: 2}},
		DiscountCode: "SAVE10",
		AsOf:         asOf,
	})
	if res.Rejection != "" {
		t.Fatalf("unexpected rejection %q", res.Rejection)
	}
	if res.AppliedRule == nil || res.AppliedRule.ID != "r1" {
		t.Fatalf("applied = %+v", res.AppliedRule)
	}
	if res.DiscountCents != 2000 {
		t.Errorf("discount = %d, want 2000", res.DiscountCents)
	}

	// Larger order: the cap now binds below the raw percentage.
	res = Evaluate(rules, Input{
		Lines:        []OrderLine{{TicketTypeID: "ga", UnitPriceCents: 10000, Quantity: 5}},
		DiscountCode: "SAVE10",
		AsOf:         asOf,
	})
	if res.DiscountCents != 2000 {
		t.Errorf("capped discount = %d, want 2000", res.DiscountCents)
	}
}

func TestEvaluateFixedCappedAtSubtotal(t *testing.T) {
	rule := codeRule("r1", "BIG", 0, 0)
	rule.DiscountType = model.DiscountFixed
	rule.DiscountValue = 99999
	res := Evaluate([]model.PricingRule{rule}, Input{
		Lines:        []OrderLine{{TicketTypeID: "ga", UnitPriceCents: 2500, Quantity: 1}},
		DiscountCode: "BIG",
		AsOf:         asOf,
	})
	if res.DiscountCents != 2500 {
		t.Errorf("discount = %d, want subtotal 2500", res.DiscountCents)
	}
}

func TestEvaluateRejectionReasons(t *testing.T) {
	lines := []OrderLine{{TicketTypeID: "ga", UnitPriceCents: 5000, Quantity: 1}}

	cases := []struct {
		name   string
		mutate func(*model.PricingRule)
		in     Input
		want   RejectionReason
	}{
		{
			"unknown code",
			func(r *model.PricingRule) {},
			Input{Lines: lines, DiscountCode: "NOPE", AsOf: asOf},
			RejectionCodeMismatch,
		},
		{
			"inactive",
			func(r *model.PricingRule) { r.Active = false },
			Input{Lines: lines, DiscountCode: "SAVE10", AsOf: asOf},
			RejectionInactive,
		},
		{
			"out of window",
			func(r *model.PricingRule) { r.EffectiveFrom = asOf.Add(time.Hour) },
			Input{Lines: lines, DiscountCode: "SAVE10", AsOf: asOf},
			RejectionOutOfWindow,
		},
		{
			"usage exhausted",
			func(r *model.PricingRule) { r.MaxUses = 5; r.CurrentUses = 5 },
			Input{Lines: lines, DiscountCode: "SAVE10", AsOf: asOf},
			RejectionUsageExhausted,
		},
		{
			"single use already redeemed",
			func(r *model.PricingRule) { r.SingleUse = true },
			Input{
				Lines: lines, DiscountCode: "SAVE10", AsOf: asOf,
				BuyerUsedRuleIDs: map[string]struct{}{"r1": {}},
			},
			RejectionUsageExhausted,
		},
		{
			"below minimum order",
			func(r *model.PricingRule) { r.MinOrderCents = 10000 },
			Input{Lines: lines, DiscountCode: "SAVE10", AsOf: asOf},
			RejectionBelowMinimum,
		},
		{
			"quantity out of range",
			func(r *model.PricingRule) { r.MinQuantity = 4 },
			Input{Lines: lines, DiscountCode: "SAVE10", AsOf: asOf},
			RejectionQuantityOutOfRange,
		},
		{
			"no targeted line",
			func(r *model.PricingRule) { r.TicketTypeIDs = []string{"vip"} },
			Input{Lines: lines, DiscountCode: "SAVE10", AsOf: asOf},
			RejectionNoTargetingMatch,
		},
		{
			"segment mismatch",
			func(r *model.PricingRule) { r.Segments = []string{"member"} },
			Input{Lines: lines, DiscountCode: "SAVE10", CustomerSegment: "guest", AsOf: asOf},
			RejectionNoTargetingMatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := codeRule("r1", "SAVE10", 10, 0)
			tc.mutate(&rule)
			res := Evaluate([]model.PricingRule{rule}, tc.in)
			if res.Rejection != tc.want {
				t.Fatalf("rejection = %q, want %q", res.Rejection, tc.want)
			}
			if res.AppliedRule != nil || res.DiscountCents != 0 {
				t.Errorf("rejected evaluation must not discount: %+v", res)
			}
		})
	}
}

func TestEvaluateAutomaticRulesIgnoreCodeRules(t *testing.T) {
	auto := model.PricingRule{
		ID: "auto", Kind: model.RuleKindTime, Active: true,
		EffectiveFrom: asOf.Add(-time.Hour),
		DiscountType:  model.DiscountFixed, DiscountValue: 500,
	}
	code := codeRule("code", "SAVE10", 50, 0)

	res := Evaluate([]model.PricingRule{code, auto}, Input{
		Lines: []OrderLine{{TicketTypeID: "ga", UnitPriceCents: 5000, Quantity: 1}},
		AsOf:  asOf,
	})
	if res.AppliedRule == nil || res.AppliedRule.ID != "auto" {
		t.Fatalf("applied = %+v, want automatic rule", res.AppliedRule)
	}
	if res.DiscountCents != 500 {
		t.Errorf("discount = %d", res.DiscountCents)
	}
}

func TestEvaluateHighestPriorityWins(t *testing.T) {
	low := model.PricingRule{
		ID: "low", Kind: model.RuleKindTime, Active: true, Priority: 1,
		EffectiveFrom: asOf.Add(-time.Hour),
		DiscountType:  model.DiscountFixed, DiscountValue: 100,
	}
	high := model.PricingRule{
		ID: "high", Kind: model.RuleKindQuantity, Active: true, Priority: 9,
		EffectiveFrom: asOf.Add(-time.Hour),
		DiscountType:  model.DiscountFixed, DiscountValue: 300,
	}
	res := Evaluate([]model.PricingRule{low, high}, Input{
		Lines: []OrderLine{{TicketTypeID: "ga", UnitPriceCents: 5000, Quantity: 1}},
		AsOf:  asOf,
	})
	if res.AppliedRule.ID != "high" || res.DiscountCents != 300 {
		t.Fatalf("applied = %s discount = %d", res.AppliedRule.ID, res.DiscountCents)
	}
}

func TestEvaluateProportionalDistribution(t *testing.T) {
	// 100 cents across subtotals of 1000/2000 splits 33/67 by largest
	// remainder, never 33/66 or 34/67.
	rule := codeRule("r1", "SPLIT", 0, 0)
	rule.DiscountType = model.DiscountFixed
	rule.DiscountValue = 100
	lines := []OrderLine{
		{TicketTypeID: "a", UnitPriceCents: 1000, Quantity: 1},
		{TicketTypeID: "b", UnitPriceCents: 2000, Quantity: 1},
	}
	res := Evaluate([]model.PricingRule{rule}, Input{Lines: lines, DiscountCode: "SPLIT", AsOf: asOf})
	if res.DiscountCents != 100 {
		t.Fatalf("discount = %d", res.DiscountCents)
	}
	var sum int64
	for _, l := range res.Lines {
		sum += l.DiscountCents
	}
	if sum != res.DiscountCents {
		t.Errorf("line discounts sum to %d, want %d", sum, res.DiscountCents)
	}
	if res.Lines[0].DiscountCents != 33 || res.Lines[1].DiscountCents != 67 {
		t.Errorf("split = %d/%d, want 33/67", res.Lines[0].DiscountCents, res.Lines[1].DiscountCents)
	}
}

func TestEvaluateTargetedDiscountSkipsOtherLines(t *testing.T) {
	rule := codeRule("r1", "VIP20", 20, 0)
	rule.TicketTypeIDs = []string{"vip"}
	lines := []OrderLine{
		{TicketTypeID: "ga", UnitPriceCents: 5000, Quantity: 2},
		{TicketTypeID: "vip", UnitPriceCents: 10000, Quantity: 1},
	}
	res := Evaluate([]model.PricingRule{rule}, Input{Lines: lines, DiscountCode: "VIP20", AsOf: asOf})
	if res.DiscountCents != 2000 {
		t.Fatalf("discount = %d, want 20%% of the vip line", res.DiscountCents)
	}
	if res.Lines[0].DiscountCents != 0 {
		t.Errorf("untargeted line discounted: %d", res.Lines[0].DiscountCents)
	}
	if res.Lines[1].DiscountCents != 2000 {
		t.Errorf("targeted line discount = %d", res.Lines[1].DiscountCents)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	rules := []model.PricingRule{
		codeRule("r1", "SAVE10", 10, 0),
	}
	in := Input{
		Lines: []OrderLine{
			{TicketTypeID: "a", UnitPriceCents: 3333, Quantity: 3},
			{TicketTypeID: "b", UnitPriceCents: 777, Quantity: 7},
		},
		DiscountCode: "SAVE10",
		AsOf:         asOf,
	}
	first := Evaluate(rules, in)
	for i := 0; i < 50; i++ {
		again := Evaluate(rules, in)
		if again.DiscountCents != first.DiscountCents {
			t.Fatalf("run %d: discount %d != %d", i, again.DiscountCents, first.DiscountCents)
		}
		for j := range again.Lines {
			if again.Lines[j].DiscountCents != first.Lines[j].DiscountCents {
				t.Fatalf("run %d line %d: %d != %d", i, j, again.Lines[j].DiscountCents, first.Lines[j].DiscountCents)
			}
		}
	}
}
