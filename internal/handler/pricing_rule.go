package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/clock"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/pricing"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/repository"
)

// PricingRuleHandler exposes the admin CRUD surface for pricing rules.
// Create and Update run conflict detection against the event's existing
// rules; a detected conflict blocks the write and is reported in full so
// the admin can fix the overlap instead of guessing.
type PricingRuleHandler struct {
	Rules *repository.PricingRuleRepo
	Clk   clock.Clock
	Log   *slog.Logger
}

func NewPricingRuleHandler(rules *repository.PricingRuleRepo, clk clock.Clock, log *slog.Logger) *PricingRuleHandler {
	if rules == nil {
		panic("nil rule repository passed to NewPricingRuleHandler")
	}
	return &PricingRuleHandler{Rules: rules, Clk: clk, Log: log}
}

type ruleBody struct {
	Kind             string     `json:"kind"`
	Name             string     `json:"name"`
	Priority         int        `json:"priority"`
	Active           *bool      `json:"active"`
	EffectiveFrom    time.Time  `json:"effective_from"`
	EffectiveTo      *time.Time `json:"effective_to"`
	DiscountType     string     `json:"discount_type"`
	DiscountValue    int64      `json:"discount_value"`
	MaxDiscountCents int64      `json:"max_discount_cents"`
	MinOrderCents    int64      `json:"min_order_cents"`
	Code             string     `json:"code"`
	MinQuantity      int        `json:"min_quantity"`
	MaxQuantity      int        `json:"max_quantity"`
	SingleUse        bool       `json:"single_use"`
	MaxUses          int        `json:"max_uses"`
	TicketTypeIDs    []string   `json:"ticket_type_ids"`
	Segments         []string   `json:"segments"`
}

func (b *ruleBody) toRule(id, eventID string, now time.Time) *model.PricingRule {
	active := true
	if b.Active != nil {
		active = *b.Active
	}
	from := b.EffectiveFrom
	if from.IsZero() {
		from = now
	}
	return &model.PricingRule{
		ID:               id,
		EventID:          eventID,
		Kind:             model.RuleKind(b.Kind),
		Name:             b.Name,
		Priority:         b.Priority,
		Active:           active,
		EffectiveFrom:    from,
		EffectiveTo:      b.EffectiveTo,
		DiscountType:     model.DiscountType(b.DiscountType),
		DiscountValue:    b.DiscountValue,
		MaxDiscountCents: b.MaxDiscountCents,
		MinOrderCents:    b.MinOrderCents,
		Code:             b.Code,
		MinQuantity:      b.MinQuantity,
		MaxQuantity:      b.MaxQuantity,
		SingleUse:        b.SingleUse,
		MaxUses:          b.MaxUses,
		TicketTypeIDs:    b.TicketTypeIDs,
		Segments:         b.Segments,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// List handles GET /v1/events/:id/pricing-rules.
func (h *PricingRuleHandler) List(c echo.Context) error {
	rules, err := h.Rules.ListByEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]echo.Map, 0, len(rules))
	for i := range rules {
		out = append(out, ruleResponse(&rules[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"rules": out})
}

// Create handles POST /v1/events/:id/pricing-rules.
func (h *PricingRuleHandler) Create(c echo.Context) error {
	var body ruleBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	rule := body.toRule(uuid.NewString(), c.Param("id"), h.Clk.Now())
	if err := rule.Validate(); err != nil {
		return writeError(c, h.Log, err)
	}
	existing, err := h.Rules.ListByEvent(ctx, rule.EventID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if conflicts := pricing.DetectConflicts(rule, existing); len(conflicts) > 0 {
		return writeError(c, h.Log, &pricing.ConflictError{Conflicts: conflicts})
	}
	if err := h.Rules.Create(ctx, rule); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, ruleResponse(rule))
}

// Update handles PUT /v1/pricing-rules/:id. The event scope and usage
// counter are immutable; everything else is replaced by the body.
func (h *PricingRuleHandler) Update(c echo.Context) error {
	var body ruleBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	current, err := h.Rules.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	rule := body.toRule(current.ID, current.EventID, h.Clk.Now())
	rule.CreatedAt = current.CreatedAt
	rule.CurrentUses = current.CurrentUses
	if err := rule.Validate(); err != nil {
		return writeError(c, h.Log, err)
	}
	existing, err := h.Rules.ListByEvent(ctx, rule.EventID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if conflicts := pricing.DetectConflicts(rule, existing); len(conflicts) > 0 {
		return writeError(c, h.Log, &pricing.ConflictError{Conflicts: conflicts})
	}
	if err := h.Rules.Update(ctx, rule); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ruleResponse(rule))
}

// Delete handles DELETE /v1/pricing-rules/:id.
func (h *PricingRuleHandler) Delete(c echo.Context) error {
	if err := h.Rules.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func ruleResponse(r *model.PricingRule) echo.Map {
	out := echo.Map{
		"id":             r.ID,
		"event_id":       r.EventID,
		"kind":           string(r.Kind),
		"name":           r.Name,
		"priority":       r.Priority,
		"active":         r.Active,
		"effective_from": r.EffectiveFrom,
		"discount_type":  string(r.DiscountType),
		"discount_value": r.DiscountValue,
		"single_use":     r.SingleUse,
		"current_uses":   r.CurrentUses,
		"created_at":     r.CreatedAt,
		"updated_at":     r.UpdatedAt,
	}
	if r.EffectiveTo != nil {
		out["effective_to"] = r.EffectiveTo
	}
	if r.MaxDiscountCents > 0 {
		out["max_discount_cents"] = r.MaxDiscountCents
	}
	if r.MinOrderCents > 0 {
		out["min_order_cents"] = r.MinOrderCents
	}
	if r.Code != "" {
		out["code"] = r.Code
	}
	if r.MinQuantity > 0 {
		out["min_quantity"] = r.MinQuantity
	}
	if r.MaxQuantity > 0 {
		out["max_quantity"] = r.MaxQuantity
	}
	if r.MaxUses > 0 {
		out["max_uses"] = r.MaxUses
	}
	if len(r.TicketTypeIDs) > 0 {
		out["ticket_type_ids"] = r.TicketTypeIDs
	}
	if len(r.Segments) > 0 {
		out["segments"] = r.Segments
	}
	return out
}
