// Package handler contains the HTTP handlers exposed by the API.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/service"
)

// ReservationHandler exposes the buyer-facing reservation lifecycle. Every
// mutation goes through the coordinator; the handler only binds, validates
// shape, and maps domain errors to status codes.
type ReservationHandler struct {
	Coord *service.Coordinator
	Log   *slog.Logger
}

func NewReservationHandler(coord *service.Coordinator, log *slog.Logger) *ReservationHandler {
	if coord == nil {
		panic("nil coordinator passed to NewReservationHandler")
	}
	return &ReservationHandler{Coord: coord, Log: log}
}

type createLineBody struct {
	TicketTypeID   string   `json:"ticket_type_id"`
	TicketTypeName string   `json:"ticket_type_name"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	Quantity       int      `json:"quantity"`
	UnitIDs        []string `json:"unit_ids"`
}

type createBody struct {
	BuyerID         string           `json:"buyer_id"`
	EventID         string           `json:"event_id"`
	Lines           []createLineBody `json:"lines"`
	DiscountCode    string           `json:"discount_code"`
	CustomerSegment string           `json:"customer_segment"`
}

// Create handles POST /v1/reservations. On success it returns 201 with the
// priced, pending reservation; the hold expiry is included so clients can
// show a countdown.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body createBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	in := service.CreateInput{
		BuyerID:         body.BuyerID,
		EventID:         body.EventID,
		DiscountCode:    body.DiscountCode,
		CustomerSegment: body.CustomerSegment,
	}
	for _, l := range body.Lines {
		in.Lines = append(in.Lines, service.CreateLine{
			TicketTypeID:   l.TicketTypeID,
			TicketTypeName: l.TicketTypeName,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
			UnitIDs:        l.UnitIDs,
		})
	}
	res, err := h.Coord.Create(c.Request().Context(), in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, reservationResponse(res))
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	res, err := h.Coord.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, reservationResponse(res))
}

// Confirm handles POST /v1/reservations/:id/confirm. The payment reference
// is required; confirmation is what permanently consumes the held units.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	var body struct {
		PaymentRef string `json:"payment_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PaymentRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_ref is required"})
	}
	res, err := h.Coord.Confirm(c.Request().Context(), c.Param("id"), body.PaymentRef)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, reservationResponse(res))
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Coord.Cancel(c.Request().Context(), c.Param("id"), body.Reason)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, reservationResponse(res))
}

// Extend handles POST /v1/reservations/:id/extend. The extension is given
// in seconds and must be positive; the new deadline only ever moves forward.
func (h *ReservationHandler) Extend(c echo.Context) error {
	var body struct {
		ExtendSec int `json:"extend_sec"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ExtendSec <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "extend_sec must be positive"})
	}
	res, err := h.Coord.Extend(c.Request().Context(), c.Param("id"), time.Duration(body.ExtendSec)*time.Second)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, reservationResponse(res))
}

func reservationResponse(res *model.Reservation) echo.Map {
	lines := make([]echo.Map, 0, len(res.Lines))
	for _, l := range res.Lines {
		lines = append(lines, echo.Map{
			"ticket_type_id":   l.TicketTypeID,
			"ticket_type_name": l.TicketTypeName,
			"unit_price_cents": l.UnitPriceCents,
			"quantity":         l.Quantity,
			"discount_cents":   l.DiscountCents,
			"total_cents":      l.TotalCents,
			"unit_ids":         l.UnitIDs,
		})
	}
	out := echo.Map{
		"id":             res.ID,
		"number":         res.Number,
		"buyer_id":       res.BuyerID,
		"event_id":       res.EventID,
		"status":         string(res.Status),
		"currency":       res.Currency,
		"subtotal_cents": res.SubtotalCents,
		"fee_cents":      res.FeeCents,
		"discount_cents": res.DiscountCents,
		"total_cents":    res.TotalCents,
		"lines":          lines,
		"created_at":     res.CreatedAt,
		"expires_at":     res.ExpiresAt,
	}
	if res.AppliedRuleID != "" {
		out["applied_rule_id"] = res.AppliedRuleID
	}
	if res.PaymentRef != "" {
		out["payment_ref"] = res.PaymentRef
	}
	if res.FailureReason != "" {
		out["failure_reason"] = res.FailureReason
	}
	if res.ConfirmedAt != nil {
		out["confirmed_at"] = res.ConfirmedAt
	}
	if res.CancelledAt != nil {
		out["cancelled_at"] = res.CancelledAt
	}
	return out
}
