package handler

import (
	"log/slog"
	"net/http"

	"errors"

	"github.com/labstack/echo/v4"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/lock"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/pricing"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/repository"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/service"
)

// writeError maps domain errors to HTTP responses. Business failures come
// back as 4xx with a stable machine-readable error code; anything
// unrecognized is logged in full and surfaces as a generic 500 so internal
// details never leak to clients.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	var rejected *pricing.RejectedError
	var invalid *model.InvalidTransitionError
	var conflict *pricing.ConflictError

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	case errors.Is(err, model.ErrInvalidRule):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_rule", "detail": err.Error()})
	case errors.As(err, &rejected):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "discount_rejected", "reason": string(rejected.Reason)})
	case errors.Is(err, lock.ErrUnitConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "units_unavailable"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation_not_found"})
	case errors.Is(err, repository.ErrRuleNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "rule_not_found"})
	case errors.Is(err, repository.ErrDuplicateDiscountCode):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_discount_code"})
	case errors.Is(err, model.ErrReservationExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "reservation_expired"})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "invalid_transition",
			"from":  string(invalid.From),
			"to":    string(invalid.To),
		})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "rule_conflict", "conflicts": conflict.Conflicts})
	case errors.Is(err, model.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent_update"})
	}
	log.Error("request failed", "err", err, "path", c.Path())
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
