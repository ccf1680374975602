package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/lock"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/pricing"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/repository"
	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/service"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"invalid rule", model.ErrInvalidRule, http.StatusBadRequest, "invalid_rule"},
		{"discount rejected", &pricing.RejectedError{Reason: pricing.RejectionOutOfWindow}, http.StatusUnprocessableEntity, "discount_rejected"},
		{"unit conflict", lock.ErrUnitConflict, http.StatusConflict, "units_unavailable"},
		{"reservation not found", repository.ErrReservationNotFound, http.StatusNotFound, "reservation_not_found"},
		{"rule not found", repository.ErrRuleNotFound, http.StatusNotFound, "rule_not_found"},
		{"duplicate code", repository.ErrDuplicateDiscountCode, http.StatusConflict, "duplicate_discount_code"},
		{"expired", model.ErrReservationExpired, http.StatusGone, "reservation_expired"},
		{"invalid transition", &model.InvalidTransitionError{From: model.StatusCancelled, To: model.StatusConfirmed}, http.StatusConflict, "invalid_transition"},
		{"rule conflict", &pricing.ConflictError{Conflicts: []pricing.Conflict{{Type: pricing.ConflictPriorityTie}}}, http.StatusConflict, "rule_conflict"},
		{"concurrency", model.ErrConcurrencyConflict, http.StatusConflict, "concurrent_update"},
		{"unknown stays generic", errors.New("mysql went away"), http.StatusInternalServerError, "internal_error"},
	}

	e := echo.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := writeError(c, log, tc.err); err != nil {
				t.Fatalf("writeError: %v", err)
			}
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Errorf("error code = %v, want %s", body["error"], tc.wantCode)
			}
			if tc.wantStatus == http.StatusInternalServerError {
				if _, leaked := body["detail"]; leaked {
					t.Error("internal error leaked detail to the client")
				}
			}
		})
	}
}
