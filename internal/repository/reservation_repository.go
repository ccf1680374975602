package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
)

// ReservationRepo persists the reservation aggregate across three tables:
// reservations (header with the version column), reservation_line_items and
// reservation_units. The aggregate is written as a whole inside one
// transaction; all timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a new reservation with its line items and unit references.
// The record's Version must be 1; it becomes the baseline for optimistic
// concurrency on later writes.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO reservations
		(id, number, buyer_id, event_id, currency, subtotal_cents, fee_cents, discount_cents, total_cents,
		 status, applied_rule_id, payment_ref, failure_reason, created_at, expires_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		res.ID, res.Number, res.BuyerID, res.EventID, res.Currency,
		res.SubtotalCents, res.FeeCents, res.DiscountCents, res.TotalCents,
		string(res.Status), nullable(res.AppliedRuleID), nullable(res.PaymentRef), nullable(res.FailureReason),
		res.CreatedAt.UTC(), res.ExpiresAt.UTC(), res.Version,
	)
	if err != nil {
		return err
	}

	for _, line := range res.Lines {
		lineRes, err := tx.ExecContext(ctx,
			`INSERT INTO reservation_line_items
				(reservation_id, ticket_type_id, ticket_type_name, unit_price_cents, quantity, discount_cents, total_cents)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.ID, line.TicketTypeID, line.TicketTypeName, line.UnitPriceCents, line.Quantity, line.DiscountCents, line.TotalCents,
		)
		if err != nil {
			return err
		}
		lineID, err := lineRes.LastInsertId()
		if err != nil {
			return err
		}
		for _, unit := range line.UnitIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reservation_units (reservation_id, line_item_id, unit_id) VALUES (?, ?, ?)`,
				res.ID, lineID, unit,
			); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Get loads a reservation with its line items and unit references.
func (r *ReservationRepo) Get(ctx context.Context, id string) (*model.Reservation, error) {
	const q = `SELECT id, number, buyer_id, event_id, currency, subtotal_cents, fee_cents, discount_cents,
		total_cents, status, applied_rule_id, payment_ref, failure_reason,
		created_at, expires_at, confirmed_at, cancelled_at, version
		FROM reservations WHERE id = ?`

	var res model.Reservation
	var status string
	var appliedRuleID, paymentRef, failureReason sql.NullString
	var confirmedAt, cancelledAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.Number, &res.BuyerID, &res.EventID, &res.Currency,
		&res.SubtotalCents, &res.FeeCents, &res.DiscountCents, &res.TotalCents,
		&status, &appliedRuleID, &paymentRef, &failureReason,
		&res.CreatedAt, &res.ExpiresAt, &confirmedAt, &cancelledAt, &res.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Status = model.Status(status)
	res.AppliedRuleID = appliedRuleID.String
	res.PaymentRef = paymentRef.String
	res.FailureReason = failureReason.String
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		res.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		res.CancelledAt = &t
	}

	const lineQ = `SELECT id, ticket_type_id, ticket_type_name, unit_price_cents, quantity, discount_cents, total_cents
		FROM reservation_line_items WHERE reservation_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, lineQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lineIDs := make([]int64, 0, 4)
	for rows.Next() {
		var lineID int64
		var line model.LineItem
		if err := rows.Scan(&lineID, &line.TicketTypeID, &line.TicketTypeName, &line.UnitPriceCents, &line.Quantity, &line.DiscountCents, &line.TotalCents); err != nil {
			return nil, err
		}
		lineIDs = append(lineIDs, lineID)
		res.Lines = append(res.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const unitQ = `SELECT line_item_id, unit_id FROM reservation_units WHERE reservation_id = ? ORDER BY line_item_id, unit_id`
	urows, err := r.db.QueryContext(ctx, unitQ, id)
	if err != nil {
		return nil, err
	}
	defer urows.Close()
	byLine := make(map[int64][]string)
	for urows.Next() {
		var lineID int64
		var unit string
		if err := urows.Scan(&lineID, &unit); err != nil {
			return nil, err
		}
		byLine[lineID] = append(byLine[lineID], unit)
	}
	if err := urows.Err(); err != nil {
		return nil, err
	}
	for i, lineID := range lineIDs {
		res.Lines[i].UnitIDs = byLine[lineID]
	}
	return &res, nil
}

// Update writes the mutable reservation fields, guarded by the version the
// caller read. A stale version fails with model.ErrConcurrencyConflict and
// the caller must re-read and retry; on success the in-memory version is
// advanced to match the stored row.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations
		SET status = ?, expires_at = ?, payment_ref = ?, failure_reason = ?,
			confirmed_at = ?, cancelled_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	result, err := r.db.ExecContext(ctx, q,
		string(res.Status), res.ExpiresAt.UTC(), nullable(res.PaymentRef), nullable(res.FailureReason),
		nullTime(res.ConfirmedAt), nullTime(res.CancelledAt),
		res.ID, res.Version,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, res.ID).Scan(&exists); err == sql.ErrNoRows {
			return ErrReservationNotFound
		}
		return model.ErrConcurrencyConflict
	}
	res.Version++
	return nil
}

// ListExpiredIDs returns up to limit pending reservations whose deadline has
// passed. The sweeper drives each through the coordinator's guarded Expire,
// so this query is advisory only.
func (r *ReservationRepo) ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `SELECT id FROM reservations WHERE status = ? AND expires_at < ? ORDER BY expires_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, string(model.StatusPending), now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
