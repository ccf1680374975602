package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ZekromNguyen/Block-Ticket-sub006/internal/model"
)

// PricingRuleRepo persists pricing rules keyed by event. Targeting sets are
// stored as JSON arrays; the (event_id, code) unique index enforces
// per-event code uniqueness at the storage layer as a second line of
// defence behind conflict detection.
type PricingRuleRepo struct {
	db *sql.DB
}

func NewPricingRuleRepo(db *sql.DB) *PricingRuleRepo { return &PricingRuleRepo{db: db} }

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// Create inserts a validated rule. A duplicate discount code for the event
// fails with ErrDuplicateDiscountCode.
func (r *PricingRuleRepo) Create(ctx context.Context, rule *model.PricingRule) error {
	ticketTypes, segments, err := marshalTargeting(rule)
	if err != nil {
		return err
	}
	const q = `INSERT INTO pricing_rules
		(id, event_id, kind, name, priority, active, effective_from, effective_to,
		 discount_type, discount_value, max_discount_cents, min_order_cents, code,
		 min_quantity, max_quantity, single_use, max_uses, current_uses,
		 ticket_type_ids, segments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		rule.ID, rule.EventID, string(rule.Kind), rule.Name, rule.Priority, rule.Active,
		rule.EffectiveFrom.UTC(), nullTime(rule.EffectiveTo),
		string(rule.DiscountType), rule.DiscountValue, rule.MaxDiscountCents, rule.MinOrderCents,
		nullable(rule.Code), rule.MinQuantity, rule.MaxQuantity, rule.SingleUse, rule.MaxUses, rule.CurrentUses,
		ticketTypes, segments, rule.CreatedAt.UTC(), rule.UpdatedAt.UTC(),
	)
	if isDuplicate(err) {
		return ErrDuplicateDiscountCode
	}
	return err
}

// Update rewrites a rule's definition. The usage counters are not touched
// here; they only move through RecordUse.
func (r *PricingRuleRepo) Update(ctx context.Context, rule *model.PricingRule) error {
	ticketTypes, segments, err := marshalTargeting(rule)
	if err != nil {
		return err
	}
	const q = `UPDATE pricing_rules
		SET kind = ?, name = ?, priority = ?, active = ?, effective_from = ?, effective_to = ?,
			discount_type = ?, discount_value = ?, max_discount_cents = ?, min_order_cents = ?, code = ?,
			min_quantity = ?, max_quantity = ?, single_use = ?, max_uses = ?,
			ticket_type_ids = ?, segments = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q,
		string(rule.Kind), rule.Name, rule.Priority, rule.Active,
		rule.EffectiveFrom.UTC(), nullTime(rule.EffectiveTo),
		string(rule.DiscountType), rule.DiscountValue, rule.MaxDiscountCents, rule.MinOrderCents,
		nullable(rule.Code), rule.MinQuantity, rule.MaxQuantity, rule.SingleUse, rule.MaxUses,
		ticketTypes, segments, rule.UpdatedAt.UTC(),
		rule.ID,
	)
	if isDuplicate(err) {
		return ErrDuplicateDiscountCode
	}
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish "no such rule" from "no column changed".
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM pricing_rules WHERE id = ?`, rule.ID).Scan(&exists); err == sql.ErrNoRows {
			return ErrRuleNotFound
		}
	}
	return nil
}

// Delete removes a rule and its usage records.
func (r *PricingRuleRepo) Delete(ctx context.Context, id string) error {
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM pricing_rule_uses WHERE rule_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM pricing_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Get loads one rule by ID.
func (r *PricingRuleRepo) Get(ctx context.Context, id string) (*model.PricingRule, error) {
	rules, err := r.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, ErrRuleNotFound
	}
	return &rules[0], nil
}

// ListByEvent returns every rule configured for an event, active or not.
// Conflict detection needs the full set.
func (r *PricingRuleRepo) ListByEvent(ctx context.Context, eventID string) ([]model.PricingRule, error) {
	return r.query(ctx, `WHERE event_id = ? ORDER BY priority DESC, created_at`, eventID)
}

// ActiveByEvent returns the active rules for evaluation.
func (r *PricingRuleRepo) ActiveByEvent(ctx context.Context, eventID string) ([]model.PricingRule, error) {
	return r.query(ctx, `WHERE event_id = ? AND active = 1 ORDER BY priority DESC, created_at`, eventID)
}

func (r *PricingRuleRepo) query(ctx context.Context, where string, args ...interface{}) ([]model.PricingRule, error) {
	q := `SELECT id, event_id, kind, name, priority, active, effective_from, effective_to,
		discount_type, discount_value, max_discount_cents, min_order_cents, code,
		min_quantity, max_quantity, single_use, max_uses, current_uses,
		ticket_type_ids, segments, created_at, updated_at
		FROM pricing_rules ` + where
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []model.PricingRule
	for rows.Next() {
		var rule model.PricingRule
		var kind, discountType string
		var code sql.NullString
		var effectiveTo sql.NullTime
		var ticketTypes, segments []byte
		if err := rows.Scan(
			&rule.ID, &rule.EventID, &kind, &rule.Name, &rule.Priority, &rule.Active,
			&rule.EffectiveFrom, &effectiveTo,
			&discountType, &rule.DiscountValue, &rule.MaxDiscountCents, &rule.MinOrderCents, &code,
			&rule.MinQuantity, &rule.MaxQuantity, &rule.SingleUse, &rule.MaxUses, &rule.CurrentUses,
			&ticketTypes, &segments, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rule.Kind = model.RuleKind(kind)
		rule.DiscountType = model.DiscountType(discountType)
		rule.Code = code.String
		if effectiveTo.Valid {
			t := effectiveTo.Time.UTC()
			rule.EffectiveTo = &t
		}
		if len(ticketTypes) > 0 {
			if err := json.Unmarshal(ticketTypes, &rule.TicketTypeIDs); err != nil {
				return nil, err
			}
		}
		if len(segments) > 0 {
			if err := json.Unmarshal(segments, &rule.Segments); err != nil {
				return nil, err
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// RecordUse bumps a rule's usage counter for a confirmed reservation. The
// (rule_id, reservation_id) primary key makes redelivered confirms a no-op,
// so current_uses moves at most once per reservation.
func (r *PricingRuleRepo) RecordUse(ctx context.Context, ruleID, buyerID, reservationID string, at time.Time) error {
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
	result, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO pricing_rule_uses (rule_id, buyer_id, reservation_id, used_at) VALUES (?, ?, ?, ?)`,
		ruleID, buyerID, reservationID, at.UTC(),
	)
	if err != nil {
		return err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 1 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pricing_rules SET current_uses = current_uses + 1, updated_at = ? WHERE id = ?`,
			at.UTC(), ruleID,
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UsedRuleIDsByBuyer returns the rules this buyer has already redeemed for
// the event, used to enforce single-use rules during evaluation.
func (r *PricingRuleRepo) UsedRuleIDsByBuyer(ctx context.Context, eventID, buyerID string) (map[string]struct{}, error) {
	const q = `SELECT u.rule_id FROM pricing_rule_uses u
		JOIN pricing_rules p ON p.id = u.rule_id
		WHERE p.event_id = ? AND u.buyer_id = ?`
	rows, err := r.db.QueryContext(ctx, q, eventID, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	used := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		used[id] = struct{}{}
	}
	return used, rows.Err()
}

func marshalTargeting(rule *model.PricingRule) ([]byte, []byte, error) {
	ticketTypes, err := json.Marshal(rule.TicketTypeIDs)
	if err != nil {
		return nil, nil, err
	}
	segments, err := json.Marshal(rule.Segments)
	if err != nil {
		return nil, nil, err
	}
	return ticketTypes, segments, nil
}
