package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
)

const chargeColumns = `c.id, c.kind, c.member_id, c.period, COALESCE(c.category_id, 0), COALESCE(c.discipline_id, 0),
	c.description, c.amount::text, c.paid::text, c.state, COALESCE(c.reference_code, ''), COALESCE(c.payment_link, ''),
	c.generated_at, c.paid_at`

// FindCharge loads a charge.
func (r *Repository) FindCharge(ctx context.Context, ref billing.ChargeRef) (*billing.Charge, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
WHERE c.kind = $1 AND c.id = $2`, string(ref.Kind), ref.ID)
	return scanCharge(row)
}

// FindChargeByReference loads a charge by barcode reference.
func (r *Repository) FindChargeByReference(ctx context.Context, code string) (*billing.Charge, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
WHERE c.reference_code = $1
ORDER BY c.id
LIMIT 1`, code)
	return scanCharge(row)
}

// ListMemberCharges returns every charge of a member.
func (r *Repository) ListMemberCharges(ctx context.Context, memberID int64) ([]billing.Charge, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
WHERE c.member_id = $1
ORDER BY c.period, c.kind, c.id`, memberID)
	if err != nil {
		return nil, err
	}
	return collectCharges(rows)
}

// ListMemberPayments returns every payment against a member's charges.
func (r *Repository) ListMemberPayments(ctx context.Context, memberID int64) ([]billing.Payment, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT p.id, p.charge_id, p.kind, p.amount::text, p.paid_on, p.note
FROM payments p
JOIN charges c ON c.id = p.charge_id
WHERE c.member_id = $1
ORDER BY p.paid_on, p.id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]billing.Payment, 0)
	for rows.Next() {
		var p billing.Payment
		var kind, value string
		if err := rows.Scan(&p.ID, &p.ChargeID, &kind, &value, &p.Date, &p.Note); err != nil {
			return nil, err
		}
		p.Kind = billing.ChargeKind(kind)
		if p.Amount, err = amount("amount", value); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ExistingCharges returns generated charges of kind for period by slot.
func (r *Repository) ExistingCharges(ctx context.Context, kind billing.ChargeKind, period billing.Period) (map[billing.ChargeKey]billing.Charge, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
WHERE c.kind = $1 AND c.period = $2`, string(kind), period.String())
	if err != nil {
		return nil, err
	}
	charges, err := collectCharges(rows)
	if err != nil {
		return nil, err
	}
	result := make(map[billing.ChargeKey]billing.Charge, len(charges))
	for _, c := range charges {
		result[c.Key()] = c
	}
	return result, nil
}

// LastDueCategories maps members to the category of their latest due at or before period.
func (r *Repository) LastDueCategories(ctx context.Context, period billing.Period) (map[int64]int64, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT ON (member_id) member_id, category_id
FROM charges
WHERE kind = 'due' AND category_id IS NOT NULL AND period <= $1
ORDER BY member_id, period DESC, id DESC`, period.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[int64]int64{}
	for rows.Next() {
		var memberID, categoryID int64
		if err := rows.Scan(&memberID, &categoryID); err != nil {
			return nil, err
		}
		result[memberID] = categoryID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// InsertGenerated inserts unless the slot is already taken. The unique slot
// index makes concurrent commits for the same scope converge.
func (r *Repository) InsertGenerated(ctx context.Context, charge billing.Charge) (billing.Charge, bool, error) {
	if err := r.ready(); err != nil {
		return billing.Charge{}, false, err
	}
	if charge.State == "" {
		charge.State = billing.StatePending
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO charges AS c (
	kind, member_id, period, category_id, discipline_id, description,
	amount, paid, state, reference_code, generated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (kind, member_id, period, (COALESCE(discipline_id, 0))) WHERE kind IN ('due', 'discipline')
DO NOTHING
RETURNING `+chargeColumns, insertArgs(charge)...)
	stored, err := scanCharge(row)
	if err != nil {
		return billing.Charge{}, false, err
	}
	if stored != nil {
		return *stored, true, nil
	}

	existing, err := r.findSlot(ctx, charge.Key())
	if err != nil {
		return billing.Charge{}, false, err
	}
	if existing == nil {
		return billing.Charge{}, false, billing.Conflictf("slot %s %d %s taken but not readable", charge.Kind, charge.MemberID, charge.Period)
	}
	return *existing, false, nil
}

// InsertExtra inserts a manual extra charge.
func (r *Repository) InsertExtra(ctx context.Context, charge billing.Charge) (billing.Charge, error) {
	if err := r.ready(); err != nil {
		return billing.Charge{}, err
	}
	if charge.State == "" {
		charge.State = billing.StatePending
	}
	row := r.db.QueryRowContext(ctx, `
INSERT INTO charges AS c (
	kind, member_id, period, category_id, discipline_id, description,
	amount, paid, state, reference_code, generated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
RETURNING `+chargeColumns, insertArgs(charge)...)
	stored, err := scanCharge(row)
	if err != nil {
		return billing.Charge{}, err
	}
	if stored == nil {
		return billing.Charge{}, errors.New("billing repo: insert returned no row")
	}
	return *stored, nil
}

func insertArgs(c billing.Charge) []any {
	return []any{
		string(c.Kind), c.MemberID, c.Period.String(), nullID(c.CategoryID), nullID(c.DisciplineID), c.Description,
		money.Format(c.Amount), money.Format(c.Paid), string(c.State), nullString(c.ReferenceCode), c.GeneratedAt.UTC(),
	}
}

func (r *Repository) findSlot(ctx context.Context, key billing.ChargeKey) (*billing.Charge, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
WHERE c.kind = $1 AND c.member_id = $2 AND c.period = $3 AND COALESCE(c.discipline_id, 0) = $4`,
		string(key.Kind), key.MemberID, key.Period.String(), key.DisciplineID)
	return scanCharge(row)
}

// RecordPayment locks the charge row, applies the payment and stores both in
// one transaction.
func (r *Repository) RecordPayment(ctx context.Context, ref billing.ChargeRef, payment billing.Payment, apply billing.PaymentApplier) (billing.Charge, billing.Payment, error) {
	if err := r.ready(); err != nil {
		return billing.Charge{}, billing.Payment{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return billing.Charge{}, billing.Payment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockCharge(ctx, tx, ref)
	if err != nil {
		return billing.Charge{}, billing.Payment{}, err
	}
	if current == nil {
		return billing.Charge{}, billing.Payment{}, billing.NotFoundf("charge %s", ref)
	}
	updated, err := apply(*current)
	if err != nil {
		return *current, billing.Payment{}, err
	}

	_, err = tx.ExecContext(ctx, `
UPDATE charges
SET paid = $1, state = $2, paid_at = $3
WHERE kind = $4 AND id = $5`,
		money.Format(updated.Paid), string(updated.State), nullTime(updated.PaidAt), string(ref.Kind), ref.ID)
	if err != nil {
		return billing.Charge{}, billing.Payment{}, err
	}

	payment.Kind = ref.Kind
	payment.ChargeID = ref.ID
	err = tx.QueryRowContext(ctx, `
INSERT INTO payments (charge_id, kind, amount, paid_on, note)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`, ref.ID, string(ref.Kind), money.Format(payment.Amount), nullDate(payment.Date), payment.Note).Scan(&payment.ID)
	if err != nil {
		return billing.Charge{}, billing.Payment{}, err
	}
	if err := tx.Commit(); err != nil {
		return billing.Charge{}, billing.Payment{}, err
	}
	return updated, payment, nil
}

// ClaimPaymentLink returns the stored link or mints one while holding the
// charge row lock, so racing callers see the first stored link.
func (r *Repository) ClaimPaymentLink(ctx context.Context, ref billing.ChargeRef, mint billing.LinkMinter) (string, bool, error) {
	if err := r.ready(); err != nil {
		return "", false, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockCharge(ctx, tx, ref)
	if err != nil {
		return "", false, err
	}
	if current == nil {
		return "", false, billing.NotFoundf("charge %s", ref)
	}
	if current.PaymentLink != "" {
		return current.PaymentLink, false, tx.Commit()
	}
	link, err := mint(ctx, *current)
	if err != nil {
		return "", false, err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE charges
SET payment_link = $1
WHERE kind = $2 AND id = $3 AND payment_link IS NULL`, link, string(ref.Kind), ref.ID); err != nil {
		return "", false, err
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}
	return link, true, nil
}

func lockCharge(ctx context.Context, tx *sql.Tx, ref billing.ChargeRef) (*billing.Charge, error) {
	row := tx.QueryRowContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
WHERE c.kind = $1 AND c.id = $2
FOR UPDATE`, string(ref.Kind), ref.ID)
	return scanCharge(row)
}

// ListPendingCharges returns pending charges of kind for period with something outstanding.
func (r *Repository) ListPendingCharges(ctx context.Context, kind billing.ChargeKind, period billing.Period) ([]billing.Charge, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
WHERE c.kind = $1 AND c.period = $2 AND c.state = 'pending' AND c.paid < c.amount
ORDER BY c.id`, string(kind), period.String())
	if err != nil {
		return nil, err
	}
	return collectCharges(rows)
}

func collectCharges(rows *sql.Rows) ([]billing.Charge, error) {
	defer rows.Close()
	result := make([]billing.Charge, 0)
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		if c != nil {
			result = append(result, *c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanCharge(row rowScanner) (*billing.Charge, error) {
	var c billing.Charge
	var kind, period, face, paid, state string
	var paidAt sql.NullTime
	err := row.Scan(
		&c.ID,
		&kind,
		&c.MemberID,
		&period,
		&c.CategoryID,
		&c.DisciplineID,
		&c.Description,
		&face,
		&paid,
		&state,
		&c.ReferenceCode,
		&c.PaymentLink,
		&c.GeneratedAt,
		&paidAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Kind = billing.ChargeKind(kind)
	c.State = billing.ChargeState(state)
	if c.Period, err = billing.ParsePeriod(period); err != nil {
		return nil, err
	}
	if c.Amount, err = amount("amount", face); err != nil {
		return nil, err
	}
	if c.Paid, err = amount("paid", paid); err != nil {
		return nil, err
	}
	c.GeneratedAt = c.GeneratedAt.UTC()
	if paidAt.Valid {
		c.PaidAt = paidAt.Time.UTC()
	}
	return &c, nil
}
