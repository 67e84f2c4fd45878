package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	billing "club-ledger/internal/billing/domain"
)

const outstandingExpr = `CASE WHEN c.state LIKE 'exempt-%' OR c.paid >= c.amount THEN 0 ELSE c.amount - c.paid END`

// delinquencyQuery builds the shared CTE for the arrears report.
func delinquencyQuery(filter billing.DelinquencyFilter) (string, *where) {
	w := &where{}
	w.add("c.state = " + w.arg(string(filter.State)))
	if !filter.From.IsZero() {
		w.add("c.period >= " + w.arg(filter.From.String()))
	}
	if !filter.To.IsZero() {
		w.add("c.period <= " + w.arg(filter.To.String()))
	}
	if filter.Kind != "" {
		w.add("c.kind = " + w.arg(string(filter.Kind)))
	}
	chargeWhere := w.clause()

	member := &where{args: w.args}
	if filter.PaymentMethodID != 0 {
		member.add("m.payment_method_id = " + member.arg(filter.PaymentMethodID))
	}
	member.tokens(filter.Query)

	query := fmt.Sprintf(`
WITH matched AS (
	SELECT c.member_id,
		COUNT(*) AS charges,
		SUM(%s) AS outstanding,
		MIN(c.period) AS oldest
	FROM charges c
	%s
	GROUP BY c.member_id
), ranked AS (
	SELECT m.id, m.given_name, m.surname, m.document_id, m.state,
		COALESCE(m.payment_method_id, 0) AS payment_method_id,
		mt.charges, mt.outstanding, mt.oldest
	FROM matched mt
	JOIN members m ON m.id = mt.member_id
	%s
)`, outstandingExpr, chargeWhere, member.clause())
	return query, member
}

// Delinquency computes the arrears report with totals over every matching row.
func (r *Repository) Delinquency(ctx context.Context, filter billing.DelinquencyFilter) (billing.DelinquencyPage, error) {
	if err := r.ready(); err != nil {
		return billing.DelinquencyPage{}, err
	}
	filter = filter.Normalize()
	cte, w := delinquencyQuery(filter)

	page := billing.DelinquencyPage{Page: filter.Page, PageSize: filter.PageSize, Rows: []billing.DelinquencyRow{}}
	var totalOutstanding string
	err := r.db.QueryRowContext(ctx, cte+`
SELECT COUNT(*), COALESCE(SUM(charges), 0), COALESCE(SUM(outstanding), 0)::text
FROM ranked`, w.args...).Scan(&page.Totals.Members, &page.Totals.Charges, &totalOutstanding)
	if err != nil {
		return billing.DelinquencyPage{}, err
	}
	if page.Totals.Outstanding, err = amount("outstanding", totalOutstanding); err != nil {
		return billing.DelinquencyPage{}, err
	}

	limit := w.arg(filter.PageSize)
	offset := w.arg(filter.Offset())
	rows, err := r.db.QueryContext(ctx, cte+`
SELECT id, given_name, surname, document_id, state, payment_method_id, charges, outstanding::text, oldest
FROM ranked
ORDER BY outstanding DESC, lower(surname), id
LIMIT `+limit+` OFFSET `+offset, w.args...)
	if err != nil {
		return billing.DelinquencyPage{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var row billing.DelinquencyRow
		var outstanding, oldest string
		if err := rows.Scan(
			&row.Member.ID, &row.Member.GivenName, &row.Member.Surname, &row.Member.DocumentID, &row.Member.State,
			&row.PaymentMethodID, &row.Charges, &outstanding, &oldest,
		); err != nil {
			return billing.DelinquencyPage{}, err
		}
		if row.Outstanding, err = amount("outstanding", outstanding); err != nil {
			return billing.DelinquencyPage{}, err
		}
		if row.OldestPeriod, err = billing.ParsePeriod(oldest); err != nil {
			return billing.DelinquencyPage{}, err
		}
		page.Rows = append(page.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return billing.DelinquencyPage{}, err
	}
	return page, nil
}

// MemberDelinquency returns a member's charges matching the filter, oldest first.
func (r *Repository) MemberDelinquency(ctx context.Context, memberID int64, filter billing.DelinquencyFilter) ([]billing.Charge, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	w := &where{}
	w.add("c.member_id = " + w.arg(memberID))
	w.add("c.state = " + w.arg(string(filter.State)))
	if !filter.From.IsZero() {
		w.add("c.period >= " + w.arg(filter.From.String()))
	}
	if !filter.To.IsZero() {
		w.add("c.period <= " + w.arg(filter.To.String()))
	}
	if filter.Kind != "" {
		w.add("c.kind = " + w.arg(string(filter.Kind)))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chargeColumns+`
FROM charges c
`+w.clause()+`
ORDER BY c.period, c.kind, c.id`, w.args...)
	if err != nil {
		return nil, err
	}
	return collectCharges(rows)
}

// Consolidated lists members with at least MinUnpaid pending charges and the
// per-method and overall totals.
func (r *Repository) Consolidated(ctx context.Context, filter billing.ConsolidatedFilter) (billing.ConsolidatedReport, error) {
	if err := r.ready(); err != nil {
		return billing.ConsolidatedReport{}, err
	}
	if filter.MinUnpaid < 1 {
		filter.MinUnpaid = 1
	}
	w := &where{}
	w.add("c.state = 'pending'")
	w.add("c.paid < c.amount")
	if !filter.From.IsZero() {
		w.add("c.period >= " + w.arg(filter.From.String()))
	}
	minUnpaid := w.arg(filter.MinUnpaid)
	method := ""
	if filter.PaymentMethodID != 0 {
		method = "WHERE m.payment_method_id = " + w.arg(filter.PaymentMethodID)
	}

	rows, err := r.db.QueryContext(ctx, `
WITH unpaid AS (
	SELECT c.member_id,
		COUNT(*) AS unpaid,
		SUM(c.amount - c.paid) AS outstanding,
		MIN(c.period) AS oldest
	FROM charges c
	`+w.clause()+`
	GROUP BY c.member_id
	HAVING COUNT(*) >= `+minUnpaid+`
)
SELECT m.id, m.given_name, m.surname, m.document_id, m.state,
	COALESCE(m.payment_method_id, 0), COALESCE(pm.name, ''),
	u.unpaid, u.outstanding::text, u.oldest
FROM unpaid u
JOIN members m ON m.id = u.member_id
LEFT JOIN payment_methods pm ON pm.id = m.payment_method_id
`+method+`
ORDER BY u.unpaid DESC, u.outstanding DESC, m.id`, w.args...)
	if err != nil {
		return billing.ConsolidatedReport{}, err
	}
	defer rows.Close()

	report := billing.ConsolidatedReport{Overall: billing.ReportTotals{Outstanding: decimal.Zero}}
	byMethod := map[int64]*billing.MethodTotals{}
	for rows.Next() {
		var row billing.ConsolidatedRow
		var outstanding, oldest string
		if err := rows.Scan(
			&row.Member.ID, &row.Member.GivenName, &row.Member.Surname, &row.Member.DocumentID, &row.Member.State,
			&row.PaymentMethodID, &row.PaymentMethod, &row.Unpaid, &outstanding, &oldest,
		); err != nil {
			return billing.ConsolidatedReport{}, err
		}
		if row.Outstanding, err = amount("outstanding", outstanding); err != nil {
			return billing.ConsolidatedReport{}, err
		}
		if row.OldestPeriod, err = billing.ParsePeriod(oldest); err != nil {
			return billing.ConsolidatedReport{}, err
		}
		report.Rows = append(report.Rows, row)
		report.AddToTotals(byMethod, row)
	}
	if err := rows.Err(); err != nil {
		return billing.ConsolidatedReport{}, err
	}
	report.FinishTotals(byMethod)
	return report, nil
}
