package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
)

// ListCategories lists categories.
func (r *Repository) ListCategories(ctx context.Context) ([]billing.Category, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, applicability, condition, price::text, age_threshold
FROM categories
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]billing.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindCategory loads a category.
func (r *Repository) FindCategory(ctx context.Context, id int64) (*billing.Category, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, applicability, condition, price::text, age_threshold
FROM categories
WHERE id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// UpdateCategoryPrice sets the current price. Past charges keep their amount.
func (r *Repository) UpdateCategoryPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	if err := r.ready(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE categories
SET price = $1, updated_at = NOW()
WHERE id = $2`, money.Format(price), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.NotFoundf("category %d", id)
	}
	return nil
}

// ListDisciplines lists disciplines.
func (r *Repository) ListDisciplines(ctx context.Context) ([]billing.Discipline, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, price::text, active
FROM disciplines
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]billing.Discipline, 0)
	for rows.Next() {
		d, err := scanDiscipline(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindDiscipline loads a discipline.
func (r *Repository) FindDiscipline(ctx context.Context, id int64) (*billing.Discipline, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, price::text, active
FROM disciplines
WHERE id = $1`, id)
	d, err := scanDiscipline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListPaymentMethods lists payment methods.
func (r *Repository) ListPaymentMethods(ctx context.Context) ([]billing.PaymentMethod, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]billing.PaymentMethod, 0)
	for rows.Next() {
		var m billing.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListEnrollments returns active enrollments; zero ids mean all.
func (r *Repository) ListEnrollments(ctx context.Context, disciplineID, memberID int64) ([]billing.Enrollment, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, member_id, discipline_id, active, discount_type, discount_value::text, enrolled_at
FROM enrollments
WHERE active AND ($1::bigint = 0 OR discipline_id = $1) AND ($2::bigint = 0 OR member_id = $2)
ORDER BY member_id, discipline_id, id`, disciplineID, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]billing.Enrollment, 0)
	for rows.Next() {
		var e billing.Enrollment
		var discountType, discountValue string
		var enrolledAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.MemberID, &e.DisciplineID, &e.Active, &discountType, &discountValue, &enrolledAt); err != nil {
			return nil, err
		}
		if e.DiscountType, err = billing.ParseDiscountType(discountType); err != nil {
			return nil, err
		}
		if e.DiscountValue, err = amount("discount_value", discountValue); err != nil {
			return nil, err
		}
		if enrolledAt.Valid {
			e.EnrolledAt = enrolledAt.Time.UTC()
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanCategory(row rowScanner) (*billing.Category, error) {
	var c billing.Category
	var applicability, condition, price string
	if err := row.Scan(&c.ID, &c.Name, &applicability, &condition, &price, &c.AgeThreshold); err != nil {
		return nil, err
	}
	c.Applicability = billing.Applicability(applicability)
	c.Condition = billing.Condition(condition)
	value, err := amount("price", price)
	if err != nil {
		return nil, err
	}
	c.Price = value
	return &c, nil
}

func scanDiscipline(row rowScanner) (*billing.Discipline, error) {
	var d billing.Discipline
	var price string
	if err := row.Scan(&d.ID, &d.Name, &price, &d.Active); err != nil {
		return nil, err
	}
	value, err := amount("price", price)
	if err != nil {
		return nil, err
	}
	d.Price = value
	return &d, nil
}
