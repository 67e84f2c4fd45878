package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "club-ledger/internal/billing/domain"
)

const memberColumns = `m.id, m.given_name, m.surname, m.document_id, m.state, m.birth_date,
	COALESCE(m.category_id, 0), COALESCE(m.payment_method_id, 0), COALESCE(m.family_group_id, 0), m.exemption`

// FindMember loads a member.
func (r *Repository) FindMember(ctx context.Context, id int64) (*billing.Member, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+memberColumns+`
FROM members m
WHERE m.id = $1`, id)
	return scanMember(row)
}

// FindMemberByDocument loads a member by document id.
func (r *Repository) FindMemberByDocument(ctx context.Context, documentID string) (*billing.Member, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+memberColumns+`
FROM members m
WHERE m.document_id = $1
ORDER BY m.id
LIMIT 1`, documentID)
	return scanMember(row)
}

// SearchMembers pages members matching every query token.
func (r *Repository) SearchMembers(ctx context.Context, query string, page billing.Pagination) (billing.MemberPage, error) {
	if err := r.ready(); err != nil {
		return billing.MemberPage{}, err
	}
	page = page.Normalize()
	w := &where{}
	w.tokens(query)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members m `+w.clause(), w.args...).Scan(&total); err != nil {
		return billing.MemberPage{}, err
	}

	limit := w.arg(page.PageSize)
	offset := w.arg(page.Offset())
	rows, err := r.db.QueryContext(ctx, `
SELECT `+memberColumns+`
FROM members m
`+w.clause()+`
ORDER BY lower(m.surname), lower(m.given_name), m.id
LIMIT `+limit+` OFFSET `+offset, w.args...)
	if err != nil {
		return billing.MemberPage{}, err
	}
	members, err := collectMembers(rows)
	if err != nil {
		return billing.MemberPage{}, err
	}
	items := make([]billing.MemberSummary, 0, len(members))
	for _, m := range members {
		items = append(items, m.Summary())
	}
	return billing.MemberPage{Items: items, Page: page.Page, PageSize: page.PageSize, TotalItems: total}, nil
}

// ListMembers lists members ordered by id.
func (r *Repository) ListMembers(ctx context.Context, activeOnly bool) ([]billing.Member, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+memberColumns+`
FROM members m
WHERE NOT $1::boolean OR m.state = 'active'
ORDER BY m.id`, activeOnly)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

// FindFamilyGroup loads a family group.
func (r *Repository) FindFamilyGroup(ctx context.Context, id int64) (*billing.FamilyGroup, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var g billing.FamilyGroup
	var titular sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, titular_id
FROM family_groups
WHERE id = $1`, id).Scan(&g.ID, &g.Name, &titular)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	g.TitularID = titular.Int64
	return &g, nil
}

func collectMembers(rows *sql.Rows) ([]billing.Member, error) {
	defer rows.Close()
	result := make([]billing.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		if m != nil {
			result = append(result, *m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanMember(row rowScanner) (*billing.Member, error) {
	var m billing.Member
	var birth sql.NullTime
	err := row.Scan(
		&m.ID,
		&m.GivenName,
		&m.Surname,
		&m.DocumentID,
		&m.State,
		&birth,
		&m.CategoryID,
		&m.PaymentMethodID,
		&m.FamilyGroupID,
		&m.Exemption,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if birth.Valid {
		m.BirthDate = birth.Time.UTC()
	}
	return &m, nil
}
