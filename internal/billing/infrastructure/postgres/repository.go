// Package postgres implements the billing repository ports on database/sql.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
)

// Repository implements every billing port over one pool.
type Repository struct {
	db *sql.DB
}

var (
	_ billing.MemberRepository  = (*Repository)(nil)
	_ billing.CatalogRepository = (*Repository)(nil)
	_ billing.ChargeRepository  = (*Repository)(nil)
	_ billing.ReportRepository  = (*Repository)(nil)
)

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var errNilDB = errors.New("billing repo: nil db")

func (r *Repository) ready() error {
	if r == nil || r.db == nil {
		return errNilDB
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// amount reads a NUMERIC column selected as text.
func amount(column, text string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("billing repo: column %s: %w", column, err)
	}
	return money.Round(value), nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}

// likeEscape escapes LIKE metacharacters.
func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// where accumulates positional conditions.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(value any) string {
	w.args = append(w.args, value)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

// tokens adds one condition per query token over the members alias m.
func (w *where) tokens(query string) {
	for _, token := range billing.QueryTokens(query) {
		contains := w.arg("%" + likeEscape(token) + "%")
		prefix := w.arg(likeEscape(token) + "%")
		w.add(fmt.Sprintf("(lower(m.surname) LIKE %s OR lower(m.given_name) LIKE %s OR (m.document_id <> '' AND lower(m.document_id) LIKE %s))", contains, contains, prefix))
	}
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}
