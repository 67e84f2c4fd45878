package billing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize applies defaults and the page size cap.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// window returns the slice bounds for total rows.
func (p Pagination) window(total int) (int, int) {
	n := p.Normalize()
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + n.PageSize
	if end > total {
		end = total
	}
	return start, end
}

// MemberPage is a page of member search results.
type MemberPage struct {
	Items      []MemberSummary
	Page       int
	PageSize   int
	TotalItems int
}

// SearchMembers filters by query tokens and pages the result by surname.
func SearchMembers(members []Member, query string, page Pagination) MemberPage {
	page = page.Normalize()
	tokens := QueryTokens(query)
	matched := make([]Member, 0, len(members))
	for _, m := range members {
		if m.MatchesTokens(tokens) {
			matched = append(matched, m)
		}
	}
	sortMembers(matched)
	start, end := page.window(len(matched))
	items := make([]MemberSummary, 0, end-start)
	for _, m := range matched[start:end] {
		items = append(items, m.Summary())
	}
	return MemberPage{Items: items, Page: page.Page, PageSize: page.PageSize, TotalItems: len(matched)}
}

func sortMembers(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := strings.ToLower(members[i].Surname), strings.ToLower(members[j].Surname)
		if a != b {
			return a < b
		}
		if members[i].GivenName != members[j].GivenName {
			return strings.ToLower(members[i].GivenName) < strings.ToLower(members[j].GivenName)
		}
		return members[i].ID < members[j].ID
	})
}

// DelinquencyFilter narrows the arrears report. An empty state means pending.
type DelinquencyFilter struct {
	Query           string
	From            Period
	To              Period
	State           ChargeState
	PaymentMethodID int64
	Kind            ChargeKind
	Pagination
}

// Normalize fills defaults.
func (f DelinquencyFilter) Normalize() DelinquencyFilter {
	if f.State == "" {
		f.State = StatePending
	}
	f.Pagination = f.Pagination.Normalize()
	return f
}

// MatchesCharge applies the charge-level part of the filter.
func (f DelinquencyFilter) MatchesCharge(c Charge) bool {
	if !f.From.IsZero() && c.Period.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && f.To.Before(c.Period) {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	return c.State == f.State
}

// MatchesMember applies the member-level part of the filter.
func (f DelinquencyFilter) MatchesMember(m Member) bool {
	if f.PaymentMethodID != 0 && m.PaymentMethodID != f.PaymentMethodID {
		return false
	}
	return m.MatchesTokens(QueryTokens(f.Query))
}

// DelinquencyRow is one member in the arrears report.
type DelinquencyRow struct {
	Member          MemberSummary
	PaymentMethodID int64
	Charges         int
	Outstanding     decimal.Decimal
	OldestPeriod    Period
}

// ReportTotals are computed over every matching row, not only the page.
type ReportTotals struct {
	Members     int
	Charges     int
	Outstanding decimal.Decimal
}

// DelinquencyPage is a page of rows with totals.
type DelinquencyPage struct {
	Rows     []DelinquencyRow
	Page     int
	PageSize int
	Totals   ReportTotals
}

// BuildDelinquency computes the arrears report in memory.
func BuildDelinquency(members []Member, charges []Charge, filter DelinquencyFilter) DelinquencyPage {
	filter = filter.Normalize()
	byMember := map[int64][]Charge{}
	for _, c := range charges {
		if filter.MatchesCharge(c) {
			byMember[c.MemberID] = append(byMember[c.MemberID], c)
		}
	}

	rows := make([]DelinquencyRow, 0)
	totals := ReportTotals{Outstanding: decimal.Zero}
	for _, m := range members {
		matched := byMember[m.ID]
		if len(matched) == 0 || !filter.MatchesMember(m) {
			continue
		}
		row := DelinquencyRow{Member: m.Summary(), PaymentMethodID: m.PaymentMethodID, Outstanding: decimal.Zero}
		for _, c := range matched {
			row.Charges++
			row.Outstanding = row.Outstanding.Add(c.Outstanding())
			if row.OldestPeriod.IsZero() || c.Period.Before(row.OldestPeriod) {
				row.OldestPeriod = c.Period
			}
		}
		totals.Members++
		totals.Charges += row.Charges
		totals.Outstanding = totals.Outstanding.Add(row.Outstanding)
		rows = append(rows, row)
	}
	SortDelinquencyRows(rows)

	start, end := filter.Pagination.window(len(rows))
	return DelinquencyPage{
		Rows:     rows[start:end],
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Totals:   totals,
	}
}

// SortDelinquencyRows orders by outstanding descending, then surname.
func SortDelinquencyRows(rows []DelinquencyRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Outstanding.Equal(rows[j].Outstanding) {
			return rows[i].Outstanding.GreaterThan(rows[j].Outstanding)
		}
		a, b := strings.ToLower(rows[i].Member.Surname), strings.ToLower(rows[j].Member.Surname)
		if a != b {
			return a < b
		}
		return rows[i].Member.ID < rows[j].Member.ID
	})
}

// MemberCharges returns a member's charges matching the filter, oldest first.
func MemberCharges(charges []Charge, memberID int64, filter DelinquencyFilter) []Charge {
	filter = filter.Normalize()
	out := make([]Charge, 0)
	for _, c := range charges {
		if c.MemberID == memberID && filter.MatchesCharge(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period.Before(out[j].Period)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ConsolidatedFilter selects members with at least MinUnpaid pending charges
// since From.
type ConsolidatedFilter struct {
	MinUnpaid       int
	From            Period
	PaymentMethodID int64
}

// ConsolidatedRow is one member in the consolidated report.
type ConsolidatedRow struct {
	Member          MemberSummary
	PaymentMethodID int64
	PaymentMethod   string
	Unpaid          int
	Outstanding     decimal.Decimal
	OldestPeriod    Period
}

// MethodTotals aggregates one payment method.
type MethodTotals struct {
	PaymentMethodID int64
	PaymentMethod   string
	Members         int
	Charges         int
	Outstanding     decimal.Decimal
}

// ConsolidatedReport lists rows with per-method and overall totals.
type ConsolidatedReport struct {
	Rows     []ConsolidatedRow
	ByMethod []MethodTotals
	Overall  ReportTotals
}

// BuildConsolidated computes the consolidated report in memory.
func BuildConsolidated(members []Member, methods []PaymentMethod, charges []Charge, filter ConsolidatedFilter) ConsolidatedReport {
	if filter.MinUnpaid < 1 {
		filter.MinUnpaid = 1
	}
	names := make(map[int64]string, len(methods))
	for _, m := range methods {
		names[m.ID] = m.Name
	}
	unpaid := map[int64][]Charge{}
	for _, c := range charges {
		if c.State != StatePending || !c.Outstanding().IsPositive() {
			continue
		}
		if !filter.From.IsZero() && c.Period.Before(filter.From) {
			continue
		}
		unpaid[c.MemberID] = append(unpaid[c.MemberID], c)
	}

	report := ConsolidatedReport{Overall: ReportTotals{Outstanding: decimal.Zero}}
	byMethod := map[int64]*MethodTotals{}
	for _, m := range members {
		if filter.PaymentMethodID != 0 && m.PaymentMethodID != filter.PaymentMethodID {
			continue
		}
		list := unpaid[m.ID]
		if len(list) < filter.MinUnpaid {
			continue
		}
		row := ConsolidatedRow{
			Member:          m.Summary(),
			PaymentMethodID: m.PaymentMethodID,
			PaymentMethod:   names[m.PaymentMethodID],
			Unpaid:          len(list),
			Outstanding:     decimal.Zero,
		}
		for _, c := range list {
			row.Outstanding = row.Outstanding.Add(c.Outstanding())
			if row.OldestPeriod.IsZero() || c.Period.Before(row.OldestPeriod) {
				row.OldestPeriod = c.Period
			}
		}
		report.Rows = append(report.Rows, row)
		report.AddToTotals(byMethod, row)
	}
	report.ByMethod = flattenMethods(byMethod)
	sort.SliceStable(report.Rows, func(i, j int) bool {
		if report.Rows[i].Unpaid != report.Rows[j].Unpaid {
			return report.Rows[i].Unpaid > report.Rows[j].Unpaid
		}
		return report.Rows[i].Outstanding.GreaterThan(report.Rows[j].Outstanding)
	})
	return report
}

// AddToTotals folds a row into the overall and per-method totals.
func (r *ConsolidatedReport) AddToTotals(byMethod map[int64]*MethodTotals, row ConsolidatedRow) {
	r.Overall.Members++
	r.Overall.Charges += row.Unpaid
	r.Overall.Outstanding = r.Overall.Outstanding.Add(row.Outstanding)
	t, ok := byMethod[row.PaymentMethodID]
	if !ok {
		t = &MethodTotals{PaymentMethodID: row.PaymentMethodID, PaymentMethod: row.PaymentMethod, Outstanding: decimal.Zero}
		byMethod[row.PaymentMethodID] = t
	}
	t.Members++
	t.Charges += row.Unpaid
	t.Outstanding = t.Outstanding.Add(row.Outstanding)
}

// FinishTotals orders per-method totals; used by SQL-backed builders.
func (r *ConsolidatedReport) FinishTotals(byMethod map[int64]*MethodTotals) {
	r.ByMethod = flattenMethods(byMethod)
}

func flattenMethods(byMethod map[int64]*MethodTotals) []MethodTotals {
	out := make([]MethodTotals, 0, len(byMethod))
	for _, t := range byMethod {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentMethodID < out[j].PaymentMethodID })
	return out
}
