package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func reportFixture() ([]Member, []Charge) {
	members := []Member{
		{ID: 1, GivenName: "Daniel", Surname: "Eberhardt", State: MemberStateActive, PaymentMethodID: 1},
		{ID: 2, GivenName: "Ana", Surname: "Acosta", State: MemberStateActive, PaymentMethodID: 2},
		{ID: 3, GivenName: "Luis", Surname: "Zapata", State: MemberStateActive, PaymentMethodID: 1},
	}
	p := func(m time.Month) Period { return Period{Year: 2025, Month: m} }
	charges := []Charge{
		{ID: 1, Kind: KindDue, MemberID: 1, Period: p(time.January), Amount: dec("2500"), Paid: decimal.Zero, State: StatePending},
		{ID: 2, Kind: KindDue, MemberID: 1, Period: p(time.February), Amount: dec("2500"), Paid: dec("500"), State: StatePending},
		{ID: 3, Kind: KindDue, MemberID: 2, Period: p(time.February), Amount: dec("2500"), Paid: dec("2500"), State: StatePaid},
		{ID: 4, Kind: KindDue, MemberID: 3, Period: p(time.March), Amount: dec("1000"), Paid: decimal.Zero, State: StatePending},
		{ID: 1, Kind: KindDiscipline, MemberID: 2, Period: p(time.March), Amount: dec("700"), Paid: decimal.Zero, State: StatePending},
	}
	return members, charges
}

func TestBuildDelinquency_TotalsCoverAllPages(t *testing.T) {
	members, charges := reportFixture()
	page := BuildDelinquency(members, charges, DelinquencyFilter{Pagination: Pagination{Page: 1, PageSize: 1}})
	if len(page.Rows) != 1 {
		t.Fatalf("expected 1 row on page, got %d", len(page.Rows))
	}
	if page.Rows[0].Member.ID != 1 || !page.Rows[0].Outstanding.Equal(dec("4500")) {
		t.Fatalf("expected largest debtor first, got %+v", page.Rows[0])
	}
	if page.Totals.Members != 3 || page.Totals.Charges != 4 || !page.Totals.Outstanding.Equal(dec("6200")) {
		t.Fatalf("unexpected totals %+v", page.Totals)
	}
}

func TestBuildDelinquency_Filters(t *testing.T) {
	members, charges := reportFixture()
	cases := []struct {
		name    string
		filter  DelinquencyFilter
		members int
		charges int
	}{
		{"query", DelinquencyFilter{Query: "eberhardt d"}, 1, 2},
		{"period range", DelinquencyFilter{From: Period{Year: 2025, Month: time.February}, To: Period{Year: 2025, Month: time.February}}, 1, 1},
		{"paid state", DelinquencyFilter{State: StatePaid}, 1, 1},
		{"payment method", DelinquencyFilter{PaymentMethodID: 1}, 2, 3},
		{"kind", DelinquencyFilter{Kind: KindDiscipline}, 1, 1},
	}
	for _, tc := range cases {
		page := BuildDelinquency(members, charges, tc.filter)
		if page.Totals.Members != tc.members || page.Totals.Charges != tc.charges {
			t.Fatalf("%s: expected %d/%d, got %+v", tc.name, tc.members, tc.charges, page.Totals)
		}
	}
}

func TestPagination_Normalize(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 1000}.Normalize()
	if p.Page != 1 || p.PageSize != MaxPageSize {
		t.Fatalf("unexpected pagination %+v", p)
	}
	if (Pagination{Page: 3, PageSize: 10}).Offset() != 20 {
		t.Fatalf("unexpected offset")
	}
	page := BuildDelinquency(nil, nil, DelinquencyFilter{Pagination: Pagination{Page: 9}})
	if len(page.Rows) != 0 || page.PageSize != DefaultPageSize {
		t.Fatalf("unexpected empty page %+v", page)
	}
}

func TestBuildConsolidated(t *testing.T) {
	members, charges := reportFixture()
	methods := []PaymentMethod{{ID: 1, Name: "cash"}, {ID: 2, Name: "debit"}}

	report := BuildConsolidated(members, methods, charges, ConsolidatedFilter{MinUnpaid: 2})
	if len(report.Rows) != 1 || report.Rows[0].Member.ID != 1 || report.Rows[0].Unpaid != 2 {
		t.Fatalf("unexpected rows %+v", report.Rows)
	}

	report = BuildConsolidated(members, methods, charges, ConsolidatedFilter{})
	if report.Overall.Members != 3 || !report.Overall.Outstanding.Equal(dec("6200")) {
		t.Fatalf("unexpected overall %+v", report.Overall)
	}
	if len(report.ByMethod) != 2 || report.ByMethod[0].PaymentMethod != "cash" || report.ByMethod[0].Members != 2 {
		t.Fatalf("unexpected per-method totals %+v", report.ByMethod)
	}
	if !report.ByMethod[1].Outstanding.Equal(dec("700")) {
		t.Fatalf("expected debit outstanding 700, got %s", report.ByMethod[1].Outstanding)
	}
}

func TestSearchMembers(t *testing.T) {
	members, _ := reportFixture()
	page := SearchMembers(members, "", Pagination{PageSize: 2})
	if page.TotalItems != 3 || len(page.Items) != 2 || page.Items[0].Surname != "Acosta" {
		t.Fatalf("unexpected page %+v", page)
	}
	page = SearchMembers(members, "zap", Pagination{})
	if page.TotalItems != 1 || page.Items[0].ID != 3 {
		t.Fatalf("unexpected search result %+v", page)
	}
}
