package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildLedger_MonthBalanceAcrossKinds(t *testing.T) {
	feb := Period{Year: 2025, Month: time.February}
	jan := Period{Year: 2025, Month: time.January}
	charges := []Charge{
		{ID: 1, Kind: KindDue, MemberID: 1, Period: feb, Amount: dec("2500"), Paid: dec("1000"), State: StatePending},
		{ID: 1, Kind: KindDiscipline, MemberID: 1, Period: feb, Amount: dec("500"), Paid: decimal.Zero, State: StatePending},
		{ID: 2, Kind: KindDue, MemberID: 1, Period: jan, Amount: dec("2500"), Paid: dec("2500"), State: StatePaid},
		{ID: 3, Kind: KindDue, MemberID: 1, Period: Period{Year: 2024, Month: time.December}, Amount: dec("2500"), Paid: decimal.Zero, State: StateExemptLifetime},
	}
	payments := []Payment{
		// Entered in April, still belongs to February.
		{ID: 10, ChargeID: 1, Kind: KindDue, Amount: dec("1000"), Date: time.Date(2025, time.April, 3, 0, 0, 0, 0, time.UTC)},
		{ID: 11, ChargeID: 2, Kind: KindDue, Amount: dec("2500"), Date: time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)},
	}

	ledger := BuildLedger(activeMember(1), charges, payments)
	if len(ledger.Months) != 3 {
		t.Fatalf("expected 3 months, got %d", len(ledger.Months))
	}
	if ledger.Months[0].Period != feb || ledger.Months[1].Period != jan {
		t.Fatalf("expected months newest first, got %s, %s", ledger.Months[0].Period, ledger.Months[1].Period)
	}
	if !ledger.Months[0].Balance.Equal(dec("2000")) {
		t.Fatalf("expected february balance 2000.00, got %s", ledger.Months[0].Balance)
	}
	if !ledger.Months[1].Balance.IsZero() || len(ledger.Months[1].Entries) != 2 {
		t.Fatalf("expected settled january with activity, got %+v", ledger.Months[1])
	}
	exempt := ledger.Months[2]
	if !exempt.Balance.IsZero() || len(exempt.Entries) != 1 || !exempt.Entries[0].Delta.IsZero() {
		t.Fatalf("expected zero-delta exempt month, got %+v", exempt)
	}
	if !ledger.TotalBruto.Equal(dec("5500")) || !ledger.TotalPagado.Equal(dec("3500")) {
		t.Fatalf("unexpected totals %s / %s", ledger.TotalBruto, ledger.TotalPagado)
	}
	if !ledger.TotalSaldo.Equal(ledger.TotalBruto.Sub(ledger.TotalPagado)) {
		t.Fatalf("totals do not reconcile")
	}
}

func TestBuildLedger_DeltasSumToBalance(t *testing.T) {
	feb := Period{Year: 2025, Month: time.February}
	charges := []Charge{
		{ID: 1, Kind: KindExtra, Period: feb, Amount: dec("800"), Paid: dec("300"), State: StatePending},
	}
	// Paid amount carried without payment rows gets a balancing entry.
	ledger := BuildLedger(activeMember(1), charges, nil)
	month := ledger.Months[0]
	sum := decimal.Zero
	for _, e := range month.Entries {
		sum = sum.Add(e.Delta)
	}
	if !sum.Equal(month.Balance) || !month.Balance.Equal(dec("500")) {
		t.Fatalf("deltas %s do not match balance %s", sum, month.Balance)
	}
	if month.Entries[0].Type != EntryCharge {
		t.Fatalf("expected charge entry first")
	}
}

func TestBuildLedger_Empty(t *testing.T) {
	ledger := BuildLedger(activeMember(1), nil, nil)
	if len(ledger.Months) != 0 || !ledger.TotalSaldo.IsZero() {
		t.Fatalf("expected empty ledger, got %+v", ledger)
	}
}

func TestBuildLedger_RunningBalanceOldestToNewest(t *testing.T) {
	jan := Period{Year: 2025, Month: time.January}
	feb := Period{Year: 2025, Month: time.February}
	mar := Period{Year: 2025, Month: time.March}
	charges := []Charge{
		{ID: 1, Kind: KindDue, Period: jan, Amount: dec("1000"), Paid: dec("400"), State: StatePending},
		{ID: 2, Kind: KindDue, Period: feb, Amount: dec("1000"), Paid: dec("1000"), State: StatePaid},
		{ID: 3, Kind: KindDue, Period: mar, Amount: dec("1200"), Paid: decimal.Zero, State: StatePending},
	}
	ledger := BuildLedger(activeMember(1), charges, nil)
	want := map[Period]string{jan: "600", feb: "600", mar: "1800"}
	for _, m := range ledger.Months {
		if !m.Running.Equal(dec(want[m.Period])) {
			t.Fatalf("running balance for %s: got %s, want %s", m.Period, m.Running, want[m.Period])
		}
	}
	if !ledger.Months[0].Running.Equal(ledger.TotalSaldo) {
		t.Fatalf("newest running balance %s does not match total %s", ledger.Months[0].Running, ledger.TotalSaldo)
	}
}
