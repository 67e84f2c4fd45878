package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCharge_ApplyPaymentStaysWithinAmount(t *testing.T) {
	now := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	c := Charge{ID: 1, Kind: KindDue, Amount: dec("2500"), Paid: decimal.Zero, State: StatePending}
	sequence := []struct {
		amount string
		ok     bool
	}{
		{"1000", true},
		{"0", false},
		{"-5", false},
		{"1500.01", false},
		{"1500", true},
		{"1", false},
	}
	for _, step := range sequence {
		next, err := c.ApplyPayment(dec(step.amount), now)
		if step.ok != (err == nil) {
			t.Fatalf("payment %s: ok=%v err=%v", step.amount, step.ok, err)
		}
		if err == nil {
			c = next
		}
		if c.Paid.IsNegative() || c.Paid.GreaterThan(c.Amount) {
			t.Fatalf("paid out of range: paid %s of %s", c.Paid, c.Amount)
		}
	}
	if c.State != StatePaid || !c.PaidAt.Equal(now) {
		t.Fatalf("expected paid charge, got %s", c.State)
	}
}

func TestCharge_ApplyPaymentErrors(t *testing.T) {
	c := Charge{ID: 1, Kind: KindDue, Amount: dec("100"), Paid: decimal.Zero, State: StateExemptFamily}
	if _, err := c.ApplyPayment(dec("10"), time.Now()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on exempt charge, got %v", err)
	}
	c.State = StatePending
	if _, err := c.ApplyPayment(dec("101"), time.Now()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error on overpayment, got %v", err)
	}
}

func TestPeriod_ParseAndOrder(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	if err != nil || p.String() != "2025-03" {
		t.Fatalf("unexpected period %v %v", p, err)
	}
	for _, bad := range []string{"", "2025-13", "03-2025", "2025/03", "0001-01", "1899-12"} {
		if _, err := ParsePeriod(bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", bad, err)
		}
	}
	if !(Period{Year: 2024, Month: time.December}).Before(p) {
		t.Fatalf("expected 2024-12 before 2025-03")
	}
	var decoded Period
	if err := decoded.UnmarshalText([]byte("2025-03")); err != nil || decoded != p {
		t.Fatalf("unmarshal mismatch: %v %v", decoded, err)
	}
}

func TestMember_MatchesTokens(t *testing.T) {
	m := Member{GivenName: "Daniel", Surname: "Eberhardt", DocumentID: "30111222"}
	cases := map[string]bool{
		"eberhardt d": true,
		"d eberhardt": true,
		"BERHA":       true,
		"3011":        true,
		"eberhardt x": false,
		"111":         false,
		"":            true,
	}
	for query, want := range cases {
		if got := m.MatchesTokens(QueryTokens(query)); got != want {
			t.Fatalf("query %q: expected %v, got %v", query, want, got)
		}
	}
}
