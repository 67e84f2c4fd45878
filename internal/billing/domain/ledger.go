package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"club-ledger/internal/money"
)

const (
	EntryCharge  = "charge"
	EntryPayment = "payment"
)

// LedgerEntry is one charge (positive delta) or payment (negative delta).
type LedgerEntry struct {
	Type          string
	Period        Period
	Kind          ChargeKind
	ChargeID      int64
	PaymentID     int64
	Description   string
	Delta         decimal.Decimal
	Date          time.Time
	State         ChargeState
	ReferenceCode string
	PaymentLink   string
}

// MonthlyStatement groups one member-month. Running is the cumulative
// balance from the oldest month up to and including this one.
type MonthlyStatement struct {
	Period  Period
	Entries []LedgerEntry
	Charged decimal.Decimal
	Paid    decimal.Decimal
	Balance decimal.Decimal
	Running decimal.Decimal
}

// Ledger is the per-member statement, newest month first.
type Ledger struct {
	Member      MemberSummary
	Months      []MonthlyStatement
	TotalBruto  decimal.Decimal
	TotalPagado decimal.Decimal
	TotalSaldo  decimal.Decimal
}

// BuildLedger merges charges of every kind with their payments. Payments
// attach to the period of their charge. A charge whose recorded paid amount
// exceeds its payment rows gets one entry for the difference so month
// balances and totals always agree.
func BuildLedger(member Member, charges []Charge, payments []Payment) Ledger {
	byCharge := make(map[ChargeRef][]Payment, len(payments))
	for _, p := range payments {
		ref := ChargeRef{Kind: p.Kind, ID: p.ChargeID}
		byCharge[ref] = append(byCharge[ref], p)
	}

	months := map[Period]*MonthlyStatement{}
	month := func(p Period) *MonthlyStatement {
		m, ok := months[p]
		if !ok {
			m = &MonthlyStatement{Period: p, Charged: decimal.Zero, Paid: decimal.Zero, Balance: decimal.Zero}
			months[p] = m
		}
		return m
	}

	ledger := Ledger{Member: member.Summary(), TotalBruto: decimal.Zero, TotalPagado: decimal.Zero}
	for _, c := range charges {
		m := month(c.Period)
		entry := LedgerEntry{
			Type:          EntryCharge,
			Period:        c.Period,
			Kind:          c.Kind,
			ChargeID:      c.ID,
			Description:   chargeDescription(c),
			Delta:         c.Amount,
			Date:          c.GeneratedAt,
			State:         c.State,
			ReferenceCode: c.ReferenceCode,
			PaymentLink:   c.PaymentLink,
		}
		if c.State.Exempt() {
			entry.Delta = decimal.Zero
			m.Entries = append(m.Entries, entry)
			continue
		}
		m.Entries = append(m.Entries, entry)

		recorded := decimal.Zero
		for _, p := range byCharge[c.Ref()] {
			recorded = recorded.Add(p.Amount)
			m.Entries = append(m.Entries, LedgerEntry{
				Type:        EntryPayment,
				Period:      c.Period,
				Kind:        c.Kind,
				ChargeID:    c.ID,
				PaymentID:   p.ID,
				Description: paymentDescription(p),
				Delta:       p.Amount.Neg(),
				Date:        p.Date,
				State:       c.State,
			})
		}
		paid := recorded
		if c.Paid.GreaterThan(recorded) {
			gap := c.Paid.Sub(recorded)
			m.Entries = append(m.Entries, LedgerEntry{
				Type:        EntryPayment,
				Period:      c.Period,
				Kind:        c.Kind,
				ChargeID:    c.ID,
				Description: "Payment",
				Delta:       gap.Neg(),
				Date:        c.PaidAt,
				State:       c.State,
			})
			paid = c.Paid
		}

		m.Charged = m.Charged.Add(c.Amount)
		m.Paid = m.Paid.Add(paid)
		ledger.TotalBruto = ledger.TotalBruto.Add(c.Amount)
		ledger.TotalPagado = ledger.TotalPagado.Add(paid)
	}

	ledger.Months = make([]MonthlyStatement, 0, len(months))
	for _, m := range months {
		m.Charged = money.Round(m.Charged)
		m.Paid = money.Round(m.Paid)
		m.Balance = m.Charged.Sub(m.Paid)
		sort.SliceStable(m.Entries, func(i, j int) bool {
			a, b := m.Entries[i], m.Entries[j]
			if a.Kind != b.Kind {
				return a.Kind < b.Kind
			}
			if a.ChargeID != b.ChargeID {
				return a.ChargeID < b.ChargeID
			}
			if a.Type != b.Type {
				return a.Type == EntryCharge
			}
			return a.Date.Before(b.Date)
		})
		ledger.Months = append(ledger.Months, *m)
	}
	sort.Slice(ledger.Months, func(i, j int) bool {
		return ledger.Months[j].Period.Before(ledger.Months[i].Period)
	})
	running := decimal.Zero
	for i := len(ledger.Months) - 1; i >= 0; i-- {
		running = running.Add(ledger.Months[i].Balance)
		ledger.Months[i].Running = running
	}
	ledger.TotalBruto = money.Round(ledger.TotalBruto)
	ledger.TotalPagado = money.Round(ledger.TotalPagado)
	ledger.TotalSaldo = ledger.TotalBruto.Sub(ledger.TotalPagado)
	return ledger
}

func chargeDescription(c Charge) string {
	if c.Description != "" {
		return c.Description
	}
	switch c.Kind {
	case KindDue:
		return "Due " + c.Period.String()
	case KindDiscipline:
		return "Discipline fee " + c.Period.String()
	}
	return "Extra charge " + c.Period.String()
}

func paymentDescription(p Payment) string {
	note := strings.TrimSpace(p.Note)
	if note == "" {
		return "Payment"
	}
	return "Payment: " + note
}
