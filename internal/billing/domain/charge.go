package billing

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"club-ledger/internal/money"
)

// ChargeKind tags the three charge sources.
type ChargeKind string

const (
	KindDue        ChargeKind = "due"
	KindDiscipline ChargeKind = "discipline"
	KindExtra      ChargeKind = "extra"
)

// ParseChargeKind validates a kind tag.
func ParseChargeKind(value string) (ChargeKind, error) {
	switch ChargeKind(value) {
	case KindDue, KindDiscipline, KindExtra:
		return ChargeKind(value), nil
	}
	return "", Validationf("unknown charge kind %q", value)
}

// ChargeState is the settlement state of a charge.
type ChargeState string

const (
	StatePending        ChargeState = "pending"
	StatePaid           ChargeState = "paid"
	StateExemptLifetime ChargeState = "exempt-lifetime"
	StateExemptFamily   ChargeState = "exempt-family-group"
	StateExemptOther    ChargeState = "exempt-other"
)

// Exempt reports whether the state is one of the exempt-* states.
func (s ChargeState) Exempt() bool {
	return strings.HasPrefix(string(s), "exempt-")
}

// ParseChargeState validates a state filter value.
func ParseChargeState(value string) (ChargeState, error) {
	switch ChargeState(value) {
	case StatePending, StatePaid, StateExemptLifetime, StateExemptFamily, StateExemptOther:
		return ChargeState(value), nil
	}
	return "", Validationf("unknown charge state %q", value)
}

// ChargeRef addresses one charge.
type ChargeRef struct {
	Kind ChargeKind
	ID   int64
}

// String renders "kind/id".
func (r ChargeRef) String() string {
	return string(r.Kind) + "/" + strconv.FormatInt(r.ID, 10)
}

// Charge is a due, a discipline fee or an extra charge.
type Charge struct {
	ID            int64
	Kind          ChargeKind
	MemberID      int64
	Period        Period
	CategoryID    int64
	DisciplineID  int64
	Description   string
	Amount        decimal.Decimal
	Paid          decimal.Decimal
	State         ChargeState
	ReferenceCode string
	PaymentLink   string
	GeneratedAt   time.Time
	PaidAt        time.Time
}

// Ref returns the charge address.
func (c Charge) Ref() ChargeRef { return ChargeRef{Kind: c.Kind, ID: c.ID} }

// Outstanding returns face minus paid; exempt charges owe nothing.
func (c Charge) Outstanding() decimal.Decimal {
	if c.State.Exempt() {
		return decimal.Zero
	}
	rest := c.Amount.Sub(c.Paid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// Settled reports whether nothing is left to pay.
func (c Charge) Settled() bool {
	return c.State == StatePaid || c.State.Exempt() || !c.Outstanding().IsPositive()
}

// Key identifies the billing slot a generated charge occupies.
func (c Charge) Key() ChargeKey {
	return ChargeKey{Kind: c.Kind, MemberID: c.MemberID, Period: c.Period, DisciplineID: c.DisciplineID}
}

// ChargeKey is unique for generated dues and discipline fees.
type ChargeKey struct {
	Kind         ChargeKind
	MemberID     int64
	Period       Period
	DisciplineID int64
}

// Payment settles part or all of one charge.
type Payment struct {
	ID       int64
	ChargeID int64
	Kind     ChargeKind
	Amount   decimal.Decimal
	Date     time.Time
	Note     string
}

// ApplyPayment validates amount against the charge and returns the updated
// charge. The charge is left untouched on error.
func (c Charge) ApplyPayment(amount decimal.Decimal, at time.Time) (Charge, error) {
	if c.State.Exempt() {
		return c, Conflictf("charge %s is %s", c.Ref(), c.State)
	}
	if c.State == StatePaid {
		return c, Conflictf("charge %s already paid", c.Ref())
	}
	if !amount.IsPositive() {
		return c, Validationf("payment amount must be positive")
	}
	if amount.GreaterThan(c.Outstanding()) {
		return c, Validationf("payment %s exceeds outstanding %s", money.Format(amount), money.Format(c.Outstanding()))
	}
	c.Paid = money.Round(c.Paid.Add(amount))
	if c.Paid.Equal(c.Amount) {
		c.State = StatePaid
		c.PaidAt = at
	}
	return c, nil
}

// ReferencePrefix is the barcode prefix per kind.
func ReferencePrefix(kind ChargeKind) string {
	switch kind {
	case KindDue:
		return "C"
	case KindDiscipline:
		return "D"
	default:
		return "E"
	}
}
