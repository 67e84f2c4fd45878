package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"club-ledger/internal/money"
)

// Applicability splits categories by age.
type Applicability string

const (
	ApplicabilityMinor Applicability = "menor"
	ApplicabilityAdult Applicability = "mayor"
)

// Condition is the membership condition a category applies to.
type Condition string

const (
	ConditionActive    Condition = "active"
	ConditionAssociate Condition = "associate"
	ConditionRetired   Condition = "retired"
	ConditionExMember  Condition = "ex-member"
)

// Category drives the recurring due amount.
type Category struct {
	ID            int64
	Name          string
	Applicability Applicability
	Condition     Condition
	Price         decimal.Decimal
	AgeThreshold  int
}

// Label is used in category-changed outcomes.
func (c Category) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Applicability)
}

// ResolveCategory returns the category the member should be billed under at
// period start. Age-based moves stay within the same condition: a minor
// category applies below its threshold, an adult one at or above it.
// defaultAge is used when a category carries no threshold. The current
// category is returned unchanged when the birth date is unknown or no
// better match exists.
func ResolveCategory(member Member, current *Category, categories []Category, period Period, defaultAge int) *Category {
	if current == nil {
		return nil
	}
	age := member.AgeAt(period.Start())
	if age < 0 {
		return current
	}
	threshold := func(c Category) int {
		if c.AgeThreshold > 0 {
			return c.AgeThreshold
		}
		return defaultAge
	}
	fits := func(c Category) bool {
		switch c.Applicability {
		case ApplicabilityMinor:
			return age < threshold(c)
		case ApplicabilityAdult:
			return age >= threshold(c)
		}
		return true
	}
	if fits(*current) {
		return current
	}
	for i := range categories {
		candidate := categories[i]
		if candidate.ID == current.ID || candidate.Condition != current.Condition {
			continue
		}
		if candidate.Applicability == current.Applicability || !fits(candidate) {
			continue
		}
		return &categories[i]
	}
	return current
}

// DiscountType is applied per enrollment.
type DiscountType string

const (
	DiscountNone    DiscountType = "none"
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

// ParseDiscountType validates a discount type; empty means none.
func ParseDiscountType(value string) (DiscountType, error) {
	switch DiscountType(value) {
	case "", DiscountNone:
		return DiscountNone, nil
	case DiscountPercent, DiscountAmount:
		return DiscountType(value), nil
	}
	return "", Validationf("unknown discount type %q", value)
}

// Discipline is an activity with its own monthly fee.
type Discipline struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Active bool
}

// Enrollment ties a member to a discipline.
type Enrollment struct {
	ID            int64
	MemberID      int64
	DisciplineID  int64
	Active        bool
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	EnrolledAt    time.Time
}

// ApplyDiscount returns price net of the enrollment discount, floored at zero.
func (e Enrollment) ApplyDiscount(price decimal.Decimal) decimal.Decimal {
	net := price
	switch e.DiscountType {
	case DiscountPercent:
		net = price.Sub(price.Mul(e.DiscountValue).Div(decimal.NewFromInt(100)))
	case DiscountAmount:
		net = price.Sub(e.DiscountValue)
	}
	if net.IsNegative() {
		return decimal.Zero
	}
	return money.Round(net)
}
