package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bucket names one classification outcome.
type Bucket string

const (
	BucketCategoryChanged   Bucket = "category-changed"
	BucketExemptLifetime    Bucket = "exempt-lifetime"
	BucketExemptFamilyGroup Bucket = "exempt-family-group"
	BucketMissingData       Bucket = "missing-data"
	BucketAlreadyBilled     Bucket = "already-billed"
	BucketNormal            Bucket = "normal"
)

// Subject is the member (and discipline, for discipline runs) an outcome is about.
type Subject struct {
	MemberID       int64
	MemberName     string
	DocumentID     string
	DisciplineID   int64
	DisciplineName string
}

// Outcome is the closed set of classification results. Only the types in
// this file implement it; consumers switch over them through OutcomeVisitor.
type Outcome interface {
	Subject() Subject
	Bucket() Bucket
	Accept(v OutcomeVisitor) error
	sealed()
}

// OutcomeVisitor must handle every bucket.
type OutcomeVisitor interface {
	CategoryChanged(o CategoryChanged) error
	ExemptLifetime(o ExemptLifetime) error
	ExemptFamilyGroup(o ExemptFamilyGroup) error
	MissingData(o MissingData) error
	AlreadyBilled(o AlreadyBilled) error
	Normal(o Normal) error
}

// CategoryChanged is billed under the newly resolved category.
type CategoryChanged struct {
	Who           Subject
	OldCategoryID int64
	OldCategory   string
	NewCategoryID int64
	NewCategory   string
	Amount        decimal.Decimal
}

// ExemptLifetime covers lifetime and other explicit exemptions.
type ExemptLifetime struct {
	Who    Subject
	Reason string
}

// ExemptFamilyGroup is a dependent whose titular carries the charge.
type ExemptFamilyGroup struct {
	Who           Subject
	FamilyGroupID int64
	TitularID     int64
}

// MissingData cannot be billed until the registry is completed.
type MissingData struct {
	Who    Subject
	Reason string
}

// AlreadyBilled has a charge for the same slot.
type AlreadyBilled struct {
	Who           Subject
	ChargeID      int64
	ReferenceCode string
}

// Normal is billed at the current price.
type Normal struct {
	Who          Subject
	CategoryID   int64
	DisciplineID int64
	Amount       decimal.Decimal
}

func (o CategoryChanged) Subject() Subject   { return o.Who }
func (o ExemptLifetime) Subject() Subject    { return o.Who }
func (o ExemptFamilyGroup) Subject() Subject { return o.Who }
func (o MissingData) Subject() Subject       { return o.Who }
func (o AlreadyBilled) Subject() Subject     { return o.Who }
func (o Normal) Subject() Subject            { return o.Who }

func (CategoryChanged) Bucket() Bucket   { return BucketCategoryChanged }
func (ExemptLifetime) Bucket() Bucket    { return BucketExemptLifetime }
func (ExemptFamilyGroup) Bucket() Bucket { return BucketExemptFamilyGroup }
func (MissingData) Bucket() Bucket       { return BucketMissingData }
func (AlreadyBilled) Bucket() Bucket     { return BucketAlreadyBilled }
func (Normal) Bucket() Bucket            { return BucketNormal }

func (o CategoryChanged) Accept(v OutcomeVisitor) error   { return v.CategoryChanged(o) }
func (o ExemptLifetime) Accept(v OutcomeVisitor) error    { return v.ExemptLifetime(o) }
func (o ExemptFamilyGroup) Accept(v OutcomeVisitor) error { return v.ExemptFamilyGroup(o) }
func (o MissingData) Accept(v OutcomeVisitor) error       { return v.MissingData(o) }
func (o AlreadyBilled) Accept(v OutcomeVisitor) error     { return v.AlreadyBilled(o) }
func (o Normal) Accept(v OutcomeVisitor) error            { return v.Normal(o) }

func (CategoryChanged) sealed()   {}
func (ExemptLifetime) sealed()    {}
func (ExemptFamilyGroup) sealed() {}
func (MissingData) sealed()       {}
func (AlreadyBilled) sealed()     {}
func (Normal) sealed()            {}

// Policy holds the business switches classification depends on.
type Policy struct {
	AdultAge             int
	FamilyGroupExemption bool
}

// DueInput is everything needed to classify one member for a due run.
// Category is the registered category; LastCategory is the category of the
// latest due at or before Period and is nil for members never billed.
type DueInput struct {
	Member       Member
	Period       Period
	Category     *Category
	LastCategory *Category
	Categories   []Category
	FamilyGroup  *FamilyGroup
	Titular      *Member
	Existing     *Charge
}

// ClassifyDue places a member in exactly one bucket for a due run.
func ClassifyDue(in DueInput, policy Policy) Outcome {
	who := subjectOf(in.Member)
	if !in.Member.Active() {
		return MissingData{Who: who, Reason: "member inactive"}
	}

	registered := in.Category
	if registered == nil {
		registered = in.LastCategory
	}
	previous := in.LastCategory
	if previous == nil {
		previous = registered
	}
	var resolved *Category
	if registered != nil {
		resolved = ResolveCategory(in.Member, registered, in.Categories, in.Period, policy.AdultAge)
	}
	if resolved != nil && resolved.ID != previous.ID && resolved.Price.IsPositive() {
		return CategoryChanged{
			Who:           who,
			OldCategoryID: previous.ID,
			OldCategory:   previous.Label(),
			NewCategoryID: resolved.ID,
			NewCategory:   resolved.Label(),
			Amount:        resolved.Price,
		}
	}

	switch in.Member.Exemption {
	case ExemptionLifetime:
		return ExemptLifetime{Who: who, Reason: "lifetime"}
	case ExemptionOther:
		return ExemptLifetime{Who: who, Reason: "other"}
	}

	if in.Member.Exemption == ExemptionFamily {
		return ExemptFamilyGroup{Who: who, FamilyGroupID: in.Member.FamilyGroupID}
	}
	if policy.FamilyGroupExemption && in.FamilyGroup != nil && in.Titular != nil &&
		in.Titular.ID != in.Member.ID && in.Titular.Active() {
		return ExemptFamilyGroup{Who: who, FamilyGroupID: in.FamilyGroup.ID, TitularID: in.Titular.ID}
	}

	var missing []string
	if resolved == nil {
		missing = append(missing, "no category")
	} else if !resolved.Price.IsPositive() {
		missing = append(missing, "category has no price")
	}
	if in.Member.PaymentMethodID == 0 {
		missing = append(missing, "no payment method")
	}
	if len(missing) > 0 {
		return MissingData{Who: who, Reason: strings.Join(missing, "; ")}
	}

	if in.Existing != nil {
		return AlreadyBilled{Who: who, ChargeID: in.Existing.ID, ReferenceCode: in.Existing.ReferenceCode}
	}
	return Normal{Who: who, CategoryID: resolved.ID, Amount: resolved.Price}
}

// DisciplineInput is everything needed to classify one enrollment.
type DisciplineInput struct {
	Member     Member
	Discipline Discipline
	Enrollment Enrollment
	Existing   *Charge
}

// ClassifyDiscipline places an enrollment in exactly one bucket. Category
// and exemption rules do not apply to discipline fees.
func ClassifyDiscipline(in DisciplineInput) Outcome {
	who := subjectOf(in.Member)
	who.DisciplineID = in.Discipline.ID
	who.DisciplineName = in.Discipline.Name

	if !in.Member.Active() {
		return MissingData{Who: who, Reason: "member inactive"}
	}
	var missing []string
	if !in.Discipline.Price.IsPositive() {
		missing = append(missing, "discipline has no price")
	}
	if in.Member.PaymentMethodID == 0 {
		missing = append(missing, "no payment method")
	}
	if len(missing) > 0 {
		return MissingData{Who: who, Reason: strings.Join(missing, "; ")}
	}
	if in.Existing != nil {
		return AlreadyBilled{Who: who, ChargeID: in.Existing.ID, ReferenceCode: in.Existing.ReferenceCode}
	}
	amount := in.Enrollment.ApplyDiscount(in.Discipline.Price)
	if !amount.IsPositive() {
		return ExemptLifetime{Who: who, Reason: "full discount"}
	}
	return Normal{Who: who, DisciplineID: in.Discipline.ID, Amount: amount}
}

func subjectOf(m Member) Subject {
	return Subject{MemberID: m.ID, MemberName: m.FullName(), DocumentID: m.DocumentID}
}

// Skip records why a member was not billed by a commit.
type Skip struct {
	Who    Subject
	Bucket Bucket
	Reason string
}

// Batch is the result of a simulation or a commit for one (period, scope).
type Batch struct {
	ID         string
	Period     Period
	Scope      Scope
	Committed  bool
	StartedAt  time.Time
	FinishedAt time.Time

	CategoryChanged   []CategoryChanged
	ExemptLifetime    []ExemptLifetime
	ExemptFamilyGroup []ExemptFamilyGroup
	MissingData       []MissingData
	AlreadyBilled     []AlreadyBilled
	Normal            []Normal

	Processed int
	Generated int
	Skipped   []Skip
}

// NewBatch starts an empty batch.
func NewBatch(id string, period Period, scope Scope, committed bool, now time.Time) *Batch {
	return &Batch{ID: id, Period: period, Scope: scope, Committed: committed, StartedAt: now}
}

// Add files an outcome into its bucket.
func (b *Batch) Add(o Outcome) {
	b.Processed++
	_ = o.Accept(batchCollector{b})
}

// Counts returns the size of every bucket.
func (b *Batch) Counts() map[Bucket]int {
	return map[Bucket]int{
		BucketCategoryChanged:   len(b.CategoryChanged),
		BucketExemptLifetime:    len(b.ExemptLifetime),
		BucketExemptFamilyGroup: len(b.ExemptFamilyGroup),
		BucketMissingData:       len(b.MissingData),
		BucketAlreadyBilled:     len(b.AlreadyBilled),
		BucketNormal:            len(b.Normal),
	}
}

// Billable returns the amount the generating buckets add up to.
func (b *Batch) Billable() decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.CategoryChanged {
		total = total.Add(o.Amount)
	}
	for _, o := range b.Normal {
		total = total.Add(o.Amount)
	}
	return total
}

// Skip appends a skip reason.
func (b *Batch) Skip(o Outcome, reason string) {
	b.Skipped = append(b.Skipped, Skip{Who: o.Subject(), Bucket: o.Bucket(), Reason: reason})
}

type batchCollector struct{ b *Batch }

func (c batchCollector) CategoryChanged(o CategoryChanged) error {
	c.b.CategoryChanged = append(c.b.CategoryChanged, o)
	return nil
}

func (c batchCollector) ExemptLifetime(o ExemptLifetime) error {
	c.b.ExemptLifetime = append(c.b.ExemptLifetime, o)
	return nil
}

func (c batchCollector) ExemptFamilyGroup(o ExemptFamilyGroup) error {
	c.b.ExemptFamilyGroup = append(c.b.ExemptFamilyGroup, o)
	return nil
}

func (c batchCollector) MissingData(o MissingData) error {
	c.b.MissingData = append(c.b.MissingData, o)
	return nil
}

func (c batchCollector) AlreadyBilled(o AlreadyBilled) error {
	c.b.AlreadyBilled = append(c.b.AlreadyBilled, o)
	return nil
}

func (c batchCollector) Normal(o Normal) error {
	c.b.Normal = append(c.b.Normal, o)
	return nil
}
