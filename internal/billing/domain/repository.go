package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MemberRepository reads the member registry. Missing rows return (nil, nil).
type MemberRepository interface {
	FindMember(ctx context.Context, id int64) (*Member, error)
	FindMemberByDocument(ctx context.Context, documentID string) (*Member, error)
	SearchMembers(ctx context.Context, query string, page Pagination) (MemberPage, error)
	ListMembers(ctx context.Context, activeOnly bool) ([]Member, error)
	FindFamilyGroup(ctx context.Context, id int64) (*FamilyGroup, error)
}

// CatalogRepository reads and maintains reference data.
type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	FindCategory(ctx context.Context, id int64) (*Category, error)
	UpdateCategoryPrice(ctx context.Context, id int64, price decimal.Decimal) error
	ListDisciplines(ctx context.Context) ([]Discipline, error)
	FindDiscipline(ctx context.Context, id int64) (*Discipline, error)
	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	// ListEnrollments returns active enrollments; zero ids mean all.
	ListEnrollments(ctx context.Context, disciplineID, memberID int64) ([]Enrollment, error)
}

// LinkMinter produces a gateway link for a charge that has none yet.
type LinkMinter func(ctx context.Context, charge Charge) (string, error)

// PaymentApplier validates and applies a payment to the locked charge.
type PaymentApplier func(charge Charge) (Charge, error)

// ChargeRepository persists charges and payments.
type ChargeRepository interface {
	FindCharge(ctx context.Context, ref ChargeRef) (*Charge, error)
	FindChargeByReference(ctx context.Context, code string) (*Charge, error)
	ListMemberCharges(ctx context.Context, memberID int64) ([]Charge, error)
	ListMemberPayments(ctx context.Context, memberID int64) ([]Payment, error)
	// ExistingCharges returns generated charges of kind for period by slot.
	ExistingCharges(ctx context.Context, kind ChargeKind, period Period) (map[ChargeKey]Charge, error)
	// LastDueCategories maps member id to the category of its latest due at or before period.
	LastDueCategories(ctx context.Context, period Period) (map[int64]int64, error)
	// InsertGenerated inserts unless the slot is taken; created is false on conflict.
	InsertGenerated(ctx context.Context, charge Charge) (stored Charge, created bool, err error)
	InsertExtra(ctx context.Context, charge Charge) (Charge, error)
	// RecordPayment locks the charge, applies the payment and stores both atomically.
	RecordPayment(ctx context.Context, ref ChargeRef, payment Payment, apply PaymentApplier) (Charge, Payment, error)
	// ClaimPaymentLink returns the stored link or mints and stores one under a per-charge lock.
	ClaimPaymentLink(ctx context.Context, ref ChargeRef, mint LinkMinter) (link string, minted bool, err error)
	ListPendingCharges(ctx context.Context, kind ChargeKind, period Period) ([]Charge, error)
}

// ReportRepository serves the reporting queries.
type ReportRepository interface {
	Delinquency(ctx context.Context, filter DelinquencyFilter) (DelinquencyPage, error)
	MemberDelinquency(ctx context.Context, memberID int64, filter DelinquencyFilter) ([]Charge, error)
	Consolidated(ctx context.Context, filter ConsolidatedFilter) (ConsolidatedReport, error)
}

// ReferenceIssuer issues unique barcode references.
type ReferenceIssuer interface {
	Next(kind ChargeKind) string
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// LinkRequest describes the charge a payment link is minted for.
type LinkRequest struct {
	Ref           ChargeRef
	ReferenceCode string
	MemberID      int64
	Title         string
	Amount        decimal.Decimal
	Currency      string
	BackURL       string
	ExpiresAt     time.Time
}

// PaymentGateway mints payment links.
type PaymentGateway interface {
	CreateLink(ctx context.Context, req LinkRequest) (string, error)
}
