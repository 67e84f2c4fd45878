package memory

import (
	"time"

	"github.com/shopspring/decimal"

	billing "club-ledger/internal/billing/domain"
)

// SeedDemo loads a small club so the service is usable without a database.
func SeedDemo(s *Store) {
	s.PutPaymentMethod(billing.PaymentMethod{ID: 1, Name: "cash"})
	s.PutPaymentMethod(billing.PaymentMethod{ID: 2, Name: "direct debit"})

	s.PutCategory(billing.Category{ID: 1, Name: "menor activo", Applicability: billing.ApplicabilityMinor, Condition: billing.ConditionActive, Price: decimal.RequireFromString("1500"), AgeThreshold: 18})
	s.PutCategory(billing.Category{ID: 2, Name: "mayor activo", Applicability: billing.ApplicabilityAdult, Condition: billing.ConditionActive, Price: decimal.RequireFromString("2500"), AgeThreshold: 18})
	s.PutCategory(billing.Category{ID: 3, Name: "vitalicio", Applicability: billing.ApplicabilityAdult, Condition: billing.ConditionRetired, Price: decimal.Zero})

	s.PutDiscipline(billing.Discipline{ID: 1, Name: "Swimming", Price: decimal.RequireFromString("1800"), Active: true})
	s.PutDiscipline(billing.Discipline{ID: 2, Name: "Football", Price: decimal.RequireFromString("1200"), Active: true})

	s.PutFamilyGroup(billing.FamilyGroup{ID: 1, Name: "Eberhardt", TitularID: 1})

	date := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	s.PutMember(billing.Member{ID: 1, GivenName: "Daniel", Surname: "Eberhardt", DocumentID: "30111222", State: billing.MemberStateActive, BirthDate: date(1980, time.June, 1), CategoryID: 2, PaymentMethodID: 1, FamilyGroupID: 1})
	s.PutMember(billing.Member{ID: 2, GivenName: "Lucia", Surname: "Eberhardt", DocumentID: "50111333", State: billing.MemberStateActive, BirthDate: date(2012, time.March, 9), CategoryID: 1, PaymentMethodID: 1, FamilyGroupID: 1})
	s.PutMember(billing.Member{ID: 3, GivenName: "Ana", Surname: "Acosta", DocumentID: "42999888", State: billing.MemberStateActive, BirthDate: date(2007, time.February, 15), CategoryID: 1, PaymentMethodID: 2})
	s.PutMember(billing.Member{ID: 4, GivenName: "Jorge", Surname: "Zapata", DocumentID: "12333444", State: billing.MemberStateActive, BirthDate: date(1950, time.January, 20), CategoryID: 3, PaymentMethodID: 1, Exemption: billing.ExemptionLifetime})
	s.PutMember(billing.Member{ID: 5, GivenName: "Pablo", Surname: "Rios", DocumentID: "38777666", State: billing.MemberStateInactive, CategoryID: 2})

	s.PutEnrollment(billing.Enrollment{ID: 1, MemberID: 2, DisciplineID: 1, Active: true, DiscountType: billing.DiscountPercent, DiscountValue: decimal.RequireFromString("10")})
	s.PutEnrollment(billing.Enrollment{ID: 2, MemberID: 3, DisciplineID: 2, Active: true, DiscountType: billing.DiscountNone})
}
