package billing

import (
	"strings"
	"time"
)

const (
	MemberStateActive   = "active"
	MemberStateInactive = "inactive"
)

// Exemption kinds carried on a member record.
const (
	ExemptionNone     = ""
	ExemptionLifetime = "lifetime"
	ExemptionFamily   = "family-group"
	ExemptionOther    = "other"
)

// Member is the registry record the billing core reads. It is never
// mutated here.
type Member struct {
	ID              int64
	GivenName       string
	Surname         string
	DocumentID      string
	State           string
	BirthDate       time.Time
	CategoryID      int64
	PaymentMethodID int64
	FamilyGroupID   int64
	Exemption       string
}

// FullName returns "Surname, GivenName".
func (m Member) FullName() string {
	switch {
	case m.Surname == "":
		return m.GivenName
	case m.GivenName == "":
		return m.Surname
	}
	return m.Surname + ", " + m.GivenName
}

// Active reports whether the member is billable.
func (m Member) Active() bool { return m.State == MemberStateActive }

// AgeAt returns completed years at t, or -1 when the birth date is unknown.
func (m Member) AgeAt(t time.Time) int {
	if m.BirthDate.IsZero() {
		return -1
	}
	years := t.Year() - m.BirthDate.Year()
	if t.Month() < m.BirthDate.Month() || (t.Month() == m.BirthDate.Month() && t.Day() < m.BirthDate.Day()) {
		years--
	}
	return years
}

// QueryTokens splits a free-text search into lower-cased tokens.
func QueryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// MatchesTokens reports whether every token is a substring of the surname
// or the given name, or a prefix of the document id. No tokens matches all.
func (m Member) MatchesTokens(tokens []string) bool {
	surname := strings.ToLower(m.Surname)
	given := strings.ToLower(m.GivenName)
	for _, token := range tokens {
		if strings.Contains(surname, token) || strings.Contains(given, token) {
			continue
		}
		if m.DocumentID != "" && strings.HasPrefix(strings.ToLower(m.DocumentID), token) {
			continue
		}
		return false
	}
	return true
}

// FamilyGroup groups dependents under a titular member.
type FamilyGroup struct {
	ID        int64
	Name      string
	TitularID int64
}

// PaymentMethod is reference data (cash, debit, card...).
type PaymentMethod struct {
	ID   int64
	Name string
}

// MemberSummary is the search projection.
type MemberSummary struct {
	ID         int64
	GivenName  string
	Surname    string
	DocumentID string
	State      string
}

// Summary projects a member for search results.
func (m Member) Summary() MemberSummary {
	return MemberSummary{ID: m.ID, GivenName: m.GivenName, Surname: m.Surname, DocumentID: m.DocumentID, State: m.State}
}
