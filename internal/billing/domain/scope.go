package billing

import "strconv"

// Scope narrows a fee-generation run. Zero ids mean "all".
type Scope struct {
	Kind         ChargeKind
	DisciplineID int64
	MemberID     int64
}

// Validate normalizes the kind and rejects combinations that cannot be billed.
func (s Scope) Validate() (Scope, error) {
	if s.Kind == "" {
		s.Kind = KindDue
	}
	switch s.Kind {
	case KindDue:
		if s.DisciplineID != 0 {
			return s, Validationf("discipline filter requires kind %q", KindDiscipline)
		}
	case KindDiscipline:
	default:
		return s, Validationf("fee runs cannot generate %q charges", s.Kind)
	}
	if s.DisciplineID < 0 || s.MemberID < 0 {
		return s, Validationf("scope ids must be positive")
	}
	return s, nil
}

// Key identifies the scope for run tracking.
func (s Scope) Key() string {
	return string(s.Kind) + "|d" + strconv.FormatInt(s.DisciplineID, 10) + "|m" + strconv.FormatInt(s.MemberID, 10)
}
