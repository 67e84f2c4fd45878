package billing

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// Period is a billing month, persisted as YYYY-MM.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates year and month.
func NewPeriod(year int, month time.Month) (Period, error) {
	if year < 1900 || year > 9999 {
		return Period{}, Validationf("invalid year %d", year)
	}
	if month < time.January || month > time.December {
		return Period{}, Validationf("invalid month %d", month)
	}
	return Period{Year: year, Month: month}, nil
}

// ParsePeriod parses YYYY-MM.
func ParsePeriod(value string) (Period, error) {
	if value == "" {
		return Period{}, Validationf("period required")
	}
	t, err := time.Parse(periodLayout, value)
	if err != nil {
		return Period{}, Validationf("period must be YYYY-MM, got %q", value)
	}
	return NewPeriod(t.Year(), t.Month())
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String returns the storage form.
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or 1.
func (p Period) Compare(other Period) int {
	switch {
	case p.Year < other.Year:
		return -1
	case p.Year > other.Year:
		return 1
	case p.Month < other.Month:
		return -1
	case p.Month > other.Month:
		return 1
	}
	return 0
}

// Before reports whether p is earlier than other.
func (p Period) Before(other Period) bool { return p.Compare(other) < 0 }

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = Period{}
		return nil
	}
	parsed, err := ParsePeriod(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
