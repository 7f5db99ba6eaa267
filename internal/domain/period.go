package domain

import (
	"strconv"
	"strings"
)

// Period is a calendar month in YYYY-MM form.
type Period string

// ParsePeriod validates s as YYYY-MM.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[4] != '-' {
		return "", &ErrValidation{Field: "period", Message: "expected YYYY-MM"}
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1 {
		return "", &ErrValidation{Field: "period", Message: "invalid year"}
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil || month < 1 || month > 12 {
		return "", &ErrValidation{Field: "period", Message: "invalid month"}
	}
	return Period(s), nil
}

// Contains reports whether a YYYY-MM-DD date belongs to the period.
func (p Period) Contains(date string) bool {
	return strings.HasPrefix(date, string(p))
}

// FirstDay is the default date offered for new entries in the period.
func (p Period) FirstDay() string {
	return string(p) + "-01"
}

func (p Period) String() string { return string(p) }
