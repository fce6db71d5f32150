package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODateFormat is the canonical textual form of a Date.
const ISODateFormat = "2006-01-02"

const (
	minYear = 1900
	maxYear = 9999
)

var (
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	localDatePattern = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{4})$`)
)

// Date is a calendar day, always held at midnight UTC so that it can be
// compared with == and used as a map key.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return InvalidDatef("date cannot be zero")
	}
	if d.Year() < minYear || d.Year() > maxYear {
		return InvalidDatef("year %d out of range", d.Year())
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(ISODateFormat)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// MonthEnd returns the last day of d's month.
func (d Date) MonthEnd() Date {
	return NewDate(d.Year(), d.Month(), DaysIn(d.Year(), d.Month()))
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after x.
func (d Date) Compare(x Date) int {
	return d.Time.Compare(x.Time)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidateYearMonth rejects months outside 1..12 and years outside the supported range.
func ValidateYearMonth(year, month int) error {
	if month < 1 || month > 12 {
		return InvalidDatef("invalid month %d", month)
	}
	if year < minYear || year > maxYear {
		return InvalidDatef("invalid year %d", year)
	}
	return nil
}

// MonthRange returns the inclusive range covering the whole month.
func MonthRange(year, month int) DateRange {
	start := NewDate(year, month, 1)
	return DateRange{From: start, To: start.MonthEnd()}
}

// ParseISODate parses a strict YYYY-MM-DD date.
func ParseISODate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	m := isoDatePattern.FindStringSubmatch(s)
	if m == nil {
		return Date{}, InvalidDatef("date %q is not in YYYY-MM-DD format", s)
	}
	return buildDate(s, m[1], m[2], m[3])
}

// ParseDate accepts ISO (YYYY-MM-DD) and the localized DD/MM/YYYY and
// DD.MM.YYYY forms. Impossible calendar days such as 2024-02-30 are rejected
// instead of being rolled over.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return buildDate(s, m[1], m[2], m[3])
	}
	if m := localDatePattern.FindStringSubmatch(s); m != nil {
		return buildDate(s, m[3], m[2], m[1])
	}
	return Date{}, InvalidDatef("unrecognized date %q", s)
}

func buildDate(raw, ys, ms, ds string) (Date, error) {
	year, _ := strconv.Atoi(ys)
	month, _ := strconv.Atoi(ms)
	day, _ := strconv.Atoi(ds)
	if err := ValidateYearMonth(year, month); err != nil {
		return Date{}, InvalidDatef("invalid date %q", raw).wrap(err)
	}
	if day < 1 || day > DaysIn(year, month) {
		return Date{}, InvalidDatef("invalid day %d in date %q", day, raw)
	}
	return NewDate(year, month, day), nil
}
