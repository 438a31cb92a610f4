package domain

import (
	"fmt"
	"time"
)

// DateFormat is the ISO-8601 day format used everywhere dates cross a
// boundary: database columns, JSON payloads, log fields.
const DateFormat = "2006-01-02"

// Date is a calendar day with no time or zone component. Which instant a Date
// refers to depends on the exchange's timezone; converting an instant to a
// Date therefore always goes through DateOf with an explicit location.
// Comparable, so usable as a map key.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date. Out-of-range values roll over the way
// time.Date rolls them (month 13 becomes January of the next year).
func NewDate(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{y, m, d}
}

// ParseDate parses an ISO-8601 day string ("2025-06-16").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want %q: %w", s, DateFormat, err)
	}
	return NewDate(t.Date()), nil
}

// MustParseDate is ParseDate for compile-time-known strings. Panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// time returns the canonical instant for the day: midnight UTC. Only used for
// day arithmetic; never interpret it as an exchange-local instant.
func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Year returns the calendar year.
func (d Date) Year() int { return d.y }

// Month returns the month.
func (d Date) Month() time.Month { return d.m }

// Day returns the day of the month.
func (d Date) Day() int { return d.d }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// String formats the date as ISO-8601.
func (d Date) String() string { return d.time().Format(DateFormat) }

// AddDays returns the date n days later (earlier when negative).
func (d Date) AddDays(n int) Date { return NewDate(d.y, d.m, d.d+n) }

// AddMonths returns the date n calendar months later, with time.Date rollover
// semantics (Mar 31 minus one month normalizes past the end of February).
func (d Date) AddMonths(n int) Date { return NewDate(d.y, d.m+time.Month(n), d.d) }

// AddYears returns the date n years later.
func (d Date) AddYears(n int) Date { return NewDate(d.y+n, d.m, d.d) }

// Before reports whether d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Equal reports whether d and x are the same day.
func (d Date) Equal(x Date) bool { return d == x }

// DaysUntil returns the number of calendar days from d to x, negative when x
// is earlier.
func (d Date) DaysUntil(x Date) int {
	return int(x.time().Sub(d.time()) / (24 * time.Hour))
}

// MarshalText implements encoding.TextMarshaler, so Date serializes as
// "2006-01-02" in JSON and msgpack alike.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
