package calendar

import (
	"time"

	"github.com/openfolio/openfolio/internal/domain"
)

// NYSE full-day closures. Fixed-date holidays shift to the nearest weekday
// when they land on a weekend (Saturday observed Friday, Sunday observed
// Monday); rule-based holidays always fall on a weekday by construction.
func holidaysForYear(year int) []domain.Date {
	holidays := []domain.Date{
		observeOnWeekday(domain.NewDate(year, time.January, 1)),   // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),            // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3),           // Washington's Birthday
		goodFriday(year),                                          // Good Friday
		lastWeekday(year, time.May, time.Monday),                  // Memorial Day
		observeOnWeekday(domain.NewDate(year, time.June, 19)),     // Juneteenth
		observeOnWeekday(domain.NewDate(year, time.July, 4)),      // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),          // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4),         // Thanksgiving
		observeOnWeekday(domain.NewDate(year, time.December, 25)), // Christmas Day
	}
	return holidays
}

// isEarlyCloseDay reports whether d is a 13:00 session: the day after
// Thanksgiving, Christmas Eve on a weekday, and July 3 on a weekday.
func isEarlyCloseDay(d domain.Date) bool {
	dayAfterThanksgiving := nthWeekday(d.Year(), time.November, time.Thursday, 4).AddDays(1)
	if d == dayAfterThanksgiving {
		return true
	}
	if d.Month() == time.December && d.Day() == 24 && isWeekday(d) {
		return true
	}
	if d.Month() == time.July && d.Day() == 3 && isWeekday(d) {
		return true
	}
	return false
}

func isWeekday(d domain.Date) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// observeOnWeekday shifts weekend holidays to the observed weekday.
func observeOnWeekday(d domain.Date) domain.Date {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDays(-1)
	case time.Sunday:
		return d.AddDays(1)
	}
	return d
}

// nthWeekday finds the nth occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) domain.Date {
	d := domain.NewDate(year, month, 1)
	offset := int(weekday - d.Weekday())
	if offset < 0 {
		offset += 7
	}
	return d.AddDays(offset + (n-1)*7)
}

// lastWeekday finds the last occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) domain.Date {
	d := domain.NewDate(year, month+1, 1).AddDays(-1) // last day of month
	offset := int(d.Weekday() - weekday)
	if offset < 0 {
		offset += 7
	}
	return d.AddDays(-offset)
}

// goodFriday is two days before Gregorian Easter, computed by the standard
// computus method.
func goodFriday(year int) domain.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return domain.NewDate(year, time.Month(month), day).AddDays(-2)
}
