// Package calendar is the single source of truth for "what trading day is it"
// and "is the market open". Every date decision in the system goes through it;
// nothing else derives a trading day from a wall clock. All computations happen
// in the exchange's own timezone, so daylight-saving transitions and host
// timezone configuration cannot shift results.
package calendar

import (
	"fmt"
	"sync"
	"time"

	"github.com/openfolio/openfolio/internal/domain"
)

// Trading session wall-clock times, exchange-local.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0

	earlyCloseHour   = 13
	earlyCloseMinute = 0
)

// Calendar resolves trading days and market sessions for a single exchange.
// The clock is injectable so tests can pin an instant.
type Calendar struct {
	loc   *time.Location
	nowFn func() time.Time

	mu       sync.Mutex
	holidays map[int]map[domain.Date]bool // per-year holiday cache
}

// New creates a Calendar for the exchange timezone (IANA name).
func New(tz string) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange timezone %q: %w", tz, err)
	}
	return &Calendar{
		loc:      loc,
		nowFn:    time.Now,
		holidays: make(map[int]map[domain.Date]bool),
	}, nil
}

// NewAt returns a Calendar whose clock always reads the given instant.
// Intended for tests.
func NewAt(tz string, at time.Time) (*Calendar, error) {
	c, err := New(tz)
	if err != nil {
		return nil, err
	}
	c.nowFn = func() time.Time { return at }
	return c, nil
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current instant in the exchange timezone.
func (c *Calendar) Now() time.Time { return c.nowFn().In(c.loc) }

// CurrentTradingDay returns today's calendar date in exchange-local time.
// On weekends and holidays this is still the calendar date; callers needing
// the last day the market traded use PreviousTradingDay.
func (c *Calendar) CurrentTradingDay() domain.Date {
	return domain.DateOf(c.nowFn(), c.loc)
}

// LastCompletedTradingDay returns the most recent trading day whose session
// has already closed: today if the market closed, otherwise the previous
// trading day.
func (c *Calendar) LastCompletedTradingDay() domain.Date {
	now := c.Now()
	today := domain.DateOf(now, c.loc)
	if c.IsTradingDay(today) && !now.Before(c.closeTime(today)) {
		return today
	}
	return c.PreviousTradingDay(today)
}

// PreviousTradingDay steps back from d to the nearest earlier trading day,
// skipping weekends and holidays.
func (c *Calendar) PreviousTradingDay(d domain.Date) domain.Date {
	for {
		d = d.AddDays(-1)
		if c.IsTradingDay(d) {
			return d
		}
	}
}

// NextTradingDay steps forward from d to the nearest later trading day.
func (c *Calendar) NextTradingDay(d domain.Date) domain.Date {
	for {
		d = d.AddDays(1)
		if c.IsTradingDay(d) {
			return d
		}
	}
}

// IsTradingDay reports whether the exchange is open at all on d.
func (c *Calendar) IsTradingDay(d domain.Date) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.isHoliday(d)
}

// IsMarketOpen reports whether the market is trading at the given instant.
// The check runs on exchange-local wall-clock times, so it stays correct
// across daylight-saving transitions.
func (c *Calendar) IsMarketOpen(t time.Time) bool {
	local := t.In(c.loc)
	day := domain.DateOf(local, c.loc)
	if !c.IsTradingDay(day) {
		return false
	}

	open := c.openTime(day)
	close := c.closeTime(day)
	return !local.Before(open) && local.Before(close)
}

// IsMarketOpenNow reports whether the market is trading right now.
func (c *Calendar) IsMarketOpenNow() bool {
	return c.IsMarketOpen(c.Now())
}

// NextOpen returns the next opening bell at or after the current time.
func (c *Calendar) NextOpen() time.Time {
	now := c.Now()
	day := domain.DateOf(now, c.loc)
	if c.IsTradingDay(day) && now.Before(c.openTime(day)) {
		return c.openTime(day)
	}
	return c.openTime(c.NextTradingDay(day))
}

// IsEarlyClose reports whether d is a shortened session.
func (c *Calendar) IsEarlyClose(d domain.Date) bool {
	return isEarlyCloseDay(d) && c.IsTradingDay(d)
}

// TradingDaysBetween returns every trading day in [from, to], ascending.
func (c *Calendar) TradingDaysBetween(from, to domain.Date) []domain.Date {
	var days []domain.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

func (c *Calendar) openTime(d domain.Date) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), openHour, openMinute, 0, 0, c.loc)
}

func (c *Calendar) closeTime(d domain.Date) time.Time {
	if isEarlyCloseDay(d) {
		return time.Date(d.Year(), d.Month(), d.Day(), earlyCloseHour, earlyCloseMinute, 0, 0, c.loc)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), closeHour, closeMinute, 0, 0, c.loc)
}

func (c *Calendar) isHoliday(d domain.Date) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	year := d.Year()
	set, ok := c.holidays[year]
	if !ok {
		set = make(map[domain.Date]bool)
		for _, h := range holidaysForYear(year) {
			set[h] = true
		}
		c.holidays[year] = set
	}
	return set[d]
}
