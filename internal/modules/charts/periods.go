// Package charts builds aligned portfolio/benchmark percentage series per
// period and caches the generated payloads.
package charts

import (
	"fmt"
	"strings"

	"github.com/openfolio/openfolio/internal/domain"
)

// Period is one of the fixed chart windows.
type Period string

const (
	Period1D  Period = "1D"
	Period5D  Period = "5D"
	Period1M  Period = "1M"
	Period3M  Period = "3M"
	PeriodYTD Period = "YTD"
	Period1Y  Period = "1Y"
	Period5Y  Period = "5Y"
	PeriodMax Period = "MAX"
)

// AllPeriods lists every supported period, in display order.
var AllPeriods = []Period{Period1D, Period5D, Period1M, Period3M, PeriodYTD, Period1Y, Period5Y, PeriodMax}

// ParsePeriod validates a period string from the API. Case-insensitive.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllPeriods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// UsesIntraday reports whether the period charts intraday rows when present.
func (p Period) UsesIntraday() bool {
	return p == Period1D || p == Period5D
}

// String implements fmt.Stringer.
func (p Period) String() string { return string(p) }

// RangeCalendar is the calendar slice range resolution needs.
type RangeCalendar interface {
	CurrentTradingDay() domain.Date
	PreviousTradingDay(d domain.Date) domain.Date
}

// Start returns the window start for the period, given the resolved end day.
// MAX is resolved by the caller from the user's first snapshot. The start is
// the baseline day; snapshots strictly before it never enter the window.
func (p Period) Start(cal RangeCalendar, end domain.Date) domain.Date {
	switch p {
	case Period1D:
		// Anchor on the previous close so the intraday line measures today's
		// change the way a quote screen does.
		return cal.PreviousTradingDay(end)
	case Period5D:
		start := end
		for i := 0; i < 5; i++ {
			start = cal.PreviousTradingDay(start)
		}
		return start
	case Period1M:
		return end.AddMonths(-1)
	case Period3M:
		return end.AddMonths(-3)
	case PeriodYTD:
		// Jan 1 exchange-local; the baseline is the first snapshot on or
		// after it.
		return domain.NewDate(end.Year(), 1, 1)
	case Period1Y:
		return end.AddYears(-1)
	case Period5Y:
		return end.AddYears(-5)
	}
	return domain.Date{}
}
