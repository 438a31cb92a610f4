package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/internal/domain"
)

const exchangeTZ = "America/New_York"

func newTestCalendar(t *testing.T, at time.Time) *Calendar {
	t.Helper()
	cal, err := NewAt(exchangeTZ, at)
	require.NoError(t, err)
	return cal
}

func nyTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(exchangeTZ)
	require.NoError(t, err)
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return parsed
}

func TestCurrentTradingDayIgnoresHostTimezone(t *testing.T) {
	// 2025-03-03 23:30 in New York is already 2025-03-04 in UTC. The trading
	// day must still be the 3rd regardless of how the instant is expressed.
	at := nyTime(t, "2025-03-03 23:30")
	cal := newTestCalendar(t, at.UTC())

	assert.Equal(t, domain.MustParseDate("2025-03-03"), cal.CurrentTradingDay())

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	cal2 := newTestCalendar(t, at.In(tokyo))
	assert.Equal(t, domain.MustParseDate("2025-03-03"), cal2.CurrentTradingDay())
}

func TestIsMarketOpenRegularHours(t *testing.T) {
	tests := []struct {
		name string
		at   string
		open bool
	}{
		{"before open", "2025-03-04 09:29", false},
		{"at open", "2025-03-04 09:30", true},
		{"midday", "2025-03-04 12:00", true},
		{"just before close", "2025-03-04 15:59", true},
		{"at close", "2025-03-04 16:00", false},
		{"saturday", "2025-03-08 12:00", false},
		{"sunday", "2025-03-09 12:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := nyTime(t, tt.at)
			cal := newTestCalendar(t, at)
			assert.Equal(t, tt.open, cal.IsMarketOpen(at))
		})
	}
}

func TestIsMarketOpenAcrossDSTTransition(t *testing.T) {
	// US DST starts 2025-03-09. Noon local on the Friday before and the Monday
	// after are different UTC offsets but both inside the session.
	cal := newTestCalendar(t, nyTime(t, "2025-03-10 12:00"))

	before := nyTime(t, "2025-03-07 12:00")
	after := nyTime(t, "2025-03-10 12:00")
	require.NotEqual(t, before.UTC().Hour()-12, after.UTC().Hour()-12)

	assert.True(t, cal.IsMarketOpen(before))
	assert.True(t, cal.IsMarketOpen(after))

	// 09:30 local stays the open boundary on both sides of the transition.
	assert.True(t, cal.IsMarketOpen(nyTime(t, "2025-03-07 09:30")))
	assert.True(t, cal.IsMarketOpen(nyTime(t, "2025-03-10 09:30")))
	assert.False(t, cal.IsMarketOpen(nyTime(t, "2025-03-10 09:29")))
}

func TestHolidays2025(t *testing.T) {
	cal := newTestCalendar(t, nyTime(t, "2025-06-02 12:00"))

	holidays := []string{
		"2025-01-01", // New Year's Day
		"2025-01-20", // MLK Day
		"2025-02-17", // Washington's Birthday
		"2025-04-18", // Good Friday
		"2025-05-26", // Memorial Day
		"2025-06-19", // Juneteenth
		"2025-07-04", // Independence Day
		"2025-09-01", // Labor Day
		"2025-11-27", // Thanksgiving
		"2025-12-25", // Christmas
	}
	for _, h := range holidays {
		assert.False(t, cal.IsTradingDay(domain.MustParseDate(h)), h)
	}

	// Regular weekdays around them trade.
	assert.True(t, cal.IsTradingDay(domain.MustParseDate("2025-01-02")))
	assert.True(t, cal.IsTradingDay(domain.MustParseDate("2025-06-20")))
}

func TestObservedHolidayShift(t *testing.T) {
	cal := newTestCalendar(t, nyTime(t, "2027-06-01 12:00"))

	// July 4 2026 is a Saturday: observed Friday July 3.
	assert.False(t, cal.IsTradingDay(domain.MustParseDate("2026-07-03")))
	// Jan 1 2028 is a Saturday: observed Friday Dec 31 2027.
	assert.False(t, cal.IsTradingDay(domain.MustParseDate("2027-12-31")))
}

func TestEarlyClose(t *testing.T) {
	// Day after Thanksgiving 2025 closes at 13:00.
	at := nyTime(t, "2025-11-28 13:30")
	cal := newTestCalendar(t, at)

	assert.True(t, cal.IsEarlyClose(domain.MustParseDate("2025-11-28")))
	assert.True(t, cal.IsMarketOpen(nyTime(t, "2025-11-28 12:00")))
	assert.False(t, cal.IsMarketOpen(at))
}

func TestPreviousAndNextTradingDay(t *testing.T) {
	cal := newTestCalendar(t, nyTime(t, "2025-03-10 12:00"))

	// Monday steps back over the weekend to Friday.
	assert.Equal(t, domain.MustParseDate("2025-03-07"),
		cal.PreviousTradingDay(domain.MustParseDate("2025-03-10")))

	// Tuesday after MLK Day steps back over holiday and weekend.
	assert.Equal(t, domain.MustParseDate("2025-01-17"),
		cal.PreviousTradingDay(domain.MustParseDate("2025-01-21")))

	// Friday steps forward to Monday.
	assert.Equal(t, domain.MustParseDate("2025-03-10"),
		cal.NextTradingDay(domain.MustParseDate("2025-03-07")))
}

func TestLastCompletedTradingDay(t *testing.T) {
	// Midday: session not closed yet, so last completed day is the previous one.
	cal := newTestCalendar(t, nyTime(t, "2025-03-04 12:00"))
	assert.Equal(t, domain.MustParseDate("2025-03-03"), cal.LastCompletedTradingDay())

	// After the close, today counts.
	cal = newTestCalendar(t, nyTime(t, "2025-03-04 16:30"))
	assert.Equal(t, domain.MustParseDate("2025-03-04"), cal.LastCompletedTradingDay())

	// Saturday resolves to Friday.
	cal = newTestCalendar(t, nyTime(t, "2025-03-08 12:00"))
	assert.Equal(t, domain.MustParseDate("2025-03-07"), cal.LastCompletedTradingDay())
}

func TestTradingDaysBetween(t *testing.T) {
	cal := newTestCalendar(t, nyTime(t, "2025-01-27 12:00"))

	days := cal.TradingDaysBetween(
		domain.MustParseDate("2025-01-17"),
		domain.MustParseDate("2025-01-22"),
	)

	// Fri 17, (weekend), (MLK Mon 20), Tue 21, Wed 22.
	require.Len(t, days, 3)
	assert.Equal(t, domain.MustParseDate("2025-01-17"), days[0])
	assert.Equal(t, domain.MustParseDate("2025-01-21"), days[1])
	assert.Equal(t, domain.MustParseDate("2025-01-22"), days[2])
}
