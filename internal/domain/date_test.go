package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2025-06-16")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-16", d.String())
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.June, d.Month())
	assert.Equal(t, 16, d.Day())
	assert.Equal(t, time.Monday, d.Weekday())
}

func TestDateOfDependsOnLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:00 UTC on June 17 is still June 16 in New York.
	instant := time.Date(2025, 6, 17, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, MustParseDate("2025-06-17"), DateOf(instant, time.UTC))
	assert.Equal(t, MustParseDate("2025-06-16"), DateOf(instant, ny))
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2025-01-31")
	assert.Equal(t, MustParseDate("2025-02-01"), d.AddDays(1))
	assert.Equal(t, MustParseDate("2025-03-03"), d.AddMonths(1)) // Feb 31 normalizes
	assert.Equal(t, MustParseDate("2026-01-31"), d.AddYears(1))

	assert.Equal(t, 10, MustParseDate("2025-06-01").DaysUntil(MustParseDate("2025-06-11")))
	assert.Equal(t, -10, MustParseDate("2025-06-11").DaysUntil(MustParseDate("2025-06-01")))
}

func TestDateComparisons(t *testing.T) {
	a := MustParseDate("2025-06-16")
	b := MustParseDate("2025-06-17")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(MustParseDate("2025-06-16")))
	assert.False(t, a.IsZero())
	assert.True(t, Date{}.IsZero())
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		Day Date `json:"day"`
	}

	out, err := json.Marshal(wrapper{Day: MustParseDate("2025-06-16")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2025-06-16"}`, string(out))

	var in wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2025-12-24"}`), &in))
	assert.Equal(t, MustParseDate("2025-12-24"), in.Day)

	assert.Error(t, json.Unmarshal([]byte(`{"day":"12/24/2025"}`), &in))
}
