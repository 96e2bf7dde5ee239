package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDateNumeric(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{"milliseconds epoch", float64(1700000000000), date(2023, time.November, 14)},
		{"seconds epoch", float64(1700000000), date(2023, time.November, 14)},
		{"bare year", float64(2023), date(2023, time.January, 1)},
		{"bare year int", 1999, date(1999, time.January, 1)},
		{"days since epoch", float64(19000), date(2022, time.January, 8)},
		{"int64 milliseconds", int64(1700000000000), date(2023, time.November, 14)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.value)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDateString(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"iso date", "2025-03-01", date(2025, time.March, 1)},
		{"embedded iso date", "Expires 2025-03-01 at noon", date(2025, time.March, 1)},
		{"epoch wrapper", "/Date(1700000000000)/", date(2023, time.November, 14)},
		{"us slash date", "3/5/2024", date(2024, time.March, 5)},
		{"long month", "March 5, 2024", date(2024, time.March, 5)},
		{"short month", "Mar 5 2024", date(2024, time.March, 5)},
		{"month and year only", "March 2024", date(2024, time.March, 1)},
		{"numeric string year", "2023", date(2023, time.January, 1)},
		{"timestamp", "2024-03-05 13:45:00", date(2024, time.March, 5)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDate(tc.value)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDateRejects(t *testing.T) {
	for _, value := range []any{nil, "", "   ", "not a date", true, false, time.Time{}, struct{}{}} {
		_, ok := ParseDate(value)
		assert.False(t, ok, "value %#v should not parse", value)
	}
}

func TestParseDateTime(t *testing.T) {
	in := time.Date(2024, time.March, 5, 17, 30, 0, 0, time.UTC)
	got, ok := ParseDate(in)
	require.True(t, ok)
	assert.Equal(t, date(2024, time.March, 5), got)

	got, ok = ParseDate(&in)
	require.True(t, ok)
	assert.Equal(t, date(2024, time.March, 5), got)
}

func TestMidnight(t *testing.T) {
	in := time.Date(2024, time.June, 1, 23, 59, 59, 123, time.UTC)
	assert.Equal(t, date(2024, time.June, 1), Midnight(in))
}

func TestISODate(t *testing.T) {
	assert.Equal(t, "2024-06-01", ISODate(date(2024, time.June, 1)))
}
