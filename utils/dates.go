package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// isoDateRe finds an embedded YYYY-MM-DD anywhere in a string.
	isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	// epochWrapperRe matches the ArcGIS/OData "/Date(ms)/" wrapper.
	epochWrapperRe = regexp.MustCompile(`^/Date\((-?\d+)\)/$`)
)

// dateLayouts are tried in order for generic string parsing.
var dateLayouts = []string{
	"1/2/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"January 2006",
	"Jan 2006",
}

// Midnight truncates t to midnight UTC. All pipeline dates live at UTC
// midnight so bucket comparisons never depend on time-of-day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ISODate formats t as YYYY-MM-DD.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDate coerces an arbitrary attribute value into a calendar date at
// UTC midnight. Numbers are milliseconds-since-epoch above 1e12, seconds
// above 1e9, a bare year in [1900, 2100], otherwise days-since-epoch.
// Strings try an embedded YYYY-MM-DD, the "/Date(ms)/" wrapper, numeric
// coercion, then a list of common layouts. Failure to parse is never an
// error, it just means no signal.
func ParseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return Midnight(v), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return Midnight(*v), true
	case float64:
		return parseNumericDate(v)
	case float32:
		return parseNumericDate(float64(v))
	case int:
		return parseNumericDate(float64(v))
	case int32:
		return parseNumericDate(float64(v))
	case int64:
		return parseNumericDate(float64(v))
	case string:
		return parseStringDate(v)
	}
	return time.Time{}, false
}

func parseNumericDate(v float64) (time.Time, bool) {
	switch {
	case v > 1e12:
		return Midnight(time.UnixMilli(int64(v))), true
	case v > 1e9:
		return Midnight(time.Unix(int64(v), 0)), true
	case v == float64(int64(v)) && v >= 1900 && v <= 2100:
		// A bare year like 2023 means Jan 1 of that year.
		return time.Date(int(v), time.January, 1, 0, 0, 0, 0, time.UTC), true
	default:
		epoch := time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
		return epoch.AddDate(0, 0, int(v)), true
	}
}

func parseStringDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := isoDateRe.FindString(s); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return Midnight(t), true
		}
	}

	if m := epochWrapperRe.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return Midnight(time.UnixMilli(ms)), true
		}
		return time.Time{}, false
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return parseNumericDate(n)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Midnight(t), true
		}
	}
	return time.Time{}, false
}
