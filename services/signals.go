package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"str-pipeline/models"
	"str-pipeline/utils"
)

// Traversal bounds for raw listing payloads. Deeper or longer structures
// are silently truncated, never rejected.
const (
	maxSignalDepth = 4
	maxArrayScan   = 25
)

var (
	// dateKeyRe marks key paths worth a date-parse attempt regardless of
	// the value's shape.
	dateKeyRe = regexp.MustCompile(`(?i)(date|expir|permit|licen|renew|sale|deed|assess|issu|record)`)
	// dateValueRe marks scalar values that look date-bearing even under a
	// non-date-ish key: MM/DD/YYYY, ISO dates, month names, bare years.
	dateValueRe = regexp.MustCompile(`(?i)(\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2}|\b(january|february|march|april|may|june|july|august|september|october|november|december)\b|\b(19|20)\d{2}\b)`)
)

// signalCategories maps key-path patterns to semantic categories, checked
// in order. The first match wins; anything else is generic.
var signalCategories = []struct {
	category models.SignalCategory
	re       *regexp.Regexp
}{
	{models.SignalPermit, regexp.MustCompile(`(?i)(permit|licen|registr|renew|cert)`)},
	{models.SignalTransfer, regexp.MustCompile(`(?i)(sale|sold|deed|transfer|convey|purchas)`)},
	{models.SignalAssessment, regexp.MustCompile(`(?i)(assess|apprais|valuation|tax)`)},
	{models.SignalUpdate, regexp.MustCompile(`(?i)(update|edit|modif|change|chg)`)},
}

// MineSignals walks a listing's raw payload depth-first and extracts every
// date-bearing signal it can find. Pure function of the payload: identical
// input always yields the identical, date-ascending signal set.
func MineSignals(raw any) []*models.RenewalSignal {
	seen := make(map[string]struct{})
	var signals []*models.RenewalSignal
	mineValue(raw, "", 0, seen, &signals)

	sort.Slice(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Path < b.Path
	})
	return signals
}

func mineValue(value any, path string, depth int, seen map[string]struct{}, out *[]*models.RenewalSignal) {
	switch v := value.(type) {
	case nil:
		return
	case map[string]any:
		if depth >= maxSignalDepth {
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			mineValue(v[k], joinPath(path, k), depth+1, seen, out)
		}
	case []any:
		if depth >= maxSignalDepth {
			return
		}
		for i, item := range v {
			if i >= maxArrayScan {
				break
			}
			mineValue(item, fmt.Sprintf("%s[%d]", path, i), depth+1, seen, out)
		}
	case bool:
		return
	default:
		mineScalar(v, path, seen, out)
	}
}

func mineScalar(value any, path string, seen map[string]struct{}, out *[]*models.RenewalSignal) {
	if !dateKeyRe.MatchString(path) && !dateValueRe.MatchString(scalarString(value)) {
		return
	}

	date, ok := utils.ParseDate(value)
	if !ok {
		return
	}

	category := categoryForPath(path)
	key := string(category) + "|" + path + "|" + utils.ISODate(date)
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}

	*out = append(*out, &models.RenewalSignal{
		Category: category,
		Path:     path,
		Date:     date,
		Raw:      value,
	})
}

func categoryForPath(path string) models.SignalCategory {
	for _, entry := range signalCategories {
		if entry.re.MatchString(path) {
			return entry.category
		}
	}
	return models.SignalGeneric
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
