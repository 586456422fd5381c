package align

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/KaramelBytes/correlate-cli/internal/parser"
)

// maxEpochMillis is the largest representable instant, ±100,000,000 days.
const maxEpochMillis = 8.64e15

// Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	time.UnixDate,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

var digitsOnly = regexp.MustCompile(`^-?\d+$`)

// ParseTimestamp interprets a cell as an instant. Numbers (and all-digit
// strings) are Unix epoch milliseconds; a four-digit string is a year.
func ParseTimestamp(v parser.Value) (time.Time, bool) {
	switch v.Kind {
	case parser.KindNumber:
		return fromEpochMillis(v.Num)
	case parser.KindString:
		return parseTimeString(v.Str)
	default:
		return time.Time{}, false
	}
}

func parseTimeString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if digitsOnly.MatchString(s) {
		if len(s) == 4 {
			y, _ := strconv.Atoi(s)
			return validYear(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC))
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromEpochMillis(f)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return validYear(t.UTC())
		}
	}
	return time.Time{}, false
}

func fromEpochMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}
	return validYear(time.UnixMilli(int64(ms)).UTC())
}

// validYear rejects instants whose calendar year does not fit YYYY.
func validYear(t time.Time) (time.Time, bool) {
	if t.Year() < 0 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// DayKey formats the UTC calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

var leadingFloat = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// ParseValue converts a cell to a finite float. Strings use their longest
// numeric prefix, so "12.5kg" yields 12.5 and "kg" is rejected.
func ParseValue(v parser.Value) (float64, bool) {
	var f float64
	switch v.Kind {
	case parser.KindNumber:
		f = v.Num
	case parser.KindString:
		s := strings.TrimLeftFunc(v.Str, func(r rune) bool { return unicode.IsSpace(r) || r == '\ufeff' })
		m := leadingFloat.FindString(s)
		if m == "" {
			return 0, false
		}
		if strings.HasSuffix(m, "Infinity") {
			return 0, false
		}
		var err error
		f, err = strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
